package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine"
)

// NotificationSchema returns the JSON schema of feed messages.
func NotificationSchema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&engine.Notification{})
	s.Title = "Instance Notification"
	s.Description = "One controller change as streamed on the observer feed."
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.In("server").Wrapf(err, "marshal notification schema")
	}
	return append(data, '\n'), nil
}

// NewMux routes /feed to the hub and /schema to the notification schema.
func NewMux(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/feed", hub)
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		data, err := NotificationSchema()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	})
	return mux
}

// Server is the observer feed listener.
type Server struct {
	Hub *Hub

	log  *zap.Logger
	http *http.Server
	ln   net.Listener
}

// Start listens on addr and serves the feed in the background.
func Start(addr string, hub *Hub, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.In("server").With("addr", addr).Wrapf(err, "listen")
	}
	s := &Server{
		Hub:  hub,
		log:  log,
		ln:   ln,
		http: &http.Server{Handler: NewMux(hub), ReadHeaderTimeout: 5 * time.Second},
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("feed server stopped", zap.Error(err))
		}
	}()
	log.Info("feed listening", zap.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown disconnects subscribers and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Hub.Close()
	return s.http.Shutdown(ctx)
}
