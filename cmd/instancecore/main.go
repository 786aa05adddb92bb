// Instancecore is an operator console for instance progression content: it
// loads a Lua instance definition and drives its controller over a simulated
// world.
// Usage: instancecore [--version] [--plain] [--config <file>] [--script <file>]
// [--trace] [--serve <addr>] [--fresh] [--schema] <instance_directory>
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/instancecore/cli"
	"github.com/nathoo/instancecore/config"
	"github.com/nathoo/instancecore/console"
	"github.com/nathoo/instancecore/engine"
	"github.com/nathoo/instancecore/loader"
	"github.com/nathoo/instancecore/server"
	"github.com/nathoo/instancecore/tui"
	"github.com/nathoo/instancecore/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: instancecore [--version] [--plain] [--config <file>] [--script <file>] [--trace] [--serve <addr>] [--fresh] [--schema] <instance_directory>\n"

func main() {
	plain := false
	trace := false
	fresh := false
	configFile := "instancecore.yaml"
	var instanceDir, scriptFile, serveAddr string

	args := os.Args[1:]
	value := func(i *int, flag string) string {
		if *i+1 >= len(args) {
			fmt.Fprintf(os.Stderr, "%s requires a value\n", flag)
			os.Exit(1)
		}
		*i++
		return args[*i]
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("instancecore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--schema":
			data, err := server.NotificationSchema()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Stdout.Write(data)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--fresh":
			fresh = true
		case "--config":
			configFile = value(&i, "--config")
		case "--script":
			scriptFile = value(&i, "--script")
		case "--serve":
			serveAddr = value(&i, "--serve")
		default:
			if instanceDir == "" {
				instanceDir = args[i]
			}
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if instanceDir == "" {
		instanceDir = cfg.Instance.Dir
	}
	if instanceDir == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if serveAddr != "" {
		cfg.Feed.Addr = serveAddr
	}

	interactive := scriptFile == "" && !plain && isTerminal()
	if interactive && cfg.Log.File == "" {
		// Keep log lines off the alternate screen.
		cfg.Log.File = filepath.Join(cfg.Instance.SaveDir, "instancecore.log")
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	defs, err := loader.Load(instanceDir, log.Named("loader"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading instance: %v\n", err)
		os.Exit(1)
	}

	progressFile := filepath.Join(cfg.Instance.SaveDir, defs.Instance.Header+".progress")
	opts := []console.Option{
		console.WithLogger(log),
		console.WithRaidSize(cfg.Instance.RaidSize),
		console.WithPersister(persister(progressFile, log)),
	}
	if cfg.Instance.Affiliation != "" {
		opts = append(opts, console.WithAffiliation(types.Affiliation(cfg.Instance.Affiliation)))
	}

	var feed *server.Server
	if cfg.Feed.Addr != "" {
		feed, err = server.Start(cfg.Feed.Addr, server.NewHub(cfg.Feed.Buffer, log.Named("feed")), log.Named("feed"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting feed: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, console.WithFeed(feed.Hub))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			feed.Shutdown(ctx)
		}()
	}

	sess, err := console.New(defs, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !fresh {
		restoreProgress(sess.Controller, progressFile, log)
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		fmt.Printf("%s (map %d)\n\n", defs.Instance.Name, defs.Instance.MapID)
		c := cli.New(sess)
		c.In = f
		c.SaveDir = cfg.Instance.SaveDir
		c.EchoInput = true
		c.Trace = trace
		c.Run()
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if !interactive {
		fmt.Printf("%s (map %d)\n\n", defs.Instance.Name, defs.Instance.MapID)
		c := cli.New(sess)
		c.SaveDir = cfg.Instance.SaveDir
		c.Trace = trace
		c.Run()
		return
	}

	if err := tui.Run(sess, tui.Options{SaveDir: cfg.Instance.SaveDir, Tick: cfg.Tick.Interval, Trace: trace}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// persister writes every accepted progress blob to path.
func persister(path string, log *zap.Logger) func([]byte) {
	return func(blob []byte) {
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			log.Warn("progress not persisted", zap.String("path", path), zap.Error(err))
		}
	}
}

// restoreProgress loads a previously persisted blob, if any.
func restoreProgress(c *engine.Controller, path string, log *zap.Logger) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		log.Warn("progress not restored", zap.String("path", path), zap.Error(err))
		return
	}
	if err := c.Deserialize(blob); err != nil {
		log.Warn("progress restored with recovery", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("progress restored", zap.String("path", path))
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
