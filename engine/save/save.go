// Package save wraps the controller's opaque progress blob in a JSON save
// envelope that the operator surfaces write to disk.
package save

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nathoo/instancecore/engine/state"
)

// FormatVersion is the envelope format written by Save.
const FormatVersion = "1"

// SaveData is the JSON-serializable save envelope. Progress is the
// controller's blob, carried verbatim.
type SaveData struct {
	Version  string    `json:"version"`
	ID       string    `json:"id"`
	Instance string    `json:"instance"`
	Session  string    `json:"session"`
	SavedAt  time.Time `json:"saved_at"`
	ClockMS  int64     `json:"clock_ms"`
	Progress string    `json:"progress"`
}

// Restorer accepts a progress blob. The controller implements it.
type Restorer interface {
	Deserialize([]byte) error
}

// Save serializes a progress blob into a save envelope.
func Save(defs *state.Defs, session ulid.ULID, clock time.Duration, progress []byte) ([]byte, error) {
	data := SaveData{
		Version:  FormatVersion,
		ID:       ulid.Make().String(),
		Instance: defs.Instance.Name,
		Session:  session.String(),
		SavedAt:  time.Now().UTC(),
		ClockMS:  clock.Milliseconds(),
		Progress: string(progress),
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, oops.In("save").Wrapf(err, "encode save envelope")
	}
	return out, nil
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, oops.In("save").Wrapf(err, "decode save envelope")
	}
	if sd.Version == "" {
		return nil, oops.In("save").Errorf("save envelope has no version")
	}
	if sd.ID != "" {
		if _, err := ulid.ParseStrict(sd.ID); err != nil {
			return nil, oops.In("save").With("id", sd.ID).Wrapf(err, "invalid save id")
		}
	}
	return &sd, nil
}

// Clock returns the saved queue clock.
func (sd *SaveData) Clock() time.Duration {
	return time.Duration(sd.ClockMS) * time.Millisecond
}

// ApplySave restores the progress blob onto r. A save written for another
// instance is refused. Errors from r are returned after r has applied its
// best recovery.
func ApplySave(r Restorer, instance string, sd *SaveData) error {
	if sd.Instance != instance {
		return oops.In("save").
			With("expected", instance).
			With("got", sd.Instance).
			Errorf("save belongs to instance %q", sd.Instance)
	}
	if err := r.Deserialize([]byte(sd.Progress)); err != nil {
		return oops.In("save").Wrapf(err, "restore progress")
	}
	return nil
}
