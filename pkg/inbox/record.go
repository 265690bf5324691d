// Package inbox imports session records written by the sync collaborator.
//
// The collaborator appends JSON lines to *.jsonl files in the inbox
// directory. Each line either replaces a whole session record or deletes
// one:
//
//	{"op":"upsert","session":{"id":"...","status":"completed",...}}
//	{"op":"delete","id":"..."}
//
// Files are read incrementally from the last stored offset. After applying a
// batch the importer asks the session manager to reconcile, so a remotely
// completed or deleted hike stops being the local active one.
package inbox

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xmhha/hikelog/pkg/hike"
)

// Record operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Record is one inbox line.
type Record struct {
	Op      string        `json:"op"`
	Session *hike.Session `json:"session,omitempty"`
	ID      string        `json:"id,omitempty"`
}

// TargetID returns the id of the session the record affects.
func (r *Record) TargetID() string {
	if r.Session != nil {
		return r.Session.ID
	}
	return r.ID
}

// Validate checks that the record can be applied.
func (r *Record) Validate() error {
	switch r.Op {
	case OpUpsert:
		s := r.Session
		if s == nil {
			return fmt.Errorf("%w: upsert without session", ErrMalformedRecord)
		}
		if !hike.ValidID(s.ID) {
			return fmt.Errorf("%w: session id %q", ErrMalformedRecord, s.ID)
		}
		if s.StartedAt.IsZero() {
			return fmt.Errorf("%w: session %s has no start time", ErrMalformedRecord, s.ID)
		}
		if s.StartMood < hike.MinMood || s.StartMood > hike.MaxMood {
			return fmt.Errorf("%w: session %s start mood %d", ErrMalformedRecord, s.ID, s.StartMood)
		}
		switch s.Status {
		case hike.StatusInProgress:
			if s.EndedAt != nil {
				return fmt.Errorf("%w: in-progress session %s has an end time", ErrMalformedRecord, s.ID)
			}
		case hike.StatusCompleted:
			if s.EndedAt == nil || s.EndedAt.Before(s.StartedAt) {
				return fmt.Errorf("%w: completed session %s has no valid end time", ErrMalformedRecord, s.ID)
			}
		default:
			return fmt.Errorf("%w: session %s status %q", ErrMalformedRecord, s.ID, s.Status)
		}
	case OpDelete:
		if !hike.ValidID(r.ID) {
			return fmt.Errorf("%w: delete id %q", ErrMalformedRecord, r.ID)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrMalformedRecord, r.Op)
	}
	return nil
}

// ParseLine decodes and validates a single inbox line.
func ParseLine(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedRecord)
	}

	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	rec.Op = strings.ToLower(rec.Op)

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
