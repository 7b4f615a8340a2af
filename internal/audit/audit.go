// Package audit defines the append-only trail of privileged mutations. The
// Recorder contract exposes append and read only; immutability is enforced by
// omitting any update or delete capability, not by convention.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// List limits are clamped server-side regardless of what the client asked
// for, to cap read amplification.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry is one immutable record of a privileged mutation. The actor fields
// always come from the verified identity, never from client input.
type Entry struct {
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id"`
	ActorName  string          `json:"actor_name,omitempty"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	Origin     string          `json:"origin,omitempty"`
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.ActorID) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("actor id is required"))
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("action is required"))
	}
	return nil
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Action     string
	TargetType string
	Limit      int
}

// normalized clamps the limit into [1, MaxListLimit].
func (f Filter) normalized() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f
}

// Recorder is the write-append, read-restricted collaborator contract.
// List returns entries newest-first.
type Recorder interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}
