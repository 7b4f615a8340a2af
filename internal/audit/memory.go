package audit

import (
	"context"
	"sync"
	"time"

	"citypulse.org/internal/ids"
)

// MemoryRecorder keeps the trail in process memory. Used in development and
// tests; production uses the Postgres recorder.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Append(_ context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryRecorder) List(_ context.Context, f Filter) ([]Entry, error) {
	f = f.normalized()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, f.Limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := m.entries[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.TargetType != "" && e.TargetType != f.TargetType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Len reports the number of stored entries. Test helper.
func (m *MemoryRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
