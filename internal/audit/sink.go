package audit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"citypulse.org/internal/obs"
)

// Sink wraps a Recorder with the gate's best-effort append policy: a failed
// append never rolls back or fails the primary action, but every failure is
// counted for operational monitoring. Error log lines are rate-limited so a
// storage outage does not flood the log stream while the counter keeps the
// true total.
type Sink struct {
	rec    Recorder
	alerts *rate.Limiter
}

func NewSink(rec Recorder) *Sink {
	return &Sink{
		rec:    rec,
		alerts: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// Append records the entry, reporting failures instead of returning them.
func (s *Sink) Append(ctx context.Context, e Entry) {
	if s == nil || s.rec == nil {
		return
	}
	err := s.rec.Append(ctx, e)
	if err == nil {
		return
	}
	obs.IncAuditAppendFailure()
	if s.alerts.Allow() {
		obs.LogRequest(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_append_failed",
			"action": e.Action,
			"error":  err.Error(),
		})
	}
}

// List delegates to the underlying recorder. Read errors do propagate; a
// partial audit view must be visible as such, not silently empty.
func (s *Sink) List(ctx context.Context, f Filter) ([]Entry, error) {
	if s == nil || s.rec == nil {
		return nil, errors.New("audit: recorder not configured")
	}
	return s.rec.List(ctx, f)
}
