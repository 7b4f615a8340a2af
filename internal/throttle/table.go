// Package throttle implements the per-identifier fixed-window request
// counter used by the request gate. One process, one table; horizontally
// scaled deployments need a shared store, which this package deliberately
// does not provide.
package throttle

import (
	"strings"
	"sync"
	"time"
)

// Config is the (maxRequests, window) tuple for one endpoint class.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Endpoint classes with dedicated budgets. Everything else uses ClassDefault.
const (
	ClassAIAssessment = "ai_assessment"
	ClassTicketCreate = "ticket_create"
	ClassAuth         = "auth"
	ClassDefault      = "default"
)

var rules = map[string]Config{
	ClassAIAssessment: {MaxRequests: 5, Window: time.Minute},
	ClassTicketCreate: {MaxRequests: 20, Window: time.Minute},
	ClassAuth:         {MaxRequests: 10, Window: 15 * time.Minute},
	ClassDefault:      {MaxRequests: 100, Window: time.Minute},
}

// RuleFor returns the static configuration for an endpoint class. Unknown
// classes fall back to the default budget; the table is never mutated at
// runtime.
func RuleFor(class string) Config {
	if cfg, ok := rules[class]; ok {
		return cfg
	}
	return rules[ClassDefault]
}

// Result reports one throttle decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

type record struct {
	count   int
	resetAt time.Time
}

// Table owns the counter map and its lock. Construct once at process start
// and hand the same instance to every request handler.
type Table struct {
	mu    sync.Mutex
	items map[string]record
	now   func() time.Time
}

// New returns an empty table using the wall clock.
func New() *Table {
	return NewWithClock(time.Now)
}

// NewWithClock injects the clock; tests substitute a fake to step windows.
func NewWithClock(now func() time.Time) *Table {
	return &Table{
		items: make(map[string]record),
		now:   now,
	}
}

// Key joins client address, optional user id and optional endpoint class in a
// fixed order with a fixed separator. Distinct identifiers never collide and
// the same client+user+endpoint always maps to the same key.
func Key(addr, userID, class string) string {
	return strings.Join([]string{addr, userID, class}, "|")
}

// Check applies the fixed-window counter for key. A fresh or expired window
// restarts at count=1; a full window denies with the time until reset. The
// policy admits up to 2x the budget straddling a window boundary, accepted
// for O(1) memory per key.
//
// Decisions for a single key are totally ordered by the table lock; a lost
// update would let a client exceed its budget.
func (t *Table) Check(key string, cfg Config) Result {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.items[key]
	if !ok || now.After(rec.resetAt) {
		t.items[key] = record{count: 1, resetAt: now.Add(cfg.Window)}
		return Result{
			Allowed:   true,
			Remaining: cfg.MaxRequests - 1,
			ResetIn:   cfg.Window,
		}
	}
	if rec.count >= cfg.MaxRequests {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetIn:   rec.resetAt.Sub(now),
		}
	}
	rec.count++
	t.items[key] = rec
	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - rec.count,
		ResetIn:   rec.resetAt.Sub(now),
	}
}

// Sweep deletes every expired record and reports how many were removed. It
// takes the same lock as Check, so a reset never races an increment.
func (t *Table) Sweep() int {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, rec := range t.items {
		if now.After(rec.resetAt) {
			delete(t.items, k)
			removed++
		}
	}
	return removed
}

// StartSweep runs Sweep at the given interval until the returned stop
// function is called. The period is independent of request traffic.
func (t *Table) StartSweep(interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Len reports the number of live records. Memory stays bounded by the number
// of distinct active identifiers between sweeps.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
