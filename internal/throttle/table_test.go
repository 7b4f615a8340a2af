package throttle

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckExhaustsWindow(t *testing.T) {
	clock := newFakeClock()
	table := NewWithClock(clock.Now)
	cfg := Config{MaxRequests: 5, Window: time.Minute}
	key := Key("10.0.0.1", "user-1", ClassTicketCreate)

	for i := 0; i < 5; i++ {
		res := table.Check(key, cfg)
		if !res.Allowed {
			t.Fatalf("request %d denied inside the window", i+1)
		}
		if res.Remaining != 5-i-1 {
			t.Fatalf("request %d: remaining=%d, want %d", i+1, res.Remaining, 5-i-1)
		}
	}

	res := table.Check(key, cfg)
	if res.Allowed {
		t.Fatal("6th request allowed")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied result reports remaining=%d", res.Remaining)
	}
	if res.ResetIn <= 0 || res.ResetIn > time.Minute {
		t.Fatalf("reset hint out of range: %v", res.ResetIn)
	}
}

func TestWindowResetsRegardlessOfPriorCount(t *testing.T) {
	clock := newFakeClock()
	table := NewWithClock(clock.Now)
	cfg := Config{MaxRequests: 2, Window: time.Minute}
	key := Key("10.0.0.1", "", "")

	for i := 0; i < 10; i++ {
		table.Check(key, cfg)
	}
	if table.Check(key, cfg).Allowed {
		t.Fatal("expected denial before reset")
	}

	clock.Advance(time.Minute + time.Second)
	res := table.Check(key, cfg)
	if !res.Allowed || res.Remaining != 1 {
		t.Fatalf("expected fresh window after reset, got %+v", res)
	}
}

func TestDistinctIdentifiersDoNotInterfere(t *testing.T) {
	clock := newFakeClock()
	table := NewWithClock(clock.Now)
	cfg := Config{MaxRequests: 1, Window: time.Minute}

	keys := []string{
		Key("10.0.0.1", "user-1", ClassAuth),
		Key("10.0.0.2", "user-1", ClassAuth),
		Key("10.0.0.1", "user-2", ClassAuth),
		Key("10.0.0.1", "user-1", ClassDefault),
	}
	for i, a := range keys {
		for j, b := range keys {
			if i != j && a == b {
				t.Fatalf("keys %d and %d collide: %q", i, j, a)
			}
		}
	}

	for _, k := range keys {
		if !table.Check(k, cfg).Allowed {
			t.Fatalf("first request for %q denied", k)
		}
	}
	for _, k := range keys {
		if table.Check(k, cfg).Allowed {
			t.Fatalf("second request for %q allowed", k)
		}
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("10.0.0.1", "u", "auth")
	b := Key("10.0.0.1", "u", "auth")
	if a != b {
		t.Fatalf("same inputs produced different keys: %q vs %q", a, b)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	table := NewWithClock(clock.Now)

	table.Check("old", Config{MaxRequests: 1, Window: time.Minute})
	clock.Advance(2 * time.Minute)
	table.Check("fresh", Config{MaxRequests: 1, Window: time.Minute})

	if removed := table.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 surviving record, got %d", table.Len())
	}

	// The surviving window still counts from before the sweep.
	if table.Check("fresh", Config{MaxRequests: 1, Window: time.Minute}).Allowed {
		t.Fatal("sweep reset a live counter")
	}
}

func TestCheckIsAtomicUnderConcurrency(t *testing.T) {
	table := New()
	cfg := Config{MaxRequests: 50, Window: time.Minute}
	key := Key("10.0.0.9", "burst", ClassDefault)

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if table.Check(key, cfg).Allowed {
					allowed <- struct{}{}
				}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	if count != cfg.MaxRequests {
		t.Fatalf("allowed %d requests, budget is %d", count, cfg.MaxRequests)
	}
}

func TestRuleForFallsBackToDefault(t *testing.T) {
	for _, class := range []string{ClassAIAssessment, ClassTicketCreate, ClassAuth, ClassDefault} {
		cfg := RuleFor(class)
		if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
			t.Fatalf("class %q has empty config", class)
		}
	}
	if RuleFor("unknown_class") != RuleFor(ClassDefault) {
		t.Fatal("unknown class did not fall back to default")
	}
}

func TestStartSweepStops(t *testing.T) {
	table := New()
	stop := table.StartSweep(10 * time.Millisecond)
	stop()
	stop() // second call must be a no-op
}
