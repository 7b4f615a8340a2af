package tickets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"citypulse.org/internal/authz"
	"citypulse.org/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps teams and tickets in process memory. Development and
// test backend; production uses the Postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	teams   []Team
	tickets map[string]Ticket
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[string]Ticket),
		now:     time.Now,
	}
}

// SeedDemo populates one crew per known department so a fresh instance has
// something to show.
func (m *MemoryStore) SeedDemo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := authz.Departments()
	sort.Strings(keys)
	for i, key := range keys {
		label, _ := authz.DepartmentLabel(key)
		m.teams = append(m.teams, Team{
			ID:              ids.New(),
			Name:            fmt.Sprintf("Crew %d", i+1),
			Department:      key,
			DepartmentLabel: label,
			MembersCount:    4 + i%3,
		})
	}
}

// AddTeam registers a team. Test and seeding helper.
func (m *MemoryStore) AddTeam(t Team) {
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.DepartmentLabel == "" {
		t.DepartmentLabel, _ = authz.DepartmentLabel(t.Department)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams = append(m.teams, t)
}

func (m *MemoryStore) ListTeams(_ context.Context, scope Scope) ([]Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Team, 0, len(m.teams))
	for _, t := range m.teams {
		if scope.Matches(t.Department) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListTickets(_ context.Context, scope Scope) ([]Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		if scope.Matches(t.Department) {
			out = append(out, t)
		}
	}
	// Ticket IDs are ULIDs; sorting by ID newest-first matches creation order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetTicket(_ context.Context, id string) (Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) CreateTicket(_ context.Context, t Ticket) (Ticket, error) {
	if strings.TrimSpace(t.Title) == "" {
		return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	now := m.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	return t, nil
}

func (m *MemoryStore) UpdateTicket(_ context.Context, id string, upd TicketUpdate) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Department != nil {
		t.Department = *upd.Department
	}
	if upd.Location != nil {
		loc := *upd.Location
		t.Location = &loc
	}
	t.UpdatedAt = m.now().UTC()
	m.tickets[id] = t
	return t, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) (Ticket, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Ticket{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = m.now().UTC()
	m.tickets[id] = t
	return t, nil
}

func (m *MemoryStore) Summary(_ context.Context, scope Scope) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Summary
	for _, t := range m.tickets {
		if scope.Matches(t.Department) {
			s.add(t.Status)
		}
	}
	return s, nil
}
