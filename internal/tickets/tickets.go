// Package tickets holds the service-ticket and field-team domain behind the
// dashboard. Deliberately thin: the interesting behavior lives in the gate,
// and every mutation here arrives pre-authorized and pre-sanitized.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"citypulse.org/internal/sanitize"
)

var (
	ErrNotFound     = errors.New("tickets: not found")
	ErrInvalidInput = errors.New("tickets: invalid input")
)

// Status is the closed ticket lifecycle set.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// ParseStatus validates a wire value against the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(strings.ToLower(s))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusResolved:
		return StatusResolved, nil
	case StatusClosed:
		return StatusClosed, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	}
}

// Priority is the closed urgency set.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.TrimSpace(strings.ToLower(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityCritical:
		return PriorityCritical, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, s)
	}
}

// Team is a field crew bound to one department.
type Team struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Department      string `json:"department"`       // department key
	DepartmentLabel string `json:"department_label"` // display label
	Lead            string `json:"lead,omitempty"`
	MembersCount    int    `json:"members_count"`
}

// Ticket is one civic-infrastructure service request.
type Ticket struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	Status         Status                `json:"status"`
	Priority       Priority              `json:"priority"`
	Department     string                `json:"department"` // department key
	Location       *sanitize.Coordinates `json:"location,omitempty"`
	ReporterEmail  string                `json:"reporter_email,omitempty"`
	AttachmentName string                `json:"attachment_name,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketUpdate carries partial mutations; nil fields stay untouched.
type TicketUpdate struct {
	Title       *string
	Description *string
	Priority    *Priority
	Department  *string
	Location    *sanitize.Coordinates
}

// Scope restricts reads. The zero value is the empty scope: nothing visible.
// Build it from an authorization decision, never directly from client input.
type Scope struct {
	Unrestricted bool
	Department   string // department key when restricted
}

// Matches reports whether a record in the given department is visible.
func (s Scope) Matches(departmentKey string) bool {
	if s.Unrestricted {
		return true
	}
	return s.Department != "" && s.Department == departmentKey
}

// Summary is the KPI card payload: ticket counts by lifecycle stage.
type Summary struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

func (s *Summary) add(status Status) {
	s.Total++
	switch status {
	case StatusOpen:
		s.Open++
	case StatusInProgress:
		s.InProgress++
	case StatusResolved:
		s.Resolved++
	case StatusClosed:
		s.Closed++
	}
}

// Store is the persistence contract for teams and tickets.
type Store interface {
	ListTeams(ctx context.Context, scope Scope) ([]Team, error)
	ListTickets(ctx context.Context, scope Scope) ([]Ticket, error)
	GetTicket(ctx context.Context, id string) (Ticket, error)
	CreateTicket(ctx context.Context, t Ticket) (Ticket, error)
	UpdateTicket(ctx context.Context, id string, upd TicketUpdate) (Ticket, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Ticket, error)
	Summary(ctx context.Context, scope Scope) (Summary, error)
}
