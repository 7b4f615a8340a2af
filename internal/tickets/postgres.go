package tickets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"citypulse.org/internal/ids"
	"citypulse.org/internal/sanitize"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Scope filtering is pushed into every query: ($1=true) disables the filter,
// otherwise only rows matching a non-empty department key are visible. An
// empty key is the empty scope and matches nothing, mirroring Scope.Matches;
// it must not match rows whose department column is itself empty.

func (s *PGStore) ListTeams(ctx context.Context, scope Scope) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, department, department_label, lead, members_count
		 from teams
		 where ($1 or ($2 <> '' and department = $2))
		 order by name asc`,
		scope.Unrestricted, scope.Department,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Department, &t.DepartmentLabel, &t.Lead, &t.MembersCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) ListTickets(ctx context.Context, scope Scope) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, title, description, status, priority, department, lat, lng, reporter_email, attachment_name, created_at, updated_at
		 from tickets
		 where ($1 or ($2 <> '' and department = $2))
		 order by id desc`,
		scope.Unrestricted, scope.Department,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) GetTicket(ctx context.Context, id string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, title, description, status, priority, department, lat, lng, reporter_email, attachment_name, created_at, updated_at
		 from tickets where id = $1`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return Ticket{}, ErrNotFound
	}
	return t, err
}

func (s *PGStore) CreateTicket(ctx context.Context, t Ticket) (Ticket, error) {
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
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	var lat, lng any
	if t.Location != nil {
		lat, lng = t.Location.Lat, t.Location.Lng
	}
	_, err := s.db.ExecContext(ctx,
		`insert into tickets(id, title, description, status, priority, department, lat, lng, reporter_email, attachment_name, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.Department,
		lat, lng, t.ReporterEmail, t.AttachmentName, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (s *PGStore) UpdateTicket(ctx context.Context, id string, upd TicketUpdate) (Ticket, error) {
	current, err := s.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		current.Title = *upd.Title
	}
	if upd.Description != nil {
		current.Description = *upd.Description
	}
	if upd.Priority != nil {
		current.Priority = *upd.Priority
	}
	if upd.Department != nil {
		current.Department = *upd.Department
	}
	if upd.Location != nil {
		loc := *upd.Location
		current.Location = &loc
	}
	current.UpdatedAt = time.Now().UTC()

	var lat, lng any
	if current.Location != nil {
		lat, lng = current.Location.Lat, current.Location.Lng
	}
	res, err := s.db.ExecContext(ctx,
		`update tickets
		 set title=$2, description=$3, priority=$4, department=$5, lat=$6, lng=$7, updated_at=$8
		 where id=$1`,
		id, current.Title, current.Description, current.Priority, current.Department,
		lat, lng, current.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Ticket{}, ErrNotFound
	}
	return current, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id string, status Status) (Ticket, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Ticket{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`update tickets set status=$2, updated_at=$3 where id=$1`,
		id, status, now,
	)
	if err != nil {
		return Ticket{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Ticket{}, ErrNotFound
	}
	return s.GetTicket(ctx, id)
}

func (s *PGStore) Summary(ctx context.Context, scope Scope) (Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`select status, count(*)
		 from tickets
		 where ($1 or ($2 <> '' and department = $2))
		 group by status`,
		scope.Unrestricted, scope.Department,
	)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		sum.Total += count
		switch status {
		case StatusOpen:
			sum.Open += count
		case StatusInProgress:
			sum.InProgress += count
		case StatusResolved:
			sum.Resolved += count
		case StatusClosed:
			sum.Closed += count
		}
	}
	return sum, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (Ticket, error) {
	var (
		t   Ticket
		lat sql.NullFloat64
		lng sql.NullFloat64
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Department,
		&lat, &lng, &t.ReporterEmail, &t.AttachmentName, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Ticket{}, err
	}
	if lat.Valid && lng.Valid {
		t.Location = &sanitize.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return t, nil
}
