package audit

import (
	"context"
	"database/sql"
	"time"

	"citypulse.org/internal/ids"
)

var _ Recorder = (*PGRecorder)(nil)

// PGRecorder implements Recorder on PostgreSQL. The table carries no update
// or delete statements anywhere in this codebase; grants should match.
type PGRecorder struct {
	db *sql.DB
}

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{db: db}
}

func (r *PGRecorder) Append(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`insert into audit_entries(id, occurred_at, actor_id, actor_name, action, target_type, target_id, old_value, new_value, origin)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.OccurredAt, e.ActorID, e.ActorName, e.Action, e.TargetType, e.TargetID,
		nullableJSON(e.OldValue), nullableJSON(e.NewValue), e.Origin,
	)
	return err
}

// List pushes the filters into the query instead of filtering after retrieval;
// newest-first order and the clamped limit are preserved.
func (r *PGRecorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	f = f.normalized()
	rows, err := r.db.QueryContext(ctx,
		`select id, occurred_at, actor_id, actor_name, action, target_type, target_id, old_value, new_value, origin
		 from audit_entries
		 where ($1 = '' or action = $1)
		   and ($2 = '' or target_type = $2)
		 order by occurred_at desc, id desc
		 limit $3`,
		f.Action, f.TargetType, f.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorID, &e.ActorName, &e.Action,
			&e.TargetType, &e.TargetID, &oldValue, &newValue, &e.Origin); err != nil {
			return nil, err
		}
		e.OldValue = oldValue
		e.NewValue = newValue
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
