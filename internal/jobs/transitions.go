package jobs

import (
	"context"
	"database/sql"
	"time"
)

// AppendTransition records one status-history edge durably. Transition rows
// for a job are removed by the foreign key cascade when the job is deleted.
func (s *Store) AppendTransition(ctx context.Context, jobID int64, transition Transition) error {
	timestamp := transition.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO job_transitions (job_id, from_status, to_status, reason, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		jobID,
		nullableString(string(transition.From)),
		transition.To,
		nullableString(transition.Reason),
		timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeError("append transition", err)
	}
	return nil
}

// ListTransitions returns a job's recorded history edges in insertion order.
func (s *Store) ListTransitions(ctx context.Context, jobID int64) ([]Transition, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT from_status, to_status, reason, created_at
         FROM job_transitions WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, storeError("list transitions", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			from      sql.NullString
			to        string
			reason    sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(&from, &to, &reason, &createdAt); err != nil {
			return nil, storeError("scan transition", err)
		}

		transition := Transition{
			From:   Status(from.String),
			To:     Status(to),
			Reason: reason.String,
		}
		if timestamp, err := parseTimeString(createdAt.String); err == nil {
			transition.Timestamp = timestamp
		}
		out = append(out, transition)
	}
	return out, rows.Err()
}
