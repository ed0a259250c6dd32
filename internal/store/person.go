package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PersonRecord tracks a person seen in an extract: the external identifier,
// the directory-internal user id it resolved to, and the stamp of the run
// that last re-affirmed it. The user id is what the removal action needs;
// the eid alone is not enough once a person has been renamed or suspended.
type PersonRecord struct {
	EID       string
	UserID    string
	InputTime int64
}

// StampPerson re-affirms the person row with the run stamp, recording the
// resolved directory user id.
func (s *Store) StampPerson(ctx context.Context, eid, userID string, stamp int64) error {
	return s.execContext(ctx, "stamp person", `
		INSERT INTO person_ids (eid, user_id, input_time) VALUES (?, ?, ?)
		ON CONFLICT(eid) DO UPDATE SET user_id = excluded.user_id, input_time = excluded.input_time
	`, eid, userID, stamp)
}

// PersonByEID returns the tracked person row, or nil when absent.
func (s *Store) PersonByEID(ctx context.Context, eid string) (*PersonRecord, error) {
	var p PersonRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT eid, user_id, input_time FROM person_ids WHERE eid = ?
	`, eid).Scan(&p.EID, &p.UserID, &p.InputTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("person lookup: %w", err)
	}
	return &p, nil
}

// StalePersonsPage returns up to limit person rows whose stamp differs from
// the current run's, skipping offset rows. Ordered by eid for strict
// pagination.
func (s *Store) StalePersonsPage(ctx context.Context, stamp int64, offset, limit int) ([]PersonRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT eid, user_id, input_time FROM person_ids
		WHERE input_time != ?
		ORDER BY eid ASC LIMIT ? OFFSET ?
	`, stamp, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("stale persons: %w", err)
	}
	defer rows.Close()

	var people []PersonRecord
	for rows.Next() {
		var p PersonRecord
		if err := rows.Scan(&p.EID, &p.UserID, &p.InputTime); err != nil {
			return nil, fmt.Errorf("stale persons scan: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale persons iterate: %w", err)
	}
	return people, nil
}

// DeletePerson removes the tracked person row for eid.
func (s *Store) DeletePerson(ctx context.Context, eid string) error {
	return s.execContext(ctx, "delete person", `
		DELETE FROM person_ids WHERE eid = ?
	`, eid)
}
