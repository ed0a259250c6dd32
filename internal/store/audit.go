package store

import (
	"context"
	"fmt"
	"time"
)

// AuditRow is one line of the persistent run log.
type AuditRow struct {
	ID       int64
	Source   string
	Message  string
	LoggedAt time.Time
}

// Audit appends a row to the persistent run log. Audit failures should not
// abort processing; callers typically log and continue.
func (s *Store) Audit(ctx context.Context, source, message string) error {
	return s.execContext(ctx, "audit", `
		INSERT INTO audit_log (source, message, logged_at) VALUES (?, ?, ?)
	`, source, message, time.Now().UnixNano())
}

// RecentAudit returns the most recent limit audit rows, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, message, logged_at FROM audit_log
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var at int64
		if err := rows.Scan(&r.ID, &r.Source, &r.Message, &at); err != nil {
			return nil, fmt.Errorf("recent audit scan: %w", err)
		}
		r.LoggedAt = time.Unix(0, at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent audit iterate: %w", err)
	}
	return out, nil
}
