package store

import (
	"context"
	"fmt"
)

// LedgerEntry is one tracked occurrence of an entity: (kind, eid) stamped
// with the logical timestamp of the run that last re-affirmed it, plus the
// parent eid the record declared when stamped (empty for parentless kinds).
type LedgerEntry struct {
	ID           int64
	Kind         string
	EID          string
	ContainerEID string
	InputTime    int64
}

// Stamp re-affirms (kind, eid) with the given run timestamp and declared
// parent, creating the ledger entry if it does not exist. If duplicate rows
// exist for the pair, the most recently touched one is kept and stamped;
// older duplicates are deleted so they cannot later be swept as stale.
func (s *Store) Stamp(ctx context.Context, kind, eid, container string, stamp int64) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM ledger_entries
		WHERE kind = ? AND eid = ?
		ORDER BY input_time DESC, id DESC
	`, kind, eid)
	if err != nil {
		return fmt.Errorf("stamp lookup: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return fmt.Errorf("stamp lookup: %w", err)
	}

	if len(ids) == 0 {
		return s.execContext(ctx, "stamp insert", `
			INSERT INTO ledger_entries (kind, eid, container_eid, input_time) VALUES (?, ?, ?, ?)
		`, kind, eid, container, stamp)
	}

	if err := s.execContext(ctx, "stamp update", `
		UPDATE ledger_entries SET container_eid = ?, input_time = ? WHERE id = ?
	`, container, stamp, ids[0]); err != nil {
		return err
	}
	for _, dup := range ids[1:] {
		if err := s.execContext(ctx, "stamp dedupe", `
			DELETE FROM ledger_entries WHERE id = ?
		`, dup); err != nil {
			return err
		}
	}
	return nil
}

// StalePage returns up to limit ledger entries of the given kind whose
// stamp differs from the current run's, skipping offset rows. When
// containers is non-empty the query is restricted to entries whose stored
// parent is one of them (used when missing-parent suppression limits the
// sweep to the current valid parent set).
//
// Results are ordered by id so repeated pages always see a stable order.
func (s *Store) StalePage(ctx context.Context, kind string, stamp int64, containers []string, offset, limit int) ([]LedgerEntry, error) {
	query := `
		SELECT id, kind, eid, container_eid, input_time FROM ledger_entries
		WHERE kind = ? AND input_time != ?`
	args := []any{kind, stamp}
	if len(containers) > 0 {
		query += ` AND container_eid IN (` + placeholders(len(containers)) + `)`
		for _, c := range containers {
			args = append(args, c)
		}
	}
	query += ` ORDER BY id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stale page: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.EID, &e.ContainerEID, &e.InputTime); err != nil {
			return nil, fmt.Errorf("stale page scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale page iterate: %w", err)
	}
	return entries, nil
}

// DeleteKindEID removes every ledger row for (kind, eid), duplicates
// included. Used after the kind's removal action succeeds so the entry is
// not re-swept on the next run.
func (s *Store) DeleteKindEID(ctx context.Context, kind, eid string) error {
	return s.execContext(ctx, "delete ledger rows", `
		DELETE FROM ledger_entries WHERE kind = ? AND eid = ?
	`, kind, eid)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

type idScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanIDs(rows idScanner) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
