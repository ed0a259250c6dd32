package store

import (
	"context"
	"fmt"
)

// Membership modes tracked in the delta table.
const (
	ModeCourse     = "course"
	ModeSection    = "section"
	ModeEnrollment = "enrollment"
)

// Membership is one delta-tracking row: a user's membership in a container
// (course offering, section, or enrollment set depending on mode), stamped
// with the run that last re-affirmed it.
type Membership struct {
	ID           int64
	UserEID      string
	ContainerEID string
	Role         string
	Mode         string
	InputTime    int64
}

// UpsertMembership re-affirms the (user, container, mode) row with the run
// stamp and the latest role. Multiple rows may exist transiently for the
// same triple; only the last one found is kept and updated, the rest are
// deleted. Duplicates here can lead to inadvertent membership deletion
// during the sweep, so they are collapsed on every write.
func (s *Store) UpsertMembership(ctx context.Context, userEID, containerEID, role, mode string, stamp int64) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM memberships
		WHERE mode = ? AND user_eid = ? AND container_eid = ?
		ORDER BY id ASC
	`, mode, userEID, containerEID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}

	if len(ids) == 0 {
		return s.execContext(ctx, "membership insert", `
			INSERT INTO memberships (user_eid, container_eid, role, mode, input_time)
			VALUES (?, ?, ?, ?, ?)
		`, userEID, containerEID, role, mode, stamp)
	}

	// Keep the last row, drop the rest.
	keep := ids[len(ids)-1]
	for _, dup := range ids[:len(ids)-1] {
		if err := s.execContext(ctx, "membership dedupe", `
			DELETE FROM memberships WHERE id = ?
		`, dup); err != nil {
			return err
		}
	}
	return s.execContext(ctx, "membership update", `
		UPDATE memberships SET input_time = ?, role = ? WHERE id = ?
	`, stamp, role, keep)
}

// StaleMembershipsPage returns up to limit membership rows of the given
// mode whose stamp differs from the current run's, skipping offset rows.
// When containers is non-empty the query is restricted to those container
// eids. Ordered by id for strict pagination.
func (s *Store) StaleMembershipsPage(ctx context.Context, mode string, stamp int64, containers []string, offset, limit int) ([]Membership, error) {
	query := `
		SELECT id, user_eid, container_eid, role, mode, input_time FROM memberships
		WHERE mode = ? AND input_time != ?`
	args := []any{mode, stamp}
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
		return nil, fmt.Errorf("stale memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.UserEID, &m.ContainerEID, &m.Role, &m.Mode, &m.InputTime); err != nil {
			return nil, fmt.Errorf("stale memberships scan: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale memberships iterate: %w", err)
	}
	return memberships, nil
}

// DeleteMembership removes one membership row by row id.
func (s *Store) DeleteMembership(ctx context.Context, id int64) error {
	return s.execContext(ctx, "delete membership", `
		DELETE FROM memberships WHERE id = ?
	`, id)
}
