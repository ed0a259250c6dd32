package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetByEID implements IdentityDirectory.
func (d *SQLite) GetByEID(ctx context.Context, eid string) (*Person, error) {
	var p Person
	var props string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, eid, COALESCE(last_name,''), COALESCE(first_name,''),
		       COALESCE(email,''), COALESCE(password,''), COALESCE(type,''), properties
		FROM dir_users WHERE eid = ?
	`, eid).Scan(&p.ID, &p.EID, &p.LastName, &p.FirstName, &p.Email, &p.Password, &p.Type, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", eid, err)
	}
	if err := json.Unmarshal([]byte(props), &p.Properties); err != nil {
		return nil, fmt.Errorf("decode properties for %s: %w", eid, err)
	}
	return &p, nil
}

// Create implements IdentityDirectory.
func (d *SQLite) Create(ctx context.Context, p *Person) error {
	props, err := encodeProperties(p.Properties)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO dir_users (id, eid, last_name, first_name, email, password, type, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.EID, p.LastName, p.FirstName, p.Email, p.Password, p.Type, props)
	if err != nil {
		return fmt.Errorf("create user %s: %w", p.EID, err)
	}
	return nil
}

// Update implements IdentityDirectory.
func (d *SQLite) Update(ctx context.Context, p *Person) error {
	props, err := encodeProperties(p.Properties)
	if err != nil {
		return err
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE dir_users SET eid = ?, last_name = ?, first_name = ?, email = ?,
		 password = ?, type = ?, properties = ?
		WHERE id = ?
	`, p.EID, p.LastName, p.FirstName, p.Email, p.Password, p.Type, props, p.ID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", p.EID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "user", EID: p.EID}
	}
	return nil
}

// CheckPassword implements IdentityDirectory.
func (d *SQLite) CheckPassword(ctx context.Context, id, password string) (bool, error) {
	var stored string
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(password,'') FROM dir_users WHERE id = ?
	`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check password for %s: %w", id, err)
	}
	return stored == password, nil
}

// SetType implements IdentityDirectory.
func (d *SQLite) SetType(ctx context.Context, id, userType string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE dir_users SET type = ? WHERE id = ?`, userType, id)
	if err != nil {
		return fmt.Errorf("set type for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "user", EID: id}
	}
	return nil
}

// Remove implements IdentityDirectory.
func (d *SQLite) Remove(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM dir_users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "user", EID: id}
	}
	return nil
}

func encodeProperties(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}
