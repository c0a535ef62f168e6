package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cloudmeter/cloudmeter/domain/identity"
	"github.com/cloudmeter/cloudmeter/ports"
)

// IdentityStore implements ports.IdentitySource using SQLite.
type IdentityStore struct {
	db *DB
}

// NewIdentityStore creates a new SQLite identity store.
func NewIdentityStore(db *DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// RoleAssignments returns every (project, user, role) grant with the role
// name resolved. Assignments referencing an unknown role are kept with an
// empty name so the snapshot stays complete.
func (s *IdentityStore) RoleAssignments(ctx context.Context) ([]identity.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.project_id, a.user_id, COALESCE(r.name, '')
		FROM role_assignments a
		LEFT JOIN roles r ON r.id = a.role_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []identity.RoleAssignment
	for rows.Next() {
		var a identity.RoleAssignment
		if err := rows.Scan(&a.ProjectID, &a.UserID, &a.Role); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Projects returns the project id to name listing.
func (s *IdentityStore) Projects(ctx context.Context) ([]identity.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []identity.Project
	for rows.Next() {
		var p identity.Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// LocalUsernames returns the user id to login name listing.
func (s *IdentityStore) LocalUsernames(ctx context.Context) ([]identity.LocalUser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, name FROM local_users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []identity.LocalUser
	for rows.Next() {
		var u identity.LocalUser
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserAttributes returns the opaque attribute document stored for a user.
// An unknown user yields an empty document, never an error.
func (s *IdentityStore) UserAttributes(ctx context.Context, userID string) (map[string]any, error) {
	var extra string
	err := s.db.QueryRowContext(ctx,
		`SELECT extra FROM user_attributes WHERE user_id = ?`, userID).Scan(&extra)
	if err == sql.ErrNoRows {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]any)
	if err := json.Unmarshal([]byte(extra), &attrs); err != nil {
		return nil, fmt.Errorf("decode user attributes: %w", err)
	}
	return attrs, nil
}

// Ensure interface compliance.
var _ ports.IdentitySource = (*IdentityStore)(nil)
