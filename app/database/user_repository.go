package database

import (
	"fmt"
)

var _ UserRepository = (*UserRepo)(nil)

// UserRepo handles users and their project memberships
type UserRepo struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) EnsureUser(email, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO users (email, name)
		VALUES (?, ?)
		ON CONFLICT (email) DO UPDATE SET name = excluded.name
		RETURNING id
	`, email, name).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to ensure user: %w", err)
	}

	return id, nil
}

// SetProjectUsers replaces the project's membership with the given users.
func (r *UserRepo) SetProjectUsers(projectID int64, userIDs []int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM project_users WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to clear project users: %w", err)
	}

	for _, userID := range userIDs {
		_, err := tx.Exec(`
			INSERT INTO project_users (project_id, user_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, projectID, userID)
		if err != nil {
			return fmt.Errorf("failed to add project user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project users: %w", err)
	}

	return nil
}

func (r *UserRepo) GetProjectUsers(projectID int64) ([]User, error) {
	rows, err := r.db.Query(`
		SELECT u.id, u.email, u.name, u.created_at
		FROM users u
		JOIN project_users pu ON pu.user_id = u.id
		WHERE pu.project_id = ?
		ORDER BY u.email
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}
