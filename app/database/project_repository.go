package database

import (
	"database/sql"
	"fmt"
)

var _ ProjectRepository = (*ProjectRepo)(nil)

// ProjectRepo handles database operations for projects
type ProjectRepo struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) UpsertProject(name, displayName, url, description string) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO projects (name, display_name, url, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			display_name = excluded.display_name,
			url = excluded.url,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, name, displayName, url, description).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert project: %w", err)
	}

	return id, nil
}

func (r *ProjectRepo) GetProject(name string) (*Project, error) {
	var p Project
	err := r.db.QueryRow(`
		SELECT id, name, display_name, url, description, created_at, updated_at
		FROM projects
		WHERE name = ?
	`, name).Scan(&p.ID, &p.Name, &p.DisplayName, &p.URL, &p.Description, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

func (r *ProjectRepo) GetAllProjects() ([]Project, error) {
	rows, err := r.db.Query(`
		SELECT id, name, display_name, url, description, created_at, updated_at
		FROM projects
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.URL, &p.Description, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}

func (r *ProjectRepo) GetProjectCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get project count: %w", err)
	}
	return count, nil
}
