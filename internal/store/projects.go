package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
)

// Project is a registered workspace that project-scoped findings and
// executions attach to.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RootPath  string    `json:"root_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectStore manages the project registry.
type ProjectStore struct {
	s *Store
}

// NewProjectStore creates a project store over a shared database.
func NewProjectStore(s *Store) *ProjectStore {
	return &ProjectStore{s: s}
}

// CreateProject registers a new project and returns it.
func (ps *ProjectStore) CreateProject(ctx context.Context, name, rootPath string) (*Project, error) {
	if name == "" {
		return nil, core.ErrValidation("PROJECT_NAME_REQUIRED", "project name cannot be empty")
	}

	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	p := &Project{
		ID:        uuid.New().String(),
		Name:      name,
		RootPath:  rootPath,
		CreatedAt: time.Now().UTC(),
	}
	_, err := ps.s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, root_path, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, nullableString(p.RootPath), p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject loads a project by ID.
func (ps *ProjectStore) GetProject(ctx context.Context, id string) (*Project, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	var p Project
	var rootPath sql.NullString
	err := ps.s.db.QueryRowContext(ctx, `
		SELECT id, name, root_path, created_at FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &rootPath, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if rootPath.Valid {
		p.RootPath = rootPath.String
	}
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func (ps *ProjectStore) ListProjects(ctx context.Context) ([]*Project, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	rows, err := ps.s.db.QueryContext(ctx, `
		SELECT id, name, root_path, created_at FROM projects
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var rootPath sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &rootPath, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		if rootPath.Valid {
			p.RootPath = rootPath.String
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// Exists reports whether a project ID references a known project.
func (ps *ProjectStore) Exists(ctx context.Context, projectID string) (bool, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	err := ps.s.requireProject(ctx, projectID)
	if err == nil {
		return true, nil
	}
	if core.IsCategory(err, core.ErrCatNotFound) {
		return false, nil
	}
	return false, err
}

// Verify that ProjectStore implements core.ProjectRegistry.
var _ core.ProjectRegistry = (*ProjectStore)(nil)
