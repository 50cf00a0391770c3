package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// FindingStore persists knowledge findings accumulated across executions.
type FindingStore struct {
	s *Store
}

// NewFindingStore creates a finding store over a shared database.
func NewFindingStore(s *Store) *FindingStore {
	return &FindingStore{s: s}
}

const findingColumns = `id, scope, project_id, category, severity, title,
	content, tags, source_execution_id, source_agent, status, created_at, updated_at`

// InsertFinding validates references and inserts a finding.
func (fs *FindingStore) InsertFinding(ctx context.Context, f *core.Finding) error {
	if err := f.Validate(); err != nil {
		return err
	}

	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	if f.ProjectID != "" {
		if err := fs.s.requireProject(ctx, f.ProjectID); err != nil {
			return err
		}
	}
	if f.SourceExecutionID != "" {
		if err := fs.s.requireExecution(ctx, f.SourceExecutionID); err != nil {
			return err
		}
	}

	tagsJSON, err := marshalSlice(f.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = fs.s.db.ExecContext(ctx, `
		INSERT INTO knowledge_findings (`+findingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.Scope, nullableString(f.ProjectID), f.Category, f.Severity,
		f.Title, f.Content, nullableString(tagsJSON),
		nullableString(string(f.SourceExecutionID)), nullableString(f.SourceAgent),
		f.Status, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// GetFinding loads a finding by ID.
func (fs *FindingStore) GetFinding(ctx context.Context, id string) (*core.Finding, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()

	return fs.getFindingLocked(ctx, id)
}

func (fs *FindingStore) getFindingLocked(ctx context.Context, id string) (*core.Finding, error) {
	row := fs.s.db.QueryRowContext(ctx,
		`SELECT `+findingColumns+` FROM knowledge_findings WHERE id = ?`, id)
	f, err := scanFinding(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("finding", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading finding: %w", err)
	}
	return f, nil
}

// UpdateFinding applies a partial patch and returns the revised finding.
// Scope, project and source references are immutable.
func (fs *FindingStore) UpdateFinding(ctx context.Context, id string, patch core.FindingPatch) (*core.Finding, error) {
	if patch.IsEmpty() {
		return nil, core.ErrValidation("EMPTY_PATCH", "finding patch has no fields to apply")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	f, err := fs.getFindingLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		f.Title = *patch.Title
	}
	if patch.Content != nil {
		f.Content = *patch.Content
	}
	if patch.Tags != nil {
		f.Tags = *patch.Tags
	}
	if patch.Severity != nil {
		f.Severity = *patch.Severity
	}
	if patch.Category != nil {
		f.Category = *patch.Category
	}
	if patch.Status != nil {
		f.Status = *patch.Status
	}
	f.UpdatedAt = time.Now().UTC()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	tagsJSON, err := marshalSlice(f.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = fs.s.db.ExecContext(ctx, `
		UPDATE knowledge_findings SET
			category = ?, severity = ?, title = ?, content = ?,
			tags = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		f.Category, f.Severity, f.Title, f.Content,
		nullableString(tagsJSON), f.Status, f.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating finding: %w", err)
	}
	return f, nil
}

// QueryFindings returns findings matching the filter, newest first.
func (fs *FindingStore) QueryFindings(ctx context.Context, filter core.FindingFilter) ([]*core.Finding, error) {
	return fs.query(ctx, "", filter)
}

// SearchFindings narrows QueryFindings to findings whose title or
// content contains the given text.
func (fs *FindingStore) SearchFindings(ctx context.Context, text string, filter core.FindingFilter) ([]*core.Finding, error) {
	return fs.query(ctx, text, filter)
}

func (fs *FindingStore) query(ctx context.Context, text string, filter core.FindingFilter) ([]*core.Finding, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()

	query := `SELECT ` + findingColumns + ` FROM knowledge_findings WHERE 1=1`
	var args []interface{}

	if filter.Scope != "" {
		query += ` AND scope = ?`
		args = append(args, filter.Scope)
	}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.SourceExecutionID != "" {
		query += ` AND source_execution_id = ?`
		args = append(args, filter.SourceExecutionID)
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		query += ` AND tags LIKE ? ESCAPE '\'`
		args = append(args, `%"`+escapeLike(filter.Tag)+`"%`)
	}
	if text != "" {
		query += ` AND (title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`
		pattern := "%" + escapeLike(text) + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := fs.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []*core.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	return findings, nil
}

func scanFinding(row scanner) (*core.Finding, error) {
	var f core.Finding
	var projectID, tagsJSON, sourceExecID, sourceAgent sql.NullString

	err := row.Scan(
		&f.ID, &f.Scope, &projectID, &f.Category, &f.Severity, &f.Title,
		&f.Content, &tagsJSON, &sourceExecID, &sourceAgent, &f.Status,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		f.ProjectID = projectID.String
	}
	if sourceExecID.Valid {
		f.SourceExecutionID = core.ExecutionID(sourceExecID.String)
	}
	if sourceAgent.Valid {
		f.SourceAgent = sourceAgent.String
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &f.Tags); err != nil {
			return nil, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}

	return &f, nil
}

// Verify that FindingStore implements core.FindingStore.
var _ core.FindingStore = (*FindingStore)(nil)
