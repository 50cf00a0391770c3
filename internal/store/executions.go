package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scscodes/conductor/internal/core"
)

// ExecutionStore persists workflow executions.
type ExecutionStore struct {
	s *Store
}

// NewExecutionStore creates an execution store over a shared database.
func NewExecutionStore(s *Store) *ExecutionStore {
	return &ExecutionStore{s: s}
}

const executionColumns = `id, workflow_name, project_id, state, metadata, timeout_ms,
	timeout_at, started_at, completed_at, error, created_at, updated_at`

// CreateExecution inserts a new execution row.
func (es *ExecutionStore) CreateExecution(ctx context.Context, exec *core.WorkflowExecution) error {
	if err := exec.Validate(); err != nil {
		return err
	}

	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	metadataJSON, err := marshalMap(exec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = es.s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions_v2 (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exec.ID, exec.WorkflowName, nullableString(exec.ProjectID), exec.State,
		nullableString(metadataJSON), exec.TimeoutMs,
		nullableTime(exec.TimeoutAt), nullableTime(exec.StartedAt), nullableTime(exec.CompletedAt),
		nullableString(exec.Error), exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution loads an execution by ID.
func (es *ExecutionStore) GetExecution(ctx context.Context, id core.ExecutionID) (*core.WorkflowExecution, error) {
	es.s.mu.RLock()
	defer es.s.mu.RUnlock()

	row := es.s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions_v2 WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("execution", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading execution: %w", err)
	}
	return exec, nil
}

// UpdateExecution persists mutated execution fields.
func (es *ExecutionStore) UpdateExecution(ctx context.Context, exec *core.WorkflowExecution) error {
	if err := exec.Validate(); err != nil {
		return err
	}

	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	metadataJSON, err := marshalMap(exec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	res, err := es.s.db.ExecContext(ctx, `
		UPDATE workflow_executions_v2 SET
			state = ?, metadata = ?, timeout_ms = ?, timeout_at = ?,
			started_at = ?, completed_at = ?, error = ?, updated_at = ?
		WHERE id = ?
	`,
		exec.State, nullableString(metadataJSON), exec.TimeoutMs, nullableTime(exec.TimeoutAt),
		nullableTime(exec.StartedAt), nullableTime(exec.CompletedAt),
		nullableString(exec.Error), exec.UpdatedAt, exec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound("execution", string(exec.ID))
	}
	return nil
}

// ListExecutions returns executions matching the filter, most recent first.
func (es *ExecutionStore) ListExecutions(ctx context.Context, filter core.ExecutionFilter) ([]*core.WorkflowExecution, error) {
	es.s.mu.RLock()
	defer es.s.mu.RUnlock()

	query := `SELECT ` + executionColumns + ` FROM workflow_executions_v2`
	var conds []string
	var args []interface{}

	if filter.WorkflowName != "" {
		conds = append(conds, "workflow_name = ?")
		args = append(args, filter.WorkflowName)
	}
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, st := range filter.States {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conds = append(conds, "state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := es.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var execs []*core.WorkflowExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return execs, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row scanner) (*core.WorkflowExecution, error) {
	var exec core.WorkflowExecution
	var projectID, metadataJSON, errText sql.NullString
	var timeoutAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&exec.ID, &exec.WorkflowName, &projectID, &exec.State, &metadataJSON, &exec.TimeoutMs,
		&timeoutAt, &startedAt, &completedAt, &errText, &exec.CreatedAt, &exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		exec.ProjectID = projectID.String
	}
	if errText.Valid {
		exec.Error = errText.String
	}
	exec.TimeoutAt = timePtr(timeoutAt)
	exec.StartedAt = timePtr(startedAt)
	exec.CompletedAt = timePtr(completedAt)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &exec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &exec, nil
}

func marshalMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify that ExecutionStore implements core.ExecutionStore.
var _ core.ExecutionStore = (*ExecutionStore)(nil)
