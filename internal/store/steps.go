package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scscodes/conductor/internal/core"
)

// StepStore persists workflow steps.
type StepStore struct {
	s *Store
}

// NewStepStore creates a step store over a shared database.
func NewStepStore(s *Store) *StepStore {
	return &StepStore{s: s}
}

const stepColumns = `id, execution_id, step_name, phase_name, depends_on, state,
	output, error, created_at, updated_at`

// CreateStep inserts a new step row.
func (ss *StepStore) CreateStep(ctx context.Context, step *core.WorkflowStep) error {
	if err := step.Validate(); err != nil {
		return err
	}

	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	depsJSON, err := marshalSlice(step.DependsOn)
	if err != nil {
		return fmt.Errorf("marshaling depends_on: %w", err)
	}
	outputJSON, err := marshalObject(step.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	_, err = ss.s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps_v2 (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		step.ID, step.ExecutionID, step.StepName, nullableString(step.PhaseName),
		nullableString(depsJSON), step.State, nullableString(outputJSON),
		nullableString(step.Error), step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting step: %w", err)
	}
	return nil
}

// GetStep loads a step by ID.
func (ss *StepStore) GetStep(ctx context.Context, id core.StepID) (*core.WorkflowStep, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	row := ss.s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps_v2 WHERE id = ?`, id)
	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("step", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading step: %w", err)
	}
	return step, nil
}

// UpdateStep persists mutated step fields.
func (ss *StepStore) UpdateStep(ctx context.Context, step *core.WorkflowStep) error {
	if err := step.Validate(); err != nil {
		return err
	}

	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	outputJSON, err := marshalObject(step.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	res, err := ss.s.db.ExecContext(ctx, `
		UPDATE workflow_steps_v2 SET
			state = ?, output = ?, error = ?, updated_at = ?
		WHERE id = ?
	`,
		step.State, nullableString(outputJSON), nullableString(step.Error),
		step.UpdatedAt, step.ID,
	)
	if err != nil {
		return fmt.Errorf("updating step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound("step", string(step.ID))
	}
	return nil
}

// ListSteps returns all steps of an execution in creation order. The
// stable ordering keeps readiness scheduling decisions reproducible.
func (ss *StepStore) ListSteps(ctx context.Context, executionID core.ExecutionID) ([]*core.WorkflowStep, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	rows, err := ss.s.db.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM workflow_steps_v2
		WHERE execution_id = ?
		ORDER BY created_at, rowid
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var steps []*core.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return steps, nil
}

func scanStep(row scanner) (*core.WorkflowStep, error) {
	var step core.WorkflowStep
	var phaseName, depsJSON, outputJSON, errText sql.NullString

	err := row.Scan(
		&step.ID, &step.ExecutionID, &step.StepName, &phaseName, &depsJSON,
		&step.State, &outputJSON, &errText, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if phaseName.Valid {
		step.PhaseName = phaseName.String
	}
	if errText.Valid {
		step.Error = errText.String
	}
	if depsJSON.Valid && depsJSON.String != "" {
		if err := json.Unmarshal([]byte(depsJSON.String), &step.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshaling depends_on: %w", err)
		}
	}
	if outputJSON.Valid && outputJSON.String != "" {
		if err := json.Unmarshal([]byte(outputJSON.String), &step.Output); err != nil {
			return nil, fmt.Errorf("unmarshaling output: %w", err)
		}
	}

	return &step, nil
}

func marshalSlice(v []string) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalObject(v map[string]interface{}) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify that StepStore implements core.StepStore.
var _ core.StepStore = (*StepStore)(nil)
