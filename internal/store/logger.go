package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
)

// ExecutionLogStore appends structured audit events per execution.
type ExecutionLogStore struct {
	s *Store
}

// NewExecutionLogStore creates an execution log store over a shared database.
func NewExecutionLogStore(s *Store) *ExecutionLogStore {
	return &ExecutionLogStore{s: s}
}

// LogExecution appends one audit entry. Missing ID and timestamp are
// filled in; entries are never updated or deleted.
func (ls *ExecutionLogStore) LogExecution(ctx context.Context, entry core.LogEntry) error {
	if entry.ExecutionID == "" {
		return core.ErrValidation("LOG_EXECUTION_REQUIRED", "log entry must reference an execution")
	}
	if entry.Event == "" {
		return core.ErrValidation("LOG_EVENT_REQUIRED", "log entry event cannot be empty")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var fieldsJSON string
	if len(entry.Fields) > 0 {
		b, err := json.Marshal(entry.Fields)
		if err != nil {
			return fmt.Errorf("marshaling log fields: %w", err)
		}
		fieldsJSON = string(b)
	}

	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	_, err := ls.s.db.ExecContext(ctx, `
		INSERT INTO execution_log (id, execution_id, event, message, fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.ExecutionID, entry.Event,
		nullableString(entry.Message), nullableString(fieldsJSON), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// GetExecutionLog returns an execution's audit trail in append order.
func (ls *ExecutionLogStore) GetExecutionLog(ctx context.Context, executionID core.ExecutionID) ([]core.LogEntry, error) {
	ls.s.mu.RLock()
	defer ls.s.mu.RUnlock()

	rows, err := ls.s.db.QueryContext(ctx, `
		SELECT id, execution_id, event, message, fields, created_at
		FROM execution_log
		WHERE execution_id = ?
		ORDER BY created_at, rowid
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("listing log entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LogEntry
	for rows.Next() {
		var entry core.LogEntry
		var message, fieldsJSON sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ExecutionID, &entry.Event,
			&message, &fieldsJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		if message.Valid {
			entry.Message = message.String
		}
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &entry.Fields); err != nil {
				return nil, fmt.Errorf("unmarshaling log fields: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}
	return entries, nil
}

// Verify that ExecutionLogStore implements core.ExecutionLogger.
var _ core.ExecutionLogger = (*ExecutionLogStore)(nil)
