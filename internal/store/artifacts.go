package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
)

// ArtifactStore persists step outputs as immutable rows.
type ArtifactStore struct {
	s *Store
}

// NewArtifactStore creates an artifact store over a shared database.
func NewArtifactStore(s *Store) *ArtifactStore {
	return &ArtifactStore{s: s}
}

const artifactColumns = `id, execution_id, step_id, name, content_type, content,
	size_bytes, metadata, created_at`

// StoreArtifact encodes and inserts a new artifact. Binary payloads are
// base64-encoded for storage; size_bytes records the original length.
func (as *ArtifactStore) StoreArtifact(ctx context.Context, opts core.StoreArtifactOptions) (*core.Artifact, error) {
	if opts.Name == "" {
		return nil, core.ErrValidation("ARTIFACT_NAME_REQUIRED", "artifact name cannot be empty")
	}
	if !core.ValidContentType(opts.ContentType) {
		return nil, core.ErrValidation(core.CodeInvalidContentType,
			fmt.Sprintf("invalid content type: %s", opts.ContentType))
	}
	if opts.ExecutionID == "" {
		return nil, core.ErrValidation("ARTIFACT_EXECUTION_REQUIRED", "artifact must belong to an execution")
	}

	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	if err := as.s.requireExecution(ctx, opts.ExecutionID); err != nil {
		return nil, err
	}

	content, size := core.EncodeArtifactContent(opts.ContentType, opts.Content)
	artifact := &core.Artifact{
		ID:          uuid.New().String(),
		ExecutionID: opts.ExecutionID,
		StepID:      opts.StepID,
		Name:        opts.Name,
		ContentType: opts.ContentType,
		Content:     content,
		SizeBytes:   size,
		Metadata:    opts.Metadata,
		CreatedAt:   time.Now().UTC(),
	}

	metadataJSON, err := marshalMap(artifact.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = as.s.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		artifact.ID, artifact.ExecutionID, nullableString(string(artifact.StepID)),
		artifact.Name, artifact.ContentType, artifact.Content,
		artifact.SizeBytes, nullableString(metadataJSON), artifact.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting artifact: %w", err)
	}
	return artifact, nil
}

// GetArtifact loads an artifact by ID, content included as stored.
func (as *ArtifactStore) GetArtifact(ctx context.Context, id string) (*core.Artifact, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	row := as.s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	artifact, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("artifact", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading artifact: %w", err)
	}
	return artifact, nil
}

// GetArtifactsByExecution lists artifacts of an execution in creation order.
func (as *ArtifactStore) GetArtifactsByExecution(ctx context.Context, executionID core.ExecutionID, filter core.ArtifactFilter) ([]*core.Artifact, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE execution_id = ?`
	args := []interface{}{executionID}

	if filter.StepID != "" {
		query += ` AND step_id = ?`
		args = append(args, filter.StepID)
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, filter.ContentType)
	}
	if filter.NamePrefix != "" {
		query += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(filter.NamePrefix)+"%")
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := as.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*core.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return artifacts, nil
}

// GetArtifactContent returns the decoded payload of an artifact.
func (as *ArtifactStore) GetArtifactContent(ctx context.Context, id string) ([]byte, error) {
	artifact, err := as.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := artifact.DecodeContent()
	if err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", id, err)
	}
	return raw, nil
}

// GetExecutionArtifactsSize sums original payload sizes across an execution.
func (as *ArtifactStore) GetExecutionArtifactsSize(ctx context.Context, executionID core.ExecutionID) (int64, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	var total sql.NullInt64
	err := as.s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM artifacts WHERE execution_id = ?`, executionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing artifact sizes: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// DeleteArtifact removes a single artifact row.
func (as *ArtifactStore) DeleteArtifact(ctx context.Context, id string) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	res, err := as.s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound("artifact", id)
	}
	return nil
}

func scanArtifact(row scanner) (*core.Artifact, error) {
	var artifact core.Artifact
	var stepID, metadataJSON sql.NullString

	err := row.Scan(
		&artifact.ID, &artifact.ExecutionID, &stepID, &artifact.Name,
		&artifact.ContentType, &artifact.Content, &artifact.SizeBytes,
		&metadataJSON, &artifact.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stepID.Valid {
		artifact.StepID = core.StepID(stepID.String)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := unmarshalMap(metadataJSON.String, &artifact.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &artifact, nil
}

// Verify that ArtifactStore implements core.ArtifactStore.
var _ core.ArtifactStore = (*ArtifactStore)(nil)
