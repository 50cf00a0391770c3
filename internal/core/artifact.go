package core

import (
	"encoding/base64"
	"fmt"
	"time"
)

// ArtifactContentType categorizes the kind of artifact content.
type ArtifactContentType string

const (
	ContentTypeText     ArtifactContentType = "text"
	ContentTypeMarkdown ArtifactContentType = "markdown"
	ContentTypeJSON     ArtifactContentType = "json"
	ContentTypeBinary   ArtifactContentType = "binary"
)

// Artifact is an immutable output produced during a step or execution.
// Binary payloads are stored base64-encoded; SizeBytes always reflects
// the original byte length.
type Artifact struct {
	ID          string              `json:"id"`
	ExecutionID ExecutionID         `json:"execution_id"`
	StepID      StepID              `json:"step_id,omitempty"`
	Name        string              `json:"name"`
	ContentType ArtifactContentType `json:"content_type"`
	Content     string              `json:"content"`
	SizeBytes   int64               `json:"size_bytes"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// EncodeArtifactContent converts raw bytes into the stored text form and
// reports the original size.
func EncodeArtifactContent(contentType ArtifactContentType, raw []byte) (string, int64) {
	if contentType == ContentTypeBinary {
		return base64.StdEncoding.EncodeToString(raw), int64(len(raw))
	}
	return string(raw), int64(len(raw))
}

// DecodeContent returns the artifact's raw bytes, reversing the binary
// text-encoding when needed.
func (a *Artifact) DecodeContent() ([]byte, error) {
	if a.ContentType == ContentTypeBinary {
		raw, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, ErrValidation("ARTIFACT_DECODE_FAILED", "artifact content is not valid base64").WithCause(err)
		}
		return raw, nil
	}
	return []byte(a.Content), nil
}

// ValidContentType checks if a content type is a member of the closed enum.
func ValidContentType(t ArtifactContentType) bool {
	switch t {
	case ContentTypeText, ContentTypeMarkdown, ContentTypeJSON, ContentTypeBinary:
		return true
	default:
		return false
	}
}

// AllContentTypes returns all valid artifact content types.
func AllContentTypes() []ArtifactContentType {
	return []ArtifactContentType{
		ContentTypeText,
		ContentTypeMarkdown,
		ContentTypeJSON,
		ContentTypeBinary,
	}
}

// Validate checks artifact invariants.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return ErrValidation("ARTIFACT_ID_REQUIRED", "artifact ID cannot be empty")
	}
	if a.ExecutionID == "" {
		return ErrValidation("ARTIFACT_EXECUTION_REQUIRED", "artifact must belong to an execution")
	}
	if a.Name == "" {
		return ErrValidation("ARTIFACT_NAME_REQUIRED", "artifact name cannot be empty")
	}
	if !ValidContentType(a.ContentType) {
		return ErrValidation(CodeInvalidContentType, fmt.Sprintf("invalid content type: %s", a.ContentType))
	}
	return nil
}
