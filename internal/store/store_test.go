package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "conductor.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func newTestExecution(workflowName string) *core.WorkflowExecution {
	now := time.Now().UTC()
	return &core.WorkflowExecution{
		ID:           core.ExecutionID(uuid.New().String()),
		WorkflowName: workflowName,
		State:        core.ExecutionStatePending,
		TimeoutMs:    int64(time.Hour / time.Millisecond),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func mustCreateExecution(t *testing.T, es *ExecutionStore, workflowName string) *core.WorkflowExecution {
	t.Helper()
	exec := newTestExecution(workflowName)
	if err := es.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	return exec
}

func TestExecutionStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ctx := context.Background()

	exec := newTestExecution("feature-build")
	exec.Metadata = map[string]string{"requester": "cli"}
	if err := es.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}

	got, err := es.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if got.WorkflowName != "feature-build" {
		t.Errorf("WorkflowName = %q, want feature-build", got.WorkflowName)
	}
	if got.State != core.ExecutionStatePending {
		t.Errorf("State = %q, want pending", got.State)
	}
	if got.Metadata["requester"] != "cli" {
		t.Errorf("Metadata = %v, want requester=cli", got.Metadata)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Errorf("expected nil StartedAt/CompletedAt on pending execution")
	}
}

func TestExecutionStoreUpdatePersistsLifecycleFields(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "review")

	started := time.Now().UTC().Truncate(time.Millisecond)
	deadline := started.Add(time.Hour)
	exec.State = core.ExecutionStateRunning
	exec.StartedAt = &started
	exec.TimeoutAt = &deadline
	exec.UpdatedAt = time.Now().UTC()
	if err := es.UpdateExecution(ctx, exec); err != nil {
		t.Fatalf("UpdateExecution() error = %v", err)
	}

	got, err := es.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if got.State != core.ExecutionStateRunning {
		t.Errorf("State = %q, want running", got.State)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.TimeoutAt == nil || !got.TimeoutAt.Equal(deadline) {
		t.Errorf("TimeoutAt = %v, want %v", got.TimeoutAt, deadline)
	}
}

func TestExecutionStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ctx := context.Background()

	if _, err := es.GetExecution(ctx, "missing"); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("GetExecution(missing) error = %v, want not_found", err)
	}

	ghost := newTestExecution("ghost")
	if err := es.UpdateExecution(ctx, ghost); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("UpdateExecution(missing) error = %v, want not_found", err)
	}
}

func TestExecutionStoreListFilters(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ctx := context.Background()

	a := mustCreateExecution(t, es, "alpha")
	b := mustCreateExecution(t, es, "beta")
	b.State = core.ExecutionStateRunning
	b.UpdatedAt = time.Now().UTC()
	if err := es.UpdateExecution(ctx, b); err != nil {
		t.Fatalf("UpdateExecution() error = %v", err)
	}

	running, err := es.ListExecutions(ctx, core.ExecutionFilter{
		States: []core.ExecutionState{core.ExecutionStateRunning},
	})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(running) != 1 || running[0].ID != b.ID {
		t.Errorf("running filter returned %d rows, want exactly %s", len(running), b.ID)
	}

	byName, err := es.ListExecutions(ctx, core.ExecutionFilter{WorkflowName: "alpha"})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(byName) != 1 || byName[0].ID != a.ID {
		t.Errorf("name filter returned %d rows, want exactly %s", len(byName), a.ID)
	}

	limited, err := es.ListExecutions(ctx, core.ExecutionFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d rows, want 1", len(limited))
	}
}

func TestStepStoreCreationOrder(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ss := NewStepStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "ordered")

	names := []string{"design", "implement", "verify"}
	created := time.Now().UTC()
	for _, name := range names {
		step := &core.WorkflowStep{
			ID:          core.StepID(uuid.New().String()),
			ExecutionID: exec.ID,
			StepName:    name,
			State:       core.StepStatePending,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if name == "verify" {
			step.DependsOn = []string{"design", "implement"}
		}
		if err := ss.CreateStep(ctx, step); err != nil {
			t.Fatalf("CreateStep(%s) error = %v", name, err)
		}
	}

	steps, err := ss.ListSteps(ctx, exec.ID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(steps) != len(names) {
		t.Fatalf("ListSteps() returned %d steps, want %d", len(steps), len(names))
	}
	for i, name := range names {
		if steps[i].StepName != name {
			t.Errorf("steps[%d] = %q, want %q", i, steps[i].StepName, name)
		}
	}
	if got := steps[2].DependsOn; len(got) != 2 || got[0] != "design" || got[1] != "implement" {
		t.Errorf("DependsOn = %v, want [design implement]", got)
	}
}

func TestStepStoreUpdateOutput(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ss := NewStepStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "outputs")
	now := time.Now().UTC()
	step := &core.WorkflowStep{
		ID:          core.StepID(uuid.New().String()),
		ExecutionID: exec.ID,
		StepName:    "analyze",
		State:       core.StepStatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ss.CreateStep(ctx, step); err != nil {
		t.Fatalf("CreateStep() error = %v", err)
	}

	step.State = core.StepStateCompleted
	step.Output = map[string]interface{}{"summary": "done", "confidence": 0.9}
	step.UpdatedAt = time.Now().UTC()
	if err := ss.UpdateStep(ctx, step); err != nil {
		t.Fatalf("UpdateStep() error = %v", err)
	}

	got, err := ss.GetStep(ctx, step.ID)
	if err != nil {
		t.Fatalf("GetStep() error = %v", err)
	}
	if got.State != core.StepStateCompleted {
		t.Errorf("State = %q, want completed", got.State)
	}
	if got.Output["summary"] != "done" {
		t.Errorf("Output = %v, want summary=done", got.Output)
	}
}

func TestArtifactStoreBinaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	as := NewArtifactStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "binaries")
	raw := []byte{0, 255, 16}

	artifact, err := as.StoreArtifact(ctx, core.StoreArtifactOptions{
		ExecutionID: exec.ID,
		Name:        "payload.bin",
		ContentType: core.ContentTypeBinary,
		Content:     raw,
	})
	if err != nil {
		t.Fatalf("StoreArtifact() error = %v", err)
	}
	if artifact.SizeBytes != 3 {
		t.Errorf("SizeBytes = %d, want 3", artifact.SizeBytes)
	}

	got, err := as.GetArtifactContent(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("GetArtifactContent() error = %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("content round trip = %v, want %v", got, raw)
	}

	stored, err := as.GetArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("GetArtifact() error = %v", err)
	}
	if stored.Content == string(raw) {
		t.Errorf("binary content stored unencoded")
	}
}

func TestArtifactStoreRejectsUnknownExecution(t *testing.T) {
	s := newTestStore(t)
	as := NewArtifactStore(s)

	_, err := as.StoreArtifact(context.Background(), core.StoreArtifactOptions{
		ExecutionID: "nope",
		Name:        "notes.md",
		ContentType: core.ContentTypeMarkdown,
		Content:     []byte("# hi"),
	})
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("StoreArtifact() error = %v, want not_found", err)
	}
}

func TestArtifactStoreSizeAndFilters(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	as := NewArtifactStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "sizes")
	for _, spec := range []struct {
		name        string
		contentType core.ArtifactContentType
		content     string
	}{
		{"report.md", core.ContentTypeMarkdown, "## findings"},
		{"report.json", core.ContentTypeJSON, `{"ok":true}`},
		{"misc.txt", core.ContentTypeText, "noise"},
	} {
		if _, err := as.StoreArtifact(ctx, core.StoreArtifactOptions{
			ExecutionID: exec.ID,
			Name:        spec.name,
			ContentType: spec.contentType,
			Content:     []byte(spec.content),
		}); err != nil {
			t.Fatalf("StoreArtifact(%s) error = %v", spec.name, err)
		}
	}

	total, err := as.GetExecutionArtifactsSize(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecutionArtifactsSize() error = %v", err)
	}
	want := int64(len("## findings") + len(`{"ok":true}`) + len("noise"))
	if total != want {
		t.Errorf("total size = %d, want %d", total, want)
	}

	reports, err := as.GetArtifactsByExecution(ctx, exec.ID, core.ArtifactFilter{NamePrefix: "report."})
	if err != nil {
		t.Fatalf("GetArtifactsByExecution() error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("prefix filter returned %d artifacts, want 2", len(reports))
	}

	jsonOnly, err := as.GetArtifactsByExecution(ctx, exec.ID, core.ArtifactFilter{ContentType: core.ContentTypeJSON})
	if err != nil {
		t.Fatalf("GetArtifactsByExecution() error = %v", err)
	}
	if len(jsonOnly) != 1 || jsonOnly[0].Name != "report.json" {
		t.Errorf("content type filter = %v, want exactly report.json", jsonOnly)
	}
}

func TestArtifactStoreDelete(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	as := NewArtifactStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "cleanup")
	artifact, err := as.StoreArtifact(ctx, core.StoreArtifactOptions{
		ExecutionID: exec.ID,
		Name:        "scratch.txt",
		ContentType: core.ContentTypeText,
		Content:     []byte("temp"),
	})
	if err != nil {
		t.Fatalf("StoreArtifact() error = %v", err)
	}

	if err := as.DeleteArtifact(ctx, artifact.ID); err != nil {
		t.Fatalf("DeleteArtifact() error = %v", err)
	}
	if _, err := as.GetArtifact(ctx, artifact.ID); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("GetArtifact() after delete error = %v, want not_found", err)
	}
	if err := as.DeleteArtifact(ctx, artifact.ID); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("DeleteArtifact() twice error = %v, want not_found", err)
	}
}

func newTestFinding(scope core.FindingScope, projectID string) *core.Finding {
	now := time.Now().UTC()
	return &core.Finding{
		ID:        uuid.New().String(),
		Scope:     scope,
		ProjectID: projectID,
		Category:  "code-quality",
		Severity:  core.SeverityMedium,
		Title:     "unchecked error return",
		Content:   "several call sites discard errors",
		Tags:      []string{"errors", "review"},
		Status:    core.FindingStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFindingStoreInsertValidatesReferences(t *testing.T) {
	s := newTestStore(t)
	fs := NewFindingStore(s)
	ps := NewProjectStore(s)
	ctx := context.Background()

	bad := newTestFinding(core.ScopeProject, "no-such-project")
	if err := fs.InsertFinding(ctx, bad); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("InsertFinding(unknown project) error = %v, want not_found", err)
	}

	project, err := ps.CreateProject(ctx, "conductor", "/tmp/conductor")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	good := newTestFinding(core.ScopeProject, project.ID)
	if err := fs.InsertFinding(ctx, good); err != nil {
		t.Fatalf("InsertFinding() error = %v", err)
	}

	got, err := fs.GetFinding(ctx, good.ID)
	if err != nil {
		t.Fatalf("GetFinding() error = %v", err)
	}
	if got.ProjectID != project.ID {
		t.Errorf("ProjectID = %q, want %q", got.ProjectID, project.ID)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "errors" {
		t.Errorf("Tags = %v, want [errors review]", got.Tags)
	}
}

func TestFindingStoreUpdateAppliesPatch(t *testing.T) {
	s := newTestStore(t)
	fs := NewFindingStore(s)
	ctx := context.Background()

	f := newTestFinding(core.ScopeGlobal, "")
	if err := fs.InsertFinding(ctx, f); err != nil {
		t.Fatalf("InsertFinding() error = %v", err)
	}

	if _, err := fs.UpdateFinding(ctx, f.ID, core.FindingPatch{}); !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("UpdateFinding(empty patch) error = %v, want validation", err)
	}

	status := core.FindingStatusResolved
	severity := core.SeverityLow
	updated, err := fs.UpdateFinding(ctx, f.ID, core.FindingPatch{
		Status:   &status,
		Severity: &severity,
	})
	if err != nil {
		t.Fatalf("UpdateFinding() error = %v", err)
	}
	if updated.Status != core.FindingStatusResolved {
		t.Errorf("Status = %q, want resolved", updated.Status)
	}
	if updated.Severity != core.SeverityLow {
		t.Errorf("Severity = %q, want low", updated.Severity)
	}
	if updated.Title != f.Title {
		t.Errorf("Title changed unexpectedly: %q", updated.Title)
	}
	if !updated.UpdatedAt.After(f.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced")
	}
}

func TestFindingStoreQueryAndSearch(t *testing.T) {
	s := newTestStore(t)
	fs := NewFindingStore(s)
	ctx := context.Background()

	first := newTestFinding(core.ScopeGlobal, "")
	first.Title = "missing timeout on http client"
	first.Tags = []string{"http", "timeout"}
	second := newTestFinding(core.ScopeGlobal, "")
	second.Title = "stale cache invalidation"
	second.Severity = core.SeverityHigh
	second.Tags = []string{"cache"}
	for _, f := range []*core.Finding{first, second} {
		if err := fs.InsertFinding(ctx, f); err != nil {
			t.Fatalf("InsertFinding() error = %v", err)
		}
	}

	high, err := fs.QueryFindings(ctx, core.FindingFilter{Severity: core.SeverityHigh})
	if err != nil {
		t.Fatalf("QueryFindings() error = %v", err)
	}
	if len(high) != 1 || high[0].ID != second.ID {
		t.Errorf("severity filter returned %d rows, want exactly %s", len(high), second.ID)
	}

	tagged, err := fs.QueryFindings(ctx, core.FindingFilter{Tag: "timeout"})
	if err != nil {
		t.Fatalf("QueryFindings() error = %v", err)
	}
	if len(tagged) != 1 || tagged[0].ID != first.ID {
		t.Errorf("tag filter returned %d rows, want exactly %s", len(tagged), first.ID)
	}

	found, err := fs.SearchFindings(ctx, "cache", core.FindingFilter{})
	if err != nil {
		t.Fatalf("SearchFindings() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != second.ID {
		t.Errorf("search returned %d rows, want exactly %s", len(found), second.ID)
	}
}

func TestExecutionLogAppendOrder(t *testing.T) {
	s := newTestStore(t)
	es := NewExecutionStore(s)
	ls := NewExecutionLogStore(s)
	ctx := context.Background()

	exec := mustCreateExecution(t, es, "audited")
	events := []string{"execution.started", "step.started", "step.completed"}
	for _, event := range events {
		err := ls.LogExecution(ctx, core.LogEntry{
			ExecutionID: exec.ID,
			Event:       event,
			Fields:      map[string]interface{}{"event": event},
		})
		if err != nil {
			t.Fatalf("LogExecution(%s) error = %v", event, err)
		}
	}

	entries, err := ls.GetExecutionLog(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecutionLog() error = %v", err)
	}
	if len(entries) != len(events) {
		t.Fatalf("GetExecutionLog() returned %d entries, want %d", len(entries), len(events))
	}
	for i, event := range events {
		if entries[i].Event != event {
			t.Errorf("entries[%d].Event = %q, want %q", i, entries[i].Event, event)
		}
		if entries[i].ID == "" {
			t.Errorf("entries[%d] missing generated ID", i)
		}
	}
}

func TestProjectStoreExists(t *testing.T) {
	s := newTestStore(t)
	ps := NewProjectStore(s)
	ctx := context.Background()

	ok, err := ps.Exists(ctx, "missing")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Errorf("Exists(missing) = true, want false")
	}

	project, err := ps.CreateProject(ctx, "demo", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	ok, err = ps.Exists(ctx, project.ID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Errorf("Exists(%s) = false, want true", project.ID)
	}

	projects, err := ps.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "demo" {
		t.Errorf("ListProjects() = %v, want exactly demo", projects)
	}
}
