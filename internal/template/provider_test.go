package template

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

func writeTemplate(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("writing template file: %v", err)
	}
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProviderLoadsTemplates(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "review.yaml", `
name: review
complexity: simple
phases:
  - name: analyze
    agent: generalist
  - name: report
    agent: generalist
    dependsOn: [analyze]
`)

	p, err := New(dir, nopLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	tpl, err := p.Get("review")
	if err != nil {
		t.Fatalf("Get(review) error: %v", err)
	}
	if tpl.Complexity != core.ComplexitySimple {
		t.Errorf("complexity = %s, want simple", tpl.Complexity)
	}
	if len(tpl.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(tpl.Phases))
	}
	if got := tpl.Phases[1].DependsOn; len(got) != 1 || got[0] != "analyze" {
		t.Errorf("report dependsOn = %v, want [analyze]", got)
	}
}

func TestProviderUnknownWorkflow(t *testing.T) {
	p, err := New(t.TempDir(), nopLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	_, err = p.Get("nope")
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("Get(nope) error = %v, want not found", err)
	}
}

func TestProviderSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "good.yaml", `
name: good
phases:
  - name: only
    agent: generalist
`)
	writeTemplate(t, dir, "broken.yaml", "name: [unclosed")
	writeTemplate(t, dir, "invalid.yaml", "name: empty-phases\nphases: []\n")
	writeTemplate(t, dir, "notes.txt", "not a template")

	p, err := New(dir, nopLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	names := p.List()
	if len(names) != 1 || names[0] != "good" {
		t.Errorf("List() = %v, want [good]", names)
	}
}

func TestProviderSeedsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, nopLogger(), Options{Seed: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	for _, want := range Builtins() {
		tpl, err := p.Get(want.Name)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", want.Name, err)
		}
		if len(tpl.Phases) != len(want.Phases) {
			t.Errorf("%s phases = %d, want %d", want.Name, len(tpl.Phases), len(want.Phases))
		}
	}
}

func TestProviderSeedLeavesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "custom.yaml", `
name: custom
phases:
  - name: solo
    agent: generalist
`)

	p, err := New(dir, nopLogger(), Options{Seed: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	names := p.List()
	if len(names) != 1 || names[0] != "custom" {
		t.Errorf("List() = %v, want [custom]", names)
	}
}

func TestProviderReload(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, nopLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	if len(p.List()) != 0 {
		t.Fatalf("List() = %v, want empty", p.List())
	}

	writeTemplate(t, dir, "late.yaml", `
name: late
phases:
  - name: only
    agent: generalist
`)
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if _, err := p.Get("late"); err != nil {
		t.Errorf("Get(late) after reload: %v", err)
	}
}

func TestProviderWatchPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, nopLogger(), Options{Watch: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	writeTemplate(t, dir, "watched.yaml", `
name: watched
phases:
  - name: only
    agent: generalist
`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := p.Get("watched"); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("template not picked up by watcher")
}
