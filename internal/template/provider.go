// Package template loads workflow templates from YAML files on disk
// and keeps them fresh while the process runs.
package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/scscodes/conductor/internal/core"
)

const debounceInterval = 100 * time.Millisecond

// Provider serves workflow templates from a directory of YAML files.
// It implements core.TemplateProvider.
type Provider struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*core.WorkflowTemplate

	watcher       *fsnotify.Watcher
	debounceTimer *time.Timer
	stopWatcher   chan struct{}
}

// Options controls provider behavior.
type Options struct {
	// Watch reloads templates when files in the directory change.
	Watch bool

	// Seed writes the builtin templates into the directory when it
	// contains no template files.
	Seed bool
}

// New creates a provider for the given directory and performs the
// initial load. The directory is created if it does not exist.
func New(dir string, logger *slog.Logger, opts Options) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating template dir: %w", err)
	}

	p := &Provider{
		dir:         dir,
		logger:      logger,
		templates:   make(map[string]*core.WorkflowTemplate),
		stopWatcher: make(chan struct{}),
	}

	if opts.Seed {
		if err := p.seed(); err != nil {
			return nil, err
		}
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	if opts.Watch {
		p.startWatcher()
	}
	return p, nil
}

// Get returns the template for a workflow name.
func (p *Provider) Get(name string) (*core.WorkflowTemplate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tpl, ok := p.templates[name]
	if !ok {
		return nil, core.ErrNotFound("workflow", name)
	}
	return tpl, nil
}

// List returns all known workflow names, sorted.
func (p *Provider) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.templates))
	for name := range p.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload re-reads all template files from the directory. Files that
// fail to parse or validate are skipped and logged; a broken file never
// takes down the templates that still load.
func (p *Provider) Reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("reading template dir: %w", err)
	}

	loaded := make(map[string]*core.WorkflowTemplate)
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		tpl, err := loadFile(path)
		if err != nil {
			p.logger.Warn("skipping workflow template",
				"file", entry.Name(),
				"error", err)
			continue
		}
		if prev, ok := loaded[tpl.Name]; ok && prev != nil {
			p.logger.Warn("duplicate workflow template name",
				"workflow", tpl.Name,
				"file", entry.Name())
			continue
		}
		loaded[tpl.Name] = tpl
	}

	p.mu.Lock()
	p.templates = loaded
	p.mu.Unlock()

	p.logger.Debug("workflow templates loaded", "count", len(loaded), "dir", p.dir)
	return nil
}

// Close stops the file watcher if one is running.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	close(p.stopWatcher)
	err := p.watcher.Close()
	p.watcher = nil
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	return err
}

func (p *Provider) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// The watcher is optional; a static load still works.
		p.logger.Warn("template watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(p.dir); err != nil {
		p.logger.Warn("cannot watch template dir", "dir", p.dir, "error", err)
		watcher.Close()
		return
	}
	p.watcher = watcher
	go p.watchLoop(watcher)
}

func (p *Provider) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isTemplateFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				p.scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("template watcher error", "error", err)
		case <-p.stopWatcher:
			return
		}
	}
}

// scheduleReload debounces rapid file changes into a single reload.
func (p *Provider) scheduleReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceTimer = time.AfterFunc(debounceInterval, func() {
		if err := p.Reload(); err != nil {
			p.logger.Warn("template reload failed", "error", err)
		}
	})
}

func loadFile(path string) (*core.WorkflowTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tpl core.WorkflowTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func isTemplateFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
