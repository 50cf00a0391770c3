package template

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/scscodes/conductor/internal/core"
)

// Builtins are the workflow templates shipped with the engine. They are
// written into an empty template directory so a fresh install can run a
// workflow before anyone authors one.
func Builtins() []core.WorkflowTemplate {
	return []core.WorkflowTemplate{
		{
			Name:       "feature",
			Complexity: core.ComplexityModerate,
			Phases: []core.PhaseTemplate{
				{Name: "plan", Agent: "generalist", Description: "break the feature into concrete tasks"},
				{Name: "implement", Agent: "generalist", DependsOn: []string{"plan"}, AllowParallel: true, Description: "implement the planned tasks"},
				{Name: "test", Agent: "generalist", DependsOn: []string{"plan"}, AllowParallel: true, Description: "write and run tests for the feature"},
				{Name: "review", Agent: "generalist", DependsOn: []string{"implement", "test"}, Description: "review the implementation and test results"},
			},
		},
		{
			Name:       "triage",
			Complexity: core.ComplexitySimple,
			Phases: []core.PhaseTemplate{
				{Name: "reproduce", Agent: "generalist", Description: "reproduce the reported issue"},
				{Name: "diagnose", Agent: "generalist", DependsOn: []string{"reproduce"}, Description: "identify the root cause"},
			},
		},
	}
}

// seed writes the builtin templates into the directory when it holds no
// template files yet. Writes are atomic so a crash never leaves a
// half-written template behind.
func (p *Provider) seed() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("reading template dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && isTemplateFile(entry.Name()) {
			return nil
		}
	}

	for _, tpl := range Builtins() {
		data, err := yaml.Marshal(&tpl)
		if err != nil {
			return fmt.Errorf("encoding builtin template %s: %w", tpl.Name, err)
		}
		path := filepath.Join(p.dir, tpl.Name+".yaml")
		if err := atomicWriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing builtin template %s: %w", tpl.Name, err)
		}
	}
	p.logger.Info("seeded builtin workflow templates", "dir", p.dir, "count", len(Builtins()))
	return nil
}
