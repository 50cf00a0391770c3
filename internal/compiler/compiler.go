// Package compiler turns a workflow template into an executable leveled
// dependency graph. Level 0 holds phases with no dependencies; level k
// holds phases whose dependencies are fully contained in earlier levels.
package compiler

import (
	"fmt"
	"strings"

	"github.com/scscodes/conductor/internal/core"
)

// ExecutableWorkflow is the compiled form of a workflow template: an
// ordered sequence of levels, each a list of phases in declaration order.
type ExecutableWorkflow struct {
	Name       string
	Complexity core.Complexity
	Levels     [][]core.PhaseTemplate
}

// PhaseCount returns the total number of phases across all levels.
func (w *ExecutableWorkflow) PhaseCount() int {
	n := 0
	for _, level := range w.Levels {
		n += len(level)
	}
	return n
}

// Compile validates a template's dependency graph and computes its
// topological layering. It rejects unknown dependency references and
// cycles, naming the first cycle found.
func Compile(tpl *core.WorkflowTemplate) (*ExecutableWorkflow, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	byName := make(map[string]core.PhaseTemplate, len(tpl.Phases))
	for _, p := range tpl.Phases {
		byName[p.Name] = p
	}

	// Every dependsOn reference must resolve to a declared phase.
	for _, p := range tpl.Phases {
		for _, dep := range p.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, core.ErrCompile(core.CodeUnknownDependency,
					fmt.Sprintf("phase %s depends on undeclared phase %s", p.Name, dep))
			}
			if dep == p.Name {
				return nil, core.ErrCompile(core.CodeCycleDetected,
					fmt.Sprintf("cycle detected: %s -> %s", p.Name, p.Name))
			}
		}
	}

	if cycle := findCycle(tpl.Phases, byName); cycle != nil {
		return nil, core.ErrCompile(core.CodeCycleDetected,
			"cycle detected: "+strings.Join(cycle, " -> "))
	}

	return &ExecutableWorkflow{
		Name:       tpl.Name,
		Complexity: tpl.ComplexityOrDefault(),
		Levels:     layer(tpl.Phases),
	}, nil
}

// findCycle runs DFS in declaration order and returns the first cycle
// found as a phase-name path, or nil for acyclic graphs.
func findCycle(phases []core.PhaseTemplate, byName map[string]core.PhaseTemplate) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(phases))
	var stack []string

	var dfs func(name string) []string
	dfs = func(name string) []string {
		state[name] = inStack
		stack = append(stack, name)

		for _, dep := range byName[name].DependsOn {
			switch state[dep] {
			case inStack:
				// Close the loop from the first occurrence of dep on the stack.
				for i, n := range stack {
					if n == dep {
						return append(append([]string{}, stack[i:]...), dep)
					}
				}
			case unvisited:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, p := range phases {
		if state[p.Name] == unvisited {
			if cycle := dfs(p.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// layer groups phases into dependency levels. Iterating the declared
// phase slice keeps the within-level order stable relative to input.
func layer(phases []core.PhaseTemplate) [][]core.PhaseTemplate {
	assigned := make(map[string]bool, len(phases))
	var levels [][]core.PhaseTemplate

	for len(assigned) < len(phases) {
		var level []core.PhaseTemplate
		for _, p := range phases {
			if assigned[p.Name] {
				continue
			}
			ready := true
			for _, dep := range p.DependsOn {
				if !assigned[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, p)
			}
		}
		for _, p := range level {
			assigned[p.Name] = true
		}
		levels = append(levels, level)
	}

	return levels
}
