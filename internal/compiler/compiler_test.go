package compiler

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/scscodes/conductor/internal/core"
)

func phase(name, agent string, deps ...string) core.PhaseTemplate {
	return core.PhaseTemplate{Name: name, Agent: agent, DependsOn: deps, AllowParallel: true}
}

func TestCompile_LinearChain(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name: "chain",
		Phases: []core.PhaseTemplate{
			phase("a", "agent"),
			phase("b", "agent", "a"),
			phase("c", "agent", "b"),
		},
	}

	w, err := Compile(tpl)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(w.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(w.Levels))
	}
	for i, want := range []string{"a", "b", "c"} {
		if len(w.Levels[i]) != 1 || w.Levels[i][0].Name != want {
			t.Errorf("level %d = %v, want [%s]", i, w.Levels[i], want)
		}
	}
	if w.PhaseCount() != 3 {
		t.Errorf("PhaseCount() = %d, want 3", w.PhaseCount())
	}
}

func TestCompile_DiamondLevels(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name: "diamond",
		Phases: []core.PhaseTemplate{
			phase("root", "agent"),
			phase("left", "agent", "root"),
			phase("right", "agent", "root"),
			phase("join", "agent", "left", "right"),
		},
	}

	w, err := Compile(tpl)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(w.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(w.Levels))
	}
	if len(w.Levels[1]) != 2 || w.Levels[1][0].Name != "left" || w.Levels[1][1].Name != "right" {
		t.Fatalf("level 1 = %v, want [left right] in declaration order", w.Levels[1])
	}
}

func TestCompile_DeterministicOrder(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name: "order",
		Phases: []core.PhaseTemplate{
			phase("z", "agent"),
			phase("a", "agent"),
			phase("m", "agent"),
		},
	}

	for i := 0; i < 5; i++ {
		w, err := Compile(tpl)
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		names := []string{w.Levels[0][0].Name, w.Levels[0][1].Name, w.Levels[0][2].Name}
		if names[0] != "z" || names[1] != "a" || names[2] != "m" {
			t.Fatalf("level 0 order = %v, want declaration order [z a m]", names)
		}
	}
}

func TestCompile_CycleDetected(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name: "cyclic",
		Phases: []core.PhaseTemplate{
			phase("x", "agent", "y"),
			phase("y", "agent", "x"),
		},
	}

	_, err := Compile(tpl)
	if err == nil {
		t.Fatalf("expected compile failure for cyclic template")
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeCycleDetected {
		t.Fatalf("error = %v, want code %s", err, core.CodeCycleDetected)
	}
}

func TestCompile_SelfDependency(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name:   "self",
		Phases: []core.PhaseTemplate{phase("a", "agent", "a")},
	}

	_, err := Compile(tpl)
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeCycleDetected {
		t.Fatalf("error = %v, want code %s", err, core.CodeCycleDetected)
	}
}

func TestCompile_UnknownDependency(t *testing.T) {
	tpl := &core.WorkflowTemplate{
		Name:   "dangling",
		Phases: []core.PhaseTemplate{phase("a", "agent", "ghost")},
	}

	_, err := Compile(tpl)
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeUnknownDependency {
		t.Fatalf("error = %v, want code %s", err, core.CodeUnknownDependency)
	}
}

func TestCompile_RandomizedAcyclicGraphs(t *testing.T) {
	// Edges only point at earlier phases, so every generated graph is
	// acyclic and every level must contain only phases whose
	// dependencies sit in earlier levels.
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		n := 2 + rng.Intn(10)
		phases := make([]core.PhaseTemplate, n)
		for i := 0; i < n; i++ {
			var deps []string
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					deps = append(deps, phases[j].Name)
				}
			}
			phases[i] = phase(string(rune('a'+i)), "agent", deps...)
		}

		w, err := Compile(&core.WorkflowTemplate{Name: "random", Phases: phases})
		if err != nil {
			t.Fatalf("iter %d: Compile() error = %v", iter, err)
		}

		levelOf := make(map[string]int)
		for li, level := range w.Levels {
			for _, p := range level {
				levelOf[p.Name] = li
			}
		}
		if len(levelOf) != n {
			t.Fatalf("iter %d: %d phases assigned, want %d", iter, len(levelOf), n)
		}
		for _, p := range phases {
			for _, dep := range p.DependsOn {
				if levelOf[dep] >= levelOf[p.Name] {
					t.Fatalf("iter %d: %s (level %d) depends on %s (level %d)",
						iter, p.Name, levelOf[p.Name], dep, levelOf[dep])
				}
			}
		}
	}
}
