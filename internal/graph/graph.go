package graph

import (
	"context"
	"strings"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/fragment"
)

// Graph is a compiled routine. It is immutable once optimized and may be
// traversed by many executions at the same time.
type Graph struct {
	// Entry is the first step; nil only for a hand-built empty graph.
	Entry Step
	// Param is the name the input is bound under.
	Param string
	// Captures lists the names the routine reads from its defining scope.
	Captures []string
	// Source is the routine text the graph was built from.
	Source string
}

// Steps returns every step reachable from Entry exactly once, in depth-first
// order following Successors.
func (g *Graph) Steps() []Step {
	if g == nil || g.Entry == nil {
		return nil
	}
	var out []Step
	seen := make(map[uint64]struct{})
	stack := []Step{g.Entry}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[s.ID()]; ok {
			continue
		}
		seen[s.ID()] = struct{}{}
		out = append(out, s)
		succ := s.Successors()
		for i := len(succ) - 1; i >= 0; i-- {
			stack = append(stack, succ[i])
		}
	}
	return out
}

// String renders the graph one step per line. Back-edges are printed as
// labels, so cycles terminate.
func (g *Graph) String() string {
	if g == nil || g.Entry == nil {
		return "Graph(<empty>)"
	}
	var b strings.Builder
	b.WriteString("Graph:\n")
	for _, s := range g.Steps() {
		b.WriteString("  ")
		b.WriteString(describe(s))
		b.WriteByte('\n')
		if a, ok := s.(*ActionStep); ok {
			if gd, ok := a.Instr.(*Guarded); ok {
				gd.render(&b, "    ")
			}
		}
	}
	return b.String()
}

// Traverse executes steps starting at entry until a step returns no
// successor. ctx is checked between steps.
func Traverse(ctx context.Context, entry Step, env *fragment.Env) error {
	logger := ctxlog.FromContext(ctx)
	for step := entry; step != nil; {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("Executing step.", "step", Label(step))
		next, err := step.Execute(ctx, env)
		if err != nil {
			logger.Debug("Step failed.", "step", Label(step), "error", err)
			return err
		}
		step = next
	}
	return nil
}
