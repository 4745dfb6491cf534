// Package optimizer rewrites compiled Step Graphs. The only pass today fuses
// a leading run of independent awaited assignments into one concurrent batch.
package optimizer

import (
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/graph"
)

// Pass is one graph rewrite. A pass never mutates the steps of its input; it
// returns either the input itself or a new Graph value.
type Pass struct {
	Name string
	Run  func(*graph.Graph) *graph.Graph
}

// Passes lists the passes Optimize applies, in order.
var Passes = []Pass{
	{Name: "fuse-awaits", Run: FuseAwaits},
}

// Optimize applies every pass in Passes. It is idempotent.
func Optimize(g *graph.Graph) *graph.Graph {
	for _, p := range Passes {
		g = p.Run(g)
	}
	return g
}

// FuseAwaits scans forward from the entry while each step is an action that
// binds one name from an awaited call whose arguments reference none of the
// names bound earlier in the run. A run of two or more steps with pairwise
// distinct names is replaced by a single Gather step continuing to the first
// step after the run. Anything else returns g unchanged.
func FuseAwaits(g *graph.Graph) *graph.Graph {
	if g == nil || g.Entry == nil {
		return g
	}

	var (
		names []string
		calls []*fragment.Call
		bound = make(map[string]struct{})
		dup   bool
		step  = g.Entry
	)
	for {
		a, ok := step.(*graph.ActionStep)
		if !ok {
			break
		}
		aa, ok := a.Instr.(*fragment.AwaitAssign)
		if !ok || aa.Call == nil || readsAny(aa.Call, bound) {
			break
		}
		if _, seen := bound[aa.Name]; seen {
			dup = true
		}
		bound[aa.Name] = struct{}{}
		names = append(names, aa.Name)
		calls = append(calls, aa.Call)
		step = a.Next
	}

	if len(calls) < 2 || dup {
		return g
	}
	out := *g
	out.Entry = graph.NewAction(&fragment.Gather{Names: names, Calls: calls}, step)
	return &out
}

func readsAny(c *fragment.Call, names map[string]struct{}) bool {
	for _, r := range c.Roots() {
		if _, ok := names[r]; ok {
			return true
		}
	}
	return false
}
