package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/task"
	"github.com/zclconf/go-cty/cty"
)

// Guarded is the instruction of a try block. Body, Handler and Finally are
// independently compiled sub-graphs executed as one indivisible step against
// the same environment. Handler runs when Body fails for any reason other than
// cancellation; ErrName, when set, is bound to the failure message first.
// Finally always runs, and its own failure takes precedence.
type Guarded struct {
	Body    *Graph
	Handler *Graph
	Finally *Graph
	// Types is the exception type list of the except clause. It is recorded
	// for rendering; every failure matches.
	Types   []string
	ErrName string
}

func (g *Guarded) Exec(ctx context.Context, env *fragment.Env) error {
	err := runSub(ctx, g.Body, env)
	if err != nil && g.Handler != nil && !isCancellation(ctx, err) {
		if g.ErrName != "" {
			env.Set(g.ErrName, cty.StringVal(fragment.Message(err)))
		}
		err = runSub(ctx, g.Handler, env)
	}
	if g.Finally != nil {
		if ferr := runSub(ctx, g.Finally, env); ferr != nil {
			return ferr
		}
	}
	return err
}

func (g *Guarded) String() string {
	var parts []string
	parts = append(parts, "try")
	if g.Handler != nil {
		clause := "except"
		if len(g.Types) > 0 {
			clause += " " + strings.Join(g.Types, ", ")
		}
		if g.ErrName != "" {
			clause += " as " + g.ErrName
		}
		parts = append(parts, clause)
	}
	if g.Finally != nil {
		parts = append(parts, "finally")
	}
	return strings.Join(parts, "/")
}

func (g *Guarded) render(b *strings.Builder, indent string) {
	for _, sub := range []struct {
		name string
		g    *Graph
	}{{"try", g.Body}, {"except", g.Handler}, {"finally", g.Finally}} {
		if sub.g == nil {
			continue
		}
		fmt.Fprintf(b, "%s%s:\n", indent, sub.name)
		if sub.g.Entry == nil {
			fmt.Fprintf(b, "%s  <empty>\n", indent)
			continue
		}
		for _, s := range sub.g.Steps() {
			fmt.Fprintf(b, "%s  %s\n", indent, describe(s))
		}
	}
}

func runSub(ctx context.Context, g *Graph, env *fragment.Env) error {
	if g == nil {
		return nil
	}
	return Traverse(ctx, g.Entry, env)
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, task.ErrCancelled)
}
