package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/fragment"
)

// Validate checks that every registered name can be referenced from a routine
// and that no name is ambiguous.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)
	builtins := fragment.Builtins()

	check := func(kind, name string) {
		if !hclsyntax.ValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("%s '%s': not a valid identifier", kind, name))
		}
	}
	for name := range r.functions {
		check("function", name)
	}
	for name := range r.async {
		check("async function", name)
		if _, ok := r.functions[name]; ok {
			errs = append(errs, fmt.Sprintf("async function '%s': also registered as a sync function", name))
		}
	}
	for name := range r.globals {
		check("global", name)
		if _, ok := builtins[name]; ok {
			errs = append(errs, fmt.Sprintf("global '%s': shadows a built-in name", name))
		}
		if name == "self" || strings.HasPrefix(name, "__") {
			errs = append(errs, fmt.Sprintf("global '%s': reserved name", name))
		}
		if _, ok := r.async[name]; ok {
			logger.Warn("Global shares its name with an async function; calls still resolve to the function.", "name", name)
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "functions", len(r.functions), "async", len(r.async), "globals", len(r.globals))
	return nil
}
