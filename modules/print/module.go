// Package print provides the "print" function, which writes its arguments to
// a writer for debugging routines.
package print

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives printed lines. Defaults to os.Stdout.
	Out io.Writer

	mu sync.Mutex
}

// Register registers the "print" function.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("print", m.Function())
}

// Function returns "print(values...)": values are rendered for humans,
// joined by a space and written as one line. It returns null.
func (m *Module) Function() function.Function {
	return function.New(&function.Spec{
		Description: "Writes its arguments as one line.",
		VarParam: &function.Parameter{
			Name:             "values",
			Type:             cty.DynamicPseudoType,
			AllowNull:        true,
			AllowDynamicType: true,
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			parts := make([]string, len(args))
			for i, arg := range args {
				parts[i] = ctyconv.Display(arg)
			}
			if err := m.write(strings.Join(parts, " ")); err != nil {
				return cty.NilVal, err
			}
			return cty.NullVal(cty.DynamicPseudoType), nil
		},
	})
}

func (m *Module) write(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
