package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/builder"
	"github.com/vk/agentgrid/internal/executor"
	"github.com/vk/agentgrid/internal/handler"
	"github.com/zclconf/go-cty/cty"
)

// RoutineTestCase defines a single scenario for compiling and running a routine.
type RoutineTestCase struct {
	Name string
	// Source is the routine body. It can be written as a readable, indented
	// multi-line string.
	Source   string
	Input    cty.Value
	Instance handler.Instance
	Options  []executor.Option
	// Expect is compared with the result's Output when ExpectErr is nil.
	Expect cty.Value
	// ExpectErr, when set, is a pointer to an error type the failure must match
	// via errors.As, e.g. new(*fragment.BindingError).
	ExpectErr any
	// Validate performs extra assertions on the result.
	Validate func(t *testing.T, res executor.Result)
}

// Unindent removes common leading whitespace from a multi-line string,
// allowing for readable, indented snippets in Go tests.
func Unindent(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.Join(lines, "\n")
	}

	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimSpace(line)
		}
	}
	return strings.Join(lines, "\n")
}

// RunRoutineTests compiles and runs each case against a fresh executor.
func RunRoutineTests(t *testing.T, cases []RoutineTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			ctx, _ := Context(t)

			g, err := builder.Build(Unindent(tc.Source))
			require.NoError(t, err, "routine failed to build")

			input := tc.Input
			if input == cty.NilVal {
				input = cty.NullVal(cty.DynamicPseudoType)
			}
			res := executor.New(g, tc.Instance, tc.Options...).RunOne(ctx, input)

			if tc.ExpectErr != nil {
				require.Error(t, res.Err, "expected the routine to fail")
				require.True(t, errors.As(res.Err, tc.ExpectErr), "unexpected error type %T: %v", res.Err, res.Err)
			} else {
				require.NoError(t, res.Err)
				if tc.Expect != cty.NilVal {
					got := res.Output()
					assert.True(t, got.RawEquals(tc.Expect), "expected %#v, got %#v", tc.Expect, got)
				}
			}
			if tc.Validate != nil {
				tc.Validate(t, res)
			}
		})
	}
}
