package builder

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/graph"
)

// DefaultParam is the parameter name used when the routine has no definition
// header and no WithParam option is given.
const DefaultParam = "input"

// Option configures Build.
type Option func(*options)

type options struct {
	param string
}

// WithParam sets the name the input is bound under, overriding any name taken
// from a definition header.
func WithParam(name string) Option {
	return func(o *options) {
		o.param = name
	}
}

var defRe = regexp.MustCompile(`(?s)^(?:async\s+)?def\s+[A-Za-z_][A-Za-z0-9_]*\s*\((.*)\)\s*(?:->.*)?:$`)

// Build compiles routine source into a Step Graph. No graph is returned when
// any part of the source fails to compile; the error is a *BuildError.
func Build(source string, opts ...Option) (*graph.Graph, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	lines, err := lex(source)
	if err != nil {
		return nil, err
	}
	lines, headerParam, err := unwrap(lines)
	if err != nil {
		return nil, err
	}
	param := o.param
	if param == "" {
		param = headerParam
	}
	if param == "" {
		param = DefaultParam
	}

	stmts, err := parse(lines)
	if err != nil {
		return nil, err
	}

	c := newCompiler()
	c.bind(param)
	entry, err := c.block(stmts, graph.NewReturn(nil))
	if err != nil {
		return nil, err
	}

	return &graph.Graph{
		Entry:    entry,
		Param:    param,
		Captures: c.captures(param),
		Source:   source,
	}, nil
}

// captures lists the names the routine reads but never binds itself.
func (c *compiler) captures(param string) []string {
	exclude := []string{param, "self"}
	for name := range fragment.Builtins() {
		exclude = append(exclude, name)
	}
	for name := range c.locals {
		exclude = append(exclude, name)
	}
	names := c.scan.RootNames(exclude...)
	sort.Strings(names)
	return names
}

// unwrap strips an optional "def name(self, param):" header, along with its
// decorators, and returns the body lines and the parameter name.
func unwrap(lines []line) ([]line, string, error) {
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i].text, "@") {
		i++
	}
	if i >= len(lines) {
		return lines, "", nil
	}
	m := defRe.FindStringSubmatch(lines[i].text)
	if m == nil {
		return lines, "", nil
	}
	head := lines[i]
	body := lines[i+1:]
	for _, l := range body {
		if l.indent <= head.indent {
			return nil, "", errorf(l.num, "unexpected statement after the routine definition")
		}
	}
	return dedent(body), paramName(m[1]), nil
}

// paramName returns the first parameter other than self.
func paramName(params string) string {
	for _, p := range splitTopLevel(params) {
		p = strings.TrimLeft(strings.TrimSpace(p), "*")
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = p[:i]
		}
		p = strings.TrimSpace(p)
		if p == "" || p == "self" || p == "/" {
			continue
		}
		return p
	}
	return ""
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
