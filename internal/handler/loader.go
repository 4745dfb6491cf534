package handler

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader reads handler definitions from HCL files.
type Loader struct {
	// EvalContext is used to evaluate the attributes and scope expressions.
	// It may be nil.
	EvalContext *hcl.EvalContext
}

// NewLoader creates a handler file loader.
func NewLoader(evalCtx *hcl.EvalContext) *Loader {
	return &Loader{EvalContext: evalCtx}
}

// fileRoot decodes the top-level blocks of a handler file.
type fileRoot struct {
	Handlers []*handlerBlock `hcl:"handler,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

type handlerBlock struct {
	Name       string         `hcl:"name,label"`
	Param      string         `hcl:"param,optional"`
	Priority   int            `hcl:"priority,optional"`
	Attributes hcl.Expression `hcl:"attributes,optional"`
	Scope      hcl.Expression `hcl:"scope,optional"`
	Forward    string         `hcl:"forward"`
}

// Load parses every .hcl file found under paths. Handler names must be unique
// across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*Module, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Handler loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered handler files.", "count", len(files))

	parser := hclparse.NewParser()
	var out []*Module
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		mods, err := l.decode(ctx, file, hclFile)
		if err != nil {
			return nil, err
		}
		out = append(out, mods...)
	}
	if err := unique(out); err != nil {
		return nil, err
	}

	logger.Debug("Handler loading complete.", "handlers", len(out))
	return out, nil
}

// Parse decodes handler definitions from in-memory HCL source.
func (l *Loader) Parse(ctx context.Context, filename string, src []byte) ([]*Module, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	mods, err := l.decode(ctx, filename, hclFile)
	if err != nil {
		return nil, err
	}
	if err := unique(mods); err != nil {
		return nil, err
	}
	return mods, nil
}

func (l *Loader) decode(ctx context.Context, filename string, f *hcl.File) ([]*Module, error) {
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, l.EvalContext, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	mods := make([]*Module, 0, len(root.Handlers))
	for _, b := range root.Handlers {
		attrs, err := l.object(b.Attributes)
		if err != nil {
			return nil, fmt.Errorf("handler %q in %s: attributes: %w", b.Name, filename, err)
		}
		vars, err := l.object(b.Scope)
		if err != nil {
			return nil, fmt.Errorf("handler %q in %s: scope: %w", b.Name, filename, err)
		}
		mods = append(mods, &Module{
			Name:     b.Name,
			Param:    b.Param,
			Priority: b.Priority,
			Attrs:    attrs,
			Vars:     vars,
			Forward:  b.Forward,
			File:     filename,
		})
		logger.Debug("Decoded handler.", "handler", b.Name, "file", filename, "attributes", len(attrs))
	}
	return mods, nil
}

// object evaluates an optional object-valued attribute into a map.
func (l *Loader) object(expr hcl.Expression) (map[string]cty.Value, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(l.EvalContext)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("must be an object, got %s", ty.FriendlyName())
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}
	return v.AsValueMap(), nil
}

func unique(mods []*Module) error {
	seen := make(map[string]string, len(mods))
	for _, m := range mods {
		if prev, ok := seen[m.Name]; ok {
			return fmt.Errorf("handler %q defined twice (%s and %s)", m.Name, prev, m.File)
		}
		seen[m.Name] = m.File
	}
	return nil
}
