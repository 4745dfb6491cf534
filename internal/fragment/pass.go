package fragment

import "context"

// Pass does nothing. The builder uses it as an explicit landing step where a
// jump needs a target but the enclosing block has no continuation.
type Pass struct{}

func (Pass) Exec(context.Context, *Env) error { return nil }

func (Pass) String() string { return "pass" }
