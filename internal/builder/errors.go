package builder

import "fmt"

// BuildError reports routine source that cannot be compiled. Line is 1-based
// and refers to the source passed to Build; 0 means the whole routine.
type BuildError struct {
	Line int
	Msg  string
}

func (e *BuildError) Error() string {
	if e.Line <= 0 {
		return "build: " + e.Msg
	}
	return fmt.Sprintf("build: line %d: %s", e.Line, e.Msg)
}

func errorf(line int, format string, args ...any) *BuildError {
	return &BuildError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
