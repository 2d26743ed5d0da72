package core

import (
	"errors"
	"fmt"
)

// ErrBridgeLifetime is returned when a request or response object, or an
// extension instance scoped to a request, is used after that request
// finished, or from a context that does not own it.
var ErrBridgeLifetime = errors.New("bridge object used outside its request")

// ConfigError reports a location that cannot be served: unreadable
// script, compile failure or missing entry point.
type ConfigError struct {
	Location string
	Op       string // "read", "prepare", "compile", "evaluate", "entrypoint", "extension"
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("config: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("config %s: %s: %v", e.Location, e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExtensionLoadError reports an extension module that could not be opened
// or lacks one of its entry points.
type ExtensionLoadError struct {
	Path string
	Err  error
}

func (e *ExtensionLoadError) Error() string {
	return fmt.Sprintf("loading extension %s: %v", e.Path, e.Err)
}

func (e *ExtensionLoadError) Unwrap() error { return e.Err }

// ScriptRuntimeError wraps a failure raised while process() ran: a thrown
// exception, a timeout, a panic or an unusable status code.
type ScriptRuntimeError struct {
	Err error
}

func (e *ScriptRuntimeError) Error() string {
	return fmt.Sprintf("script runtime: %v", e.Err)
}

func (e *ScriptRuntimeError) Unwrap() error { return e.Err }
