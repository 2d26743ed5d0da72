//go:build !v8

// Package quickjs runs location handler scripts on modernc.org/quickjs.
package quickjs

import (
	"fmt"

	"github.com/cryguy/jshandler/internal/bridge"
	"github.com/cryguy/jshandler/internal/core"
	"go.uber.org/zap"
	"modernc.org/quickjs"
)

// Context is one ExecutionContext: a QuickJS VM holding the compiled
// handler script, its bridge and its resolved entry point.
type Context struct {
	vm     *quickjs.VM
	rt     *qjsRuntime
	bridge *bridge.Bridge
	closed bool
}

// NewContext creates a VM, installs the bridge, evaluates the handler
// source and binds `process`. Failures are *core.ConfigError.
func NewContext(cfg core.LocationConfig, source string, registry *core.ClassRegistry, log *zap.Logger) (*Context, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, &core.ConfigError{Location: cfg.Path, Op: "compile", Err: fmt.Errorf("creating QuickJS VM: %w", err)}
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	rt := &qjsRuntime{vm: vm}
	b, err := bridge.Setup(rt, bridge.Options{Location: cfg.Path, Registry: registry, Logger: log})
	if err != nil {
		vm.Close()
		return nil, &core.ConfigError{Location: cfg.Path, Op: "compile", Err: err}
	}

	// QuickJS compiles and runs in one step; syntax errors surface here too.
	v, err := vm.EvalValue(source, quickjs.EvalGlobal)
	if err != nil {
		b.Close()
		vm.Close()
		return nil, &core.ConfigError{Location: cfg.Path, Op: "evaluate", Err: err}
	}
	v.Free()
	rt.RunMicrotasks()

	if err := b.BindEntryPoint(); err != nil {
		b.Close()
		vm.Close()
		return nil, &core.ConfigError{Location: cfg.Path, Op: "entrypoint", Err: err}
	}
	return &Context{vm: vm, rt: rt, bridge: b}, nil
}

// Owner is the token request states must carry to be usable here.
func (c *Context) Owner() any { return c.bridge }

// Invoke runs process() for a request created with Owner.
func (c *Context) Invoke(reqID uint64) (int, bool, error) { return c.bridge.Invoke(reqID) }

// Instances reports live extension instances.
func (c *Context) Instances() int { return c.bridge.Instances() }

// Interrupt aborts the script currently running in the VM. Safe to call
// from another goroutine.
func (c *Context) Interrupt() { c.vm.Interrupt() }

// Close releases the bridge's remaining instances and the VM.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.bridge.Close()
	c.vm.Close()
}
