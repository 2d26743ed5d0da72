//go:build v8

// Package v8engine runs location handler scripts on V8 via tommie/v8go.
package v8engine

import (
	"github.com/cryguy/jshandler/internal/bridge"
	"github.com/cryguy/jshandler/internal/core"
	v8 "github.com/tommie/v8go"
	"go.uber.org/zap"
)

// Context is one ExecutionContext backed by its own isolate.
type Context struct {
	iso    *v8.Isolate
	ctx    *v8.Context
	bridge *bridge.Bridge
	closed bool
}

// NewContext compiles source in a fresh isolate, installs the bridge, runs
// the script and binds `process`. Failures are *core.ConfigError.
func NewContext(cfg core.LocationConfig, source string, registry *core.ClassRegistry, log *zap.Logger) (*Context, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	fail := func(op string, err error) (*Context, error) {
		ctx.Close()
		iso.Dispose()
		return nil, &core.ConfigError{Location: cfg.Path, Op: op, Err: err}
	}

	rt := &v8Runtime{iso: iso, ctx: ctx}
	b, err := bridge.Setup(rt, bridge.Options{Location: cfg.Path, Registry: registry, Logger: log})
	if err != nil {
		return fail("compile", err)
	}

	script, err := iso.CompileUnboundScript(source, cfg.ScriptPath, v8.CompileOptions{})
	if err != nil {
		b.Close()
		return fail("compile", err)
	}
	if _, err := script.Run(ctx); err != nil {
		b.Close()
		return fail("evaluate", err)
	}
	rt.RunMicrotasks()

	if err := b.BindEntryPoint(); err != nil {
		b.Close()
		return fail("entrypoint", err)
	}
	return &Context{iso: iso, ctx: ctx, bridge: b}, nil
}

// Owner is the token request states must carry to be usable here.
func (c *Context) Owner() any { return c.bridge }

// Invoke runs process() for a request created with Owner.
func (c *Context) Invoke(reqID uint64) (int, bool, error) { return c.bridge.Invoke(reqID) }

// Instances reports live extension instances.
func (c *Context) Instances() int { return c.bridge.Instances() }

// Interrupt terminates the running script. Safe from any goroutine.
func (c *Context) Interrupt() { c.iso.TerminateExecution() }

// Close releases the context. Calling it again is a no-op.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.bridge.Close()
	c.ctx.Close()
	c.iso.Dispose()
}
