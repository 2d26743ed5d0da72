// Package handler drives one request through a location's script:
// bind, invoke process(), finalize headers, then send the chain or take
// the no-body path.
package handler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cryguy/jshandler/internal/core"
	"go.uber.org/zap"
)

// Context is one execution context: a compiled script with its bound
// entry point. Implementations are not safe for concurrent use apart from
// Interrupt.
type Context interface {
	// Owner is the token request states must be created with.
	Owner() any
	// Invoke calls process() for reqID. ok is false when the return value
	// was absent or not an integer.
	Invoke(reqID uint64) (status int, ok bool, err error)
	// Interrupt aborts a running Invoke from another goroutine.
	Interrupt()
	Close()
}

// Factory builds a ready execution context.
type Factory func() (Context, error)

// Handler serves requests for one location.
type Handler struct {
	cfg  core.LocationConfig
	pool *pool
	log  *zap.Logger
}

// New builds cfg.PoolSize contexts up front. Any factory error aborts.
func New(cfg core.LocationConfig, factory Factory, log *zap.Logger) (*Handler, error) {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("location", cfg.Path))
	p, err := newPool(cfg.PoolSize, factory, log)
	if err != nil {
		return nil, err
	}
	return &Handler{cfg: cfg, pool: p, log: log}, nil
}

// Handle runs the request state machine. The returned Result mirrors what
// was handed to host. ctx only bounds the wait for a free context; once
// process() starts, the execution timeout applies instead.
func (h *Handler) Handle(ctx context.Context, req *core.Request, host core.Host) *core.Result {
	start := time.Now()
	res := &core.Result{Chain: core.NewOutputChain()}
	defer func() { res.Duration = time.Since(start) }()

	c, err := h.pool.get(ctx)
	if err != nil {
		res.Error = err
		res.Status = 500
		res.ContentType = core.DefaultContentType
		h.send(host, res)
		return res
	}

	// Init
	reqID := core.NewRequestState(req, c.Owner(), h.cfg.MaxResponseBytes)

	// ScriptInvoked
	status, ok, healthy, err := h.invoke(c, reqID)

	// The state must be gone before c serves anyone else, so bridge
	// objects a script kept from this request fail on the next one.
	state := core.ClearRequestState(reqID)
	if healthy {
		h.pool.put(c)
	} else {
		h.log.Warn("discarding execution context", zap.Error(err))
		h.pool.discard(c)
	}
	if state != nil {
		res.Logs = state.Logs
	}

	switch {
	case err != nil:
		res.Error = &core.ScriptRuntimeError{Err: err}
	case state == nil:
		res.Error = &core.ScriptRuntimeError{Err: core.ErrBridgeLifetime}
	case !ok:
		status = 200
	case status < 200 || status > 999:
		// 1xx would go out as an informational response followed by a 200.
		res.Error = &core.ScriptRuntimeError{Err: fmt.Errorf("process returned invalid status %d", status)}
	}

	if res.Error != nil {
		// Anything already written is dropped.
		h.log.Error("script error", zap.String("uri", req.URI), zap.Error(res.Error))
		res.Status = 500
		res.ContentType = core.DefaultContentType
	} else {
		res.Status = status
		res.Chain = state.Chain
		ct, set := state.ContentType()
		if !set {
			ct = core.DefaultContentType
		}
		res.ContentType = ct
	}

	h.send(host, res)
	return res
}

// invoke runs process() under the watchdog. healthy is false when the
// context was interrupted or panicked and must not be reused.
func (h *Handler) invoke(c Context, reqID uint64) (status int, ok, healthy bool, err error) {
	var timedOut atomic.Bool
	timeout := time.Duration(h.cfg.ExecutionTimeout) * time.Millisecond
	watchdog := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		c.Interrupt()
	})

	defer func() {
		stopped := watchdog.Stop()
		if r := recover(); r != nil {
			err = fmt.Errorf("execution context panic: %v", r)
			healthy = false
		}
		if timedOut.Load() {
			err = fmt.Errorf("process timed out (limit: %v)", timeout)
			healthy = false
			return
		}
		if !stopped {
			healthy = false
		}
	}()

	status, ok, err = c.Invoke(reqID)
	return status, ok, true, err
}

// send performs HeadersSent and then BodySent or Deferred.
func (h *Handler) send(host core.Host, res *core.Result) {
	if err := host.SendHeaders(res.Status, res.ContentType); err != nil {
		h.hostError(res, "send headers", err)
		return
	}
	if res.Chain.Empty() {
		res.Deferred = true
		if err := host.SendLast(); err != nil {
			h.hostError(res, "send last buffer", err)
		}
		host.Finalize(res.Status)
		return
	}
	if err := host.SendBody(res.Chain); err != nil {
		h.hostError(res, "send body", err)
	}
}

func (h *Handler) hostError(res *core.Result, op string, err error) {
	h.log.Warn(op, zap.Error(err))
	if res.Error == nil {
		res.Error = fmt.Errorf("%s: %w", op, err)
	}
}

// Idle reports how many contexts are waiting for a request.
func (h *Handler) Idle() int { return h.pool.idle() }

// Shutdown closes idle contexts and refuses new requests.
func (h *Handler) Shutdown() { h.pool.dispose() }
