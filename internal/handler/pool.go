package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Handle after Shutdown.
var ErrPoolClosed = errors.New("execution context pool is closed")

// pool hands out execution contexts with exclusive ownership. A context is
// never shared between two in-flight requests.
type pool struct {
	contexts chan Context
	size     int
	factory  Factory
	log      *zap.Logger

	mu       sync.Mutex
	closed   bool
	replacer sync.WaitGroup
}

func newPool(size int, factory Factory, log *zap.Logger) (*pool, error) {
	p := &pool{
		contexts: make(chan Context, size),
		size:     size,
		factory:  factory,
		log:      log,
	}
	for i := 0; i < size; i++ {
		c, err := factory()
		if err != nil {
			p.dispose()
			return nil, err
		}
		p.contexts <- c
	}
	return p, nil
}

// get blocks until a context is free, ctx is done or the pool is closed.
func (p *pool) get(ctx context.Context) (Context, error) {
	select {
	case c, ok := <-p.contexts:
		if !ok {
			return nil, ErrPoolClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for execution context: %w", ctx.Err())
	}
}

// put returns a healthy context.
func (p *pool) put(c Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		c.Close()
		return
	}
	select {
	case p.contexts <- c:
	default:
		c.Close()
	}
}

// discard closes a context that was interrupted or panicked and builds a
// replacement in the background so the pool keeps its size.
func (p *pool) discard(c Context) {
	c.Close()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.replacer.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.replacer.Done()
		nc, err := p.factory()
		if err != nil {
			p.log.Error("replacing execution context", zap.Error(err))
			// The pool runs one context short from here on.
			return
		}
		p.put(nc)
	}()
}

func (p *pool) idle() int { return len(p.contexts) }

// dispose closes every idle context. Contexts still checked out are closed
// when they come back.
func (p *pool) dispose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.contexts)
	p.mu.Unlock()

	p.replacer.Wait()
	for c := range p.contexts {
		c.Close()
	}
}
