// Package jshandler runs JavaScript request handlers inside a Go HTTP
// server. Each configured location loads one script defining
//
//	function process(request, response) { ... }
//
// and every request for that location calls it with fresh request and
// response objects. Extensions add constructible classes to the script's
// Components.classes namespace.
package jshandler

import (
	"context"
	"errors"
	"io/fs"

	"github.com/cryguy/jshandler/internal/core"
	"github.com/cryguy/jshandler/internal/extension"
	"github.com/cryguy/jshandler/internal/handler"
	"github.com/cryguy/jshandler/internal/script"
	"go.uber.org/zap"
)

// Location is a servable location: a pool of execution contexts running the
// same script.
type Location struct {
	cfg      core.LocationConfig
	registry *core.ClassRegistry
	handler  *handler.Handler
	log      *zap.Logger
}

// Option configures NewLocation.
type Option func(*options)

type options struct {
	log    *zap.Logger
	loader extension.Loader
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLoader replaces the extension loader.
func WithLoader(l extension.Loader) Option {
	return func(o *options) { o.loader = l }
}

// NewLocation loads extensions in directive order, prepares the script and
// builds cfg.PoolSize execution contexts. It returns a *ConfigError or an
// *ExtensionLoadError; the location is unusable in that case.
func NewLocation(cfg LocationConfig, opts ...Option) (*Location, error) {
	o := options{loader: extension.PluginLoader{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	log := o.log.With(zap.String("location", cfg.Path))

	if cfg.ScriptPath == "" {
		return nil, &core.ConfigError{Location: cfg.Path, Op: "read", Err: errors.New("no script configured")}
	}

	reg := core.NewClassRegistry()
	for _, path := range cfg.Extensions {
		name, err := extension.Register(reg, o.loader, path, log)
		if err != nil {
			return nil, err
		}
		log.Info("extension loaded", zap.String("class", name), zap.String("path", path))
	}

	source, err := script.Load(cfg.ScriptPath)
	if err != nil {
		op := "prepare"
		var pe *fs.PathError
		if errors.As(err, &pe) {
			op = "read"
		}
		return nil, &core.ConfigError{Location: cfg.Path, Op: op, Err: err}
	}

	h, err := handler.New(cfg, newFactory(cfg, source, reg, log), log)
	if err != nil {
		return nil, err
	}
	log.Info("location ready",
		zap.String("script", cfg.ScriptPath),
		zap.String("engine", Engine),
		zap.Int("pool_size", cfg.PoolSize),
		zap.Strings("classes", reg.Names()),
	)
	return &Location{cfg: cfg, registry: reg, handler: h, log: log}, nil
}

// Handle runs one request through the location's script and drives host.
func (l *Location) Handle(ctx context.Context, req *Request, host Host) *Result {
	return l.handler.Handle(ctx, req, host)
}

// Config returns the effective configuration, defaults applied.
func (l *Location) Config() LocationConfig { return l.cfg }

// Classes lists the extension class names visible to the script.
func (l *Location) Classes() []string { return l.registry.Names() }

// Idle reports execution contexts not currently serving a request.
func (l *Location) Idle() int { return l.handler.Idle() }

// Shutdown releases the location's execution contexts.
func (l *Location) Shutdown() { l.handler.Shutdown() }
