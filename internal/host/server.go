package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cryguy/jshandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// DefaultListen is used when neither the file nor JSHANDLER_LISTEN set one.
const DefaultListen = ":8080"

// DefaultShutdownTimeout bounds Shutdown when the file sets none.
const DefaultShutdownTimeout = 10 * time.Second

type mounted struct {
	loc      *jshandler.Location
	compress bool
}

// Server routes requests to location scripts.
type Server struct {
	cfg       Config
	log       *zap.Logger
	access    *zap.Logger
	locations []mounted
	router    chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// ServerOption configures NewServer.
type ServerOption func(*Server)

// WithAccessLogger sends access log lines to l instead of the main logger.
func WithAccessLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.access = l }
}

// NewServer loads every location in cfg. If one fails, the ones already
// built are shut down and the error is returned.
func NewServer(cfg Config, log *zap.Logger, opts []ServerOption, locOpts ...jshandler.Option) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log, access: log}
	for _, o := range opts {
		o(s)
	}

	locOpts = append([]jshandler.Option{jshandler.WithLogger(log)}, locOpts...)
	for _, lc := range cfg.Locations {
		loc, err := jshandler.NewLocation(lc.LocationConfig(), locOpts...)
		if err != nil {
			s.shutdownLocations()
			return nil, err
		}
		s.locations = append(s.locations, mounted{loc: loc, compress: lc.Compress})
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(Collect)

	r.Handle("/metrics", NewPromHttpHandler())
	for _, m := range s.locations {
		h := s.serveLocation(m)
		path := strings.TrimSuffix(m.loc.Config().Path, "/")
		if path == "" {
			r.Handle("/", h)
			r.Handle("/*", h)
			continue
		}
		r.Handle(path, h)
		r.Handle(path+"/*", h)
	}
	return r
}

func (s *Server) serveLocation(m mounted) http.HandlerFunc {
	name := m.loc.Config().Path
	return func(w http.ResponseWriter, r *http.Request) {
		host := newResponseHost(w, r, m.compress)
		res := m.loc.Handle(r.Context(), NewRequest(r), host)

		scriptRequests.WithLabelValues(name, strconv.Itoa(res.Status)).Inc()
		scriptDuration.WithLabelValues(name).Observe(res.Duration.Seconds())
		idleContexts.WithLabelValues(name).Set(float64(m.loc.Idle()))
		if res.Deferred {
			deferredResponses.WithLabelValues(name).Inc()
		}
		if res.Error != nil {
			scriptErrors.WithLabelValues(name).Inc()
			s.log.Warn("request failed",
				zap.String("location", name),
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.Error(res.Error),
			)
		}
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.access.Info("access",
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.String("httpMethod", r.Method),
				zap.String("uri", r.URL.Path),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("responseSize", ww.BytesWritten()),
				zap.Duration("lat", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already started")
	}

	addr := EnvOr(EnvListen, s.cfg.Listen)
	if addr == "" {
		addr = DefaultListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Info("server starting",
		zap.String("addr", ln.Addr().String()),
		zap.Int("locations", len(s.locations)),
		zap.String("engine", jshandler.Engine),
	)
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server failed", zap.Error(err))
		}
	}(s.srv)
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections, waits for in-flight requests and
// then releases every location's execution contexts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		timeout := s.cfg.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var err error
	if srv != nil {
		s.log.Info("server stopping")
		err = srv.Shutdown(ctx)
	}
	s.shutdownLocations()
	return err
}

func (s *Server) shutdownLocations() {
	for _, m := range s.locations {
		m.loc.Shutdown()
	}
}
