// Package app assembles the HTTP host: the view resolver, the controller
// route table, the operational endpoints and the server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/okian/homeview/internal/adapters/http/api"
	"github.com/okian/homeview/internal/adapters/http/controller"
	"github.com/okian/homeview/internal/adapters/http/livereload"
	"github.com/okian/homeview/internal/adapters/http/render"
	"github.com/okian/homeview/internal/adapters/http/swagger"
	"github.com/okian/homeview/internal/config"
	"github.com/okian/homeview/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Service owns the web host and its lifecycle.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	logger    logger.Logger
	templates fs.FS
	routes    []controller.Route

	resolver *render.Resolver
	reloader *livereload.Reloader
	handler  http.Handler

	server      *http.Server
	listener    net.Listener
	serveErr    chan error
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
	started     bool
	startedAt   time.Time
}

// New constructs a Service. Nothing is parsed or bound until Build or Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: logger.Nop(),
		routes: controller.Routes(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build parses templates and assembles the request handler. It is idempotent.
func (s *Service) Build(ctx context.Context) (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildLocked(ctx)
}

func (s *Service) buildLocked(ctx context.Context) (http.Handler, error) {
	if s.handler != nil {
		return s.handler, nil
	}
	if err := controller.Validate(s.routes); err != nil {
		return nil, err
	}

	resolver, err := s.newResolver()
	if err != nil {
		return nil, err
	}
	for _, rt := range s.routes {
		if rt.View != "" && !resolver.Has(rt.View) {
			return nil, fmt.Errorf("%w: route %s wants %q", render.ErrViewNotFound, rt.Name, rt.View)
		}
	}

	mux := http.NewServeMux()
	controller.Register(ctx, mux, resolver, s.logger.Named("controller"), s.routes, api.MetricsMiddleware)
	api.NewServer(resolver, s).Register(ctx, mux)
	swagger.Register(ctx, mux)

	if s.cfg.DevMode {
		s.reloader = livereload.New(s.logger.Named("livereload"))
		mux.HandleFunc("GET "+livereload.Path, s.reloader.Handler)
	}

	s.resolver = resolver
	s.handler = api.RequestIDMiddleware(api.LoggingMiddleware(s.logger.Named("http"))(mux))

	s.logger.Info(ctx, "views loaded", logger.Int("count", len(resolver.Views())), logger.Bool("dev_mode", s.cfg.DevMode))
	return s.handler, nil
}

func (s *Service) newResolver() (*render.Resolver, error) {
	opts := []render.Option{
		render.WithPrefix(s.cfg.ViewPrefix),
		render.WithSuffix(s.cfg.ViewSuffix),
		render.WithMinify(s.cfg.MinifyHTML && !s.cfg.DevMode),
		render.WithLogger(s.logger.Named("render")),
	}
	if s.cfg.DevMode {
		opts = append(opts, render.WithLiveReload(livereload.Path))
	}

	switch {
	case s.templates != nil:
		return render.New(s.templates, opts...)
	case s.cfg.TemplateDir != "":
		return render.NewFromDir(s.cfg.TemplateDir, opts...)
	default:
		return render.New(render.Embedded(), opts...)
	}
}

// Start builds the handler, binds the listen address and serves in the
// background. In dev mode it also watches on-disk templates.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	handler, err := s.buildLocked(ctx)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.serveErr = make(chan error, 1)
	go func(srv *http.Server, errCh chan<- error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}(s.server, s.serveErr)

	if s.cfg.DevMode {
		s.startWatch()
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "HTTP server started", logger.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) startWatch() {
	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancelWatch = cancel
	s.watchDone = make(chan struct{})

	go func(resolver *render.Resolver, reloader *livereload.Reloader, done chan struct{}) {
		defer close(done)
		err := resolver.Watch(watchCtx, reloader.Broadcast)
		switch {
		case err == nil:
		case errors.Is(err, render.ErrWatchUnsupported):
			s.logger.Info(watchCtx, "template watch disabled; templates are not on disk")
		default:
			s.logger.Error(watchCtx, "template watch stopped", logger.Error(err))
		}
	}(s.resolver, s.reloader, s.watchDone)
}

// Stop gracefully shuts the server down within ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	srv, reloader := s.server, s.reloader
	cancelWatch, watchDone := s.cancelWatch, s.watchDone
	s.started = false
	s.cancelWatch = nil
	s.mu.Unlock()

	// In-flight handlers may read service state, so the lock is not held here.
	s.logger.Info(ctx, "shutting down server...")

	if cancelWatch != nil {
		cancelWatch()
		<-watchDone
	}
	if reloader != nil {
		reloader.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "server stopped")
	return nil
}

// Errors reports a server failure after Start. It is closed when serving ends.
func (s *Service) Errors() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Routes returns the route table the service serves.
func (s *Service) Routes() []controller.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]controller.Route(nil), s.routes...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"devMode": s.cfg.DevMode,
		"routes":  len(s.routes),
	}
	if s.resolver != nil {
		stats["views"] = len(s.resolver.Views())
	}
	if s.started {
		stats["uptimeSeconds"] = int(time.Since(s.startedAt).Seconds())
	}
	if s.reloader != nil {
		stats["liveReloadClients"] = s.reloader.Clients()
	}
	return stats
}
