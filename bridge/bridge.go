// Package bridge serves the uniform chat/vision HTTP API in front of the
// configured providers.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
)

// ShutdownTimeout bounds how long Stop waits for in-flight requests.
const ShutdownTimeout = 2 * time.Second

var (
	ErrAlreadyRunning = errors.New("bridge server already running")
	ErrStopped        = errors.New("bridge server already stopped")
)

// Server owns the HTTP listener and routes requests to a Dispatcher. Requests
// are served concurrently; the Dispatcher is shared and read-only.
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
	app        *fiber.App

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{} // closed when serving returns
	stopping bool
	stopped  bool
}

// New creates a Server for the dispatcher's configuration. Nothing listens
// until Start or WaitForever is called.
func New(d *dispatch.Dispatcher, logger *zap.Logger) *Server {
	s := &Server{
		dispatcher: d,
		logger:     logger,
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             d.Config().MaxBodyBytes,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	// Order matters: CORS headers go on every response, including errors
	// produced further down the chain.
	app.Use(cors)
	app.Use(s.requestLogger)
	app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: s.logPanic}))

	app.Get("/health", s.handleHealth)
	app.Get("/config", s.handleConfig)
	app.Post("/chat", s.handleChat)
	app.Post("/analyze", s.handleAnalyze)
	app.Post("/batch", s.handleBatch)

	app.Use(handleUnknown)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Addr returns the bound listener address, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start() error {
	ln, done, err := s.bind()
	if err != nil {
		return err
	}

	go func() {
		defer close(done)
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error("bridge server failed", zap.Error(err))
		}
	}()

	return nil
}

// WaitForever serves on the calling goroutine until ctx is cancelled or Stop
// is called, then stops the server.
func (s *Server) WaitForever(ctx context.Context) error {
	ln, done, err := s.bind()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down after interrupt")
			_ = s.Stop()
		case <-done:
		}
	}()

	err = s.app.Listener(ln)
	close(done)
	if stopErr := s.Stop(); err == nil {
		err = stopErr
	}
	return err
}

// Stop shuts the listener down and waits up to ShutdownTimeout for in-flight
// requests. Requests still running after that are abandoned. Stop is idempotent.
func (s *Server) Stop() error {
	s.mu.Lock()
	done, ln := s.done, s.listener
	if done == nil || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	s.logger.Info("stopping bridge server")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	err := s.app.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Warn("shutdown did not complete cleanly", zap.Error(err))
	}
	// Shutdown only reaches listeners already being served; a Stop racing
	// with startup still has to unblock the Accept loop.
	_ = ln.Close()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("abandoning server goroutine after shutdown timeout")
	}

	s.mu.Lock()
	s.listener = nil
	s.done = nil
	s.stopped = true
	s.mu.Unlock()

	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Server) bind() (net.Listener, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, nil, ErrStopped
	}
	if s.done != nil {
		return nil, nil, ErrAlreadyRunning
	}

	cfg := s.dispatcher.Config()
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	s.logger.Info("starting bridge server",
		zap.String("listen", ln.Addr().String()),
		zap.String("default_provider", cfg.DefaultProvider),
		zap.Strings("providers", cfg.ProviderNames()),
	)

	s.listener = ln
	s.done = make(chan struct{})
	return ln, s.done, nil
}
