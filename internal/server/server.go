// Package server exposes the todo store and subtask generation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zyrian-nova/todo-app/internal/decompose"
	"github.com/zyrian-nova/todo-app/internal/logging"
	"github.com/zyrian-nova/todo-app/internal/todo"
)

// Store is the persistence the API needs. *todo.Store implements it.
type Store interface {
	Create(ctx context.Context, t todo.Todo) (todo.Todo, error)
	AddSubtasks(ctx context.Context, parentID int64, tasks []string) ([]todo.Todo, error)
	Get(ctx context.Context, id int64) (todo.Todo, error)
	List(ctx context.Context) ([]todo.Todo, error)
	Children(ctx context.Context, parentID int64) ([]todo.Todo, error)
	Update(ctx context.Context, id int64, p todo.Patch) (todo.Todo, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Decomposer splits a task into subtasks. *decompose.Decomposer implements it.
type Decomposer interface {
	Run(ctx context.Context, task string) decompose.Outcome
}

// Settings holds the HTTP listener tuning.
type Settings struct {
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// DefaultSettings allows any origin and applies no timeouts.
func DefaultSettings() Settings {
	return Settings{AllowedOrigins: []string{"*"}}
}

// Server serves the todo API.
type Server struct {
	store      Store
	decomposer Decomposer
	settings   Settings
	logger     *logging.Logger
	validate   *validator.Validate
	handler    http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   bool
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSettings overrides DefaultSettings.
func WithSettings(settings Settings) Option {
	return func(s *Server) {
		s.settings = settings
	}
}

// New builds a Server. store and decomposer must be non-nil.
func New(store Store, decomposer Decomposer, opts ...Option) *Server {
	if store == nil {
		panic("server: nil store")
	}
	if decomposer == nil {
		panic("server: nil decomposer")
	}

	s := &Server{
		store:      store,
		decomposer: decomposer,
		settings:   DefaultSettings(),
		logger:     logging.NopLogger(),
		validate:   newValidator(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.WithComponent("server")
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until Shutdown is called. It returns nil
// after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	if s.server != nil {
		s.mu.Unlock()
		return fmt.Errorf("server: already serving")
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.closed = true
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once Serve has been called.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
