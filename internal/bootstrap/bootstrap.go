// Package bootstrap runs a command under signal handling and closes its resources afterwards.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds the time all shutdown hooks may take together.
const DefaultShutdownTimeout = 10 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// App owns the shutdown hooks of one command run.
type App struct {
	mu      sync.Mutex
	hooks   []hook
	timeout time.Duration
	signals []os.Signal
}

// Option configures an App.
type Option func(*App)

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		a.timeout = d
	}
}

// WithSignals replaces the signals that cancel the run context.
func WithSignals(signals ...os.Signal) Option {
	return func(a *App) {
		a.signals = signals
	}
}

// New creates a new App.
func New(opts ...Option) *App {
	a := &App{
		timeout: DefaultShutdownTimeout,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddShutdownHook registers fn to run after the command finishes.
// Hooks run in reverse registration order. Safe to call from inside run.
func (a *App) AddShutdownHook(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// Run calls run with a context that is cancelled on the configured signals,
// then runs every shutdown hook. The returned error joins the run error with
// any hook errors.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	runCtx, stop := signal.NotifyContext(ctx, a.signals...)
	runErr := run(runCtx)
	interrupted := runCtx.Err() != nil && ctx.Err() == nil
	stop()

	if interrupted {
		slog.Default().Info("interrupted, shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		slog.Default().Debug("run shutdown hook", "hook", h.name)
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
