// Package boundary supervises rendering code: it runs a render closure,
// captures returned errors and panics, reports them through the error
// logger, and substitutes a recovery view until explicitly reset.
package boundary

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/usecase"
)

// Recognized LogLevel values; anything else selects the generic route.
const (
	LevelConsole      = "console"
	LevelLocalStorage = "localStorage"
)

const (
	defaultComponent = "FailureBoundary"
	renderAction     = "render"
)

// Reporter is the error-reporting routine shared by all boundaries.
type Reporter interface {
	Log(ctx context.Context, failure any, fields domain.Fields, opts ...usecase.LogOption) *usecase.Delivery
}

// Config is fixed for the lifetime of a boundary.
type Config struct {
	// LogLevel selects both the reporting route and the recovery view.
	LogLevel string
	// Endpoint overrides the logger's API endpoint for boundary reports.
	Endpoint string
	// Development discloses failure details in the generic recovery view.
	Development bool
	// Component names the supervised subtree in reports.
	Component string
	// Fallback, when set, replaces the selected recovery view.
	Fallback func(err error) *RecoveryView
}

// Info describes where a failure happened.
type Info struct {
	ComponentStack string
}

// State is a snapshot of a boundary.
type State struct {
	HasFailed bool
	Err       error
	Info      *Info
}

// Boundary is one mount of a failure boundary. It is safe for concurrent use.
type Boundary struct {
	cfg      Config
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
}

// New mounts a boundary in the Healthy state.
func New(cfg Config, reporter Reporter, logger *slog.Logger) *Boundary {
	if cfg.Component == "" {
		cfg.Component = defaultComponent
	}
	return &Boundary{
		cfg:      cfg,
		reporter: reporter,
		logger:   logger.With("component", "failure_boundary", "subtree", cfg.Component),
		now:      time.Now,
	}
}

// State returns a copy of the current state.
func (b *Boundary) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	if s.Info != nil {
		info := *s.Info
		s.Info = &info
	}
	return s
}

// Reset clears the captured failure so the next Render invokes the child
// again. Child state is not touched: a child that always fails will fail
// again on the next render.
func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = State{}
	b.logger.Info("boundary reset")
}

// Result is the outcome of one Render: either the child's view, or a
// recovery view and the captured failure.
type Result[T any] struct {
	View     T
	Recovery *RecoveryView
	Err      error
}

// Failed reports whether the recovery view replaced the child's view.
func (r Result[T]) Failed() bool { return r.Recovery != nil }

// Render runs child under b. While b is Failed the child is not invoked.
// Panics never escape, except http.ErrAbortHandler, which is re-raised so
// the server aborts the response.
func Render[T any](ctx context.Context, b *Boundary, child func(ctx context.Context) (T, error)) Result[T] {
	if view, err := b.current(); view != nil {
		return Result[T]{Recovery: view, Err: err}
	}

	view, stack, err := run(ctx, child, b.cfg.Component)
	if err == nil {
		return Result[T]{View: view}
	}
	recovery, captured := b.fail(ctx, err, stack)
	return Result[T]{Recovery: recovery, Err: captured}
}

func run[T any](ctx context.Context, child func(context.Context) (T, error), component string) (view T, componentStack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				panic(r)
			}
			err = usecase.RecoveredError(r)
			componentStack = string(debug.Stack())
		}
	}()

	view, err = child(ctx)
	if err != nil {
		componentStack = "    in " + component
	}
	return view, componentStack, err
}

func (b *Boundary) current() (*RecoveryView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.HasFailed {
		return nil, nil
	}
	return b.viewLocked(), b.state.Err
}

// fail moves the boundary to Failed and reports the failure. If a concurrent
// render got there first, its failure stands and nothing is reported.
func (b *Boundary) fail(ctx context.Context, err error, stack string) (*RecoveryView, error) {
	b.mu.Lock()
	if b.state.HasFailed {
		view, captured := b.viewLocked(), b.state.Err
		b.mu.Unlock()
		return view, captured
	}
	b.state = State{HasFailed: true, Err: err, Info: &Info{ComponentStack: stack}}
	view := b.viewLocked()
	b.mu.Unlock()

	b.report(ctx, err, stack)
	return view, err
}

func (b *Boundary) viewLocked() *RecoveryView {
	if b.cfg.Fallback != nil {
		if v := b.cfg.Fallback(b.state.Err); v != nil {
			return v
		}
	}
	return selectView(b.cfg, b.state)
}

func (b *Boundary) report(ctx context.Context, err error, stack string) {
	b.logger.Error("render failure captured", "error", err, "route", b.routeName())
	if b.reporter == nil {
		return
	}

	env := usecase.EnvironmentFrom(ctx)
	fields := domain.Fields{
		Component: b.cfg.Component,
		Action:    renderAction,
		Extra: map[string]any{
			"componentStack": stack,
			"capturedAt":     b.now().UTC().Format(time.RFC3339Nano),
			"userAgent":      env.UserAgent,
			"url":            env.URL,
		},
	}
	b.reporter.Log(ctx, err, fields, b.route()...)
}

// route maps LogLevel to channels. The localStorage route goes through the
// API so that failed deliveries land in the store; when neither the boundary
// nor the logger has an endpoint it writes to the store directly.
func (b *Boundary) route() []usecase.LogOption {
	switch b.cfg.LogLevel {
	case LevelConsole:
		return []usecase.LogOption{usecase.OnlyChannels(usecase.ChannelConsole)}
	case LevelLocalStorage:
		return []usecase.LogOption{
			usecase.OnlyChannels(usecase.ChannelAPI),
			usecase.WithEndpoint(b.cfg.Endpoint),
			usecase.StoreWhenUnroutable(),
		}
	default:
		return []usecase.LogOption{usecase.OnlyChannels(usecase.ChannelConsole, usecase.ChannelAPI), usecase.WithEndpoint(b.cfg.Endpoint)}
	}
}

func (b *Boundary) routeName() string {
	switch b.cfg.LogLevel {
	case LevelConsole, LevelLocalStorage:
		return b.cfg.LogLevel
	default:
		return fmt.Sprintf("default(%s)", b.cfg.LogLevel)
	}
}
