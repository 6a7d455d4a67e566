package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Status is the lifecycle state of a mutation.
type Status int

const (
	Idle    Status = iota // Never executed, or Reset
	Pending               // Execute in progress
	Success               // Last attempt succeeded
	Error                 // Last attempt failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of one mutation attempt.
type Outcome struct {
	Status Status
	Err    error
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool {
	return o.Status == Success
}

// MutationConfig holds the remote operation of a mutation and its lifecycle
// hooks. V is the variables type passed to Execute, C the context value
// produced by OnMutate and handed to the later hooks.
type MutationConfig[V, C any] struct {
	// MutationFn performs the remote operation. Required.
	MutationFn func(ctx context.Context, vars V) error

	// OnMutate runs before MutationFn. An error skips MutationFn and goes
	// straight to OnError with the zero context.
	OnMutate func(ctx context.Context, vars V) (C, error)

	// OnError runs when OnMutate or MutationFn fails.
	OnError func(ctx context.Context, err error, vars V, mctx C)

	// OnSuccess runs when MutationFn succeeds.
	OnSuccess func(ctx context.Context, vars V, mctx C)

	// OnSettled runs last, after OnError or OnSuccess.
	OnSettled func(ctx context.Context, err error, vars V, mctx C)
}

// MergeConfig returns defaults with every hook set in override replacing
// the default one. MutationFn always comes from defaults.
func MergeConfig[V, C any](defaults, override MutationConfig[V, C]) MutationConfig[V, C] {
	merged := defaults
	if override.OnMutate != nil {
		merged.OnMutate = override.OnMutate
	}
	if override.OnError != nil {
		merged.OnError = override.OnError
	}
	if override.OnSuccess != nil {
		merged.OnSuccess = override.OnSuccess
	}
	if override.OnSettled != nil {
		merged.OnSettled = override.OnSettled
	}
	return merged
}

// MutationInfo describes a mutation to middleware.
type MutationInfo struct {
	// Name identifies the mutation, e.g. "delete-comment".
	Name string

	// Key is the cache key the mutation works on, if any.
	Key Key
}

// Middleware wraps the execution of a mutation attempt.
type Middleware interface {
	Handle(ctx context.Context, info MutationInfo, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, info MutationInfo, next func(context.Context) error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, info MutationInfo, next func(context.Context) error) error {
	return f(ctx, info, next)
}

// KeyLocker serializes work per key. *Client implements it.
type KeyLocker interface {
	LockKey(ctx context.Context, key Key) (unlock func(), err error)
}

// MutationOption configures a Mutation.
type MutationOption func(*mutationOptions)

type mutationOptions struct {
	key        Key
	locker     KeyLocker
	middleware []Middleware
	logger     *slog.Logger
}

// WithKey records the cache key the mutation works on. It is reported to
// middleware and used by WithSerialExecution.
func WithKey(key Key) MutationOption {
	return func(o *mutationOptions) {
		o.key = key.clone()
	}
}

// WithSerialExecution makes attempts that share the mutation's key run one
// after another, across every mutation using the same locker.
func WithSerialExecution(locker KeyLocker) MutationOption {
	return func(o *mutationOptions) {
		o.locker = locker
	}
}

// WithMiddleware appends middleware. The first one added is the outermost.
func WithMiddleware(mw ...Middleware) MutationOption {
	return func(o *mutationOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithMutationLogger sets the logger for mutation diagnostics.
func WithMutationLogger(logger *slog.Logger) MutationOption {
	return func(o *mutationOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Mutation runs a remote operation with optimistic lifecycle hooks.
type Mutation[V, C any] struct {
	name string
	cfg  MutationConfig[V, C]
	opts mutationOptions

	mu     sync.Mutex
	status Status
	err    error
}

// NewMutation creates a Mutation. It panics if cfg.MutationFn is nil.
func NewMutation[V, C any](name string, cfg MutationConfig[V, C], opts ...MutationOption) *Mutation[V, C] {
	if cfg.MutationFn == nil {
		panic("query: MutationFn is required for mutation " + name)
	}
	o := mutationOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mutation[V, C]{
		name: name,
		cfg:  cfg,
		opts: o,
	}
}

// Name returns the mutation name.
func (m *Mutation[V, C]) Name() string {
	return m.name
}

// Status returns the state of the latest attempt.
func (m *Mutation[V, C]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Err returns the error of the latest attempt, if it failed.
func (m *Mutation[V, C]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reset returns the mutation to Idle.
func (m *Mutation[V, C]) Reset() {
	m.mu.Lock()
	m.status = Idle
	m.err = nil
	m.mu.Unlock()
}

// Execute runs one attempt with vars. Failures are reported in the Outcome
// and through OnError; they are never panics.
func (m *Mutation[V, C]) Execute(ctx context.Context, vars V) Outcome {
	if m.opts.locker != nil {
		unlock, err := m.opts.locker.LockKey(ctx, m.opts.key)
		if err != nil {
			m.finish(err)
			return Outcome{Status: Error, Err: err}
		}
		defer unlock()
	}

	m.mu.Lock()
	m.status = Pending
	m.err = nil
	m.mu.Unlock()

	info := MutationInfo{Name: m.name, Key: m.opts.key}
	run := func(ctx context.Context) error {
		return m.run(ctx, vars)
	}
	for i := len(m.opts.middleware) - 1; i >= 0; i-- {
		mw, next := m.opts.middleware[i], run
		run = func(ctx context.Context) error {
			return mw.Handle(ctx, info, next)
		}
	}

	err := run(ctx)
	m.finish(err)
	if err != nil {
		return Outcome{Status: Error, Err: err}
	}
	return Outcome{Status: Success}
}

func (m *Mutation[V, C]) run(ctx context.Context, vars V) error {
	var mctx C
	var err error
	if m.cfg.OnMutate != nil {
		mctx, err = m.cfg.OnMutate(ctx, vars)
		if err != nil {
			var zero C
			mctx = zero
		}
	}
	if err == nil {
		err = m.cfg.MutationFn(ctx, vars)
	}

	if err != nil {
		m.opts.logger.Debug("query: mutation failed", "mutation", m.name, "key", m.opts.key.String(), "error", err)
		if m.cfg.OnError != nil {
			m.cfg.OnError(ctx, err, vars, mctx)
		}
	} else if m.cfg.OnSuccess != nil {
		m.cfg.OnSuccess(ctx, vars, mctx)
	}

	if m.cfg.OnSettled != nil {
		m.cfg.OnSettled(ctx, err, vars, mctx)
	}
	return err
}

func (m *Mutation[V, C]) finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.status = Error
		m.err = err
		return
	}
	m.status = Success
	m.err = nil
}
