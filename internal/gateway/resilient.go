package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scout/pkg/platform/circuit"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// Resilient decorates a Gateway with bounded exponential-backoff retries of
// retryable errors and a circuit breaker. Permanent errors are returned
// immediately and do not count against the breaker. Each attempt gets its
// own timeout; only the caller's context ends the retry loop early.
type Resilient struct {
	next           Gateway
	breaker        *circuit.Breaker
	maxAttempts    int
	attemptTimeout time.Duration
	baseDelay      time.Duration
	maxDelay       time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
	metrics        *Metrics
	tracer         trace.Tracer
}

// ResilientOption configures a Resilient gateway.
type ResilientOption func(*Resilient)

// WithMaxAttempts bounds the number of attempts per call, the first one
// included. Values below 1 are ignored.
func WithMaxAttempts(n int) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds every individual attempt. An attempt that runs
// out of time is a retryable timeout. Zero leaves attempts bounded by the
// caller's context only.
func WithAttemptTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

// WithBackoff sets the first retry delay and the cap on any single delay.
func WithBackoff(base, maxDelay time.Duration) ResilientOption {
	return func(r *Resilient) {
		r.baseDelay = base
		r.maxDelay = maxDelay
	}
}

// WithSleep replaces the backoff wait. Tests use it to avoid real sleeps.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ResilientOption {
	return func(r *Resilient) {
		r.sleep = sleep
	}
}

func WithBreaker(b *circuit.Breaker) ResilientOption {
	return func(r *Resilient) {
		r.breaker = b
	}
}

func WithLogger(logger *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) ResilientOption {
	return func(r *Resilient) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) ResilientOption {
	return func(r *Resilient) {
		r.tracer = t
	}
}

// NewResilient wraps next.
func NewResilient(next Gateway, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:        next,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       sleepContext,
		logger:      slog.Default(),
		tracer:      otel.Tracer("scout/gateway"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("gateway")
	}
	return r
}

// Budget is the longest one call can take with every attempt timing out and
// every backoff waited in full. Zero means attempts are unbounded.
func (r *Resilient) Budget() time.Duration {
	if r.attemptTimeout <= 0 {
		return 0
	}
	total := time.Duration(r.maxAttempts) * r.attemptTimeout
	for attempt := 1; attempt < r.maxAttempts; attempt++ {
		total += r.backoff(attempt)
	}
	return total
}

func (r *Resilient) Submit(ctx context.Context, spec JobSpec) (JobRef, error) {
	var ref JobRef
	err := r.do(ctx, "submit", []attribute.KeyValue{attribute.String("search.id", spec.SearchID)},
		func(ctx context.Context) error {
			var err error
			ref, err = r.next.Submit(ctx, spec)
			return err
		})
	return ref, err
}

func (r *Resilient) Fetch(ctx context.Context, ref JobRef) (*FetchResult, error) {
	var result *FetchResult
	err := r.do(ctx, "fetch", []attribute.KeyValue{attribute.String("gateway.job_ref", ref.String())},
		func(ctx context.Context) error {
			var err error
			result, err = r.next.Fetch(ctx, ref)
			return err
		})
	return result, err
}

func (r *Resilient) Cancel(ctx context.Context, ref JobRef) error {
	return r.do(ctx, "cancel", []attribute.KeyValue{attribute.String("gateway.job_ref", ref.String())},
		func(ctx context.Context) error {
			return r.next.Cancel(ctx, ref)
		})
}

func (r *Resilient) do(ctx context.Context, op string, attrs []attribute.KeyValue, call func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attrs...))
	defer span.End()

	var err error
	attempt := 0
	for attempt < r.maxAttempts {
		if !r.breaker.Allow() {
			err = &GatewayError{
				Category:   CategoryUnavailable,
				Op:         op,
				Message:    "circuit open, call not attempted",
				Underlying: ErrCircuitOpen,
			}
			break
		}

		attempt++
		start := time.Now()
		err = r.attempt(ctx, op, call)
		r.metrics.ObserveAttempt(op, time.Since(start))
		if err == nil {
			r.recordSuccess(ctx)
			span.SetAttributes(attribute.Int("gateway.attempts", attempt))
			r.metrics.IncrementCall(op, "ok")
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			break
		}
		r.recordFailure(ctx)

		if !IsRetryable(err) || attempt >= r.maxAttempts {
			break
		}
		delay := r.backoff(attempt)
		r.metrics.IncrementRetry(op)
		r.logger.WarnContext(ctx, "retrying provider call",
			"op", op,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			err = NewError(CategoryUnavailable, op, "retry wait interrupted", sleepErr)
			break
		}
	}

	if IsRetryable(err) && CategoryOf(err) != CategoryUnavailable {
		msg := "retries exhausted"
		if ctx.Err() != nil {
			msg = "call interrupted"
		}
		err = NewError(CategoryUnavailable, op, msg, err)
	}
	span.SetAttributes(attribute.Int("gateway.attempts", attempt))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.metrics.IncrementCall(op, string(CategoryOf(err)))
	return err
}

// attempt runs call under the per-attempt timeout. A bare context error
// caused by that timeout, rather than by the caller, becomes a retryable
// timeout.
func (r *Resilient) attempt(ctx context.Context, op string, call func(context.Context) error) error {
	if r.attemptTimeout <= 0 {
		return call(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	err := call(attemptCtx)
	if err == nil || ctx.Err() != nil || attemptCtx.Err() == nil {
		return err
	}
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return NewError(CategoryTimeout, op, "attempt timed out", err)
	}
	return err
}

// backoff doubles from baseDelay per attempt, capped at maxDelay.
func (r *Resilient) backoff(attempt int) time.Duration {
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.maxDelay {
			return r.maxDelay
		}
	}
	return min(delay, r.maxDelay)
}

func (r *Resilient) recordSuccess(ctx context.Context) {
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.SetCircuitOpen(false)
		r.logger.InfoContext(ctx, "provider circuit closed", "breaker", r.breaker.Name())
	}
}

func (r *Resilient) recordFailure(ctx context.Context) {
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.metrics.SetCircuitOpen(true)
		r.logger.WarnContext(ctx, "provider circuit opened", "breaker", r.breaker.Name())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
