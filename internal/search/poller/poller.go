// Package poller reconciles every non-terminal search on a fixed interval,
// so searches progress even when no client is polling them.
package poller

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"scout/internal/search/metrics"
	"scout/internal/search/models"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 4
)

// Reconciler is the part of the lifecycle manager the poller drives.
type Reconciler interface {
	ListActive(ctx context.Context) ([]*models.Search, error)
	Reconcile(ctx context.Context, id string) (*models.Search, error)
}

type Poller struct {
	reconciler  Reconciler
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithConcurrency bounds how many searches are reconciled at once.
func WithConcurrency(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

func New(reconciler Reconciler, opts ...Option) *Poller {
	p := &Poller{
		reconciler:  reconciler,
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks until ctx is cancelled. A failing tick is logged and the loop
// continues.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "search poller started",
		"interval", p.interval,
		"concurrency", p.concurrency,
	)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "search poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.ErrorContext(ctx, "search poller tick failed", "error", err)
			}
		}
	}
}

// Tick reconciles every active search once, at most concurrency at a time.
// One search failing to reconcile does not stop the others; only listing
// the active searches can fail the tick.
func (p *Poller) Tick(ctx context.Context) error {
	active, err := p.reconciler.ListActive(ctx)
	if err != nil {
		return err
	}
	p.metrics.SetActive(len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, search := range active {
		g.Go(func() error {
			if _, err := p.reconciler.Reconcile(gctx, search.ID); err != nil {
				p.logger.WarnContext(gctx, "failed to reconcile search",
					"search_id", search.ID,
					"error", err,
				)
			}
			return nil
		})
	}
	return g.Wait()
}
