package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	candhandler "scout/internal/candidate/handler"
	candmetrics "scout/internal/candidate/metrics"
	candservice "scout/internal/candidate/service"
	candstore "scout/internal/candidate/store"
	"scout/internal/events"
	"scout/internal/gateway"
	"scout/internal/gateway/simulated"
	"scout/internal/gateway/websets"
	"scout/internal/platform/config"
	"scout/internal/platform/metrics"
	"scout/internal/platform/postgres"
	platformredis "scout/internal/platform/redis"
	searchhandler "scout/internal/search/handler"
	searchmetrics "scout/internal/search/metrics"
	"scout/internal/search/models"
	"scout/internal/search/poller"
	searchservice "scout/internal/search/service"
	searchstore "scout/internal/search/store"
	httptransport "scout/internal/transport/http"
	"scout/pkg/platform/circuit"
)

const (
	eventTopicPartitions  = 3
	eventTopicReplication = 1
)

// appMetrics are registered once per process on the default registry.
type appMetrics struct {
	http      *metrics.Metrics
	gateway   *gateway.Metrics
	search    *searchmetrics.Metrics
	candidate *candmetrics.Metrics
}

var loadMetrics = sync.OnceValue(func() *appMetrics {
	return &appMetrics{
		http:      metrics.New(),
		gateway:   gateway.NewMetrics(),
		search:    searchmetrics.New(),
		candidate: candmetrics.New(),
	}
})

// application is the wired service: HTTP router, background poller and the
// resources to release on shutdown.
type application struct {
	router  http.Handler
	poller  *poller.Poller
	search  *searchservice.Service
	closers []func(context.Context) error

	// longest a provider operation may run, retries included
	callBudget time.Duration
}

type stores struct {
	searches   searchservice.SearchStore
	candidates interface {
		searchservice.CandidateStore
		candservice.CandidateStore
	}
}

func newApplication(ctx context.Context, cfg config.Config, log *slog.Logger) (*application, error) {
	m := loadMetrics()
	a := &application{}

	st, err := a.openStores(ctx, cfg, m, log)
	if err != nil {
		a.close(ctx, log)
		return nil, err
	}
	publisher, err := a.openPublisher(ctx, cfg, log)
	if err != nil {
		a.close(ctx, log)
		return nil, err
	}

	gw := gateway.NewResilient(newProvider(cfg, log),
		gateway.WithMaxAttempts(cfg.Exa.MaxRetries),
		gateway.WithAttemptTimeout(cfg.Exa.CallTimeout),
		gateway.WithBreaker(circuit.New("search-provider")),
		gateway.WithLogger(log),
		gateway.WithMetrics(m.gateway),
	)

	a.callBudget = gw.Budget()
	a.search = searchservice.New(st.searches, st.candidates, gw,
		searchservice.Config{
			CountPolicy: models.CountPolicy{Default: cfg.Search.DefaultCount, Max: cfg.Search.MaxCount},
			Timeout:     cfg.Exa.Timeout,
			CallTimeout: a.callBudget,
		},
		searchservice.WithLogger(log),
		searchservice.WithMetrics(m.search),
		searchservice.WithPublisher(publisher),
	)
	candidates := candservice.New(st.candidates, candservice.WithLogger(log))

	a.router = httptransport.NewRouter(httptransport.RouterConfig{
		Version:     version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
		Metrics:     m.http,
	},
		searchhandler.New(a.search, log),
		candhandler.New(candidates, log),
	)
	a.poller = poller.New(a.search,
		poller.WithInterval(cfg.Exa.CheckInterval),
		poller.WithConcurrency(cfg.Search.PollerConcurrency),
		poller.WithLogger(log),
		poller.WithMetrics(m.search),
	)
	return a, nil
}

func (a *application) openStores(ctx context.Context, cfg config.Config, m *appMetrics, log *slog.Logger) (*stores, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		log.InfoContext(ctx, "using redis storage")
		return &stores{
			searches:   searchstore.NewRedis(client.Client),
			candidates: candstore.NewRedis(client.Client, m.candidate),
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		searches := searchstore.NewPostgres(db)
		if err := searches.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		candidates := candstore.NewPostgres(db, m.candidate)
		if err := candidates.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "using postgres storage")
		return &stores{searches: searches, candidates: candidates}, nil

	case config.BackendMemory:
		log.InfoContext(ctx, "using in-memory storage; data is lost on restart")
		return &stores{
			searches:   searchstore.NewInMemory(),
			candidates: candstore.NewInMemory(candstore.WithInMemoryMetrics(m.candidate)),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *application) openPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.Noop{}, nil
	}
	kp, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, events.WithKafkaLogger(log))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, kp.Close)
	if err := kp.EnsureTopic(ctx, eventTopicPartitions, eventTopicReplication); err != nil {
		log.WarnContext(ctx, "could not ensure event topic; publishing anyway",
			"topic", cfg.Kafka.Topic,
			"error", err,
		)
	}
	log.InfoContext(ctx, "publishing search events to kafka", "topic", cfg.Kafka.Topic)
	return kp, nil
}

func newProvider(cfg config.Config, log *slog.Logger) gateway.Gateway {
	if cfg.Exa.Provider == config.ProviderSimulated {
		log.Warn("serving generated results from the simulated search provider")
		return simulated.New()
	}
	return websets.New(cfg.Exa.APIKey, websets.WithBaseURL(cfg.Exa.BaseURL))
}

// close releases resources in reverse order of acquisition.
func (a *application) close(ctx context.Context, log *slog.Logger) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	err := errors.Join(errs...)
	if err != nil {
		log.ErrorContext(ctx, "failed to release resources", "error", err)
	}
	return err
}
