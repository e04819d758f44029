package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"dossierflow/internal/dossier/handler"
	dossiermetrics "dossierflow/internal/dossier/metrics"
	"dossierflow/internal/dossier/service"
	"dossierflow/internal/dossier/store"
	"dossierflow/internal/events"
	"dossierflow/internal/notify"
	"dossierflow/internal/outbox"
	"dossierflow/internal/platform/config"
	"dossierflow/internal/platform/httpserver"
	"dossierflow/internal/platform/logger"
	"dossierflow/internal/platform/metrics"
	platformredis "dossierflow/internal/platform/redis"
	"dossierflow/internal/product"
	actormw "dossierflow/pkg/platform/middleware/actor"

	_ "github.com/lib/pq"
)

// main wires dependencies and runs the HTTP server alongside the outbox
// dispatcher. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dossierStore, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	feeds, closeFeeds, err := newFeedStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeFeeds()

	appMetrics := dossiermetrics.New()
	svc := service.New(dossierStore, product.NewStaticRegistry(),
		service.WithLogger(log),
		service.WithMetrics(appMetrics),
	)

	sinks := []outbox.Sink{notify.NewNotifier(feeds, dossierStore, log)}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info("kafka sink enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	dispatcher := outbox.New(dossierStore, sinks,
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(appMetrics),
	)

	resolver := actormw.NewResolver(cfg.Server.JWTSigningKey)
	httpMetrics := metrics.New()

	router := chi.NewRouter()
	router.Use(httpMetrics.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	handler.New(svc, feeds, resolver, log).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting dossierflow", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := dispatcher.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// dossierStore is the full persistence surface main wires: the aggregate
// store for the service plus the outbox side for the dispatcher.
type dossierStore interface {
	service.DossierStore
	outbox.Store
}

// newStore selects the dossier store. A configured database URL means
// Postgres; otherwise the in-memory store backs local development.
func newStore(ctx context.Context, cfg config.Config, log *slog.Logger) (dossierStore, func(), error) {
	if cfg.DB.URL == "" {
		log.Warn("no database configured, using in-memory store")
		return store.NewInMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("connected to postgres")
	return store.NewPostgres(db), func() { db.Close() }, nil
}

// newFeedStore selects the notification feed store. A configured Redis URL
// means durable per-user feeds; otherwise feeds stay in process memory.
func newFeedStore(cfg config.Config, log *slog.Logger) (notify.FeedStore, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("no redis configured, using in-memory notification feeds")
		return notify.NewInMemoryFeed(200), func() {}, nil
	}
	log.Info("connected to redis")
	return notify.NewRedisFeed(client.Client), func() { client.Close() }, nil
}
