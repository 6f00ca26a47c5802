package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"supplytrace/internal/eventlog"
	identityhandler "supplytrace/internal/identity/handler"
	identitymetrics "supplytrace/internal/identity/metrics"
	identityservice "supplytrace/internal/identity/service"
	"supplytrace/internal/ledger/store"
	"supplytrace/internal/platform/config"
	"supplytrace/internal/platform/httpserver"
	"supplytrace/internal/platform/logger"
	"supplytrace/internal/platform/otel"
	producthandler "supplytrace/internal/product/handler"
	productmetrics "supplytrace/internal/product/metrics"
	productservice "supplytrace/internal/product/service"
	httptransport "supplytrace/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "supplytrace")
	if err != nil {
		log.Error("tracing setup", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error("tracing shutdown", "error", err)
		}
	}()

	var (
		ledger     store.Ledger
		eventStore eventlog.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ledger schema", "error", err)
			os.Exit(1)
		}
		events := eventlog.NewPostgresStore(db)
		if err := events.EnsureSchema(ctx); err != nil {
			log.Error("eventlog schema", "error", err)
			os.Exit(1)
		}
		ledger = pg
		eventStore = events
	} else {
		ledger = store.NewInMemory()
		eventStore = eventlog.NewInMemoryStore()
		log.Info("no database configured, ledger state is in-memory")
	}

	emitter := eventlog.NewEmitter(0, log)
	workerOpts := []eventlog.WorkerOption{eventlog.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		sink, err := eventlog.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		workerOpts = append(workerOpts, eventlog.WithSink(sink))
		log.Info("event publishing enabled", "topic", cfg.KafkaTopic)
	}
	worker := eventlog.NewWorker(eventStore, emitter.Inbox(), workerOpts...)

	identitySvc := identityservice.New(ledger, cfg.Admin,
		identityservice.WithLogger(log),
		identityservice.WithEmitter(emitter),
		identityservice.WithMetrics(identitymetrics.New()),
	)
	productSvc := productservice.New(ledger, cfg.Admin,
		productservice.WithLogger(log),
		productservice.WithEmitter(emitter),
		productservice.WithMetrics(productmetrics.New()),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Identity: identityhandler.New(identitySvc, log),
		Product:  producthandler.New(productSvc, log),
		Events:   eventStore,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting supplytrace", "addr", cfg.Addr, "admin", cfg.Admin.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
