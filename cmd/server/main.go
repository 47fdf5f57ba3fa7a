package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"markers/internal/audit"
	"markers/internal/custody"
	"markers/internal/marker"
	"markers/internal/marker/address"
	markerhandler "markers/internal/marker/handler"
	markermetrics "markers/internal/marker/metrics"
	"markers/internal/marker/service"
	"markers/internal/platform/config"
	"markers/internal/platform/httpserver"
	"markers/internal/platform/kafka"
	"markers/internal/platform/logger"
	"markers/internal/platform/metrics"
	"markers/internal/platform/postgres"
	redisplatform "markers/internal/platform/redis"
	"markers/internal/ratelimit"
	"markers/internal/signer"
	httptransport "markers/internal/transport/http"
	"markers/pkg/domain"
	"markers/pkg/platform/circuit"
)

const (
	auditBuffer        = 1024
	auditProbeInterval = 30 * time.Second
)

// main wires dependencies, exposes the HTTP router and runs the server and the
// audit worker until a termination signal arrives.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "markers: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	programID, err := domain.ParseKey(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("parse program id: %w", err)
	}

	res, checks, closeAll, err := openResources(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAll()

	backend, err := marker.SelectBackend(cfg.Store, res.Resources, cfg.TxTimeout)
	if err != nil {
		return err
	}

	// Burns that cannot join the store's transaction are restored by the
	// backend when the operation aborts.
	var ledger service.Custody = custody.NewInMemoryLedger()
	if res.DB != nil {
		ledger = custody.NewPostgresLedger(res.DB)
	}

	var sink audit.Sink
	var worker *audit.AsyncSink
	if res.Kafka != nil {
		if err := kafka.EnsureTopic(ctx, res.Kafka, cfg.Kafka.Topic); err != nil {
			return fmt.Errorf("ensure audit topic: %w", err)
		}
		kafkaSink := audit.NewBreakerSink(audit.NewKafkaSink(res.Kafka, cfg.Kafka.Topic),
			circuit.New("kafka-audit"), auditProbeInterval, log)
		worker = audit.NewAsyncSink(kafkaSink, auditBuffer, log)
		sink = worker
	}

	svc, err := service.New(backend.Store, backend.Tx, ledger, address.NewDeriver(programID),
		service.WithLogger(log),
		service.WithAuditPublisher(audit.NewPublisher(sink, log)),
		service.WithMetrics(markermetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("build marker service: %w", err)
	}

	var replay signer.ReplayGuard = signer.NewInMemoryReplayGuard()
	if res.Redis != nil {
		replay = signer.NewRedisReplayGuard(res.Redis)
	}
	verifier := signer.NewVerifier(cfg.Signer.Audience, cfg.Signer.MaxAge, signer.WithReplayGuard(replay))

	handlerOpts := []markerhandler.Option{markerhandler.WithTrustedProxies(cfg.TrustedProxies)}
	var limiter *ratelimit.Middleware
	if cfg.RateLimit.Requests > 0 {
		limiter = ratelimit.New(ratelimit.NewWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window), log)
		handlerOpts = append(handlerOpts, markerhandler.WithRateLimit(limiter.Handler))
	}

	handler := markerhandler.New(svc, verifier, log, metrics.New(), handlerOpts...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(checks, handler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting markers", "addr", cfg.Addr, "store", cfg.Store, "program_id", programID.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}
	if limiter != nil {
		g.Go(func() error { return limiter.RunSweeper(gctx, cfg.RateLimit.Window) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type resources struct {
	marker.Resources
	Kafka *kgo.Client
}

// openResources connects every configured dependency and returns a health
// check per connection and a function that closes them all.
func openResources(ctx context.Context, cfg config.Server, log *slog.Logger) (resources, map[string]httptransport.HealthCheck, func(), error) {
	var (
		res     resources
		closers []func()
		checks  = make(map[string]httptransport.HealthCheck)
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return res, nil, func() {}, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			closeAll()
			return res, nil, func() {}, err
		}
		res.DB = db
		checks["postgres"] = db.PingContext
		log.Info("postgres connected")
	}

	if cfg.Redis.URL != "" {
		client, err := redisplatform.New(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return res, nil, func() {}, err
		}
		closers = append(closers, func() { _ = client.Close() })
		res.Redis = client.Client
		checks["redis"] = client.Health
		log.Info("redis connected")
	}

	client, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		closeAll()
		return res, nil, func() {}, err
	}
	if client != nil {
		closers = append(closers, client.Close)
		res.Kafka = client
		checks["kafka"] = client.Ping
		log.Info("kafka connected", "topic", cfg.Kafka.Topic)
	}

	return res, checks, closeAll, nil
}
