package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yatri/internal/audit"
	"yatri/internal/identity/events"
	"yatri/internal/identity/handler"
	identitymetrics "yatri/internal/identity/metrics"
	"yatri/internal/identity/qr"
	"yatri/internal/identity/service"
	"yatri/internal/identity/store"
	"yatri/internal/ledger"
	"yatri/internal/platform/config"
	"yatri/internal/platform/database"
	"yatri/internal/platform/health"
	"yatri/internal/platform/kafka/producer"
	"yatri/internal/platform/logger"
	platformredis "yatri/internal/platform/redis"
	requestmw "yatri/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing yatri registry",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ledger_enabled", cfg.Ledger.Enabled,
	)

	healthHandler := health.New(cfg.Environment)
	metrics := identitymetrics.New()

	// Storage backend is chosen at start: PostgreSQL when DATABASE_URL is
	// set, the file-mirrored store otherwise. Backends are never mixed.
	var (
		identityStore store.Store
		auditStore    audit.Store
	)
	pool, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		identityStore = store.NewPostgres(pool.DB(), metrics)
		auditStore = audit.NewPostgresStore(pool.DB())
		healthHandler.RegisterCheck("database", pool.HealthCheck)
		log.Info("using postgres identity store")
	} else {
		fileStore, err := store.NewFile(cfg.Identity.FilePath, log, metrics)
		if err != nil {
			log.Error("file store init failed", "path", cfg.Identity.FilePath, "error", err)
			os.Exit(1)
		}
		identityStore = fileStore
		auditStore = audit.NewInMemoryStore()
		log.Info("using file identity store", "path", cfg.Identity.FilePath)
	}

	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditor.Close()

	serviceOpts := []service.Option{
		service.WithAuditor(auditor),
		service.WithFastWrites(cfg.Ledger.Fast),
	}

	if cfg.Ledger.Enabled {
		var ledgerClient ledger.Client = ledger.NewHTTPClient(cfg.Ledger)
		ledgerClient = ledger.NewResilient(ledgerClient, log)

		if cfg.Redis.URL != "" {
			redisClient, err := platformredis.New(cfg.Redis)
			if err != nil {
				log.Error("redis connection failed", "error", err)
				os.Exit(1)
			}
			defer redisClient.Close()
			healthHandler.RegisterCheck("redis", redisClient.HealthCheck)
			ledgerClient = ledger.NewCached(ledgerClient, redisClient.Client, cfg.Ledger.CacheTTL, log)
			log.Info("anchor lookups cached in redis", "ttl", cfg.Ledger.CacheTTL)
		}
		serviceOpts = append(serviceOpts, service.WithLedger(ledgerClient))
		log.Info("ledger anchoring enabled", "endpoint", cfg.Ledger.Endpoint, "fast", cfg.Ledger.Fast)
	} else {
		log.Warn("ledger anchoring disabled; records stored locally only")
	}

	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err := producer.New(producer.Config{Brokers: cfg.Kafka.Brokers}, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kafkaProducer.HealthCheck(ctx)
		})
		emitter := events.NewEmitter(kafkaProducer, cfg.Kafka.AnchorTopic, log)
		serviceOpts = append(serviceOpts, service.WithEmitter(emitter))
		log.Info("anchor events enabled", "topic", cfg.Kafka.AnchorTopic)
	}

	identityService := service.NewService(identityStore, cfg.Ledger.Network, metrics, log, serviceOpts...)
	qrBuilder := qr.NewBuilder(identityStore, metrics, qr.WithAuditor(auditor), qr.WithLogger(log))
	identityHandler := handler.New(identityService, qrBuilder, log)

	router := chi.NewRouter()
	router.Use(requestmw.Recovery(log))
	router.Use(requestmw.RequestID)
	router.Use(requestmw.RequestTime)
	router.Use(requestmw.Logger(log))

	healthHandler.Register(router)
	identityHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
