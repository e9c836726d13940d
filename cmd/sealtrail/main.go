package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sealtrail/internal/config"
	"sealtrail/internal/domain"
	"sealtrail/internal/infra/artifactfs"
	"sealtrail/internal/infra/db"
	"sealtrail/internal/infra/generation"
	httpinfra "sealtrail/internal/infra/http"
	"sealtrail/internal/infra/logmem"
	"sealtrail/internal/infra/metrics"
	"sealtrail/internal/infra/policyopa"
	"sealtrail/internal/infra/ratelimit"
	"sealtrail/internal/infra/sessionmem"
	"sealtrail/internal/ledger"
	"sealtrail/internal/logging"
	"sealtrail/internal/usecase"
)

var (
	version = "dev"
	commit  = "unknown"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv("SEALTRAIL_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.NewJSONLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := db.NewStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		proofs domain.ProofRepository
		audits usecase.AuditEventRepository
	)
	if store.Enabled() {
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migrations_applied")
		}
		proofs = db.NewProofRepository(store.DB)
		audits = db.NewAuditEventRepository(store.DB)
	} else {
		mem := logmem.New()
		proofs, audits = mem, mem
	}

	artifacts, err := artifactfs.New(cfg.ArtifactDir)
	if err != nil {
		return err
	}

	sessions := sessionmem.New(sessionmem.Config{TTL: cfg.SessionTTL})
	svc := &usecase.SealingService{
		Sessions:  sessions,
		Finalizer: ledger.Finalizer{},
		Proofs:    proofs,
		Artifacts: artifacts,
		Audit:     usecase.NewAuditEmitter(audits, nil),
		Logger:    logger,
		Generation: usecase.GenerationDefaults{
			Model:             cfg.GenerationModel,
			Steps:             cfg.GenerationDefaultSteps,
			Seed:              cfg.GenerationDefaultSeed,
			BaseImageStrength: generation.DefaultBaseImageStrength,
		},
	}

	if cfg.GenerationEnabled() {
		client, err := generation.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		svc.Generator = client
	} else {
		logger.Warn("TOGETHER_API_KEY not set; generation disabled")
	}

	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			return err
		}
		svc.Policy = engine
		logger.Info("policy_loaded", "bundle_id", engine.BundleID(), "bundle_hash", engine.BundleHash())
	}

	deps := httpinfra.ServerDeps{
		Service:     svc,
		Logger:      logger,
		Environment: logging.Environment{Service: "sealtrail", Version: version, Commit: commit},
		Store:       store,
	}

	if cfg.MetricsEnabled {
		recorder := metrics.NewRecorder()
		svc.Metrics = recorder
		deps.Metrics = recorder.Handler()
	}

	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			return err
		}
		defer limiter.Close()
		deps.RateLimiter = limiter
	} else {
		deps.RateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
	}

	srv := httpinfra.NewServerWithDeps(cfg, deps)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweepSessions(ctx, sessions, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", cfg.HTTPAddr, "db", store.Enabled())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, sessions *sessionmem.Registry, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Info("sessions_expired", "count", n)
			}
		}
	}
}
