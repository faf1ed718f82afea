package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"travel-platform/internal/audit"
	"travel-platform/internal/auth"
	"travel-platform/internal/config"
	"travel-platform/internal/payment"
	"travel-platform/internal/reporting"
	"travel-platform/internal/scheduler"
	"travel-platform/internal/settlement"
	"travel-platform/internal/wallet"
	"travel-platform/pkg/logger"
	"travel-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "travel-api")
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store := &settlement.PostgresStore{DB: db}
	cache := &wallet.RedisCacheSyncer{RDB: rdb, TTL: cfg.Wallet.BalanceCacheTTL}
	engine := settlement.NewEngine(store, cache)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	gateway := payment.NewGateway(cfg.Payment.WebhookSecret)
	reportingSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	jobs := scheduler.New(scheduler.NewRedisLocker(rdb, "scheduled_job:"))
	registerJobs(jobs, engine, cfg.Jobs)
	if cfg.Jobs.Enabled {
		jobs.Start(logger.With(rootCtx, log))
		defer jobs.Stop()
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		auth:      authManager,
		engine:    engine,
		gateway:   gateway,
		audit:     auditSvc,
		jobs:      jobs,
		reporting: reportingSvc,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// registerJobs wires the three settlement jobs. Lock names are shared across
// instances; whoever wins the lock runs the cycle.
func registerJobs(s *scheduler.Scheduler, engine *settlement.Engine, cfg config.JobsConfig) {
	s.Register(scheduler.Job{
		Name:     "travel_cashback_credit",
		LockName: "travel_cashback_credit",
		Interval: cfg.CreditInterval,
		LockTTL:  cfg.CreditLockTTL,
		Run: func(ctx context.Context) error {
			_, err := engine.CreditPendingCashback(ctx)
			return err
		},
	})
	s.Register(scheduler.Job{
		Name:     "travel_expire_unpaid",
		LockName: "travel_expire_unpaid",
		Interval: cfg.ExpireInterval,
		LockTTL:  cfg.ExpireLockTTL,
		Run: func(ctx context.Context) error {
			_, err := engine.ExpireUnpaidBookings(ctx)
			return err
		},
	})
	s.Register(scheduler.Job{
		Name:     "travel_mark_completed",
		LockName: "travel_mark_completed",
		Interval: cfg.CompleteInterval,
		LockTTL:  cfg.CompleteLockTTL,
		Run: func(ctx context.Context) error {
			_, err := engine.MarkCompletedBookings(ctx)
			return err
		},
	})
}
