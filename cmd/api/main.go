package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safar/go-pos-store/internal/audit"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/config"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/export"
	"github.com/safar/go-pos-store/internal/finance"
	"github.com/safar/go-pos-store/internal/httpapi"
	"github.com/safar/go-pos-store/internal/inventory"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/sales"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/safar/go-pos-store/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Telemetry.ServiceName, cfg.Telemetry.Env, cfg.Telemetry.LogFile)
	if err != nil {
		log.Fatalf("Create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("init_tracer_failed", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("database_connect_failed", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database_connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "posstore"),
	)
	m := metrics.New(reg)

	pg := store.NewPostgres(db, cfg.Orders.MaxRetries)

	var sink audit.Sink = audit.NewStoreSink(pg)
	if cfg.Audit.Sink == config.AuditSinkLog {
		sink = audit.NewLogSink(logger)
	}
	dispatcher := audit.NewDispatcher(sink, cfg.Audit.QueueSize, cfg.Audit.WriteTimeout, logger, m)
	dispatcher.Start()

	if cfg.Telemetry.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:         auth.NewAuthenticator(pg, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Sales:        sales.NewService(pg, dispatcher, m, cfg.Orders.CommitMode == config.CommitModeTransactional),
		Inventory:    inventory.NewService(pg, dispatcher),
		Finance:      finance.NewService(pg, dispatcher),
		Export:       export.NewService(pg),
		Health:       pg,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		ServiceName:  cfg.Telemetry.ServiceName,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server_starting",
			zap.String("port", cfg.Server.Port),
			zap.String("commit_mode", cfg.Orders.CommitMode),
			zap.String("audit_sink", cfg.Audit.Sink),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Error("audit_drain_failed", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer_shutdown_failed", zap.Error(err))
	}
}
