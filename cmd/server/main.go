package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/api"
	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/metrics"
	"github.com/david/bill-finder/internal/storage"
	"github.com/david/bill-finder/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer logr.Sync()
	zap.ReplaceGlobals(logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		DatabaseURL:   cfg.Storage.DatabaseURL,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		Log:           logr,
	})
	if err != nil {
		logr.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer kv.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	backend, details := workspace.NewBackend(cfg)
	mgr := workspace.NewManager(workspace.Deps{
		KV:      kv,
		Backend: backend,
		Timeout: cfg.Search.Timeout,
		PerPage: cfg.Search.PerPage,
		Log:     logr,
		Metrics: collector,
	})

	if cfg.Auth.JWTSecret == "" {
		logr.Warn("JWT_SECRET is not set; all requests share the local workspace")
	}

	srv := api.NewServer(mgr, details, api.Options{JWTSecret: cfg.Auth.JWTSecret, Gatherer: reg}, logr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Search.Backend), zap.String("storage", cfg.Storage.Driver))
	if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("Server stopped", zap.Error(err))
	}
}
