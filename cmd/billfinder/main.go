package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/storage"
	"github.com/david/bill-finder/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default $BILLFINDER_CONFIG or ./config.yaml)")
	query := flag.String("query", "", "Run one search, print the results and exit")
	backend := flag.String("backend", "", "Override search backend: service or llm")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Search.Backend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		DatabaseURL:   cfg.Storage.DatabaseURL,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		Log:           log,
	})
	if err != nil {
		log.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer kv.Close()

	searchBackend, details := workspace.NewBackend(cfg)
	ws := workspace.Open(ctx, workspace.Deps{
		KV:      kv,
		Backend: searchBackend,
		Timeout: cfg.Search.Timeout,
		PerPage: cfg.Search.PerPage,
		Log:     log,
	}, uuid.Nil)

	topics, err := config.LoadTopics()
	if err != nil {
		log.Warn("topic shortcuts unavailable", zap.Error(err))
	}

	r := &repl{
		ws:      ws,
		details: details,
		topics:  topics,
		out:     os.Stdout,
	}

	if *query != "" {
		r.exec(ctx, "search "+*query)
		return
	}
	r.run(ctx, os.Stdin)
}
