package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"subsidy-engine/internal/config"
	"subsidy-engine/internal/engine"
	"subsidy-engine/internal/handler"
	"subsidy-engine/internal/logging"
	"subsidy-engine/internal/plans"
	"subsidy-engine/internal/policy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("subsidy engine stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := policy.NewRegistry(policy.Options{
		Dir:         cfg.Policy.Dir,
		RemoteURL:   cfg.Policy.RegistryURL,
		Timeout:     cfg.Policy.RegistryTimeout,
		DefaultYear: cfg.Policy.DefaultYear,
	}, logger)
	if err != nil {
		return err
	}

	var (
		store  engine.PlanStore
		pinger handler.Pinger
	)
	if cfg.DatabasePath != "" {
		s, err := plans.Open(ctx, cfg.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		store, pinger = s, s
	} else {
		logger.Warn("DATABASE_PATH not set; estimates require an explicit benchmark premium")
	}

	h := handler.New(engine.New(registry, store, logger), pinger, logger, cfg.WriteTimeout)
	server := &fasthttp.Server{
		Handler:      h.Handle,
		Name:         "subsidy-engine",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("subsidy engine starting", zap.String("port", cfg.Port))
		errc <- server.ListenAndServe(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}
