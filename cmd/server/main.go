package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"
	"github.com/leonardodevbr/siscondi-sub000/internal/router"
	"github.com/leonardodevbr/siscondi-sub000/internal/service"
	"github.com/leonardodevbr/siscondi-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One circuit breaker shared by all payment providers.
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	gateways := gateway.NewFactory(cfg, cb)

	// Async workers: best-effort provider cancels plus the PIX expiry sweep.
	worker.StartWorkerPool(ctx, rdb, gateways, cfg.WorkerPoolSize)

	reconcileSvc := service.NewReconcileService(
		repository.NewSaleRepository(db),
		repository.NewShiftRepository(db),
		repository.NewInventoryRepository(db),
		repository.NewCatalogRepository(db),
		repository.NewChargeRepository(db),
	)
	worker.StartExpiryCron(ctx, worker.ExpiryCronConfig{
		Reconciler: reconcileSvc,
		Dispatcher: worker.NewDispatcher(rdb),
		ChargeTTL:  time.Duration(cfg.PixChargeTTLMin) * time.Minute,
	})

	r := router.New(cfg, db, rdb, cb)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("transaction engine listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
