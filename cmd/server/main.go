package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saimali7/Tour-CRM-sub003/internal/cache"
	"github.com/saimali7/Tour-CRM-sub003/internal/config"
	"github.com/saimali7/Tour-CRM-sub003/internal/db"
	httpapi "github.com/saimali7/Tour-CRM-sub003/internal/http"
	"github.com/saimali7/Tour-CRM-sub003/internal/queue"
	"github.com/saimali7/Tour-CRM-sub003/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "tour-command-center").Logger()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to init schema")
	}

	params := service.Params{
		OrgID:                cfg.OrgID,
		Loc:                  loc,
		MaxVehicleCapacity:   cfg.MaxVehicleCapacity,
		DefaultPickupMinutes: cfg.DefaultPickupMinutes,
		PickupWindowMinutes:  cfg.PickupWindowMinutes,
		DriveBufferMinutes:   cfg.DriveBufferMinutes,
	}

	var publisher service.EventPublisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL, logger)
	} else {
		logger.Info().Msg("AMQP_URL not set, dispatch notifications disabled")
	}

	projCache := cache.New(cfg.RedisAddr, 30*time.Second, logger)

	center := &service.CommandCenter{Store: store, Publisher: publisher, Logger: logger, Params: params}
	ledger := &service.Ledger{Store: store, Params: params, Logger: logger}

	router := httpapi.Router(cfg, store, center, ledger, projCache, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
