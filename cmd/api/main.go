package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"broker-backend/internal/config"
	"broker-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}

	app, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	// Verify connections before accepting traffic.
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres handle unavailable")
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatal().Err(err).Msg("Postgres connection failed")
		}
		log.Info().Msg("Postgres connected")
	}
	if app.Rdb != nil {
		if err := app.Rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	if app.Lifecycle != nil {
		if err := app.Lifecycle.Start(); err != nil {
			log.Fatal().Err(err).Msg("Scheduler start failed")
		}
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		if app.Lifecycle != nil {
			app.Lifecycle.Stop()
		}
		_ = app.Fiber.Shutdown()
	}()

	log.Info().Str("port", cfg.Port).Msg("Server running")
	if err := app.Fiber.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
