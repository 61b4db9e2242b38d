package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/calmcall/calmcall/internal/adapters/gemini"
	"github.com/calmcall/calmcall/internal/adapters/heygen"
	router "github.com/calmcall/calmcall/internal/adapters/http"
	signaladapter "github.com/calmcall/calmcall/internal/adapters/signal"
	"github.com/calmcall/calmcall/internal/app"
	"github.com/calmcall/calmcall/internal/config"
	"github.com/calmcall/calmcall/internal/uploads"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := uploads.NewStore(cfg.UploadsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare uploads dir")
	}

	rooms := app.NewRooms(cfg.MaxRoomSize)
	registry := app.NewRegistry()
	relay := app.NewRelay(rooms, registry)

	orch := &app.Orchestrator{
		Registry:  registry,
		Rooms:     rooms,
		Relay:     relay,
		Completer: gemini.NewClient(cfg.Gemini),
		Avatar:    heygen.NewClient(cfg.HeyGen),
	}

	ctl := signaladapter.NewController(orch, store, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, ctl, store)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("calmcall server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
