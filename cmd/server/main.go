package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/repolink/repolink/internal/adapters/http"
	"github.com/repolink/repolink/internal/app"
	"github.com/repolink/repolink/internal/config"
	"github.com/repolink/repolink/internal/domain"
	"github.com/repolink/repolink/internal/github"
	"github.com/repolink/repolink/internal/store/memory"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	users := memory.NewUserStore()
	for token, seed := range cfg.Tokens {
		users.Put(token, domain.User{Handle: seed.Handle, Status: seed.Status})
	}

	queue := memory.NewSignalQueue()

	coord := &app.Coordinator{
		Registry:   app.NewRegistry(),
		Users:      users,
		Access:     github.NewVerifier(cfg.GitHubAPI, cfg.VerifyTimeout),
		RoomLog:    memory.NewRoomLog(),
		Policy:     app.DropPolicy{},
		ICEServers: []webrtc.ICEServer{{URLs: cfg.STUNServers}},
	}

	// Stale polling peers leave through the same path as a dropped
	// websocket.
	go queue.Sweep(ctx, cfg.SweepInterval, cfg.PollWindow, func(pid domain.PeerID) {
		coord.Evict(pid)
	})

	r := router.SetupRouter(ctx, cfg, coord, queue)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("RepoLink signaling server started")
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
