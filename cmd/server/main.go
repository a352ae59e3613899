package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"chatapp/internal/config"
	"chatapp/internal/database"
	"chatapp/internal/handler"
	"chatapp/internal/logging"
	"chatapp/internal/presence"
	"chatapp/internal/registry"
	"chatapp/internal/relay"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.IsProduction(), os.Stderr)

	if envErr != nil {
		log.Warn().Err(envErr).Msg("⚠️  .env file not found, using default values")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// presence audit is optional; its writer outlives ctx so the final
	// disconnects are still recorded
	presenceCtx, stopPresence := context.WithCancel(context.Background())
	defer stopPresence()

	var recorder relay.Recorder
	presenceDone := make(chan struct{})
	if cfg.DatabaseEnabled() {
		db, err := database.Init(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize database")
		}
		defer db.Close()

		store := presence.NewStore(db)
		go func() {
			store.Run(presenceCtx)
			close(presenceDone)
		}()
		recorder = store
	} else {
		close(presenceDone)
	}

	rl := relay.New(registry.New(), relay.NewConnectionSet(), recorder)

	h, err := handler.New(cfg, rl)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load page template")
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     c.Handler(h.SetupRouter()),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	fmt.Println("========================================")
	fmt.Println("  Chat Relay Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws\n", cfg.ServerPort)
	if cfg.DatabaseEnabled() {
		fmt.Printf("  Presence DB: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Server started successfully")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	closed := rl.Connections().CloseAll()
	log.Info().Int("connections", closed).Msg("Closed WebSocket connections")

	for rl.Connections().Len() > 0 && shutdownCtx.Err() == nil {
		time.Sleep(50 * time.Millisecond)
	}
	stopPresence()

	select {
	case <-presenceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Presence writer did not finish before the shutdown timeout")
	}
	log.Info().Msg("Server stopped")
}
