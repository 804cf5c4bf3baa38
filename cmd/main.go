/*
Package main is the entry point for the chat server.

It is responsible for loading configuration, initializing the global logging system,
wiring the registry, message log, hub and session controller, serving HTTP, and
gracefully handling operating system interrupt signals (SIGINT, SIGTERM).
*/
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

	"livechat/internal/app/chat"
	"livechat/internal/configs"
	"livechat/internal/handler"
	"livechat/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("static_dir", cfg.StaticDir).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := chat.NewHub()
	messages := chat.NewMessageLog(cfg.MaxMessages)
	controller := chat.NewController(
		chat.NewRegistry(cfg.MaxUsernameLength),
		messages,
		hub,
		chat.ControllerOptions{
			HistorySize:     cfg.JoinHistory,
			MaxContentBytes: cfg.MaxContentBytes,
		},
	)

	logx.Info("Chat room ready", "log_capacity", messages.Capacity(), "join_history", cfg.JoinHistory)

	router := handler.Router(&handler.AppDeps{
		Controller: controller,
		Hub:        hub,
		Config:     cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked websocket connections are not closed by server.Shutdown.
	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
