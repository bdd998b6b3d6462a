package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"interview-copilot/internal/auth"
	"interview-copilot/internal/config"
	"interview-copilot/internal/httpapi"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if !cfg.GroqKeyConfigured() {
		lg.Warn("GROQ_API_KEY is not configured; transcription and LLM requests will fail until it is set")
	}

	st := store.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		lg.Fatal("init storage", "err", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenLifetime())
	if err != nil {
		lg.Fatal("token service", "err", err)
	}

	if cfg.AppEnv == "production" || cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(cfg, lg, st, tokens)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.AppHost, cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("server started", "addr", srv.Addr, "service", cfg.AppName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", "err", err)
		}
	}()

	<-ctx.Done()
	lg.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", "err", err)
	}
}
