package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"awakenfetch/internal/handler"
	"awakenfetch/pkg/integrations/chains"
	"awakenfetch/pkg/utils"

	"github.com/gin-gonic/gin"
)

// @title AwakenFetch API
// @version 1.0
// @description Wallet transaction history proxy for Awaken CSV exports

// @host localhost:8080
// @BasePath /

func main() {
	utils.LoadEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	registry := chains.NewRegistry()

	rps := utils.GetEnvFloat("RATE_LIMIT_RPS", 5)
	burst := utils.GetEnvInt("RATE_LIMIT_BURST", 10)

	r := gin.Default()

	h, err := handler.New(
		handler.WithEngine(r),
		handler.WithRegistry(registry),
		handler.WithLogger(logger),
		handler.WithRateLimiter(handler.NewRateLimiter(rps, burst)),
	)
	if err != nil {
		log.Fatal("Failed to create handler:", err)
	}
	if err := h.Setup(); err != nil {
		log.Fatal("Failed to setup routes:", err)
	}

	port := utils.GetEnv("APP_PORT", "8080")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		os.Exit(0)
	}()

	logger.Info("starting AwakenFetch", "port", port, "chains", registry.ChainIDs())
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
