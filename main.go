package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sablecore/aoi-engine/internal/config"
	"github.com/sablecore/aoi-engine/internal/events"
	"github.com/sablecore/aoi-engine/internal/handlers"
	"github.com/sablecore/aoi-engine/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.LoadConfig()
	service.AoiConfig = cfg.Aoi
	service.Logger = logger
	events.Logger = logger

	// Start cleanup goroutine
	go service.CleanupLoop()

	// Setup routes
	http.HandleFunc("/ws", handlers.HandleWebSocket)
	http.HandleFunc("/health", handlers.HealthHandler)
	http.Handle("/metrics", promhttp.Handler())

	// Serve static files
	fs := http.FileServer(http.Dir("."))
	http.Handle("/", fs)

	logger.Info("aoi-engine server starting",
		zap.String("port", cfg.Port),
		zap.String("aoi_variant", cfg.Aoi.Variant),
	)

	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
