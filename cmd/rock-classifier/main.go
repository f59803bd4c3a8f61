package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rockclassifier "github.com/menta2k/rock-classifier"
	"github.com/menta2k/rock-classifier/internal/backend"
	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/internal/handler"
	"github.com/menta2k/rock-classifier/internal/server"
	"github.com/menta2k/rock-classifier/pkg/decoder"
	"github.com/menta2k/rock-classifier/pkg/encoder"
	"github.com/menta2k/rock-classifier/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer zl.Sync()

	log := zl.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	log.Infow("Configuration loaded", "config", cfg.Summary())

	vision, err := backend.New(cfg, zl)
	if err != nil {
		log.Fatal("Failed to create vision backend: ", err)
	}

	decoderConfig := decoder.DefaultConfig()
	decoderConfig.SupportedFormats = cfg.App.AllowedFormats
	decoderConfig.MaxPixels = cfg.App.MaxPixels

	classifier := rockclassifier.NewWithConfig(
		decoderConfig,
		encoder.Config{Quality: cfg.Encoder.JPEGQuality, MaxDimension: cfg.Encoder.MaxDimension},
		vision,
		zl,
	)

	srv, err := server.New(cfg, handler.NewHandler(classifier, cfg, zl), zl)
	if err != nil {
		log.Fatal("Failed to create server: ", err)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed: ", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down gracefully...")

	// in-flight classifications get the backend timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Classifier.Timeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
