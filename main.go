package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/handler"
	"github.com/stevemurr/shopstore/store"
)

type config struct {
	host, port     string
	dataDir        string
	backend        string
	cacheTTL       time.Duration
	location       *time.Location
	allowedOrigins []string
}

func loadConfig() (config, error) {
	var cfg config
	var err error
	if cfg.host, err = env.GetAsString("HOST", false, "0.0.0.0"); err != nil {
		return cfg, err
	}
	if cfg.port, err = env.GetAsString("PORT", false, "8080"); err != nil {
		return cfg, err
	}
	if cfg.dataDir, err = env.GetAsString("DATA_DIR", false, "./data"); err != nil {
		return cfg, err
	}
	if cfg.backend, err = env.GetAsString("STORE_BACKEND", false, "json"); err != nil {
		return cfg, err
	}
	ttl, err := env.GetAsInt("CACHE_TTL_SECONDS", false, 30)
	if err != nil {
		return cfg, err
	}
	if ttl < 0 {
		return cfg, fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", ttl)
	}
	cfg.cacheTTL = time.Duration(ttl) * time.Second

	tz, err := env.GetAsString("TIMEZONE", false, "Local")
	if err != nil {
		return cfg, err
	}
	if cfg.location, err = time.LoadLocation(tz); err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}

	origins, err := env.GetAsString("ALLOWED_ORIGINS", false, "*")
	if err != nil {
		return cfg, err
	}
	cfg.allowedOrigins = strings.Split(origins, ",")
	return cfg, nil
}

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	log := logger.New(logLevel)
	zap.ReplaceGlobals(log.Desugar())
	defer func() { _ = log.Sync() }()

	if logLevel != "DEVELOPMENT" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	backend, err := store.New(cfg.backend, cfg.dataDir)
	if err != nil {
		log.Fatalf("Failed to create store (backend=%s): %v", cfg.backend, err)
	}
	d := db.Open(backend, db.Options{CacheTTL: cfg.cacheTTL}, log)
	defer func() {
		if err := d.Close(); err != nil {
			log.Errorw("Failed to close store", "error", err)
		}
	}()

	h := handler.New(d, handler.Options{
		Location:       cfg.location,
		AllowedOrigins: cfg.allowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.host, cfg.port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("Shop store starting",
			"addr", srv.Addr,
			"backend", cfg.backend,
			"dataDir", cfg.dataDir,
			"cacheTTL", cfg.cacheTTL,
			"timezone", cfg.location.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Graceful shutdown failed", "error", err)
	}
}
