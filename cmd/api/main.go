package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aegis-waf/aegis/internal/config"
	"github.com/aegis-waf/aegis/internal/database"
	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/server"
	"github.com/aegis-waf/aegis/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().Fatalf("load config: %v", err)
	}

	// Setup logging with rotation
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		// Fallback to local directory (e.g. local dev)
		cfg.LogDir = filepath.Join("data", "logs")
		_ = os.MkdirAll(cfg.LogDir, 0o755)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "aegis.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.Log().Infof("starting %s %s", version.Name, version.Full())

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log().Fatalf("open database: %v", err)
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		logger.Log().Fatalf("build server: %v", err)
	}

	// Background cadences: snapshot refresh keeps rule edits eventually
	// visible, the promotion sweep advances shadow/canary deployments,
	// and the counter sweep drops idle rate-limit buckets.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+cfg.SnapshotRefresh.String(), func() {
		_ = srv.Deps.Snapshots.Refresh()
	}); err != nil {
		logger.Log().Fatalf("schedule snapshot refresh: %v", err)
	}
	if _, err := scheduler.AddFunc("@every 1m", func() {
		if err := srv.Deps.Deployments.EvaluatePromotions(); err != nil {
			logger.Log().WithError(err).Warn("promotion sweep failed")
		}
	}); err != nil {
		logger.Log().Fatalf("schedule promotion sweep: %v", err)
	}
	if _, err := scheduler.AddFunc("@every 5m", func() {
		srv.Deps.Counter.Sweep(time.Now())
	}); err != nil {
		logger.Log().Fatalf("schedule counter sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log().Infof("listening on :%s", cfg.HTTPPort)
	if err := srv.Run(ctx); err != nil {
		logger.Log().Fatalf("server error: %v", err)
	}
}
