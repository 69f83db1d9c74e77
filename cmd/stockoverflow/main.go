package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stockoverflow/frontend/thresholds"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/auth"
	"stockoverflow/infrastructure/cache"
	"stockoverflow/infrastructure/config"
	httpserver "stockoverflow/infrastructure/http"
	"stockoverflow/infrastructure/mailer"
	"stockoverflow/infrastructure/rbac"
	"stockoverflow/infrastructure/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	rbacCache := cache.NewRbacRolesCache()
	rbacSvc := rbac.New(rbacCache)
	auditSvc := audit.NewService()
	issuer := auth.NewIssuer(cfg.JWTSecret)
	monitor := &thresholds.Monitor{
		DB:         db,
		Audit:      auditSvc,
		Mailer:     mailer.New(cfg.SMTPAddr, cfg.SMTPFrom),
		Recipients: cfg.AlertRecipients,
	}

	server := httpserver.NewServer(cfg, db, rbacSvc, rbacCache, auditSvc, issuer, monitor)
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	slog.Info("stockoverflow listening", slog.String("addr", cfg.Addr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.ThresholdInterval > 0 {
		slog.Info("threshold monitor enabled", slog.Duration("interval", cfg.ThresholdInterval))
		go monitor.Every(ctx, cfg.ThresholdInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	if err := server.Stop(); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
