package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stockoverflow/frontend/thresholds"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/config"
	"stockoverflow/infrastructure/mailer"
	"stockoverflow/infrastructure/sqlite"
)

// One monitor pass, meant for cron.
func main() {
	cfg, err := config.LoadFrom(func(key string) string {
		// The monitor never signs tokens.
		if key == "JWT_SECRET" {
			return "unused"
		}
		return os.Getenv(key)
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sqlite.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	monitor := &thresholds.Monitor{
		DB:         db,
		Audit:      audit.NewService(),
		Mailer:     mailer.New(cfg.SMTPAddr, cfg.SMTPFrom),
		Recipients: cfg.AlertRecipients,
	}
	report, err := monitor.Run(ctx, "thresholdMonitor")
	if err != nil {
		log.Fatalf("threshold pass: %v", err)
	}

	fmt.Printf("cars=%d adjusted=%d breached=%d\n", report.Cars, report.Adjusted, len(report.Breached))
	if len(report.Breached) > 0 {
		fmt.Printf("below threshold: %s\n", strings.Join(report.Breached, ", "))
	}
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "notify: %s\n", e)
	}
	if len(report.Errors) > 0 {
		stop()
		_ = db.Close()
		os.Exit(1)
	}
}
