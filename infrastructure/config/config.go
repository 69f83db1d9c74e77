package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Child item policies for inventory creation.
const (
	ChildPolicyBestEffort = "best_effort"
	ChildPolicyStrict     = "strict"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Addr          string
	SQLitePath    string
	MigrationsDir string

	JWTSecret   string
	CORSOrigins []string

	// CheckoutAtomic wraps the whole checkout workflow in one transaction.
	// When false, the header and each line commit on their own.
	CheckoutAtomic  bool
	ChildItemPolicy string

	SMTPAddr        string
	SMTPFrom        string
	AlertRecipients []string

	// ThresholdInterval enables the in-process threshold monitor when positive.
	ThresholdInterval time.Duration
	UploadMaxBytes    int64
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through lookup, which makes the defaults testable.
func LoadFrom(lookup func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Addr:            get("APP_ADDR", ":8080"),
		SQLitePath:      get("SQLITE_PATH", "stockoverflow.db"),
		MigrationsDir:   get("MIGRATIONS_DIR", ""),
		JWTSecret:       get("JWT_SECRET", ""),
		CORSOrigins:     splitList(get("CORS_ORIGINS", "http://localhost:3000")),
		ChildItemPolicy: get("CHILD_ITEM_POLICY", ChildPolicyBestEffort),
		SMTPAddr:        get("SMTP_ADDR", ""),
		SMTPFrom:        get("SMTP_FROM", "admin@company.com"),
		AlertRecipients: splitList(get("ALERT_RECIPIENTS", "office@company.com")),
	}

	var err error
	if cfg.CheckoutAtomic, err = strconv.ParseBool(get("CHECKOUT_ATOMIC", "true")); err != nil {
		return Config{}, fmt.Errorf("CHECKOUT_ATOMIC: %w", err)
	}
	if cfg.ChildItemPolicy != ChildPolicyBestEffort && cfg.ChildItemPolicy != ChildPolicyStrict {
		return Config{}, fmt.Errorf("CHILD_ITEM_POLICY must be %q or %q, got %q", ChildPolicyBestEffort, ChildPolicyStrict, cfg.ChildItemPolicy)
	}
	if raw := get("THRESHOLD_INTERVAL", ""); raw != "" {
		if cfg.ThresholdInterval, err = time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("THRESHOLD_INTERVAL: %w", err)
		}
	}
	if cfg.UploadMaxBytes, err = strconv.ParseInt(get("UPLOAD_MAX_BYTES", "10485760"), 10, 64); err != nil || cfg.UploadMaxBytes <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES must be a positive integer")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
