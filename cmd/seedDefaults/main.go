package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"stockoverflow/frontend/categories"
	"stockoverflow/frontend/inventory"
	"stockoverflow/frontend/users"
	"stockoverflow/infrastructure/sqlite"
)

type defaultItem struct {
	Name      string
	SKU       string
	Quantity  int64
	Threshold int64
}

var defaultItems = []defaultItem{
	{Name: "Front Sensors", SKU: "FRONT_SENSORS", Quantity: 10, Threshold: 5},
	{Name: "Rear Sensors", SKU: "REAR_SENSORS", Quantity: 15, Threshold: 5},
	{Name: "Cargo Pack L1H1", SKU: "CARGO_L1H1", Quantity: 20, Threshold: 10},
	{Name: "Cargo Pack L1H2", SKU: "CARGO_L1H2", Quantity: 10, Threshold: 5},
	{Name: "Cargo Pack L2H2", SKU: "CARGO_L2H2", Quantity: 12, Threshold: 5},
	{Name: "Cargo Pack L2H3", SKU: "CARGO_L2H3", Quantity: 12, Threshold: 5},
	{Name: "Cargo Pack L2DC", SKU: "CARGO_L2DC", Quantity: 12, Threshold: 5},
	{Name: "Cargo Pack L2DS", SKU: "CARGO_L2DS", Quantity: 12, Threshold: 5},
	{Name: "Towbar", SKU: "TOWBAR", Quantity: 8, Threshold: 3},
}

type summary struct {
	Categories int
	Items      int
	AdminCode  string
}

func main() {
	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		log.Fatalf("resolve migrations dir: %v", err)
	}

	defaultDBPath := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(migrationsDir))), "stockoverflow.db")
	dbPath := getenv("SQLITE_PATH", defaultDBPath)

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	s, err := seed(context.Background(), db, getenv("ADMIN_USERNAME", "admin"), getenv("ADMIN_PASSWORD", "Admin123Stock"))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("seeded %d categories, %d inventory items, admin badge %s\n", s.Categories, s.Items, s.AdminCode)
}

// seed is safe to run repeatedly; existing rows are left as they are.
func seed(ctx context.Context, db *sqlite.DB, adminUsername, adminPassword string) (summary, error) {
	var s summary
	var err error
	if s.Categories, err = categories.EnsureDefaults(ctx, db); err != nil {
		return s, fmt.Errorf("categories: %w", err)
	}
	for _, item := range defaultItems {
		created, err := inventory.EnsureItem(ctx, db, item.Name, item.SKU, item.Quantity, item.Threshold)
		if err != nil {
			return s, fmt.Errorf("item %s: %w", item.SKU, err)
		}
		if created {
			s.Items++
		}
	}
	admin, err := users.EnsureSuperuser(ctx, db, adminUsername, adminPassword)
	if err != nil {
		return s, fmt.Errorf("admin user: %w", err)
	}
	s.AdminCode = admin.UniqueID
	return s, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		filepath.Join("infrastructure", "sqlite", "migrations"),
		filepath.Join("..", "..", "infrastructure", "sqlite", "migrations"),
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations"))
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		tried = append(tried, absPath)

		info, err := os.Stat(absPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("migrations dir not found; tried: %s", strings.Join(tried, ", "))
}
