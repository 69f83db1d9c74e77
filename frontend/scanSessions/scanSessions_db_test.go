package scansessions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

func openScanSessionsTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scan-sessions-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	err = db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		items := []models.InventoryItem{
			{Name: "Front Sensors", SKU: "FRONT_SENSORS", Quantity: 10, Threshold: 5, Barcode: "FRONT", Category: models.CategoryProduction},
			{Name: "Towbar", SKU: "TOWBAR", Quantity: 3, Threshold: 3, Barcode: "TOW", Category: models.CategoryProduction},
		}
		_, err := tx.NewInsert().Model(&items).Exec(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func quantityOf(t *testing.T, db *sqlite.DB, barcode string) int64 {
	t.Helper()
	var item models.InventoryItem
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&item).Where("barcode = ?", barcode).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load %s: %v", barcode, err)
	}
	return item.Quantity
}

func TestScanItem_CreatesSessionAndAppendsSnapshots(t *testing.T) {
	db := openScanSessionsTestDB(t)
	ctx := context.Background()

	first, err := ScanItem(ctx, db, "", ScanRequest{CarLabel: "VAN-7", PartBarcode: "FRONT"})
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	if len(first.SessionID) != 36 {
		t.Fatalf("expected generated uuid session id, got %q", first.SessionID)
	}
	second, err := ScanItem(ctx, db, "", ScanRequest{SessionID: first.SessionID, PartBarcode: "TOW"})
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if len(second.Parts) != 2 || second.Parts[1].Name != "Towbar" || second.Parts[1].Quantity != 3 {
		t.Fatalf("unexpected parts %+v", second.Parts)
	}
	if second.CarLabel != "VAN-7" {
		t.Fatalf("car label must stick to the session, got %q", second.CarLabel)
	}

	got, err := GetSession(ctx, db, first.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(got.Parts) != 2 {
		t.Fatalf("expected persisted parts, got %+v", got)
	}
}

func TestScanItem_UnknownBarcodeIsNotFound(t *testing.T) {
	db := openScanSessionsTestDB(t)

	rec := httptest.NewRecorder()
	form := url.Values{"session_id": {"s-1"}, "car_label": {"VAN-1"}, "part_barcode": {"NOPE"}}
	req := httptest.NewRequest(http.MethodPost, "/api/scan_item", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ScanItemCommandHandler(db)(rec, req)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Part not found") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if _, err := GetSession(context.Background(), db, "s-1"); err == nil {
		t.Fatalf("failed scan must not leave a session behind")
	}
}

func TestScanItem_NewSessionNeedsCarLabel(t *testing.T) {
	db := openScanSessionsTestDB(t)
	_, err := ScanItem(context.Background(), db, "", ScanRequest{PartBarcode: "FRONT"})
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["car_label"] == "" {
		t.Fatalf("expected car_label validation error, got %v", err)
	}
}

func TestConfirmSession_TakesOneOfEachScanAndDeletes(t *testing.T) {
	db := openScanSessionsTestDB(t)
	ctx := context.Background()
	view, err := ScanItem(ctx, db, "", ScanRequest{SessionID: "s-2", CarLabel: "VAN-2", PartBarcode: "FRONT"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, barcode := range []string{"FRONT", "TOW"} {
		if _, err := ScanItem(ctx, db, "", ScanRequest{SessionID: view.SessionID, PartBarcode: barcode}); err != nil {
			t.Fatalf("scan %s: %v", barcode, err)
		}
	}

	result, err := ConfirmSession(ctx, db, audit.NewService(), "worker1", view.SessionID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Message != "Session confirmed and inventory updated" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if got := quantityOf(t, db, "FRONT"); got != 8 {
		t.Fatalf("FRONT quantity %d, want 8", got)
	}
	if got := quantityOf(t, db, "TOW"); got != 2 {
		t.Fatalf("TOW quantity %d, want 2", got)
	}

	_, err = ConfirmSession(ctx, db, nil, "", view.SessionID)
	var nf *respond.NotFoundError
	if !errors.As(err, &nf) || nf.Message != "Session not found" {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestConfirmSession_MissingPartRollsBack(t *testing.T) {
	db := openScanSessionsTestDB(t)
	ctx := context.Background()
	if _, err := ScanItem(ctx, db, "", ScanRequest{SessionID: "s-3", CarLabel: "VAN-3", PartBarcode: "FRONT"}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := ScanItem(ctx, db, "", ScanRequest{SessionID: "s-3", PartBarcode: "TOW"}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.InventoryItem)(nil)).Where("barcode = ?", "TOW").Exec(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("delete towbar: %v", err)
	}

	if _, err := ConfirmSession(ctx, db, nil, "", "s-3"); err == nil {
		t.Fatalf("expected confirm to fail")
	}
	if got := quantityOf(t, db, "FRONT"); got != 10 {
		t.Fatalf("FRONT must be restored, got %d", got)
	}
	if _, err := GetSession(ctx, db, "s-3"); err != nil {
		t.Fatalf("session must survive a failed confirm: %v", err)
	}
}
