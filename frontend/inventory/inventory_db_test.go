package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/config"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

func openInventoryTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "inventory-test.db")
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
	return db
}

func str(s string) *string { return &s }

func qty(v int64) respond.FlexInt { return respond.FlexInt{Value: v, Set: true} }

func itemReq(name, sku, category string, quantity, threshold int64) ItemRequest {
	return ItemRequest{
		Name:      str(name),
		SKU:       str(sku),
		Category:  str(category),
		Quantity:  qty(quantity),
		Threshold: qty(threshold),
	}
}

func rawChildren(t *testing.T, children ...map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(children)
	if err != nil {
		t.Fatalf("marshal children: %v", err)
	}
	return b
}

func logsFor(t *testing.T, db *sqlite.DB, action string) []models.LogEntry {
	t.Helper()
	var rows []models.LogEntry
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).Where("action = ?", action).OrderExpr("id ASC").Scan(ctx)
	})
	if err != nil {
		t.Fatalf("load logs: %v", err)
	}
	return rows
}

func countItems(t *testing.T, db *sqlite.DB) int {
	t.Helper()
	var n int
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		n, err = tx.NewSelect().Model((*models.InventoryItem)(nil)).Count(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	return n
}

func TestCreateItem_BestEffortSkipsInvalidChildren(t *testing.T) {
	db := openInventoryTestDB(t)
	req := itemReq("Cargo Pack L1H1", "CARGO_L1H1", models.CategoryProduction, 20, 10)
	req.ChildParts = rawChildren(t,
		map[string]any{"name": "Floor Panel", "sku": "FLOOR_L1", "quantity": 4, "threshold": 1, "category": models.CategoryOffice},
		map[string]any{"name": "Side Lining", "quantity": "3", "threshold": 1},
		map[string]any{"name": "Roof Rail", "sku": "ROOF_L1", "quantity": 2, "threshold": 0},
	)

	result, err := CreateItem(context.Background(), db, audit.NewService(), "", config.ChildPolicyBestEffort, req)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if len(result.Item.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(result.Item.Children))
	}
	for _, child := range result.Item.Children {
		if child.Category != models.CategoryProduction {
			t.Fatalf("child should inherit parent category, got %q", child.Category)
		}
		if child.Parent == nil || *child.Parent != result.Item.ID {
			t.Fatalf("child parent not set: %+v", child.Parent)
		}
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Index != 1 || result.Skipped[0].Errors["sku"] == "" {
		t.Fatalf("unexpected skipped children: %+v", result.Skipped)
	}
	if got := countItems(t, db); got != 3 {
		t.Fatalf("expected parent plus 2 children stored, got %d", got)
	}

	logs := logsFor(t, db, audit.ActionCreatedItem)
	if len(logs) != 1 || logs[0].User != audit.Anonymous || logs[0].ItemName == nil || *logs[0].ItemName != "Cargo Pack L1H1" {
		t.Fatalf("unexpected create logs: %+v", logs)
	}
}

func TestCreateItem_StrictPolicyRejectsWholeCreate(t *testing.T) {
	db := openInventoryTestDB(t)
	req := itemReq("Towbar", "TOWBAR", models.CategoryProduction, 8, 3)
	req.ChildParts = rawChildren(t,
		map[string]any{"name": "Wiring Loom", "sku": "LOOM", "quantity": 1, "threshold": 0},
		map[string]any{"name": "Ball", "quantity": -1, "threshold": 0},
	)

	_, err := CreateItem(context.Background(), db, audit.NewService(), "alice", config.ChildPolicyStrict, req)
	var verr *respond.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["childParts[1].sku"] == "" || verr.Fields["childParts[1].quantity"] == "" {
		t.Fatalf("unexpected fields: %+v", verr.Fields)
	}
	if got := countItems(t, db); got != 0 {
		t.Fatalf("strict create must persist nothing, got %d items", got)
	}
	if logs := logsFor(t, db, audit.ActionCreatedItem); len(logs) != 0 {
		t.Fatalf("strict create must not log, got %d", len(logs))
	}
}

func TestCreateItem_ChildPartsAsEncodedString(t *testing.T) {
	db := openInventoryTestDB(t)
	inner := rawChildren(t, map[string]any{"name": "Bracket", "sku": "BRK", "quantity": 2, "threshold": 1})
	encoded, _ := json.Marshal(string(inner))

	req := itemReq("Rear Sensors", "REAR_SENSORS", models.CategoryProduction, 15, 5)
	req.ChildParts = encoded
	result, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort, req)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if len(result.Item.Children) != 1 || result.Item.Children[0].Name != "Bracket" {
		t.Fatalf("unexpected children: %+v", result.Item.Children)
	}
}

func TestCreateItem_GeneratesBarcodeAndRejectsDuplicate(t *testing.T) {
	db := openInventoryTestDB(t)
	result, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort,
		itemReq("Front Sensors", "FRONT_SENSORS", models.CategoryProduction, 10, 5))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(result.Item.Barcode) {
		t.Fatalf("unexpected generated barcode %q", result.Item.Barcode)
	}

	dup := itemReq("Copy", "COPY", models.CategoryOffice, 1, 0)
	dup.Barcode = str(result.Item.Barcode)
	_, err = CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort, dup)
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["barcode"] == "" {
		t.Fatalf("expected barcode validation error, got %v", err)
	}
}

func TestCreateItem_ValidatesTopLevelFields(t *testing.T) {
	db := openInventoryTestDB(t)
	_, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort,
		itemReq(" ", "SKU", "Garden", -1, 0))
	var verr *respond.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "category", "quantity"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected %s error in %+v", field, verr.Fields)
		}
	}
}

func TestUpdateItem_LogsFieldDiff(t *testing.T) {
	db := openInventoryTestDB(t)
	created, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort,
		itemReq("Towbar", "TOWBAR", models.CategoryProduction, 5, 3))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	view, err := UpdateItem(context.Background(), db, audit.NewService(), "", created.Item.ID, ItemRequest{Quantity: qty(7)}, true)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if view.Quantity != 7 || view.Name != "Towbar" {
		t.Fatalf("unexpected view: %+v", view)
	}

	logs := logsFor(t, db, audit.ActionUpdatedItem)
	if len(logs) != 1 {
		t.Fatalf("expected 1 update log, got %d", len(logs))
	}
	if logs[0].User != audit.Anonymous {
		t.Fatalf("expected Anonymous actor, got %q", logs[0].User)
	}
	if logs[0].Details != "Updated Fields:\nquantity: 5 -> 7" {
		t.Fatalf("unexpected details %q", logs[0].Details)
	}
}

func TestUpdateItem_FullUpdateRequiresFields(t *testing.T) {
	db := openInventoryTestDB(t)
	created, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort,
		itemReq("Towbar", "TOWBAR", models.CategoryProduction, 5, 3))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	_, err = UpdateItem(context.Background(), db, nil, "", created.Item.ID, ItemRequest{Quantity: qty(1)}, false)
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["name"] == "" {
		t.Fatalf("expected missing name error, got %v", err)
	}
}

func TestUpdateItem_RejectsParentCycle(t *testing.T) {
	db := openInventoryTestDB(t)
	req := itemReq("Kit", "KIT", models.CategoryProduction, 1, 0)
	req.ChildParts = rawChildren(t, map[string]any{"name": "Part", "sku": "PART", "quantity": 1, "threshold": 0})
	created, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort, req)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	childID := created.Item.Children[0].ID

	_, err = UpdateItem(context.Background(), db, nil, "", created.Item.ID, ItemRequest{Parent: qty(childID)}, true)
	var verr *respond.ValidationError
	if !errors.As(err, &verr) || verr.Fields["parent"] == "" {
		t.Fatalf("expected parent cycle error, got %v", err)
	}
	_, err = UpdateItem(context.Background(), db, nil, "", created.Item.ID, ItemRequest{Parent: qty(created.Item.ID)}, true)
	if !errors.As(err, &verr) {
		t.Fatalf("expected self parent error, got %v", err)
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	db := openInventoryTestDB(t)
	_, err := UpdateItem(context.Background(), db, nil, "", 404, ItemRequest{Quantity: qty(1)}, true)
	var nf *respond.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteItem_CascadesAndLogsSnapshot(t *testing.T) {
	db := openInventoryTestDB(t)
	req := itemReq("Kit", "KIT", models.CategoryProduction, 1, 0)
	req.Barcode = str("KIT-001")
	req.ChildParts = rawChildren(t, map[string]any{"name": "Part", "sku": "PART", "quantity": 1, "threshold": 0})
	created, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort, req)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := DeleteItem(context.Background(), db, audit.NewService(), "bob", created.Item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if got := countItems(t, db); got != 0 {
		t.Fatalf("expected cascade delete, %d items remain", got)
	}
	logs := logsFor(t, db, audit.ActionDeletedItem)
	if len(logs) != 1 || logs[0].User != "bob" {
		t.Fatalf("unexpected delete logs: %+v", logs)
	}
	if logs[0].Details != "Deleted Item Details:\nName: Kit, SKU: KIT, Barcode: KIT-001" {
		t.Fatalf("unexpected details %q", logs[0].Details)
	}

	err = DeleteItem(context.Background(), db, nil, "", created.Item.ID)
	var nf *respond.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestGetItemAndList_ExpandChildrenRecursively(t *testing.T) {
	db := openInventoryTestDB(t)
	ctx := context.Background()
	root, err := CreateItem(ctx, db, nil, "", config.ChildPolicyBestEffort, itemReq("Root", "ROOT", models.CategoryCarWash, 1, 0))
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	mid := itemReq("Mid", "MID", models.CategoryOffice, 1, 0)
	mid.Parent = qty(root.Item.ID)
	midRes, err := CreateItem(ctx, db, nil, "", config.ChildPolicyBestEffort, mid)
	if err != nil {
		t.Fatalf("create mid: %v", err)
	}
	if midRes.Item.Category != models.CategoryCarWash {
		t.Fatalf("explicit parent should force category, got %q", midRes.Item.Category)
	}
	leaf := itemReq("Leaf", "LEAF", models.CategoryCarWash, 1, 0)
	leaf.Parent = qty(midRes.Item.ID)
	if _, err := CreateItem(ctx, db, nil, "", config.ChildPolicyBestEffort, leaf); err != nil {
		t.Fatalf("create leaf: %v", err)
	}

	view, err := GetItem(ctx, db, root.Item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if len(view.Children) != 1 || len(view.Children[0].Children) != 1 || view.Children[0].Children[0].Name != "Leaf" {
		t.Fatalf("unexpected tree: %+v", view)
	}

	all, err := ListItems(ctx, db, ListFilter{})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
	roots, err := ListItems(ctx, db, ListFilter{RootOnly: true})
	if err != nil {
		t.Fatalf("list roots: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "Root" {
		t.Fatalf("unexpected roots: %+v", roots)
	}

	if _, err := GetItem(ctx, db, 999); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestFindByBarcode(t *testing.T) {
	db := openInventoryTestDB(t)
	req := itemReq("Towbar", "TOWBAR", models.CategoryProduction, 8, 3)
	req.Barcode = str("TOW-1")
	if _, err := CreateItem(context.Background(), db, nil, "", config.ChildPolicyBestEffort, req); err != nil {
		t.Fatalf("create item: %v", err)
	}
	view, err := FindByBarcode(context.Background(), db, "TOW-1")
	if err != nil || view.SKU != "TOWBAR" {
		t.Fatalf("find by barcode: %+v %v", view, err)
	}
	_, err = FindByBarcode(context.Background(), db, "missing")
	var nf *respond.NotFoundError
	if !errors.As(err, &nf) || nf.Field != "barcode" {
		t.Fatalf("expected barcode not found, got %v", err)
	}
}

func TestParseChildParts(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{name: "empty", raw: "", want: 0},
		{name: "null", raw: "null", want: 0},
		{name: "array", raw: `[{"name":"a"},{"name":"b"}]`, want: 2},
		{name: "encoded string", raw: `"[{\"name\":\"a\"}]"`, want: 1},
		{name: "garbage string", raw: `"not json"`, want: 0},
		{name: "object", raw: `{"name":"a"}`, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(ParseChildParts(json.RawMessage(tc.raw))); got != tc.want {
				t.Fatalf("got %d children, want %d", got, tc.want)
			}
		})
	}
}

func TestRenderLabelSheetPDF(t *testing.T) {
	pdf, err := renderLabelSheetPDF([]models.InventoryItem{
		{ID: 1, Name: "Towbar", SKU: "TOWBAR", Barcode: "a1b2c3d4e5f6", Category: models.CategoryProduction},
		{ID: 2, Name: "Rear Sensors", SKU: "REAR_SENSORS", Barcode: "0f0f0f0f0f0f", Category: models.CategoryProduction},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	if _, err := renderLabelSheetPDF(nil); err == nil || !strings.Contains(err.Error(), "no labels") {
		t.Fatalf("expected empty error, got %v", err)
	}
}
