package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/config"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

const barcodeLength = 12

var errBarcodeExhausted = errors.New("could not allocate a free barcode")

func itemNotFound(id int64) *respond.NotFoundError {
	return respond.NotFound("detail", "No InventoryItem matches id %d.", id)
}

// NewBarcode returns the first 12 hex characters of a random UUID.
func NewBarcode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:barcodeLength]
}

func freeBarcode(ctx context.Context, tx bun.Tx) (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		code := NewBarcode()
		taken, err := barcodeTaken(ctx, tx, code, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errBarcodeExhausted
}

func barcodeTaken(ctx context.Context, tx bun.Tx, code string, exceptID int64) (bool, error) {
	q := tx.NewSelect().Model((*models.InventoryItem)(nil)).Where("barcode = ?", code)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

// buildItem validates a full create payload. Child entries pass the parent's category in req.
func buildItem(req ItemRequest) (models.InventoryItem, *respond.ValidationError) {
	verr := &respond.ValidationError{}
	item := models.InventoryItem{}

	item.Name = trimmed(req.Name)
	if item.Name == "" {
		verr.Add("name", "This field is required.")
	}
	item.SKU = trimmed(req.SKU)
	if item.SKU == "" {
		verr.Add("sku", "This field is required.")
	}
	switch {
	case !req.Quantity.Set:
		verr.Add("quantity", "This field is required.")
	case req.Quantity.Value < 0:
		verr.Add("quantity", "Ensure this value is greater than or equal to 0.")
	default:
		item.Quantity = req.Quantity.Value
	}
	switch {
	case !req.Threshold.Set:
		verr.Add("threshold", "This field is required.")
	case req.Threshold.Value < 0:
		verr.Add("threshold", "Ensure this value is greater than or equal to 0.")
	default:
		item.Threshold = req.Threshold.Value
	}
	item.Category = trimmed(req.Category)
	if !models.IsValidCategory(item.Category) {
		verr.Add("category", fmt.Sprintf("%q is not a valid choice.", item.Category))
	}
	item.Barcode = trimmed(req.Barcode)
	item.ThresholdBreached = req.ThresholdBreached.Value
	return item, verr
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// ParseChildParts accepts a JSON array or a string holding one. Anything else yields no children.
func ParseChildParts(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var children []json.RawMessage
	if err := json.Unmarshal(raw, &children); err != nil {
		return nil
	}
	return children
}

// CreateItem inserts an item and its childParts in one transaction. Children inherit the
// parent's category. Under the best-effort policy invalid children are skipped; under the
// strict policy the first invalid child rejects the whole create.
func CreateItem(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor, policy string, req ItemRequest) (CreateResult, error) {
	result := CreateResult{}
	item, verr := buildItem(req)
	if err := verr.OrNil(); err != nil {
		return result, err
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if req.Parent.Set {
			parent, err := loadItem(ctx, tx, req.Parent.Value)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return respond.Invalid("parent", fmt.Sprintf("Invalid pk %d - object does not exist.", req.Parent.Value))
				}
				return err
			}
			item.ParentID = &parent.ID
			item.Category = parent.Category
		}
		if err := insertItem(ctx, tx, &item); err != nil {
			return err
		}
		result.Item = toView(item)

		for i, raw := range ParseChildParts(req.ChildParts) {
			child, err := createChild(ctx, tx, item, raw)
			var childErr *respond.ValidationError
			if errors.As(err, &childErr) {
				if policy == config.ChildPolicyStrict {
					return prefixed(childErr, i)
				}
				slog.Warn("skipping invalid child part",
					slog.String("parent", item.Name),
					slog.Int("index", i),
					slog.Any("err", childErr),
				)
				result.Skipped = append(result.Skipped, SkippedChild{Index: i, Errors: childErr.Fields})
				continue
			}
			if err != nil {
				return err
			}
			result.Item.Children = append(result.Item.Children, toView(child))
		}

		if auditSvc == nil {
			return nil
		}
		return auditSvc.Write(ctx, tx, audit.Entry{
			Action:   audit.ActionCreatedItem,
			ItemName: item.Name,
			Actor:    actor,
			Details: fmt.Sprintf("Created Item Details:\nName: %s, SKU: %s, Barcode: %s, Quantity: %d, Children: %d",
				item.Name, item.SKU, item.Barcode, item.Quantity, len(result.Item.Children)),
		})
	})
	return result, err
}

func createChild(ctx context.Context, tx bun.Tx, parent models.InventoryItem, raw json.RawMessage) (models.InventoryItem, error) {
	var req ItemRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.InventoryItem{}, respond.Invalid("non_field_errors", "Invalid data. Expected a dictionary.")
	}
	req.Category = &parent.Category
	child, verr := buildItem(req)
	if err := verr.OrNil(); err != nil {
		return child, err
	}
	child.ParentID = &parent.ID
	if err := insertItem(ctx, tx, &child); err != nil {
		return child, err
	}
	return child, nil
}

func insertItem(ctx context.Context, tx bun.Tx, item *models.InventoryItem) error {
	if item.Barcode == "" {
		code, err := freeBarcode(ctx, tx)
		if err != nil {
			return err
		}
		item.Barcode = code
	} else {
		taken, err := barcodeTaken(ctx, tx, item.Barcode, 0)
		if err != nil {
			return err
		}
		if taken {
			return respond.Invalid("barcode", "inventory item with this barcode already exists.")
		}
	}
	if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func prefixed(verr *respond.ValidationError, index int) *respond.ValidationError {
	out := &respond.ValidationError{}
	for field, msg := range verr.Fields {
		out.Add(fmt.Sprintf("childParts[%d].%s", index, field), msg)
	}
	return out
}

func loadItem(ctx context.Context, tx bun.IDB, id int64) (models.InventoryItem, error) {
	var item models.InventoryItem
	err := tx.NewSelect().Model(&item).Where("id = ?", id).Limit(1).Scan(ctx)
	return item, err
}

// GetItem returns one item with its descendants expanded.
func GetItem(ctx context.Context, db *sqlite.DB, id int64) (ItemView, error) {
	var view ItemView
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		view, err = itemTree(ctx, tx, id)
		return err
	})
	return view, err
}

// FindByBarcode resolves a scanned barcode to its item.
func FindByBarcode(ctx context.Context, db *sqlite.DB, barcode string) (ItemView, error) {
	var view ItemView
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var item models.InventoryItem
		err := tx.NewSelect().Model(&item).Where("barcode = ?", strings.TrimSpace(barcode)).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return respond.NotFound("barcode", "No InventoryItem with barcode %q.", barcode)
		}
		if err != nil {
			return err
		}
		view, err = itemTree(ctx, tx, item.ID)
		return err
	})
	return view, err
}

func itemTree(ctx context.Context, tx bun.Tx, id int64) (ItemView, error) {
	root, err := loadItem(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ItemView{}, itemNotFound(id)
	}
	if err != nil {
		return ItemView{}, err
	}

	byParent := make(map[int64][]models.InventoryItem)
	seen := map[int64]bool{root.ID: true}
	frontier := []int64{root.ID}
	for len(frontier) > 0 {
		var level []models.InventoryItem
		if err := tx.NewSelect().Model(&level).Where("parent_id IN (?)", bun.In(frontier)).OrderExpr("id ASC").Scan(ctx); err != nil {
			return ItemView{}, fmt.Errorf("load children: %w", err)
		}
		frontier = frontier[:0]
		for _, child := range level {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			byParent[*child.ParentID] = append(byParent[*child.ParentID], child)
			frontier = append(frontier, child.ID)
		}
	}
	return expand(root, byParent, map[int64]bool{}), nil
}

// expand serializes item and its children depth first. visited stops parent loops.
func expand(item models.InventoryItem, byParent map[int64][]models.InventoryItem, visited map[int64]bool) ItemView {
	view := toView(item)
	visited[item.ID] = true
	for _, child := range byParent[item.ID] {
		if visited[child.ID] {
			continue
		}
		view.Children = append(view.Children, expand(child, byParent, visited))
	}
	return view
}

// ListFilter narrows the item list. Empty fields match everything.
type ListFilter struct {
	Category string
	RootOnly bool
}

// ListItems returns every item with its children expanded, ordered by name.
func ListItems(ctx context.Context, db *sqlite.DB, filter ListFilter) ([]ItemView, error) {
	var items []models.InventoryItem
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&items).OrderExpr("name COLLATE NOCASE ASC, id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	byParent := make(map[int64][]models.InventoryItem)
	for _, it := range items {
		if it.ParentID != nil {
			byParent[*it.ParentID] = append(byParent[*it.ParentID], it)
		}
	}
	for _, children := range byParent {
		sort.SliceStable(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	}

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		if filter.RootOnly && it.ParentID != nil {
			continue
		}
		views = append(views, expand(it, byParent, map[int64]bool{}))
	}
	return views, nil
}

// UpdateItem applies req to item id. partial=false requires every writable field (PUT).
// A blank barcode is regenerated. The change set is written to the log even when empty.
func UpdateItem(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, id int64, req ItemRequest, partial bool) (ItemView, error) {
	var view ItemView
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		before, err := loadItem(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return itemNotFound(id)
		}
		if err != nil {
			return err
		}

		after := before
		if !partial {
			full, verr := buildItem(withCategoryFallback(req, before.Category))
			if err := verr.OrNil(); err != nil {
				return err
			}
			after.Name, after.SKU = full.Name, full.SKU
			after.Quantity, after.Threshold = full.Quantity, full.Threshold
			after.Category = full.Category
			if req.ThresholdBreached.Set {
				after.ThresholdBreached = full.ThresholdBreached
			}
			if req.Barcode != nil {
				after.Barcode = full.Barcode
			}
		} else if err := applyPartial(&after, req); err != nil {
			return err
		}

		if req.Parent.Null {
			after.ParentID = nil
		} else if req.Parent.Set {
			if err := checkParent(ctx, tx, id, req.Parent.Value); err != nil {
				return err
			}
			parentID := req.Parent.Value
			after.ParentID = &parentID
		}

		if after.Barcode == "" {
			code, err := freeBarcode(ctx, tx)
			if err != nil {
				return err
			}
			after.Barcode = code
		} else if after.Barcode != before.Barcode {
			taken, err := barcodeTaken(ctx, tx, after.Barcode, id)
			if err != nil {
				return err
			}
			if taken {
				return respond.Invalid("barcode", "inventory item with this barcode already exists.")
			}
		}

		if _, err := tx.NewUpdate().Model(&after).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update inventory item: %w", err)
		}
		if auditSvc != nil {
			changes := audit.Diff(diffFields, snapshot(before), snapshot(after))
			if err := auditSvc.Write(ctx, tx, audit.Entry{
				Action:   audit.ActionUpdatedItem,
				ItemName: after.Name,
				Actor:    actor,
				Details:  audit.FormatChanges(changes),
			}); err != nil {
				return err
			}
		}

		view, err = itemTree(ctx, tx, id)
		return err
	})
	return view, err
}

// withCategoryFallback keeps the stored category when a full update omits it on a child.
func withCategoryFallback(req ItemRequest, current string) ItemRequest {
	if req.Category == nil {
		req.Category = &current
	}
	return req
}

func applyPartial(item *models.InventoryItem, req ItemRequest) error {
	verr := &respond.ValidationError{}
	if req.Name != nil {
		if item.Name = strings.TrimSpace(*req.Name); item.Name == "" {
			verr.Add("name", "This field may not be blank.")
		}
	}
	if req.SKU != nil {
		if item.SKU = strings.TrimSpace(*req.SKU); item.SKU == "" {
			verr.Add("sku", "This field may not be blank.")
		}
	}
	if req.Barcode != nil {
		item.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Quantity.Set {
		if req.Quantity.Value < 0 {
			verr.Add("quantity", "Ensure this value is greater than or equal to 0.")
		}
		item.Quantity = req.Quantity.Value
	}
	if req.Threshold.Set {
		if req.Threshold.Value < 0 {
			verr.Add("threshold", "Ensure this value is greater than or equal to 0.")
		}
		item.Threshold = req.Threshold.Value
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
		if !models.IsValidCategory(item.Category) {
			verr.Add("category", fmt.Sprintf("%q is not a valid choice.", item.Category))
		}
	}
	if req.ThresholdBreached.Set {
		item.ThresholdBreached = req.ThresholdBreached.Value
	}
	return verr.OrNil()
}

// checkParent rejects a parent that is missing, the item itself, or one of its descendants.
func checkParent(ctx context.Context, tx bun.Tx, id, parentID int64) error {
	if parentID == id {
		return respond.Invalid("parent", "An item cannot be its own parent.")
	}
	seen := map[int64]bool{}
	cursor := parentID
	for {
		if seen[cursor] {
			return nil
		}
		seen[cursor] = true
		ancestor, err := loadItem(ctx, tx, cursor)
		if errors.Is(err, sql.ErrNoRows) {
			if cursor == parentID {
				return respond.Invalid("parent", fmt.Sprintf("Invalid pk %d - object does not exist.", parentID))
			}
			return nil
		}
		if err != nil {
			return err
		}
		if ancestor.ParentID == nil {
			return nil
		}
		if *ancestor.ParentID == id {
			return respond.Invalid("parent", "An item cannot be nested under its own descendant.")
		}
		cursor = *ancestor.ParentID
	}
}

// DeleteItem removes an item and, through the foreign key cascade, its children.
func DeleteItem(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, id int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := loadItem(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return itemNotFound(id)
		}
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.InventoryItem)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete inventory item: %w", err)
		}
		if auditSvc == nil {
			return nil
		}
		return auditSvc.Write(ctx, tx, audit.Entry{
			Action:   audit.ActionDeletedItem,
			ItemName: item.Name,
			Actor:    actor,
			Details:  fmt.Sprintf("Deleted Item Details:\nName: %s, SKU: %s, Barcode: %s", item.Name, item.SKU, item.Barcode),
		})
	})
}

// LoadItems returns raw rows for the given ids, or every item when ids is empty.
func LoadItems(ctx context.Context, db *sqlite.DB, ids []int64) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&items).OrderExpr("name COLLATE NOCASE ASC, id ASC")
		if len(ids) > 0 {
			q = q.Where("id IN (?)", bun.In(ids))
		}
		return q.Scan(ctx)
	})
	return items, err
}

// EnsureItem creates a root Production item unless one with the same name and SKU exists.
func EnsureItem(ctx context.Context, db *sqlite.DB, name, sku string, quantity, threshold int64) (bool, error) {
	created := false
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.InventoryItem)(nil)).
			Where("name = ?", name).Where("sku = ?", sku).Exists(ctx)
		if err != nil || exists {
			return err
		}
		item := models.InventoryItem{
			Name:      name,
			SKU:       sku,
			Quantity:  quantity,
			Threshold: threshold,
			Category:  models.CategoryProduction,
		}
		if err := insertItem(ctx, tx, &item); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
