package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

// stepFunc runs one unit of the workflow. In atomic mode every step shares the outer
// transaction; otherwise each step commits on its own.
type stepFunc func(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error

func sharedTx(tx bun.Tx) stepFunc {
	return func(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
		return fn(ctx, tx)
	}
}

func validate(req *CheckoutRequest) error {
	verr := &respond.ValidationError{}
	req.User = strings.TrimSpace(req.User)
	req.VIN = strings.TrimSpace(req.VIN)
	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if req.User == "" {
		verr.Add("user", "This field is required.")
	}
	if req.VIN == "" {
		verr.Add("vin", "This field is required.")
	}
	if req.OrderNumber == "" {
		verr.Add("order_number", "This field is required.")
	}
	if req.Parts == nil {
		verr.Add("parts", "This field is required.")
	}
	for i := range req.Parts {
		req.Parts[i].Part = strings.TrimSpace(req.Parts[i].Part)
		if req.Parts[i].Part == "" {
			verr.Add(fmt.Sprintf("parts[%d].part", i), "This field is required.")
		}
	}
	return verr.OrNil()
}

// CreateCheckout resolves the user and each part barcode, records the lines and takes the
// stock. With atomic=false the header and every line commit separately, so a missing
// barcode on line N leaves the header and lines before N in place.
func CreateCheckout(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, atomic bool, req CheckoutRequest) (CheckoutView, error) {
	if err := validate(&req); err != nil {
		return CheckoutView{}, err
	}
	var view CheckoutView
	if atomic {
		err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			var err error
			view, err = runCheckout(ctx, sharedTx(tx), auditSvc, actor, req)
			return err
		})
		return view, err
	}
	return runCheckout(ctx, db.WithWriteTx, auditSvc, actor, req)
}

func runCheckout(ctx context.Context, step stepFunc, auditSvc *audit.Service, actor string, req CheckoutRequest) (CheckoutView, error) {
	view := CheckoutView{Parts: make([]LineView, 0, len(req.Parts))}
	var username string

	err := step(ctx, func(ctx context.Context, tx bun.Tx) error {
		var user models.User
		err := tx.NewSelect().Model(&user).Where("unique_id = ?", req.User).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return respond.NotFound("user", "No user with unique_id '%s' found", req.User)
		}
		if err != nil {
			return err
		}
		header := models.Checkout{
			UserID:      user.ID,
			VIN:         req.VIN,
			OrderNumber: req.OrderNumber,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&header).Exec(ctx); err != nil {
			return fmt.Errorf("insert checkout: %w", err)
		}
		view.ID = header.ID
		view.User = user.ID
		view.UserUniqueID = user.UniqueID
		username = user.Username
		view.VIN = header.VIN
		view.OrderNumber = header.OrderNumber
		view.CreatedAt = header.CreatedAt
		return nil
	})
	if err != nil {
		return view, err
	}

	for _, line := range req.Parts {
		err := step(ctx, func(ctx context.Context, tx bun.Tx) error {
			lv, err := addLine(ctx, tx, view.ID, line)
			if err != nil {
				return err
			}
			view.Parts = append(view.Parts, lv)
			return nil
		})
		if err != nil {
			return view, err
		}
	}

	if auditSvc == nil {
		return view, nil
	}
	err = step(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, audit.Entry{
			Action:  audit.ActionCheckout,
			Actor:   actor,
			Details: fmt.Sprintf("Order %s for VIN %s by %s: %d part(s)", view.OrderNumber, view.VIN, username, len(view.Parts)),
		})
	})
	return view, err
}

func addLine(ctx context.Context, tx bun.Tx, checkoutID int64, line LineRequest) (LineView, error) {
	var item models.InventoryItem
	err := tx.NewSelect().Model(&item).Where("barcode = ?", line.Part).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return LineView{}, respond.NotFound("parts", "No inventory item with barcode '%s' found", line.Part)
	}
	if err != nil {
		return LineView{}, err
	}

	part := models.CheckoutPart{
		CheckoutID: checkoutID,
		PartID:     item.ID,
		Damaged:    line.Damaged.Value,
	}
	if line.EditReason != nil {
		part.EditReason = *line.EditReason
	}
	if _, err := tx.NewInsert().Model(&part).Exec(ctx); err != nil {
		return LineView{}, fmt.Errorf("insert checkout part: %w", err)
	}

	// Single statement decrement; no floor is applied.
	if _, err := tx.NewUpdate().Model((*models.InventoryItem)(nil)).
		Set("quantity = quantity - ?", consumption(part.Damaged)).
		Where("id = ?", item.ID).
		Exec(ctx); err != nil {
		return LineView{}, fmt.Errorf("decrement %q: %w", item.Barcode, err)
	}

	return LineView{
		ID:          part.ID,
		Part:        item.ID,
		PartName:    item.Name,
		PartBarcode: item.Barcode,
		Damaged:     part.Damaged,
		EditReason:  part.EditReason,
	}, nil
}

// ListCheckouts returns checkouts newest first with their lines.
func ListCheckouts(ctx context.Context, db *sqlite.DB) ([]CheckoutView, error) {
	views := make([]CheckoutView, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var headers []models.Checkout
		if err := tx.NewSelect().Model(&headers).Relation("User").
			OrderExpr("co.created_at DESC, co.id DESC").Scan(ctx); err != nil {
			return err
		}
		var err error
		views, err = withLines(ctx, tx, headers)
		return err
	})
	return views, err
}

func GetCheckout(ctx context.Context, db *sqlite.DB, id int64) (CheckoutView, error) {
	var view CheckoutView
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var headers []models.Checkout
		if err := tx.NewSelect().Model(&headers).Relation("User").Where("co.id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if len(headers) == 0 {
			return respond.NotFound("detail", "No Checkout matches id %d.", id)
		}
		views, err := withLines(ctx, tx, headers)
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	return view, err
}

func withLines(ctx context.Context, tx bun.Tx, headers []models.Checkout) ([]CheckoutView, error) {
	views := make([]CheckoutView, 0, len(headers))
	if len(headers) == 0 {
		return views, nil
	}
	ids := make([]int64, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.ID)
	}
	var lines []models.CheckoutPart
	if err := tx.NewSelect().Model(&lines).Relation("Part").
		Where("cop.checkout_id IN (?)", bun.In(ids)).
		OrderExpr("cop.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load checkout lines: %w", err)
	}
	byCheckout := make(map[int64][]LineView, len(headers))
	for _, l := range lines {
		lv := LineView{ID: l.ID, Part: l.PartID, Damaged: l.Damaged, EditReason: l.EditReason, EditedBy: l.EditedByID}
		if l.Part != nil {
			lv.PartName = l.Part.Name
			lv.PartBarcode = l.Part.Barcode
		}
		byCheckout[l.CheckoutID] = append(byCheckout[l.CheckoutID], lv)
	}
	for _, h := range headers {
		v := CheckoutView{
			ID:          h.ID,
			User:        h.UserID,
			VIN:         h.VIN,
			OrderNumber: h.OrderNumber,
			CreatedAt:   h.CreatedAt,
			Parts:       byCheckout[h.ID],
		}
		if v.Parts == nil {
			v.Parts = []LineView{}
		}
		if h.User != nil {
			v.UserUniqueID = h.User.UniqueID
		}
		views = append(views, v)
	}
	return views, nil
}
