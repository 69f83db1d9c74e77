package scansessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

type ScanRequest struct {
	SessionID   string `json:"session_id"`
	CarLabel    string `json:"car_label"`
	PartBarcode string `json:"part_barcode"`
}

type SessionView struct {
	SessionID string               `json:"session_id"`
	CarLabel  string               `json:"car_label"`
	Parts     []models.ScannedPart `json:"parts"`
}

// ConfirmResult is returned once a session's parts have been taken from stock.
type ConfirmResult struct {
	Message string `json:"message"`
}

// ScanItem opens the session when it does not exist yet and appends a snapshot of the
// scanned part. An unknown barcode leaves nothing behind.
func ScanItem(ctx context.Context, db *sqlite.DB, actor string, req ScanRequest) (SessionView, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.CarLabel = strings.TrimSpace(req.CarLabel)
	req.PartBarcode = strings.TrimSpace(req.PartBarcode)
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	var session models.ScanSession
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&session).Where("session_id = ?", req.SessionID).Limit(1).Scan(ctx)
		isNew := errors.Is(err, sql.ErrNoRows)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			if req.CarLabel == "" {
				return respond.Invalid("car_label", "This field is required.")
			}
			session = models.ScanSession{
				SessionID: req.SessionID,
				CarLabel:  req.CarLabel,
				Parts:     []models.ScannedPart{},
				User:      audit.ActorOrAnonymous(actor),
				CreatedAt: time.Now().UTC(),
			}
		}

		if req.PartBarcode != "" {
			var item models.InventoryItem
			err := tx.NewSelect().Model(&item).Where("barcode = ?", req.PartBarcode).Limit(1).Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return respond.NotFound("error", "Part not found")
			}
			if err != nil {
				return err
			}
			session.Parts = append(session.Parts, models.ScannedPart{
				Name:     item.Name,
				SKU:      item.SKU,
				Barcode:  item.Barcode,
				Quantity: item.Quantity,
			})
		}

		if isNew {
			_, err = tx.NewInsert().Model(&session).Exec(ctx)
		} else {
			_, err = tx.NewUpdate().Model(&session).Column("parts").WherePK().Exec(ctx)
		}
		return err
	})
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{SessionID: session.SessionID, CarLabel: session.CarLabel, Parts: session.Parts}, nil
}

func GetSession(ctx context.Context, db *sqlite.DB, sessionID string) (SessionView, error) {
	var session models.ScanSession
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&session).Where("session_id = ?", strings.TrimSpace(sessionID)).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return SessionView{}, respond.NotFound("error", "Session not found")
	}
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{SessionID: session.SessionID, CarLabel: session.CarLabel, Parts: session.Parts}, nil
}

// ConfirmSession takes one unit of every scanned part and deletes the session, all in one
// transaction. A part whose barcode no longer resolves rolls the whole confirmation back.
func ConfirmSession(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor, sessionID string) (ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ConfirmResult{}, respond.Invalid("session_id", "This field is required.")
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var session models.ScanSession
		err := tx.NewSelect().Model(&session).Where("session_id = ?", sessionID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return respond.NotFound("error", "Session not found")
		}
		if err != nil {
			return err
		}

		for _, part := range session.Parts {
			res, err := tx.NewUpdate().Model((*models.InventoryItem)(nil)).
				Set("quantity = quantity - 1").
				Where("barcode = ?", part.Barcode).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("take %q: %w", part.Barcode, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return respond.NotFound("error", "Part not found")
			}
		}

		if _, err := tx.NewDelete().Model((*models.ScanSession)(nil)).Where("session_id = ?", sessionID).Exec(ctx); err != nil {
			return err
		}
		if auditSvc == nil {
			return nil
		}
		return auditSvc.Write(ctx, tx, audit.Entry{
			Action:  audit.ActionSessionConfirm,
			Actor:   actor,
			Details: fmt.Sprintf("Session %s for %s: %d part(s)", session.SessionID, session.CarLabel, len(session.Parts)),
		})
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return ConfirmResult{Message: "Session confirmed and inventory updated"}, nil
}
