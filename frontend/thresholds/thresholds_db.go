package thresholds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/mailer"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

// AlertSubject is the subject line of every breach notification.
const AlertSubject = "Threshold Breach Alert"

func alertBody(itemName string) string {
	return fmt.Sprintf("Item %s is below the threshold.", itemName)
}

// Report summarises one monitor pass.
type Report struct {
	Cars     int      `json:"cars"`
	Adjusted int      `json:"adjusted"`
	Breached []string `json:"breached"`
	Errors   []string `json:"errors"`
}

// requirement is one car part joined to its stock item.
type requirement struct {
	CarID          int64  `bun:"car_id"`
	VIN            string `bun:"vin"`
	ItemID         int64  `bun:"item_id"`
	ItemName       string `bun:"item_name"`
	QuantityNeeded int64  `bun:"quantity_needed"`
}

// Monitor consumes required parts of upcoming cars and raises breach alerts.
type Monitor struct {
	DB         *sqlite.DB
	Audit      *audit.Service
	Mailer     mailer.Mailer
	Recipients []string
}

// Run decrements every required part of cars still in from_upcoming, flags items whose
// quantity drops below threshold and mails one alert per breached item. Stock changes commit
// before any mail is sent; a failed send is reported per item and the pass continues.
// Each pass consumes again: a car stays in from_upcoming until its VIN is scanned.
func (m *Monitor) Run(ctx context.Context, actor string) (Report, error) {
	report := Report{Breached: []string{}, Errors: []string{}}
	var breached []models.InventoryItem

	err := m.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var reqs []requirement
		err := tx.NewRaw(`
SELECT c.id AS car_id, c.vin, ii.id AS item_id, ii.name AS item_name, cp.quantity_needed
FROM car_parts cp
JOIN cars c ON c.id = cp.car_id
JOIN inventory_items ii ON ii.id = cp.inventory_item_id
WHERE c.status = ?
ORDER BY c.id ASC, cp.id ASC`, models.CarStatusFromUpcoming).Scan(ctx, &reqs)
		if err != nil {
			return fmt.Errorf("load upcoming car parts: %w", err)
		}

		cars := make(map[int64]struct{})
		flagged := make(map[int64]bool)
		for _, req := range reqs {
			cars[req.CarID] = struct{}{}
			if _, err := tx.NewUpdate().Model((*models.InventoryItem)(nil)).
				Set("quantity = quantity - ?", req.QuantityNeeded).
				Where("id = ?", req.ItemID).
				Exec(ctx); err != nil {
				return fmt.Errorf("consume %q for %s: %w", req.ItemName, req.VIN, err)
			}
			report.Adjusted++

			var item models.InventoryItem
			if err := tx.NewSelect().Model(&item).Where("id = ?", req.ItemID).Scan(ctx); err != nil {
				return err
			}
			if item.Quantity >= item.Threshold || flagged[item.ID] {
				continue
			}
			if _, err := tx.NewUpdate().Model((*models.InventoryItem)(nil)).
				Set("threshold_breached = ?", true).
				Where("id = ?", item.ID).
				Exec(ctx); err != nil {
				return err
			}
			flagged[item.ID] = true
			breached = append(breached, item)
		}
		report.Cars = len(cars)

		if m.Audit == nil || report.Adjusted == 0 {
			return nil
		}
		names := make([]string, 0, len(breached))
		for _, item := range breached {
			names = append(names, item.Name)
		}
		details := fmt.Sprintf("Consumed %d part requirement(s) for %d upcoming car(s).", report.Adjusted, report.Cars)
		if len(names) > 0 {
			details += "\nBelow threshold: " + strings.Join(names, ", ")
		}
		return m.Audit.Write(ctx, tx, audit.Entry{Action: audit.ActionThresholdRun, Actor: actor, Details: details})
	})
	if err != nil {
		return report, err
	}

	for _, item := range breached {
		report.Breached = append(report.Breached, item.Name)
		if m.Mailer == nil {
			continue
		}
		msg := mailer.Message{To: m.Recipients, Subject: AlertSubject, Body: alertBody(item.Name)}
		if err := m.Mailer.Send(ctx, msg); err != nil {
			slog.Error("threshold alert failed", slog.String("item", item.Name), slog.Any("err", err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", item.Name, err))
		}
	}
	return report, nil
}
