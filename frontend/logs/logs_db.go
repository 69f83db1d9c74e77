package logs

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

// TimestampLayout is the display format of log times (dd/mm/yyyy, hh:mm:ss).
const TimestampLayout = "02/01/2006, 15:04:05"

type LogView struct {
	ID        int64   `json:"id"`
	Action    string  `json:"action"`
	ItemName  *string `json:"item_name"`
	User      string  `json:"user"`
	Timestamp string  `json:"timestamp"`
	Details   string  `json:"details"`
}

func toView(l models.LogEntry, loc *time.Location) LogView {
	return LogView{
		ID:        l.ID,
		Action:    l.Action,
		ItemName:  l.ItemName,
		User:      l.User,
		Timestamp: l.Timestamp.In(loc).Format(TimestampLayout),
		Details:   l.Details,
	}
}

// ListLogs returns every entry newest first.
func ListLogs(ctx context.Context, db *sqlite.DB, loc *time.Location) ([]LogView, error) {
	var rows []models.LogEntry
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("l.timestamp DESC, l.id DESC").Scan(ctx)
	})
	if loc == nil {
		loc = time.Local
	}
	views := make([]LogView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row, loc))
	}
	return views, err
}

// ResetLogs deletes all entries and reports how many were removed.
func ResetLogs(ctx context.Context, db *sqlite.DB) (int64, error) {
	var removed int64
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*models.LogEntry)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
