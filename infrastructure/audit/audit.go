package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"stockoverflow/models"
)

// Anonymous is recorded as the actor when the request carries no identity.
const Anonymous = "Anonymous"

// Log actions written by the inventory and workflow handlers.
const (
	ActionCreatedItem    = "Created Item"
	ActionUpdatedItem    = "Updated Item"
	ActionDeletedItem    = "Deleted Item"
	ActionCheckout       = "Checkout"
	ActionSessionConfirm = "Confirmed Scan Session"
	ActionThresholdRun   = "Threshold Adjustment"
)

// Entry is a log line before it is persisted.
type Entry struct {
	Action   string
	ItemName string
	Actor    string
	Details  string
}

// Service appends log entries inside the caller transaction.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

func (s *Service) Write(ctx context.Context, tx bun.Tx, e Entry) error {
	row := &models.LogEntry{
		Action:    e.Action,
		User:      ActorOrAnonymous(e.Actor),
		Timestamp: s.now(),
		Details:   e.Details,
	}
	if name := strings.TrimSpace(e.ItemName); name != "" {
		row.ItemName = &name
	}
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("write log %q: %w", e.Action, err)
	}
	return nil
}

// ActorOrAnonymous maps an empty display name to the Anonymous sentinel.
func ActorOrAnonymous(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return Anonymous
	}
	return actor
}

// Change is one field whose value differs between two snapshots.
type Change struct {
	Field string
	Old   any
	New   any
}

// Diff compares named field values in order and returns the ones that changed.
func Diff(fields []string, before, after map[string]any) []Change {
	changes := make([]Change, 0)
	for _, f := range fields {
		if fmt.Sprint(before[f]) != fmt.Sprint(after[f]) {
			changes = append(changes, Change{Field: f, Old: before[f], New: after[f]})
		}
	}
	return changes
}

// FormatChanges renders "Updated Fields:" followed by one "field: old -> new" line per change.
func FormatChanges(changes []Change) string {
	lines := make([]string, 0, len(changes)+1)
	lines = append(lines, "Updated Fields:")
	for _, c := range changes {
		lines = append(lines, fmt.Sprintf("%s: %v -> %v", c.Field, c.Old, c.New))
	}
	return strings.Join(lines, "\n")
}
