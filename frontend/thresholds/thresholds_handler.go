package thresholds

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
)

func RunThresholdsCommandHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := m.Run(r.Context(), sessioncontext.ActorName(r.Context()))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, report)
	}
}

// Every runs the monitor on a ticker until ctx is cancelled.
func (m *Monitor) Every(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := m.Run(ctx, "")
			if err != nil {
				slog.Error("threshold monitor pass failed", slog.Any("err", err))
				continue
			}
			slog.Info("threshold monitor pass",
				slog.Int("cars", report.Cars),
				slog.Int("adjusted", report.Adjusted),
				slog.Int("breached", len(report.Breached)),
				slog.Int("errors", len(report.Errors)),
			)
		}
	}
}
