package logs

import (
	"log/slog"
	"net/http"
	"time"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
)

func ListLogsQueryHandler(db *sqlite.DB, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := ListLogs(r.Context(), db, loc)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, entries)
	}
}

// LogsPageQueryHandler renders the log table as HTML.
func LogsPageQueryHandler(db *sqlite.DB, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := ListLogs(r.Context(), db, loc)
		if err != nil {
			slog.Error("logs: failed to load entries", slog.Any("err", err))
			http.Error(w, "failed to load logs", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := LogsPage(entries).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render logs page", http.StatusInternalServerError)
			return
		}
	}
}

func ResetLogsCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := ResetLogs(r.Context(), db)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		slog.Info("logs reset",
			slog.String("actor", sessioncontext.ActorName(r.Context())),
			slog.Int64("removed", removed),
		)
		respond.JSON(w, http.StatusOK, map[string]any{"message": "Logs reset successfully.", "deleted": removed})
	}
}
