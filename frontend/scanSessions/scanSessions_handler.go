package scansessions

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
)

func ScanItemCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScanRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := ScanItem(r.Context(), db, sessioncontext.ActorName(r.Context()), req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

func GetSessionQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := GetSession(r.Context(), db, chi.URLParam(r, "sessionID"))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

func ConfirmSessionCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		result, err := ConfirmSession(r.Context(), db, auditSvc, sessioncontext.ActorName(r.Context()), req.SessionID)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, result)
	}
}
