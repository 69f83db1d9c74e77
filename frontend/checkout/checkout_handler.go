package checkout

import (
	"fmt"
	"net/http"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
)

func ListCheckoutsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := ListCheckouts(r.Context(), db)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, views)
	}
}

func GetCheckoutQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := GetCheckout(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

func CreateCheckoutCommandHandler(db *sqlite.DB, auditSvc *audit.Service, atomic bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckoutRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := CreateCheckout(r.Context(), db, auditSvc, sessioncontext.ActorName(r.Context()), atomic, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, view)
	}
}

func CheckoutSlipPDFQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := GetCheckout(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		pdf, err := renderSlipPDF(view)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"checkout-%d.pdf\"", view.ID))
		_, _ = w.Write(pdf)
	}
}
