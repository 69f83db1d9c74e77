package inventory

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	sessioncontext "stockoverflow/frontend/shared/context"
	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/audit"
	"stockoverflow/infrastructure/sqlite"
)

const formMaxBytes = 10 << 20

func ListItemsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Category: strings.TrimSpace(q.Get("category")),
			RootOnly: q.Get("root") == "true",
		}
		items, err := ListItems(r.Context(), db, filter)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// SkippedChildrenHeader counts child entries dropped under the best-effort policy.
const SkippedChildrenHeader = "X-Skipped-Children"

func CreateItemCommandHandler(db *sqlite.DB, auditSvc *audit.Service, childPolicy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ItemRequest
		if err := respond.DecodeForm(r, &req, formMaxBytes); err != nil {
			respond.Err(w, r, err)
			return
		}
		result, err := CreateItem(r.Context(), db, auditSvc, sessioncontext.ActorName(r.Context()), childPolicy, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if n := len(result.Skipped); n > 0 {
			w.Header().Set(SkippedChildrenHeader, strconv.Itoa(n))
		}
		respond.JSON(w, http.StatusCreated, result.Item)
	}
}

func GetItemQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		item, err := GetItem(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, item)
	}
}

func FindByBarcodeQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := FindByBarcode(r.Context(), db, chi.URLParam(r, "barcode"))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, item)
	}
}

// UpdateItemCommandHandler serves PUT (partial=false) and PATCH (partial=true).
func UpdateItemCommandHandler(db *sqlite.DB, auditSvc *audit.Service, partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var req ItemRequest
		if err := respond.DecodeForm(r, &req, formMaxBytes); err != nil {
			respond.Err(w, r, err)
			return
		}
		item, err := UpdateItem(r.Context(), db, auditSvc, sessioncontext.ActorName(r.Context()), id, req, partial)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, item)
	}
}

func DeleteItemCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if err := DeleteItem(r.Context(), db, auditSvc, sessioncontext.ActorName(r.Context()), id); err != nil {
			respond.Err(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ItemLabelPNGQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		items, err := LoadItems(r.Context(), db, []int64{id})
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if len(items) == 0 {
			respond.Err(w, r, itemNotFound(id))
			return
		}
		png, err := LabelPNG(items[0])
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", "inline; filename=\""+items[0].Barcode+".png\"")
		_, _ = w.Write(png)
	}
}

// LabelSheetPDFQueryHandler prints labels for ?ids=1,2,3 or for every item when ids is absent.
func LabelSheetPDFQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := parseIDList(r.URL.Query().Get("ids"))
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		items, err := LoadItems(r.Context(), db, ids)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if len(items) == 0 {
			respond.Err(w, r, respond.NotFound("ids", "No inventory items to print."))
			return
		}
		pdf, err := renderLabelSheetPDF(items)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=\"inventory-labels.pdf\"")
		_, _ = w.Write(pdf)
	}
}

func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, respond.Invalid("ids", "must be a comma separated list of ids")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
