package categories

import (
	"net/http"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
)

func ListCategoriesQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := ListCategories(r.Context(), db)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, views)
	}
}

func GetCategoryQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := GetCategory(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

func CreateCategoryCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CategoryRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := CreateCategory(r.Context(), db, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, view)
	}
}

func UpdateCategoryCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var req CategoryRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		view, err := UpdateCategory(r.Context(), db, id, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, view)
	}
}

func DeleteCategoryCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if err := DeleteCategory(r.Context(), db, id); err != nil {
			respond.Err(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
