package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

type CategoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

func notFound(id int64) *respond.NotFoundError {
	return respond.NotFound("detail", "No Category matches id %d.", id)
}

func validateName(ctx context.Context, tx bun.Tx, name string, exceptID int64) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", respond.Invalid("name", "This field may not be blank.")
	}
	if !models.IsValidCategory(name) {
		return "", respond.Invalid("name", fmt.Sprintf("%q is not a valid choice.", name))
	}
	q := tx.NewSelect().Model((*models.Category)(nil)).Where("name = ?", name)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return "", err
	}
	if exists {
		return "", respond.Invalid("name", "category with this name already exists.")
	}
	return name, nil
}

func ListCategories(ctx context.Context, db *sqlite.DB) ([]CategoryView, error) {
	var rows []models.Category
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx)
	})
	views := make([]CategoryView, 0, len(rows))
	for _, c := range rows {
		views = append(views, CategoryView{ID: c.ID, Name: c.Name})
	}
	return views, err
}

func GetCategory(ctx context.Context, db *sqlite.DB, id int64) (CategoryView, error) {
	var row models.Category
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		return err
	})
	return CategoryView{ID: row.ID, Name: row.Name}, err
}

func CreateCategory(ctx context.Context, db *sqlite.DB, req CategoryRequest) (CategoryView, error) {
	var row models.Category
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		name, err := validateName(ctx, tx, req.Name, 0)
		if err != nil {
			return err
		}
		row.Name = name
		_, err = tx.NewInsert().Model(&row).Exec(ctx)
		return err
	})
	return CategoryView{ID: row.ID, Name: row.Name}, err
}

func UpdateCategory(ctx context.Context, db *sqlite.DB, id int64, req CategoryRequest) (CategoryView, error) {
	var row models.Category
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(id)
			}
			return err
		}
		name, err := validateName(ctx, tx, req.Name, id)
		if err != nil {
			return err
		}
		row.Name = name
		_, err = tx.NewUpdate().Model(&row).WherePK().Exec(ctx)
		return err
	})
	return CategoryView{ID: row.ID, Name: row.Name}, err
}

func DeleteCategory(ctx context.Context, db *sqlite.DB, id int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*models.Category)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(id)
		}
		return nil
	})
}

// EnsureDefaults inserts any of the fixed categories that are missing and reports how many.
func EnsureDefaults(ctx context.Context, db *sqlite.DB) (int, error) {
	created := 0
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range models.Categories {
			res, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
			if err != nil {
				return fmt.Errorf("insert category %q: %w", name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created++
			}
		}
		return nil
	})
	return created, err
}
