package cars

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

// importColumn maps one spreadsheet header onto a car field.
type importColumn struct {
	Header string
	Set    func(c *models.Car, value string)
}

// ImportColumns is the fixed header mapping, in the order columns are checked.
var ImportColumns = []importColumn{
	{Header: "Frame", Set: func(c *models.Car, v string) { c.VIN = v }},
	{Header: "Type description", Set: func(c *models.Car, v string) { c.Model = v }},
	{Header: "Adaptation description", Set: func(c *models.Car, v string) { c.Adaptation = optional(v) }},
	{Header: "Estim Arrival", Set: func(c *models.Car, v string) { c.ScheduledDate = ParseImportDate(v) }},
	{Header: "Order date", Set: func(c *models.Car, v string) { c.OrderDate = ParseImportDate(v) }},
	{Header: "Name", Set: func(c *models.Car, v string) { c.ClientName = optional(v) }},
	{Header: "Dealer's comment", Set: func(c *models.Car, v string) { c.DealersComments = optional(v) }},
	{Header: "Location", Set: func(c *models.Car, v string) { c.Location = optional(v) }},
}

var importDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2006/01/02",
	"01-02-06",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseImportDate accepts the layouts seen in dealer sheets and Excel serial numbers.
// Anything else yields nil; bad dates never fail a row.
func ParseImportDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial <= 0 {
			return nil
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ReadSheet returns all rows of a .csv file, or of the first sheet of a workbook.
func ReadSheet(filename string, r io.Reader) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, &respond.UpstreamIOError{Err: err}
		}
		return rows, nil
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &respond.UpstreamIOError{Err: err}
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &respond.UpstreamIOError{Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &respond.UpstreamIOError{Err: err}
	}
	return rows, nil
}

// columnIndex resolves every mapped header or reports all missing ones at once.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	missing := make([]string, 0)
	for _, col := range ImportColumns {
		if _, ok := index[col.Header]; !ok {
			missing = append(missing, col.Header)
		}
	}
	if len(missing) > 0 {
		return nil, respond.Invalid("error", "Missing required columns: "+strings.Join(missing, ", "))
	}
	return index, nil
}

// ImportCars upserts one car per data row keyed by VIN. Each row commits on its own;
// a failing row is reported as "Row i: msg" and the rest of the sheet continues.
func ImportCars(ctx context.Context, db *sqlite.DB, filename string, r io.Reader) (ImportResult, error) {
	result := ImportResult{Errors: make([]string, 0)}
	rows, err := ReadSheet(filename, r)
	if err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, &respond.UpstreamIOError{Err: errors.New("file is empty")}
	}
	index, err := columnIndex(rows[0])
	if err != nil {
		return result, err
	}

	for i, record := range rows[1:] {
		if blankRow(record) {
			continue
		}
		car := models.Car{}
		for _, col := range ImportColumns {
			col.Set(&car, cell(record, index[col.Header]))
		}
		car.Status = models.CarStatusFromUpcoming

		if err := upsertCar(ctx, db, car); err != nil {
			slog.Warn("car import row failed", slog.Int("row", i+1), slog.Any("err", err))
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", i+1, rowMessage(err)))
			continue
		}
		result.Upserted++
	}
	result.Message = fmt.Sprintf("Upload complete. %d cars added/updated.", result.Upserted)
	return result, nil
}

func upsertCar(ctx context.Context, db *sqlite.DB, car models.Car) error {
	if car.VIN == "" {
		return respond.Invalid("vin", "VIN is required.")
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		existing, found, err := firstByVIN(ctx, tx, car.VIN)
		if err != nil {
			return err
		}
		if !found {
			_, err := tx.NewInsert().Model(&car).Exec(ctx)
			return err
		}
		car.ID = existing.ID
		_, err = tx.NewUpdate().Model(&car).WherePK().Exec(ctx)
		return err
	})
}

func rowMessage(err error) string {
	var verr *respond.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Fields))
		for _, msg := range verr.Fields {
			parts = append(parts, msg)
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
