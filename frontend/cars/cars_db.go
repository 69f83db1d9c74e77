package cars

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
	"stockoverflow/models"
)

const maxVINLength = 17

func carNotFound(id int64) *respond.NotFoundError {
	return respond.NotFound("detail", "No Car matches id %d.", id)
}

// CarFilter narrows the car list. Empty fields match everything.
type CarFilter struct {
	Status string
	VIN    string
}

func ListCars(ctx context.Context, db *sqlite.DB, filter CarFilter) ([]CarView, error) {
	var rows []models.Car
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&rows).OrderExpr("id ASC")
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.VIN != "" {
			q = q.Where("vin = ?", filter.VIN)
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	views := make([]CarView, 0, len(rows))
	for _, c := range rows {
		views = append(views, toView(c))
	}
	return views, nil
}

func GetCar(ctx context.Context, db *sqlite.DB, id int64) (CarView, error) {
	var car models.Car
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		car, err = loadCar(ctx, tx, id)
		return err
	})
	return toView(car), err
}

func loadCar(ctx context.Context, tx bun.Tx, id int64) (models.Car, error) {
	var car models.Car
	err := tx.NewSelect().Model(&car).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return car, carNotFound(id)
	}
	return car, err
}

// applyRequest copies the set fields of req onto car. full=true demands vin and model.
func applyRequest(car *models.Car, req CarRequest, full bool) error {
	verr := &respond.ValidationError{}
	if req.VIN != nil || full {
		car.VIN = trimmed(req.VIN)
		switch {
		case car.VIN == "":
			verr.Add("vin", "This field is required.")
		case len(car.VIN) > maxVINLength:
			verr.Add("vin", fmt.Sprintf("Ensure this field has no more than %d characters.", maxVINLength))
		}
	}
	if req.Model != nil || full {
		car.Model = trimmed(req.Model)
		if car.Model == "" {
			verr.Add("model", "This field is required.")
		}
	}
	if req.Adaptation != nil {
		car.Adaptation = optional(*req.Adaptation)
	}
	if req.Location != nil {
		car.Location = optional(*req.Location)
	}
	if req.ClientName != nil {
		car.ClientName = optional(*req.ClientName)
	}
	if req.DealersComments != nil {
		car.DealersComments = optional(*req.DealersComments)
	}
	if req.Status != nil {
		car.Status = strings.TrimSpace(*req.Status)
	}
	if req.ScheduledDate != nil {
		d, err := parseAPIDate(*req.ScheduledDate)
		if err != nil {
			verr.Add("scheduled_date", err.Error())
		}
		car.ScheduledDate = d
	}
	if req.OrderDate != nil {
		d, err := parseAPIDate(*req.OrderDate)
		if err != nil {
			verr.Add("order_date", err.Error())
		}
		car.OrderDate = d
	}
	return verr.OrNil()
}

func parseAPIDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.New("Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return &d, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// newCar validates req for creation. Status defaults to from_upcoming when omitted.
func newCar(req CarRequest) (models.Car, error) {
	car := models.Car{Status: models.CarStatusFromUpcoming}
	if err := applyRequest(&car, req, true); err != nil {
		return car, err
	}
	return car, nil
}

func CreateCar(ctx context.Context, db *sqlite.DB, req CarRequest) (CarView, error) {
	car, err := newCar(req)
	if err != nil {
		return CarView{}, err
	}
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&car).Exec(ctx)
		return err
	})
	if err != nil {
		return CarView{}, fmt.Errorf("insert car: %w", err)
	}
	return toView(car), nil
}

// BulkCreate validates every element before writing any, then stores them in one transaction.
func BulkCreate(ctx context.Context, db *sqlite.DB, reqs []CarRequest) (BulkResult, error) {
	result := BulkResult{Message: "Bulk upload successful!", Cars: make([]CarView, 0, len(reqs))}
	batch := make([]models.Car, 0, len(reqs))
	verr := &respond.ValidationError{}
	for i, req := range reqs {
		car, err := newCar(req)
		var rowErr *respond.ValidationError
		if errors.As(err, &rowErr) {
			for field, msg := range rowErr.Fields {
				verr.Add(fmt.Sprintf("[%d].%s", i, field), msg)
			}
			continue
		}
		batch = append(batch, car)
	}
	if err := verr.OrNil(); err != nil {
		return result, err
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := range batch {
			if _, err := tx.NewInsert().Model(&batch[i]).Exec(ctx); err != nil {
				return fmt.Errorf("insert car %q: %w", batch[i].VIN, err)
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	for _, c := range batch {
		result.Cars = append(result.Cars, toView(c))
	}
	return result, nil
}

func UpdateCar(ctx context.Context, db *sqlite.DB, id int64, req CarRequest, partial bool) (CarView, error) {
	var car models.Car
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		car, err = loadCar(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := applyRequest(&car, req, !partial); err != nil {
			return err
		}
		_, err = tx.NewUpdate().Model(&car).WherePK().Exec(ctx)
		return err
	})
	return toView(car), err
}

func DeleteCar(ctx context.Context, db *sqlite.DB, id int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*models.Car)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return carNotFound(id)
		}
		return nil
	})
}

// firstByVIN returns the canonical car for vin: the lowest id among duplicates.
func firstByVIN(ctx context.Context, tx bun.Tx, vin string) (models.Car, bool, error) {
	var car models.Car
	err := tx.NewSelect().Model(&car).Where("vin = ?", vin).OrderExpr("id ASC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return car, false, nil
	}
	if err != nil {
		return car, false, err
	}
	return car, true, nil
}

// NextStatus is the scan transition table. Only unset and from_upcoming advance.
func NextStatus(current string) string {
	switch current {
	case models.CarStatusUnset:
		return models.CarStatusFromUpcoming
	case models.CarStatusFromUpcoming:
		return models.CarStatusAllocated
	default:
		return current
	}
}

// ScanVIN advances the status of the first car with vin, or registers an unknown car.
func ScanVIN(ctx context.Context, db *sqlite.DB, vin string) (ScanResult, error) {
	vin = strings.TrimSpace(vin)
	if vin == "" {
		return ScanResult{}, respond.Invalid("vin", "This field is required.")
	}
	var result ScanResult
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		car, found, err := firstByVIN(ctx, tx, vin)
		if err != nil {
			return err
		}
		if !found {
			car = models.Car{VIN: vin, Model: "Unknown", Status: models.CarStatusUnknown}
			if _, err := tx.NewInsert().Model(&car).Exec(ctx); err != nil {
				return fmt.Errorf("insert unknown car: %w", err)
			}
			result = ScanResult{Status: car.Status, Message: MessageUnknownCarAdded}
			return nil
		}

		if next := NextStatus(car.Status); next != car.Status {
			car.Status = next
			if _, err := tx.NewUpdate().Model(&car).Column("status").WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update car status: %w", err)
			}
		}
		result = ScanResult{Status: car.Status, Message: MessageStatusUpdated}
		return nil
	})
	return result, err
}

// ListCarParts returns the parts car id will consume when it arrives.
func ListCarParts(ctx context.Context, db *sqlite.DB, carID int64) ([]CarPartView, error) {
	views := make([]CarPartView, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadCar(ctx, tx, carID); err != nil {
			return err
		}
		return tx.NewRaw(`
SELECT cp.id AS id, cp.car_id AS car_id, cp.inventory_item_id AS inventory_item_id,
       ii.name AS item_name, ii.barcode AS item_barcode,
       cp.quantity_needed AS quantity_needed, cp.scanned AS scanned
FROM car_parts cp
JOIN inventory_items ii ON ii.id = cp.inventory_item_id
WHERE cp.car_id = ?
ORDER BY cp.id ASC`, carID).Scan(ctx, &views)
	})
	return views, err
}

// AddCarPart links an inventory item, named by id or barcode, to car carID.
func AddCarPart(ctx context.Context, db *sqlite.DB, carID int64, req CarPartRequest) (CarPartView, error) {
	view := CarPartView{CarID: carID}
	quantity := int64(1)
	if req.QuantityNeeded.Set {
		quantity = req.QuantityNeeded.Value
	}
	if quantity < 1 {
		return view, respond.Invalid("quantity_needed", "Ensure this value is greater than or equal to 1.")
	}
	barcode := trimmed(req.Barcode)
	if !req.InventoryItem.Set && barcode == "" {
		return view, respond.Invalid("inventory_item", "Provide an inventory item id or barcode.")
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := loadCar(ctx, tx, carID); err != nil {
			return err
		}
		var item models.InventoryItem
		q := tx.NewSelect().Model(&item).Limit(1)
		if req.InventoryItem.Set {
			q = q.Where("id = ?", req.InventoryItem.Value)
		} else {
			q = q.Where("barcode = ?", barcode)
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return respond.NotFound("inventory_item", "No inventory item matches the given reference.")
			}
			return err
		}
		part := models.CarPart{
			CarID:           carID,
			InventoryItemID: item.ID,
			QuantityNeeded:  quantity,
			Scanned:         req.Scanned.Value,
		}
		if _, err := tx.NewInsert().Model(&part).Exec(ctx); err != nil {
			return fmt.Errorf("insert car part: %w", err)
		}
		view = CarPartView{
			ID:              part.ID,
			CarID:           carID,
			InventoryItemID: item.ID,
			ItemName:        item.Name,
			ItemBarcode:     item.Barcode,
			QuantityNeeded:  part.QuantityNeeded,
			Scanned:         part.Scanned,
		}
		return nil
	})
	return view, err
}
