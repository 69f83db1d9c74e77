package cars

import (
	"time"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/models"
)

const dateLayout = "2006-01-02"

// Scan messages returned by the VIN scan endpoint.
const (
	MessageUnknownCarAdded = "Unknown car added."
	MessageStatusUpdated   = "Car status updated."
)

// CarRequest is the create/update payload. Nil fields are left untouched on PATCH.
type CarRequest struct {
	VIN             *string `json:"vin"`
	Model           *string `json:"model"`
	Adaptation      *string `json:"adaptation"`
	ScheduledDate   *string `json:"scheduled_date"`
	OrderDate       *string `json:"order_date"`
	Location        *string `json:"location"`
	ClientName      *string `json:"client_name"`
	DealersComments *string `json:"dealers_comments"`
	Status          *string `json:"status"`
}

type CarView struct {
	ID              int64   `json:"id"`
	VIN             string  `json:"vin"`
	Model           string  `json:"model"`
	Adaptation      *string `json:"adaptation"`
	ScheduledDate   *string `json:"scheduled_date"`
	OrderDate       *string `json:"order_date"`
	Location        *string `json:"location"`
	ClientName      *string `json:"client_name"`
	DealersComments *string `json:"dealers_comments"`
	Status          string  `json:"status"`
}

// ScanResult is the outcome of one VIN scan.
type ScanResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ImportResult summarizes a spreadsheet import. Errors holds "Row i: msg" lines.
type ImportResult struct {
	Message  string   `json:"message"`
	Errors   []string `json:"errors"`
	Upserted int      `json:"-"`
}

// BulkResult is returned when a JSON array of cars is stored.
type BulkResult struct {
	Message string    `json:"message"`
	Cars    []CarView `json:"cars"`
}

// CarPartRequest links an inventory item to a car. The item is named by id or barcode.
type CarPartRequest struct {
	InventoryItem  respond.FlexInt  `json:"inventory_item"`
	Barcode        *string          `json:"barcode"`
	QuantityNeeded respond.FlexInt  `json:"quantity_needed"`
	Scanned        respond.FlexBool `json:"scanned"`
}

type CarPartView struct {
	ID              int64  `bun:"id" json:"id"`
	CarID           int64  `bun:"car_id" json:"car"`
	InventoryItemID int64  `bun:"inventory_item_id" json:"inventory_item"`
	ItemName        string `bun:"item_name" json:"item_name"`
	ItemBarcode     string `bun:"item_barcode" json:"item_barcode"`
	QuantityNeeded  int64  `bun:"quantity_needed" json:"quantity_needed"`
	Scanned         bool   `bun:"scanned" json:"scanned"`
}

func toView(c models.Car) CarView {
	return CarView{
		ID:              c.ID,
		VIN:             c.VIN,
		Model:           c.Model,
		Adaptation:      c.Adaptation,
		ScheduledDate:   formatDate(c.ScheduledDate),
		OrderDate:       formatDate(c.OrderDate),
		Location:        c.Location,
		ClientName:      c.ClientName,
		DealersComments: c.DealersComments,
		Status:          c.Status,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
