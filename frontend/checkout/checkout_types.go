package checkout

import (
	"time"

	"stockoverflow/frontend/shared/respond"
)

// LineRequest is one part taken in a checkout. Part is the item barcode.
type LineRequest struct {
	Part       string           `json:"part"`
	Damaged    respond.FlexBool `json:"damaged"`
	EditReason *string          `json:"edit_reason"`
}

// CheckoutRequest names the user by badge code (unique_id).
type CheckoutRequest struct {
	User        string        `json:"user"`
	VIN         string        `json:"vin"`
	OrderNumber string        `json:"order_number"`
	Parts       []LineRequest `json:"parts"`
}

type LineView struct {
	ID          int64  `json:"id"`
	Part        int64  `json:"part"`
	PartName    string `json:"part_name"`
	PartBarcode string `json:"part_barcode"`
	Damaged     bool   `json:"damaged"`
	EditReason  string `json:"edit_reason"`
	EditedBy    *int64 `json:"edited_by"`
}

type CheckoutView struct {
	ID           int64      `json:"id"`
	User         int64      `json:"user"`
	UserUniqueID string     `json:"user_unique_id"`
	VIN          string     `json:"vin"`
	OrderNumber  string     `json:"order_number"`
	CreatedAt    time.Time  `json:"created_at"`
	Parts        []LineView `json:"parts"`
}

// consumption is how much stock one line takes. A damaged part consumes a spare.
func consumption(damaged bool) int64 {
	if damaged {
		return 2
	}
	return 1
}
