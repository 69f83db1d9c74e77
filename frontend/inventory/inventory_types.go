package inventory

import (
	"encoding/json"
	"strconv"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/models"
)

// ItemRequest is the create/update payload. Every field is optional so PATCH can reuse it.
type ItemRequest struct {
	Name              *string          `json:"name"`
	SKU               *string          `json:"sku"`
	Barcode           *string          `json:"barcode"`
	Quantity          respond.FlexInt  `json:"quantity"`
	Threshold         respond.FlexInt  `json:"threshold"`
	Category          *string          `json:"category"`
	ThresholdBreached respond.FlexBool `json:"threshold_breached"`
	Parent            respond.FlexInt  `json:"parent"`
	ChildParts        json.RawMessage  `json:"childParts"`
}

// ItemView is the serialized item with its children expanded recursively.
type ItemView struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	SKU               string     `json:"sku"`
	Quantity          int64      `json:"quantity"`
	Threshold         int64      `json:"threshold"`
	Barcode           string     `json:"barcode"`
	Category          string     `json:"category"`
	ThresholdBreached bool       `json:"threshold_breached"`
	Parent            *int64     `json:"parent"`
	Children          []ItemView `json:"children"`
}

// CreateResult reports the stored item and any child entries that were dropped.
// Only Item goes back to the client.
type CreateResult struct {
	Item    ItemView
	Skipped []SkippedChild
}

// SkippedChild describes a child entry rejected under the best-effort policy.
type SkippedChild struct {
	Index  int               `json:"index"`
	Errors map[string]string `json:"errors"`
}

func toView(it models.InventoryItem) ItemView {
	return ItemView{
		ID:                it.ID,
		Name:              it.Name,
		SKU:               it.SKU,
		Quantity:          it.Quantity,
		Threshold:         it.Threshold,
		Barcode:           it.Barcode,
		Category:          it.Category,
		ThresholdBreached: it.ThresholdBreached,
		Parent:            it.ParentID,
		Children:          []ItemView{},
	}
}

// snapshot is the field map used for update diffs, in display order.
func snapshot(it models.InventoryItem) map[string]any {
	parent := "None"
	if it.ParentID != nil {
		parent = strconv.FormatInt(*it.ParentID, 10)
	}
	return map[string]any{
		"name":               it.Name,
		"sku":                it.SKU,
		"quantity":           it.Quantity,
		"threshold":          it.Threshold,
		"barcode":            it.Barcode,
		"category":           it.Category,
		"threshold_breached": it.ThresholdBreached,
		"parent":             parent,
	}
}

var diffFields = []string{"name", "sku", "quantity", "threshold", "barcode", "category", "threshold_breached", "parent"}
