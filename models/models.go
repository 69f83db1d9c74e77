package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Inventory categories. Children always carry their parent's category.
const (
	CategoryProduction  = "Production"
	CategoryOffice      = "Office"
	CategoryCarWash     = "Car Wash"
	CategoryPaintDamage = "Paint/Damage"
)

// Categories lists the allowed category names in display order.
var Categories = []string{CategoryProduction, CategoryOffice, CategoryCarWash, CategoryPaintDamage}

// IsValidCategory reports whether name is one of the fixed categories.
func IsValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Car statuses driven by the VIN scan workflow. Bulk import may store free-form values.
const (
	CarStatusUnset        = ""
	CarStatusFromUpcoming = "from_upcoming"
	CarStatusAllocated    = "allocated"
	CarStatusUnknown      = "unknown"
)

// Category is a named inventory grouping.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique,notnull"`
}

// User is a warehouse staff member. UniqueID is the badge code used for checkout attribution.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Username     string     `bun:"username,unique,notnull"`
	FirstName    string     `bun:"first_name,notnull"`
	LastName     string     `bun:"last_name,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	Role         string     `bun:"role,notnull"`
	UniqueID     string     `bun:"unique_id,unique,notnull"`
	IsActive     bool       `bun:"is_active,notnull"`
	IsSuperuser  bool       `bun:"is_superuser,notnull"`
	TempExpiry   *time.Time `bun:"temp_expiry"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// FullName joins first and last name the way the admin screens show it.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// TempExpired returns true when a temporary access window has closed.
func (u User) TempExpired(now time.Time) bool {
	return u.TempExpiry != nil && now.After(*u.TempExpiry)
}

// InventoryItem is a stocked part. ParentID links child parts to their kit.
type InventoryItem struct {
	bun.BaseModel `bun:"table:inventory_items,alias:ii"`

	ID                int64  `bun:"id,pk,autoincrement"`
	Name              string `bun:"name,notnull"`
	SKU               string `bun:"sku,notnull"`
	Quantity          int64  `bun:"quantity,notnull"`
	Threshold         int64  `bun:"threshold,notnull"`
	Barcode           string `bun:"barcode,unique,notnull"`
	Category          string `bun:"category,notnull"`
	ThresholdBreached bool   `bun:"threshold_breached,notnull"`
	ParentID          *int64 `bun:"parent_id"`
}

// Car is a Fleet Registry entry. VIN is not unique at the database level.
type Car struct {
	bun.BaseModel `bun:"table:cars,alias:c"`

	ID              int64      `bun:"id,pk,autoincrement"`
	VIN             string     `bun:"vin,notnull"`
	Model           string     `bun:"model,notnull"`
	Adaptation      *string    `bun:"adaptation"`
	ScheduledDate   *time.Time `bun:"scheduled_date"`
	OrderDate       *time.Time `bun:"order_date"`
	Location        *string    `bun:"location"`
	ClientName      *string    `bun:"client_name"`
	DealersComments *string    `bun:"dealers_comments"`
	Status          string     `bun:"status,notnull"`
}

// CarPart is a part an upcoming car will consume when it arrives.
type CarPart struct {
	bun.BaseModel `bun:"table:car_parts,alias:cp"`

	ID              int64 `bun:"id,pk,autoincrement"`
	CarID           int64 `bun:"car_id,notnull"`
	InventoryItemID int64 `bun:"inventory_item_id,notnull"`
	QuantityNeeded  int64 `bun:"quantity_needed,notnull"`
	Scanned         bool  `bun:"scanned,notnull"`
}

// Checkout records parts taken for a vehicle order.
type Checkout struct {
	bun.BaseModel `bun:"table:checkouts,alias:co"`

	ID          int64          `bun:"id,pk,autoincrement"`
	UserID      int64          `bun:"user_id,notnull"`
	User        *User          `bun:"rel:belongs-to,join:user_id=id"`
	VIN         string         `bun:"vin,notnull"`
	OrderNumber string         `bun:"order_number,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Parts       []CheckoutPart `bun:"rel:has-many,join:id=checkout_id"`
}

// CheckoutPart is one line of a checkout.
type CheckoutPart struct {
	bun.BaseModel `bun:"table:checkout_parts,alias:cop"`

	ID         int64          `bun:"id,pk,autoincrement"`
	CheckoutID int64          `bun:"checkout_id,notnull"`
	PartID     int64          `bun:"part_id,notnull"`
	Part       *InventoryItem `bun:"rel:belongs-to,join:part_id=id"`
	Damaged    bool           `bun:"damaged,notnull"`
	EditReason string         `bun:"edit_reason,notnull"`
	EditedByID *int64         `bun:"edited_by_id"`
}

// LogEntry is an append-only audit line. User is a display label, not a foreign key.
type LogEntry struct {
	bun.BaseModel `bun:"table:logs,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Action    string    `bun:"action,notnull"`
	ItemName  *string   `bun:"item_name"`
	User      string    `bun:"user,notnull"`
	Timestamp time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	Details   string    `bun:"details,notnull"`
}

// ScanSession holds parts scanned against a car label until confirmed.
type ScanSession struct {
	bun.BaseModel `bun:"table:scan_sessions,alias:ss"`

	SessionID string        `bun:"session_id,pk"`
	CarLabel  string        `bun:"car_label,notnull"`
	Parts     []ScannedPart `bun:"parts,type:json,notnull"`
	User      string        `bun:"user,notnull"`
	CreatedAt time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ScannedPart is the snapshot of an item taken at scan time.
type ScannedPart struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Barcode  string `json:"barcode"`
	Quantity int64  `json:"quantity"`
}
