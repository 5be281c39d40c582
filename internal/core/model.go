package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationKind is the role a location plays inside a property.
type LocationKind string

const (
	KindCleanStore    LocationKind = "CLEAN_STORE"
	KindSoiledStore   LocationKind = "SOILED_STORE"
	KindRewashBin     LocationKind = "REWASH_BIN"
	KindDamagedBin    LocationKind = "DAMAGED_BIN"
	KindDiscardedLost LocationKind = "DISCARDED_LOST"
	KindVendor        LocationKind = "VENDOR"
)

// Condition is the physical state of linen stock, tracked as part of the balance key.
type Condition string

const (
	ConditionClean   Condition = "CLEAN"
	ConditionSoiled  Condition = "SOILED"
	ConditionRewash  Condition = "REWASH"
	ConditionDamaged Condition = "DAMAGED"
)

// TransactionType identifies the business event a ledger transaction records.
type TransactionType string

const (
	TypeProcurement        TransactionType = "PROCUREMENT"
	TypeDispatchToLaundry  TransactionType = "DISPATCH_TO_LAUNDRY"
	TypeReceiveFromLaundry TransactionType = "RECEIVE_FROM_LAUNDRY"
	TypeResendRewash       TransactionType = "RESEND_REWASH"
	TypeDiscardLost        TransactionType = "DISCARD_LOST"
	TypeAdjustment         TransactionType = "ADJUSTMENT"
	TypeVoidReversal       TransactionType = "VOID_REVERSAL"
)

// Property is one hotel site. All locations and ledger activity are scoped to a property.
type Property struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Vendor is an external laundry operator.
type Vendor struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// LinenItem is a trackable SKU such as "Bath Towel".
type LinenItem struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a bucket that holds linen, scoped to one property.
// KindKey guarantees at most one active location per (property, kind) for
// system kinds, or per (property, vendor) for vendor holding areas.
// VendorID is set iff Kind == KindVendor.
type Location struct {
	ID         int          `json:"id"`
	PropertyID int          `json:"property_id"`
	Name       string       `json:"name"`
	Kind       LocationKind `json:"kind"`
	VendorID   *int         `json:"vendor_id,omitempty"`
	KindKey    string       `json:"kind_key"`
	IsActive   bool         `json:"is_active"`
	IsSystem   bool         `json:"is_system"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Transaction is one immutable business event. It is created once, atomically,
// with its entries; the only fields ever updated afterwards are the voidedAt
// family, set exactly once by the reversal engine.
type Transaction struct {
	ID             int64              `json:"id"`
	Type           TransactionType    `json:"type"`
	PropertyID     int                `json:"property_id"`
	VendorID       *int               `json:"vendor_id,omitempty"`
	Reference      *string            `json:"reference,omitempty"`
	Note           *string            `json:"note,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
	CreatedByID    int                `json:"created_by_id"`
	IdempotencyKey *string            `json:"idempotency_key,omitempty"`
	VoidedAt       *time.Time         `json:"voided_at,omitempty"`
	VoidReason     *string            `json:"void_reason,omitempty"`
	VoidedByID     *int               `json:"voided_by_id,omitempty"`
	ReversalOfID   *int64             `json:"reversal_of_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Entries        []TransactionEntry `json:"entries,omitempty"`
}

// TransactionEntry is one signed quantity movement against a single
// (location, item, condition) key. Immutable once written.
// PropertyID is denormalized from the owning transaction for balance queries.
type TransactionEntry struct {
	ID            int64            `json:"id"`
	TransactionID int64            `json:"transaction_id"`
	PropertyID    int              `json:"property_id"`
	LocationID    int              `json:"location_id"`
	LinenItemID   int              `json:"linen_item_id"`
	Condition     Condition        `json:"condition"`
	QtyDelta      int              `json:"qty_delta"`
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty"`
	Meta          *string          `json:"meta,omitempty"`
}

// Balance is a derived on-hand quantity for one (location, item, condition) key.
// Never stored; always computed by summing entries.
type Balance struct {
	LocationID   int          `json:"location_id"`
	LocationName string       `json:"location_name"`
	LocationKind LocationKind `json:"location_kind"`
	LinenItemID  int          `json:"linen_item_id"`
	ItemName     string       `json:"item_name"`
	Condition    Condition    `json:"condition"`
	Qty          int64        `json:"qty"`
}

// ValidKind reports whether k is one of the defined location kinds.
func ValidKind(k LocationKind) bool {
	switch k {
	case KindCleanStore, KindSoiledStore, KindRewashBin, KindDamagedBin, KindDiscardedLost, KindVendor:
		return true
	}
	return false
}

// ValidCondition reports whether c is one of the defined linen conditions.
func ValidCondition(c Condition) bool {
	switch c {
	case ConditionClean, ConditionSoiled, ConditionRewash, ConditionDamaged:
		return true
	}
	return false
}

// ValidType reports whether t is one of the defined transaction types.
func ValidType(t TransactionType) bool {
	switch t {
	case TypeProcurement, TypeDispatchToLaundry, TypeReceiveFromLaundry,
		TypeResendRewash, TypeDiscardLost, TypeAdjustment, TypeVoidReversal:
		return true
	}
	return false
}
