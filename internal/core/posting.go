package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAbsQtyDelta caps the magnitude of a single entry's quantity movement.
const MaxAbsQtyDelta = 1_000_000

// EntryInput is one proposed quantity-delta line of a posting.
type EntryInput struct {
	LocationID  int              `json:"location_id"`
	LinenItemID int              `json:"linen_item_id"`
	Condition   Condition        `json:"condition"`
	QtyDelta    int              `json:"qty_delta"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	Meta        *string          `json:"meta,omitempty"`
}

// PostInput is a proposed ledger transaction with its entries.
type PostInput struct {
	Type           TransactionType `json:"type"`
	PropertyID     int             `json:"property_id"`
	VendorID       *int            `json:"vendor_id,omitempty"`
	Reference      *string         `json:"reference,omitempty"`
	Note           *string         `json:"note,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at,omitempty"`
	CreatedByID    int             `json:"created_by_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Entries        []EntryInput    `json:"entries"`
	Options        PostOptions     `json:"options"`
}

// PostOptions selects the posting discipline for one call.
//
// StrictStock and LockProperty are independent flags: strict checking without
// the lock can still race against a concurrent posting on the same key across
// calls, which some flows accept to reduce contention. ExemptKinds lists
// location kinds whose negative deltas skip the strict check.
type PostOptions struct {
	StrictStock  bool           `json:"strict_stock"`
	LockProperty bool           `json:"lock_property"`
	ExemptKinds  []LocationKind `json:"exempt_kinds,omitempty"`
}

// PostResult reports the committed transaction. Idempotent is true when the
// call was a replay and no new rows were written.
type PostResult struct {
	TransactionID int64 `json:"transaction_id"`
	Idempotent    bool  `json:"idempotent"`
}

// VoidInput identifies a transaction to void and who is voiding it.
type VoidInput struct {
	TransactionID int64     `json:"transaction_id"`
	VoidedByID    int       `json:"voided_by_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at,omitempty"`
}

// VoidResult reports the voided original and its compensating transaction.
type VoidResult struct {
	OriginalID int64 `json:"original_id"`
	ReversalID int64 `json:"reversal_id"`
}

// Normalize cleans up caller input before validation.
func (in *PostInput) Normalize() {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now()
	}
	if in.Reference != nil && strings.TrimSpace(*in.Reference) == "" {
		in.Reference = nil
	}
	if in.Note != nil && strings.TrimSpace(*in.Note) == "" {
		in.Note = nil
	}
}

// Validate enforces the structural rules of a posting: known enum values,
// a non-empty entry list, nonzero bounded deltas, and non-negative unit costs.
// Existence and ownership of the referenced rows are checked later, inside
// the posting transaction.
func (in *PostInput) Validate() *LedgerError {
	if !ValidType(in.Type) {
		return validationErr("unknown transaction type %q", in.Type)
	}
	if in.Type == TypeVoidReversal {
		return validationErr("VOID_REVERSAL transactions are created only by the void engine")
	}
	if in.PropertyID <= 0 {
		return validationErr("property id is required")
	}
	if in.CreatedByID <= 0 {
		return validationErr("created-by user id is required")
	}
	if in.VendorID != nil && *in.VendorID <= 0 {
		return validationErr("vendor id must be positive when set")
	}
	if len(in.IdempotencyKey) > 128 {
		return validationErr("idempotency key exceeds 128 characters")
	}
	if len(in.Entries) == 0 {
		return validationErr("transaction must have at least one entry")
	}
	for i, e := range in.Entries {
		if e.LocationID <= 0 {
			return validationErr("entry %d: location id is required", i)
		}
		if e.LinenItemID <= 0 {
			return validationErr("entry %d: linen item id is required", i)
		}
		if !ValidCondition(e.Condition) {
			return validationErr("entry %d: unknown condition %q", i, e.Condition)
		}
		if e.QtyDelta == 0 {
			return validationErr("entry %d: qty delta must be nonzero", i)
		}
		if e.QtyDelta > MaxAbsQtyDelta || e.QtyDelta < -MaxAbsQtyDelta {
			return validationErr("entry %d: qty delta %d exceeds limit of %d", i, e.QtyDelta, MaxAbsQtyDelta)
		}
		if e.UnitCost != nil && e.UnitCost.IsNegative() {
			return validationErr("entry %d: unit cost cannot be negative, got %s", i, e.UnitCost)
		}
	}
	for _, k := range in.Options.ExemptKinds {
		if !ValidKind(k) {
			return validationErr("unknown exempt location kind %q", k)
		}
	}
	return nil
}

// Validate checks the structural rules of a void request.
func (in *VoidInput) Validate() *LedgerError {
	if in.TransactionID <= 0 {
		return validationErr("transaction id is required")
	}
	if in.VoidedByID <= 0 {
		return validationErr("voided-by user id is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return validationErr("void reason is required")
	}
	return nil
}

// balanceKey identifies one (location, item, condition) stock bucket.
type balanceKey struct {
	LocationID  int
	LinenItemID int
	Condition   Condition
}

// negativeDeltasByKey sums the negative qty deltas of the input per balance
// key, skipping entries whose location kind is exempted. locKinds maps
// location id to its kind for the exemption check.
func (in *PostInput) negativeDeltasByKey(locKinds map[int]LocationKind) map[balanceKey]int64 {
	exempt := make(map[LocationKind]bool, len(in.Options.ExemptKinds))
	for _, k := range in.Options.ExemptKinds {
		exempt[k] = true
	}

	out := make(map[balanceKey]int64)
	for _, e := range in.Entries {
		if e.QtyDelta >= 0 {
			continue
		}
		if exempt[locKinds[e.LocationID]] {
			continue
		}
		key := balanceKey{LocationID: e.LocationID, LinenItemID: e.LinenItemID, Condition: e.Condition}
		out[key] += int64(e.QtyDelta)
	}
	return out
}
