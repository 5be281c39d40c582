package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MovementService implements the hotel linen flows. Each operation assembles
// entries via the location resolver and makes exactly one Post call; all
// correctness guarantees come from the ledger, not from this layer.
type MovementService interface {
	// Procure books newly purchased linen into the clean store.
	Procure(ctx context.Context, req ProcureRequest) (*PostResult, error)

	// DispatchToLaundry moves soiled linen from the soiled store to a
	// vendor's holding area.
	DispatchToLaundry(ctx context.Context, req DispatchRequest) (*PostResult, error)

	// ReceiveFromLaundry books a vendor delivery back, split into clean,
	// rewash, and damaged portions.
	ReceiveFromLaundry(ctx context.Context, req ReceiveRequest) (*PostResult, error)

	// ResendRewash sends rejected items from the rewash bin back to a vendor.
	ResendRewash(ctx context.Context, req RewashRequest) (*PostResult, error)

	// DiscardLost writes linen off from any store into the discard sink.
	DiscardLost(ctx context.Context, req DiscardRequest) (*PostResult, error)

	// Adjust posts a manual correction against explicit locations.
	Adjust(ctx context.Context, req AdjustRequest) (*PostResult, error)
}

// MovementHeader carries the fields common to every flow request.
type MovementHeader struct {
	PropertyID     int       `json:"property_id"`
	CreatedByID    int       `json:"created_by_id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Reference      *string   `json:"reference,omitempty"`
	Note           *string   `json:"note,omitempty"`
	OccurredAt     time.Time `json:"occurred_at,omitempty"`
}

// ProcureLine is one purchased item lot.
type ProcureLine struct {
	LinenItemID int              `json:"linen_item_id"`
	Qty         int              `json:"qty"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
}

type ProcureRequest struct {
	MovementHeader
	Lines []ProcureLine `json:"lines"`
}

// QtyLine is one item/quantity pair used by dispatch and rewash flows.
type QtyLine struct {
	LinenItemID int `json:"linen_item_id"`
	Qty         int `json:"qty"`
}

type DispatchRequest struct {
	MovementHeader
	VendorID int       `json:"vendor_id"`
	Lines    []QtyLine `json:"lines"`
}

// ReceiveLine splits one delivered item into clean, rewash, and damaged
// portions. The vendor's soiled balance is relieved by the line total.
type ReceiveLine struct {
	LinenItemID int `json:"linen_item_id"`
	CleanQty    int `json:"clean_qty"`
	RewashQty   int `json:"rewash_qty"`
	DamagedQty  int `json:"damaged_qty"`
}

type ReceiveRequest struct {
	MovementHeader
	VendorID int           `json:"vendor_id"`
	Lines    []ReceiveLine `json:"lines"`
}

type RewashRequest struct {
	MovementHeader
	VendorID int       `json:"vendor_id"`
	Lines    []QtyLine `json:"lines"`
}

// DiscardLine removes qty of an item in a given condition from the store
// matching FromKind.
type DiscardLine struct {
	LinenItemID int          `json:"linen_item_id"`
	Qty         int          `json:"qty"`
	FromKind    LocationKind `json:"from_kind"`
	Condition   Condition    `json:"condition"`
}

type DiscardRequest struct {
	MovementHeader
	Lines []DiscardLine `json:"lines"`
}

// AdjustRequest posts raw entries against explicit locations.
// AllowNegative disables the strict-stock check for corrections that
// intentionally acknowledge missing stock.
type AdjustRequest struct {
	MovementHeader
	Entries       []EntryInput `json:"entries"`
	AllowNegative bool         `json:"allow_negative"`
}

type movementService struct {
	ledger    LedgerService
	locations LocationService
}

// NewMovementService constructs a MovementService on top of the ledger and
// the location resolver.
func NewMovementService(ledger LedgerService, locations LocationService) MovementService {
	return &movementService{ledger: ledger, locations: locations}
}

func metaTag(flow string) *string { return &flow }

func (h MovementHeader) toInput(txType TransactionType, opts PostOptions) PostInput {
	return PostInput{
		Type:           txType,
		PropertyID:     h.PropertyID,
		Reference:      h.Reference,
		Note:           h.Note,
		OccurredAt:     h.OccurredAt,
		CreatedByID:    h.CreatedByID,
		IdempotencyKey: h.IdempotencyKey,
		Options:        opts,
	}
}

func (s *movementService) Procure(ctx context.Context, req ProcureRequest) (*PostResult, error) {
	if len(req.Lines) == 0 {
		return nil, validationErr("procurement needs at least one line")
	}
	cleanStore, err := s.locations.Resolve(ctx, req.PropertyID, KindCleanStore, nil)
	if err != nil {
		return nil, err
	}

	input := req.toInput(TypeProcurement, PostOptions{})
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, validationErr("procurement qty must be positive for item %d", line.LinenItemID)
		}
		input.Entries = append(input.Entries, EntryInput{
			LocationID:  cleanStore.ID,
			LinenItemID: line.LinenItemID,
			Condition:   ConditionClean,
			QtyDelta:    line.Qty,
			UnitCost:    line.UnitCost,
			Meta:        metaTag("procurement"),
		})
	}
	return s.ledger.Post(ctx, input)
}

func (s *movementService) DispatchToLaundry(ctx context.Context, req DispatchRequest) (*PostResult, error) {
	if len(req.Lines) == 0 {
		return nil, validationErr("dispatch needs at least one line")
	}
	soiledStore, err := s.locations.Resolve(ctx, req.PropertyID, KindSoiledStore, nil)
	if err != nil {
		return nil, err
	}
	vendorLoc, err := s.locations.Resolve(ctx, req.PropertyID, KindVendor, &req.VendorID)
	if err != nil {
		return nil, err
	}

	// Dispatch is the contended flow: strict stock with the property lock so
	// two concurrent dispatches cannot both drain the soiled store.
	input := req.toInput(TypeDispatchToLaundry, PostOptions{StrictStock: true, LockProperty: true})
	input.VendorID = &req.VendorID
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, validationErr("dispatch qty must be positive for item %d", line.LinenItemID)
		}
		input.Entries = append(input.Entries,
			EntryInput{
				LocationID:  soiledStore.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionSoiled,
				QtyDelta:    -line.Qty,
				Meta:        metaTag("dispatch_to_laundry"),
			},
			EntryInput{
				LocationID:  vendorLoc.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionSoiled,
				QtyDelta:    line.Qty,
				Meta:        metaTag("dispatch_to_laundry"),
			},
		)
	}
	return s.ledger.Post(ctx, input)
}

func (s *movementService) ReceiveFromLaundry(ctx context.Context, req ReceiveRequest) (*PostResult, error) {
	if len(req.Lines) == 0 {
		return nil, validationErr("receive needs at least one line")
	}
	vendorLoc, err := s.locations.Resolve(ctx, req.PropertyID, KindVendor, &req.VendorID)
	if err != nil {
		return nil, err
	}
	cleanStore, err := s.locations.Resolve(ctx, req.PropertyID, KindCleanStore, nil)
	if err != nil {
		return nil, err
	}

	input := req.toInput(TypeReceiveFromLaundry, PostOptions{StrictStock: true})
	input.VendorID = &req.VendorID
	for _, line := range req.Lines {
		total := line.CleanQty + line.RewashQty + line.DamagedQty
		if total <= 0 || line.CleanQty < 0 || line.RewashQty < 0 || line.DamagedQty < 0 {
			return nil, validationErr("receive quantities must be non-negative with a positive total for item %d", line.LinenItemID)
		}

		input.Entries = append(input.Entries, EntryInput{
			LocationID:  vendorLoc.ID,
			LinenItemID: line.LinenItemID,
			Condition:   ConditionSoiled,
			QtyDelta:    -total,
			Meta:        metaTag("receive_from_laundry"),
		})
		if line.CleanQty > 0 {
			input.Entries = append(input.Entries, EntryInput{
				LocationID:  cleanStore.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionClean,
				QtyDelta:    line.CleanQty,
				Meta:        metaTag("receive_from_laundry"),
			})
		}
		if line.RewashQty > 0 {
			rewashBin, err := s.locations.Resolve(ctx, req.PropertyID, KindRewashBin, nil)
			if err != nil {
				return nil, err
			}
			input.Entries = append(input.Entries, EntryInput{
				LocationID:  rewashBin.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionRewash,
				QtyDelta:    line.RewashQty,
				Meta:        metaTag("receive_from_laundry"),
			})
		}
		if line.DamagedQty > 0 {
			damagedBin, err := s.locations.Resolve(ctx, req.PropertyID, KindDamagedBin, nil)
			if err != nil {
				return nil, err
			}
			input.Entries = append(input.Entries, EntryInput{
				LocationID:  damagedBin.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionDamaged,
				QtyDelta:    line.DamagedQty,
				Meta:        metaTag("receive_from_laundry"),
			})
		}
	}
	return s.ledger.Post(ctx, input)
}

func (s *movementService) ResendRewash(ctx context.Context, req RewashRequest) (*PostResult, error) {
	if len(req.Lines) == 0 {
		return nil, validationErr("rewash needs at least one line")
	}
	rewashBin, err := s.locations.Resolve(ctx, req.PropertyID, KindRewashBin, nil)
	if err != nil {
		return nil, err
	}
	vendorLoc, err := s.locations.Resolve(ctx, req.PropertyID, KindVendor, &req.VendorID)
	if err != nil {
		return nil, err
	}

	input := req.toInput(TypeResendRewash, PostOptions{StrictStock: true})
	input.VendorID = &req.VendorID
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, validationErr("rewash qty must be positive for item %d", line.LinenItemID)
		}
		// Items leave the bin as REWASH and re-enter the vendor queue as SOILED.
		input.Entries = append(input.Entries,
			EntryInput{
				LocationID:  rewashBin.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionRewash,
				QtyDelta:    -line.Qty,
				Meta:        metaTag("resend_rewash"),
			},
			EntryInput{
				LocationID:  vendorLoc.ID,
				LinenItemID: line.LinenItemID,
				Condition:   ConditionSoiled,
				QtyDelta:    line.Qty,
				Meta:        metaTag("resend_rewash"),
			},
		)
	}
	return s.ledger.Post(ctx, input)
}

func (s *movementService) DiscardLost(ctx context.Context, req DiscardRequest) (*PostResult, error) {
	if len(req.Lines) == 0 {
		return nil, validationErr("discard needs at least one line")
	}
	sink, err := s.locations.Resolve(ctx, req.PropertyID, KindDiscardedLost, nil)
	if err != nil {
		return nil, err
	}

	// The sink itself is exempt so later corrections can pull items back out.
	input := req.toInput(TypeDiscardLost, PostOptions{
		StrictStock: true,
		ExemptKinds: []LocationKind{KindDiscardedLost},
	})
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, validationErr("discard qty must be positive for item %d", line.LinenItemID)
		}
		source, err := s.locations.Resolve(ctx, req.PropertyID, line.FromKind, nil)
		if err != nil {
			return nil, err
		}
		input.Entries = append(input.Entries,
			EntryInput{
				LocationID:  source.ID,
				LinenItemID: line.LinenItemID,
				Condition:   line.Condition,
				QtyDelta:    -line.Qty,
				Meta:        metaTag("discard_lost"),
			},
			EntryInput{
				LocationID:  sink.ID,
				LinenItemID: line.LinenItemID,
				Condition:   line.Condition,
				QtyDelta:    line.Qty,
				Meta:        metaTag("discard_lost"),
			},
		)
	}
	return s.ledger.Post(ctx, input)
}

func (s *movementService) Adjust(ctx context.Context, req AdjustRequest) (*PostResult, error) {
	input := req.toInput(TypeAdjustment, PostOptions{StrictStock: !req.AllowNegative})
	input.Entries = req.Entries
	for i := range input.Entries {
		if input.Entries[i].Meta == nil {
			input.Entries[i].Meta = metaTag("adjustment")
		}
	}
	return s.ledger.Post(ctx, input)
}
