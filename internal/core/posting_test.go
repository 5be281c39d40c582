package core_test

import (
	"errors"
	"strings"
	"testing"

	"linen-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestPostInput_Validate_BlankEntries(t *testing.T) {
	// A posting with no entries must be rejected before touching the database
	in := core.PostInput{
		Type:        core.TypeProcurement,
		PropertyID:  1,
		CreatedByID: 1,
	}

	in.Normalize()
	if err := in.Validate(); err == nil {
		t.Errorf("expected error for posting without entries, got nil")
	}
}

func TestPostInput_NormalizationAndValidation(t *testing.T) {
	negativeCost := decimal.NewFromInt(-1)
	validEntry := core.EntryInput{
		LocationID:  1,
		LinenItemID: 1,
		Condition:   core.ConditionClean,
		QtyDelta:    10,
	}

	tests := []struct {
		name      string
		mutate    func(in *core.PostInput)
		expectErr bool
	}{
		{
			name:      "Happy path",
			mutate:    func(in *core.PostInput) {},
			expectErr: false,
		},
		{
			name: "Unknown transaction type",
			mutate: func(in *core.PostInput) {
				in.Type = "TELEPORT"
			},
			expectErr: true,
		},
		{
			name: "Reversal type is reserved for the void engine",
			mutate: func(in *core.PostInput) {
				in.Type = core.TypeVoidReversal
			},
			expectErr: true,
		},
		{
			name: "Missing property",
			mutate: func(in *core.PostInput) {
				in.PropertyID = 0
			},
			expectErr: true,
		},
		{
			name: "Missing creator",
			mutate: func(in *core.PostInput) {
				in.CreatedByID = 0
			},
			expectErr: true,
		},
		{
			name: "Zero qty delta",
			mutate: func(in *core.PostInput) {
				in.Entries[0].QtyDelta = 0
			},
			expectErr: true,
		},
		{
			name: "Qty delta over the cap",
			mutate: func(in *core.PostInput) {
				in.Entries[0].QtyDelta = core.MaxAbsQtyDelta + 1
			},
			expectErr: true,
		},
		{
			name: "Negative qty delta within the cap is fine",
			mutate: func(in *core.PostInput) {
				in.Entries[0].QtyDelta = -core.MaxAbsQtyDelta
			},
			expectErr: false,
		},
		{
			name: "Unknown condition",
			mutate: func(in *core.PostInput) {
				in.Entries[0].Condition = "WET"
			},
			expectErr: true,
		},
		{
			name: "Negative unit cost",
			mutate: func(in *core.PostInput) {
				in.Entries[0].UnitCost = &negativeCost
			},
			expectErr: true,
		},
		{
			name: "Oversized idempotency key",
			mutate: func(in *core.PostInput) {
				in.IdempotencyKey = strings.Repeat("k", 129)
			},
			expectErr: true,
		},
		{
			name: "Unknown exempt kind",
			mutate: func(in *core.PostInput) {
				in.Options.ExemptKinds = []core.LocationKind{"LOBBY"}
			},
			expectErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := core.PostInput{
				Type:        core.TypeAdjustment,
				PropertyID:  1,
				CreatedByID: 1,
				Entries:     []core.EntryInput{validEntry},
			}
			tc.mutate(&in)

			in.Normalize()
			err := in.Validate()
			if tc.expectErr && err == nil {
				t.Errorf("expected validation error, got nil")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestPostInput_Normalize(t *testing.T) {
	blank := "   "
	in := core.PostInput{
		Type:           core.TypeAdjustment,
		PropertyID:     1,
		CreatedByID:    1,
		IdempotencyKey: "  key-1  ",
		Reference:      &blank,
		Note:           &blank,
	}

	in.Normalize()

	if in.IdempotencyKey != "key-1" {
		t.Errorf("expected trimmed idempotency key, got %q", in.IdempotencyKey)
	}
	if in.Reference != nil {
		t.Errorf("expected blank reference to be dropped")
	}
	if in.Note != nil {
		t.Errorf("expected blank note to be dropped")
	}
	if in.OccurredAt.IsZero() {
		t.Errorf("expected OccurredAt to default to now")
	}
}

func TestVoidInput_Validate(t *testing.T) {
	in := core.VoidInput{TransactionID: 1, VoidedByID: 1, Reason: "posted against wrong vendor"}
	if err := in.Validate(); err != nil {
		t.Errorf("expected valid void input, got %v", err)
	}

	in.Reason = "  "
	if err := in.Validate(); err == nil {
		t.Errorf("expected error for blank void reason, got nil")
	}
}

func TestCodeOf(t *testing.T) {
	err := core.ForbiddenErr("user %d has no grant for property %d", 7, 3)
	if got := core.CodeOf(err); got != core.CodeForbidden {
		t.Errorf("expected %s, got %s", core.CodeForbidden, got)
	}

	if got := core.CodeOf(errors.New("connection reset")); got != core.CodeUnknown {
		t.Errorf("expected %s for a foreign error, got %s", core.CodeUnknown, got)
	}
}
