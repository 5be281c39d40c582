package core_test

import (
	"context"
	"testing"

	"linen-ledger/internal/core"
)

func TestVendorService_CreateProvisionsLocations(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	vendors := core.NewVendorService(pool)
	locations := core.NewLocationService(pool)
	ctx := context.Background()

	v, err := vendors.Create(ctx, core.VendorInput{Name: "Island Laundry"}, []int{1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The holding area at property 1 exists atomically with the vendor.
	loc, err := locations.Resolve(ctx, 1, core.KindVendor, &v.ID)
	if err != nil {
		t.Fatalf("Resolve of new vendor location failed: %v", err)
	}
	if loc.VendorID == nil || *loc.VendorID != v.ID {
		t.Errorf("Vendor location not bound to vendor %d: %+v", v.ID, loc)
	}
	if !loc.IsSystem {
		t.Errorf("Vendor holding areas are provisioned as system locations")
	}
}

func TestVendorService_DeactivatedVendorRejectsPostings(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	vendors := core.NewVendorService(pool)
	ledger := core.NewLedger(pool)
	ctx := context.Background()

	if err := vendors.Deactivate(ctx, 1); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	vendorID := 1
	_, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeDispatchToLaundry,
		PropertyID:  1,
		VendorID:    &vendorID,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -1},
			{LocationID: 6, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: 1},
		},
	})
	if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("Expected NOT_FOUND for inactive vendor, got %v", err)
	}

	if err := vendors.Deactivate(ctx, 1); core.CodeOf(err) != core.CodeNotFound {
		t.Errorf("Expected NOT_FOUND on repeated deactivation, got %v", err)
	}
}
