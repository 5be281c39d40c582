package core_test

import (
	"context"
	"testing"

	"linen-ledger/internal/core"
)

func TestLocationService_Resolve(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	locations := core.NewLocationService(pool)
	ctx := context.Background()

	loc, err := locations.Resolve(ctx, 1, core.KindSoiledStore, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loc.ID != 2 || loc.Kind != core.KindSoiledStore {
		t.Errorf("Resolved wrong location: %+v", loc)
	}

	vendorID := 1
	vloc, err := locations.Resolve(ctx, 1, core.KindVendor, &vendorID)
	if err != nil {
		t.Fatalf("Vendor resolve failed: %v", err)
	}
	if vloc.ID != 6 {
		t.Errorf("Resolved wrong vendor location: %+v", vloc)
	}

	// A vendor kind without a vendor id is a malformed call.
	if _, err := locations.Resolve(ctx, 1, core.KindVendor, nil); core.CodeOf(err) != core.CodeValidation {
		t.Errorf("Expected VALIDATION_ERROR, got %v", err)
	}

	missing := 99
	if _, err := locations.Resolve(ctx, 1, core.KindVendor, &missing); core.CodeOf(err) != core.CodeNotFound {
		t.Errorf("Expected NOT_FOUND for unknown vendor, got %v", err)
	}
}

func TestLocationService_CreateDuplicateKind(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	locations := core.NewLocationService(pool)
	ctx := context.Background()

	// The seed already provisions the clean store; a second active one is
	// rejected by the uniqueness of (property, kind_key).
	_, err := locations.Create(ctx, core.LocationInput{
		PropertyID: 1,
		Name:       "Second Clean Store",
		Kind:       core.KindCleanStore,
	})
	if core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("Expected CONFLICT for duplicate kind, got %v", err)
	}
}

func TestLocationService_Deactivate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	locations := core.NewLocationService(pool)
	ctx := context.Background()

	// System locations never deactivate.
	if err := locations.Deactivate(ctx, 1); core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("Expected CONFLICT for system location, got %v", err)
	}

	// Provision a second vendor holding area under a throwaway vendor so it
	// is not a system location.
	var vendorID int
	if err := pool.QueryRow(ctx, "INSERT INTO vendors (name) VALUES ('Retiring Laundry') RETURNING id").Scan(&vendorID); err != nil {
		t.Fatalf("Failed to create vendor: %v", err)
	}
	loc, err := locations.Create(ctx, core.LocationInput{
		PropertyID: 1,
		Name:       "At Retiring Laundry",
		Kind:       core.KindVendor,
		VendorID:   &vendorID,
	})
	if err != nil {
		t.Fatalf("Failed to create location: %v", err)
	}

	// Park stock there; deactivation must refuse while the balance is nonzero.
	vid := vendorID
	_, err = ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		VendorID:    &vid,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: loc.ID, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: 2},
		},
	})
	if err != nil {
		t.Fatalf("Failed to park stock: %v", err)
	}
	if err := locations.Deactivate(ctx, loc.ID); core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("Expected CONFLICT while stock remains, got %v", err)
	}

	// Clear the balance and retire it.
	_, err = ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		VendorID:    &vid,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: loc.ID, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -2},
		},
	})
	if err != nil {
		t.Fatalf("Failed to clear stock: %v", err)
	}
	if err := locations.Deactivate(ctx, loc.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	// Resolving the retired location now misses.
	if _, err := locations.Resolve(ctx, 1, core.KindVendor, &vendorID); core.CodeOf(err) != core.CodeNotFound {
		t.Errorf("Expected NOT_FOUND after deactivation, got %v", err)
	}
}
