package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"linen-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE transaction_entries, transactions, user_properties, users, locations, linen_items, vendors, properties CASCADE;

		INSERT INTO properties (id, name) VALUES (1, 'Test Hotel');

		INSERT INTO vendors (id, name) VALUES (1, 'Test Laundry'), (2, 'Other Laundry');

		INSERT INTO locations (id, property_id, name, kind, kind_key, vendor_id, is_system) VALUES
		(1, 1, 'Clean Store', 'CLEAN_STORE', 'CLEAN_STORE', NULL, TRUE),
		(2, 1, 'Soiled Store', 'SOILED_STORE', 'SOILED_STORE', NULL, TRUE),
		(3, 1, 'Rewash Bin', 'REWASH_BIN', 'REWASH_BIN', NULL, TRUE),
		(4, 1, 'Damaged Bin', 'DAMAGED_BIN', 'DAMAGED_BIN', NULL, TRUE),
		(5, 1, 'Discarded / Lost', 'DISCARDED_LOST', 'DISCARDED_LOST', NULL, TRUE),
		(6, 1, 'At Test Laundry', 'VENDOR', 'VENDOR:1', 1, TRUE),
		(7, 1, 'At Other Laundry', 'VENDOR', 'VENDOR:2', 2, TRUE);

		INSERT INTO linen_items (id, name, sku) VALUES
		(1, 'Bath Towel', 'BT-01'),
		(2, 'Flat Sheet', 'FS-01');

		INSERT INTO users (id, username, password_hash) VALUES
		(1, 'housekeeper', 'x'),
		(2, 'manager', 'x');

		INSERT INTO user_properties (user_id, property_id) VALUES (1, 1), (2, 1);

		SELECT setval('properties_id_seq', 100);
		SELECT setval('vendors_id_seq', 100);
		SELECT setval('locations_id_seq', 100);
		SELECT setval('linen_items_id_seq', 100);
		SELECT setval('users_id_seq', 100);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// seedBalance posts a non-strict adjustment that sets up stock for a test.
func seedBalance(t *testing.T, ledger *core.Ledger, locationID, itemID, qty int, condition core.Condition) {
	t.Helper()
	_, err := ledger.Post(context.Background(), core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 2,
		Entries: []core.EntryInput{
			{LocationID: locationID, LinenItemID: itemID, Condition: condition, QtyDelta: qty},
		},
	})
	if err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}
}

func TestLedger_Idempotency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	key := uuid.NewString()
	input := core.PostInput{
		Type:           core.TypeProcurement,
		PropertyID:     1,
		CreatedByID:    1,
		IdempotencyKey: key,
		Entries: []core.EntryInput{
			{LocationID: 1, LinenItemID: 1, Condition: core.ConditionClean, QtyDelta: 20},
		},
	}

	first, err := ledger.Post(ctx, input)
	if err != nil {
		t.Fatalf("First post failed: %v", err)
	}
	if first.Idempotent {
		t.Errorf("First post should not be marked idempotent")
	}

	second, err := ledger.Post(ctx, input)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !second.Idempotent {
		t.Errorf("Replay should be marked idempotent")
	}
	if second.TransactionID != first.TransactionID {
		t.Errorf("Replay returned transaction %d, want %d", second.TransactionID, first.TransactionID)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM transactions").Scan(&count); err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 transaction after replay, got %d", count)
	}
}

func TestLedger_IdempotencyScopedToUser(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	key := uuid.NewString()
	input := core.PostInput{
		Type:           core.TypeProcurement,
		PropertyID:     1,
		CreatedByID:    1,
		IdempotencyKey: key,
		Entries: []core.EntryInput{
			{LocationID: 1, LinenItemID: 1, Condition: core.ConditionClean, QtyDelta: 5},
		},
	}

	first, err := ledger.Post(ctx, input)
	if err != nil {
		t.Fatalf("First post failed: %v", err)
	}

	// Same key under a different user is a distinct logical operation.
	input.CreatedByID = 2
	second, err := ledger.Post(ctx, input)
	if err != nil {
		t.Fatalf("Post by second user failed: %v", err)
	}
	if second.Idempotent {
		t.Errorf("Different user's post should not collapse into the first")
	}
	if second.TransactionID == first.TransactionID {
		t.Errorf("Expected a new transaction for the second user")
	}
}

func TestLedger_StrictStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	seedBalance(t, ledger, 2, 1, 5, core.ConditionSoiled)

	// Overdraw by one: balance 5, withdrawing 6.
	_, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 1,
		Options:     core.PostOptions{StrictStock: true, LockProperty: true},
		Entries: []core.EntryInput{
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -6},
		},
	})
	if core.CodeOf(err) != core.CodeInsufficientStock {
		t.Fatalf("Expected INSUFFICIENT_STOCK, got %v", err)
	}

	var le *core.LedgerError
	if !errors.As(err, &le) || len(le.Violations) != 1 {
		t.Fatalf("Expected exactly one stock violation, got %v", err)
	}
	v := le.Violations[0]
	if v.CurrentQty != 5 || v.AttemptedQty != -6 || v.ResultingQty != -1 {
		t.Errorf("Unexpected violation detail: %+v", v)
	}

	// The exact boundary: withdrawing the full balance must succeed.
	_, err = ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 1,
		Options:     core.PostOptions{StrictStock: true, LockProperty: true},
		Entries: []core.EntryInput{
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -5},
		},
	})
	if err != nil {
		t.Fatalf("Withdrawing exactly the balance should succeed, got %v", err)
	}

	qty, err := ledger.BalanceForKey(ctx, 1, 2, 1, core.ConditionSoiled)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if qty != 0 {
		t.Errorf("Expected zero balance after full withdrawal, got %d", qty)
	}
}

func TestLedger_StrictStockSumsDeltasPerKey(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	seedBalance(t, ledger, 2, 1, 5, core.ConditionSoiled)

	// Two entries against the same key: -3 and -3 must be summed to -6
	// before the check, not checked one at a time.
	_, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 1,
		Options:     core.PostOptions{StrictStock: true},
		Entries: []core.EntryInput{
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -3},
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -3},
		},
	})
	if core.CodeOf(err) != core.CodeInsufficientStock {
		t.Fatalf("Expected INSUFFICIENT_STOCK for summed deltas, got %v", err)
	}
}

func TestLedger_VendorLocationScoping(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	// Entry targets a vendor location but the transaction carries no vendor.
	_, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: 6, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: 3},
		},
	})
	if core.CodeOf(err) != core.CodeValidation {
		t.Fatalf("Expected VALIDATION_ERROR for vendor location without vendor id, got %v", err)
	}

	// Transaction names vendor 2 but the entry targets vendor 1's location.
	wrongVendor := 2
	_, err = ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		VendorID:    &wrongVendor,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: 6, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: 3},
		},
	})
	if core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("Expected CONFLICT for mismatched vendor location, got %v", err)
	}
}

func TestLedger_AtomicityOnFailure(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	// Second entry references a location that does not exist; the first
	// entry must not survive on its own.
	_, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeAdjustment,
		PropertyID:  1,
		CreatedByID: 1,
		Entries: []core.EntryInput{
			{LocationID: 1, LinenItemID: 1, Condition: core.ConditionClean, QtyDelta: 10},
			{LocationID: 999, LinenItemID: 1, Condition: core.ConditionClean, QtyDelta: 10},
		},
	})
	if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("Expected NOT_FOUND for unknown location, got %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM transactions").Scan(&count); err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no transactions after failed post, got %d", count)
	}
}

func TestLedger_VoidFlow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	seedBalance(t, ledger, 2, 1, 10, core.ConditionSoiled)

	vendorID := 1
	posted, err := ledger.Post(ctx, core.PostInput{
		Type:        core.TypeDispatchToLaundry,
		PropertyID:  1,
		VendorID:    &vendorID,
		CreatedByID: 1,
		Options:     core.PostOptions{StrictStock: true, LockProperty: true},
		Entries: []core.EntryInput{
			{LocationID: 2, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: -4},
			{LocationID: 6, LinenItemID: 1, Condition: core.ConditionSoiled, QtyDelta: 4},
		},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	// Void it and verify both balances are restored.
	res, err := ledger.Void(ctx, core.VoidInput{
		TransactionID: posted.TransactionID,
		VoidedByID:    2,
		Reason:        "dispatched to the wrong vendor",
	})
	if err != nil {
		t.Fatalf("Void failed: %v", err)
	}
	if res.OriginalID != posted.TransactionID {
		t.Errorf("Void reported original %d, want %d", res.OriginalID, posted.TransactionID)
	}

	store, _ := ledger.BalanceForKey(ctx, 1, 2, 1, core.ConditionSoiled)
	vendor, _ := ledger.BalanceForKey(ctx, 1, 6, 1, core.ConditionSoiled)
	if store != 10 || vendor != 0 {
		t.Errorf("Expected balances restored to 10/0, got %d/%d", store, vendor)
	}

	reversal, err := ledger.GetTransaction(ctx, res.ReversalID)
	if err != nil {
		t.Fatalf("Failed to load reversal: %v", err)
	}
	if reversal.Type != core.TypeVoidReversal {
		t.Errorf("Expected reversal type VOID_REVERSAL, got %s", reversal.Type)
	}
	if reversal.ReversalOfID == nil || *reversal.ReversalOfID != posted.TransactionID {
		t.Errorf("Reversal does not point back at the original")
	}

	// Voiding again must fail with ALREADY_VOIDED.
	_, err = ledger.Void(ctx, core.VoidInput{
		TransactionID: posted.TransactionID,
		VoidedByID:    2,
		Reason:        "second attempt",
	})
	if core.CodeOf(err) != core.CodeAlreadyVoided {
		t.Fatalf("Expected ALREADY_VOIDED on double void, got %v", err)
	}

	// A reversal itself can never be voided.
	_, err = ledger.Void(ctx, core.VoidInput{
		TransactionID: res.ReversalID,
		VoidedByID:    2,
		Reason:        "undo the undo",
	})
	if core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("Expected CONFLICT when voiding a reversal, got %v", err)
	}
}

func TestLedger_Balances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	seedBalance(t, ledger, 1, 1, 12, core.ConditionClean)
	seedBalance(t, ledger, 1, 2, 7, core.ConditionClean)
	seedBalance(t, ledger, 2, 1, 3, core.ConditionSoiled)

	all, err := ledger.Balances(ctx, core.BalanceFilter{PropertyID: 1})
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 balance rows, got %d", len(all))
	}

	kind := core.KindCleanStore
	clean, err := ledger.Balances(ctx, core.BalanceFilter{PropertyID: 1, LocationKind: &kind})
	if err != nil {
		t.Fatalf("Filtered balances failed: %v", err)
	}
	if len(clean) != 2 {
		t.Fatalf("Expected 2 clean-store rows, got %d", len(clean))
	}
	for _, b := range clean {
		if b.LocationKind != core.KindCleanStore {
			t.Errorf("Filter leaked row for kind %s", b.LocationKind)
		}
	}

	item := 1
	cond := core.ConditionClean
	one, err := ledger.Balances(ctx, core.BalanceFilter{PropertyID: 1, LinenItemID: &item, Condition: &cond})
	if err != nil {
		t.Fatalf("Key-filtered balances failed: %v", err)
	}
	if len(one) != 1 || one[0].Qty != 12 {
		t.Fatalf("Expected single row with qty 12, got %+v", one)
	}
}
