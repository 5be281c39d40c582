package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService is the posting and reversal engine. Current stock is never
// stored; every movement is an immutable transaction of quantity-delta
// entries, and balances are always derived by summing entries.
type LedgerService interface {
	// Post validates and atomically commits one transaction with its entries.
	// Replays carrying the same (createdByID, idempotencyKey) return the
	// original transaction id without writing anything new.
	Post(ctx context.Context, input PostInput) (*PostResult, error)

	// Void marks a transaction as voided and creates a compensating
	// VOID_REVERSAL transaction whose entries negate the original's.
	Void(ctx context.Context, input VoidInput) (*VoidResult, error)

	// Balances computes derived on-hand quantities for a property.
	Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error)

	// GetTransaction loads one transaction with its entries.
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)

	// ListTransactions returns recent transactions for a property, newest first.
	ListTransactions(ctx context.Context, propertyID, limit int) ([]Transaction, error)
}

// Ledger implements LedgerService on PostgreSQL.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// propertyLockKey derives the advisory-lock key for a property. Concurrent
// postings against the same property serialize on it; different properties
// hash to different keys and proceed in parallel.
func propertyLockKey(propertyID int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "linen-ledger/property/%d", propertyID)
	return int64(h.Sum64())
}

func (l *Ledger) Post(ctx context.Context, input PostInput) (*PostResult, error) {
	input.Normalize()
	if verr := input.Validate(); verr != nil {
		return nil, verr
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, unknownErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	// Idempotency short-circuit. The unique constraint on
	// (created_by_id, idempotency_key) backs this lookup: a race that slips
	// past it is caught at insert time and resolved by re-reading.
	if input.IdempotencyKey != "" {
		var existingID int64
		err := tx.QueryRow(ctx,
			"SELECT id FROM transactions WHERE created_by_id = $1 AND idempotency_key = $2",
			input.CreatedByID, input.IdempotencyKey,
		).Scan(&existingID)
		if err == nil {
			return &PostResult{TransactionID: existingID, Idempotent: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, unknownErr(err, "failed to check idempotency key")
		}
	}

	// Per-property serialization. Held until commit/rollback, never across calls.
	if input.Options.LockProperty {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", propertyLockKey(input.PropertyID)); err != nil {
			return nil, unknownErr(err, "failed to acquire property lock")
		}
	}

	var propertyActive bool
	err = tx.QueryRow(ctx, "SELECT is_active FROM properties WHERE id = $1", input.PropertyID).Scan(&propertyActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("property %d not found", input.PropertyID)
		}
		return nil, unknownErr(err, "failed to fetch property %d", input.PropertyID)
	}
	if !propertyActive {
		return nil, conflictErr("property %d is inactive", input.PropertyID)
	}

	if input.VendorID != nil {
		var vendorActive bool
		err := tx.QueryRow(ctx, "SELECT is_active FROM vendors WHERE id = $1", *input.VendorID).Scan(&vendorActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFoundErr("vendor %d not found", *input.VendorID)
			}
			return nil, unknownErr(err, "failed to fetch vendor %d", *input.VendorID)
		}
		if !vendorActive {
			return nil, notFoundErr("vendor %d is inactive", *input.VendorID)
		}
	}

	locKinds, lerr := l.checkLocations(ctx, tx, &input)
	if lerr != nil {
		return nil, lerr
	}
	if lerr := l.checkItems(ctx, tx, &input); lerr != nil {
		return nil, lerr
	}

	if input.Options.StrictStock {
		if lerr := l.checkStock(ctx, tx, &input, locKinds); lerr != nil {
			return nil, lerr
		}
	}

	txID, idempotent, lerr := l.insertTransaction(ctx, tx, &input)
	if lerr != nil {
		return nil, lerr
	}
	if idempotent {
		return &PostResult{TransactionID: txID, Idempotent: true}, nil
	}

	for _, e := range input.Entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_entries (transaction_id, property_id, location_id, linen_item_id, condition, qty_delta, unit_cost, meta)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, txID, input.PropertyID, e.LocationID, e.LinenItemID, e.Condition, e.QtyDelta, e.UnitCost, e.Meta)
		if err != nil {
			return nil, unknownErr(err, "failed to insert entry for location %d", e.LocationID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unknownErr(err, "failed to commit posting")
	}
	return &PostResult{TransactionID: txID, Idempotent: false}, nil
}

// checkLocations verifies every referenced location exists, is active, belongs
// to the posting's property, and obeys the vendor-location rules. It returns
// each distinct location's kind for the strict-stock exemption check.
func (l *Ledger) checkLocations(ctx context.Context, tx pgx.Tx, input *PostInput) (map[int]LocationKind, *LedgerError) {
	ids := make([]int, 0, len(input.Entries))
	seen := make(map[int]bool, len(input.Entries))
	for _, e := range input.Entries {
		if !seen[e.LocationID] {
			seen[e.LocationID] = true
			ids = append(ids, e.LocationID)
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, property_id, kind, vendor_id, is_active
		FROM locations
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, unknownErr(err, "failed to query locations")
	}
	defer rows.Close()

	type locRow struct {
		propertyID int
		kind       LocationKind
		vendorID   *int
		isActive   bool
	}
	found := make(map[int]locRow, len(ids))
	for rows.Next() {
		var id int
		var lr locRow
		if err := rows.Scan(&id, &lr.propertyID, &lr.kind, &lr.vendorID, &lr.isActive); err != nil {
			return nil, unknownErr(err, "failed to scan location")
		}
		found[id] = lr
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating locations")
	}

	kinds := make(map[int]LocationKind, len(ids))
	for _, id := range ids {
		lr, ok := found[id]
		if !ok {
			return nil, notFoundErr("location %d not found", id)
		}
		if !lr.isActive {
			return nil, conflictErr("location %d is inactive", id)
		}
		if lr.propertyID != input.PropertyID {
			return nil, validationErr("location %d belongs to property %d, not %d", id, lr.propertyID, input.PropertyID)
		}
		if lr.kind == KindVendor {
			if input.VendorID == nil {
				return nil, validationErr("entry targets vendor location %d but the transaction has no vendor id", id)
			}
			if lr.vendorID == nil || *lr.vendorID != *input.VendorID {
				return nil, conflictErr("vendor location %d is not bound to vendor %d", id, *input.VendorID)
			}
		}
		kinds[id] = lr.kind
	}
	return kinds, nil
}

// checkItems verifies every referenced linen item exists and is active.
func (l *Ledger) checkItems(ctx context.Context, tx pgx.Tx, input *PostInput) *LedgerError {
	ids := make([]int, 0, len(input.Entries))
	seen := make(map[int]bool, len(input.Entries))
	for _, e := range input.Entries {
		if !seen[e.LinenItemID] {
			seen[e.LinenItemID] = true
			ids = append(ids, e.LinenItemID)
		}
	}

	rows, err := tx.Query(ctx, "SELECT id FROM linen_items WHERE id = ANY($1) AND is_active = true", ids)
	if err != nil {
		return unknownErr(err, "failed to query linen items")
	}
	defer rows.Close()

	active := make(map[int]bool, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return unknownErr(err, "failed to scan linen item")
		}
		active[id] = true
	}
	if err := rows.Err(); err != nil {
		return unknownErr(err, "error iterating linen items")
	}

	for _, id := range ids {
		if !active[id] {
			return notFoundErr("linen item %d not found or inactive", id)
		}
	}
	return nil
}

// checkStock rejects the posting if any balance key would go negative.
// All negative deltas against the same key within this transaction are summed
// before comparing, and every violating key is reported, not just the first.
// Reliable under concurrency only when the property lock is also engaged.
func (l *Ledger) checkStock(ctx context.Context, tx pgx.Tx, input *PostInput, locKinds map[int]LocationKind) *LedgerError {
	deltas := input.negativeDeltasByKey(locKinds)
	if len(deltas) == 0 {
		return nil
	}

	var violations []StockViolation
	for key, delta := range deltas {
		var current int64
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(qty_delta), 0)
			FROM transaction_entries
			WHERE property_id = $1 AND location_id = $2 AND linen_item_id = $3 AND condition = $4
		`, input.PropertyID, key.LocationID, key.LinenItemID, key.Condition).Scan(&current)
		if err != nil {
			return unknownErr(err, "failed to compute balance for location %d", key.LocationID)
		}

		if resulting := current + delta; resulting < 0 {
			violations = append(violations, StockViolation{
				LocationID:   key.LocationID,
				LinenItemID:  key.LinenItemID,
				Condition:    key.Condition,
				CurrentQty:   current,
				AttemptedQty: delta,
				ResultingQty: resulting,
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		if a.LinenItemID != b.LinenItemID {
			return a.LinenItemID < b.LinenItemID
		}
		return a.Condition < b.Condition
	})
	return insufficientStockErr(violations)
}

// insertTransaction writes the transaction row. When an idempotency key is
// present the insert races through ON CONFLICT DO NOTHING; losing the race
// means a concurrent replay already committed, so the existing row is
// re-read and returned as an idempotent success.
func (l *Ledger) insertTransaction(ctx context.Context, tx pgx.Tx, input *PostInput) (int64, bool, *LedgerError) {
	var txID int64

	if input.IdempotencyKey == "" {
		err := tx.QueryRow(ctx, `
			INSERT INTO transactions (type, property_id, vendor_id, reference, note, occurred_at, created_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, input.Type, input.PropertyID, input.VendorID, input.Reference, input.Note, input.OccurredAt, input.CreatedByID).Scan(&txID)
		if err != nil {
			return 0, false, unknownErr(err, "failed to insert transaction")
		}
		return txID, false, nil
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (type, property_id, vendor_id, reference, note, occurred_at, created_by_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (created_by_id, idempotency_key) DO NOTHING
		RETURNING id
	`, input.Type, input.PropertyID, input.VendorID, input.Reference, input.Note, input.OccurredAt, input.CreatedByID, input.IdempotencyKey).Scan(&txID)
	if err == nil {
		return txID, false, nil
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
		var existingID int64
		rerr := tx.QueryRow(ctx,
			"SELECT id FROM transactions WHERE created_by_id = $1 AND idempotency_key = $2",
			input.CreatedByID, input.IdempotencyKey,
		).Scan(&existingID)
		if rerr != nil {
			return 0, false, unknownErr(rerr, "failed to re-read transaction after idempotency conflict")
		}
		return existingID, true, nil
	}
	return 0, false, unknownErr(err, "failed to insert transaction")
}

func (l *Ledger) Void(ctx context.Context, input VoidInput) (*VoidResult, error) {
	if verr := input.Validate(); verr != nil {
		return nil, verr
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = time.Now()
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, unknownErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var orig Transaction
	err = tx.QueryRow(ctx, `
		SELECT id, type, property_id, vendor_id, reference, voided_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, input.TransactionID).Scan(&orig.ID, &orig.Type, &orig.PropertyID, &orig.VendorID, &orig.Reference, &orig.VoidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("transaction %d not found", input.TransactionID)
		}
		return nil, unknownErr(err, "failed to fetch transaction %d", input.TransactionID)
	}

	if orig.Type == TypeVoidReversal {
		return nil, conflictErr("transaction %d is a reversal and cannot be voided", orig.ID)
	}

	if orig.VoidedAt != nil {
		return nil, alreadyVoidedErr("transaction %d was voided at %s", orig.ID, orig.VoidedAt.Format(time.RFC3339))
	}

	var reversalCount int
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM transactions WHERE reversal_of_id = $1", orig.ID).Scan(&reversalCount); err != nil {
		return nil, unknownErr(err, "failed to check for existing reversal")
	}
	if reversalCount > 0 {
		return nil, conflictErr("transaction %d already has a reversal", orig.ID)
	}

	entries, lerr := loadEntries(ctx, tx, orig.ID)
	if lerr != nil {
		return nil, lerr
	}
	if len(entries) == 0 {
		return nil, conflictErr("transaction %d has no entries", orig.ID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions
		SET voided_at = NOW(), void_reason = $1, voided_by_id = $2
		WHERE id = $3
	`, input.Reason, input.VoidedByID, orig.ID)
	if err != nil {
		return nil, unknownErr(err, "failed to mark transaction %d voided", orig.ID)
	}

	reversalRef := fmt.Sprintf("VOID-%d", orig.ID)
	if orig.Reference != nil {
		reversalRef = "VOID-" + *orig.Reference
	}
	note := fmt.Sprintf("Reversal of transaction %d: %s", orig.ID, input.Reason)

	var reversalID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (type, property_id, vendor_id, reference, note, occurred_at, created_by_id, reversal_of_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, TypeVoidReversal, orig.PropertyID, orig.VendorID, reversalRef, note, input.OccurredAt, input.VoidedByID, orig.ID).Scan(&reversalID)
	if err != nil {
		return nil, unknownErr(err, "failed to insert reversal transaction")
	}

	// Reversal entries are exact copies with negated deltas; reversals bypass
	// strict-stock checks because they only restore a previously valid state.
	for _, e := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_entries (transaction_id, property_id, location_id, linen_item_id, condition, qty_delta, unit_cost, meta)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, reversalID, e.PropertyID, e.LocationID, e.LinenItemID, e.Condition, -e.QtyDelta, e.UnitCost, e.Meta)
		if err != nil {
			return nil, unknownErr(err, "failed to insert reversal entry for location %d", e.LocationID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unknownErr(err, "failed to commit void")
	}
	return &VoidResult{OriginalID: orig.ID, ReversalID: reversalID}, nil
}

func loadEntries(ctx context.Context, tx pgx.Tx, transactionID int64) ([]TransactionEntry, *LedgerError) {
	rows, err := tx.Query(ctx, `
		SELECT id, transaction_id, property_id, location_id, linen_item_id, condition, qty_delta, unit_cost, meta
		FROM transaction_entries
		WHERE transaction_id = $1
		ORDER BY id
	`, transactionID)
	if err != nil {
		return nil, unknownErr(err, "failed to query entries for transaction %d", transactionID)
	}
	defer rows.Close()

	var entries []TransactionEntry
	for rows.Next() {
		var e TransactionEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.PropertyID, &e.LocationID, &e.LinenItemID, &e.Condition, &e.QtyDelta, &e.UnitCost, &e.Meta); err != nil {
			return nil, unknownErr(err, "failed to scan entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating entries")
	}
	return entries, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	var t Transaction
	err := l.pool.QueryRow(ctx, `
		SELECT id, type, property_id, vendor_id, reference, note, occurred_at, created_by_id,
		       idempotency_key, voided_at, void_reason, voided_by_id, reversal_of_id, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Type, &t.PropertyID, &t.VendorID, &t.Reference, &t.Note, &t.OccurredAt, &t.CreatedByID,
		&t.IdempotencyKey, &t.VoidedAt, &t.VoidReason, &t.VoidedByID, &t.ReversalOfID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("transaction %d not found", id)
		}
		return nil, unknownErr(err, "failed to fetch transaction %d", id)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, transaction_id, property_id, location_id, linen_item_id, condition, qty_delta, unit_cost, meta
		FROM transaction_entries
		WHERE transaction_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, unknownErr(err, "failed to query entries for transaction %d", id)
	}
	defer rows.Close()

	for rows.Next() {
		var e TransactionEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.PropertyID, &e.LocationID, &e.LinenItemID, &e.Condition, &e.QtyDelta, &e.UnitCost, &e.Meta); err != nil {
			return nil, unknownErr(err, "failed to scan entry")
		}
		t.Entries = append(t.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating entries")
	}
	return &t, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, propertyID, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, type, property_id, vendor_id, reference, note, occurred_at, created_by_id,
		       idempotency_key, voided_at, void_reason, voided_by_id, reversal_of_id, created_at
		FROM transactions
		WHERE property_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, propertyID, limit)
	if err != nil {
		return nil, unknownErr(err, "failed to query transactions")
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.Type, &t.PropertyID, &t.VendorID, &t.Reference, &t.Note, &t.OccurredAt, &t.CreatedByID,
			&t.IdempotencyKey, &t.VoidedAt, &t.VoidReason, &t.VoidedByID, &t.ReversalOfID, &t.CreatedAt,
		); err != nil {
			return nil, unknownErr(err, "failed to scan transaction")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating transactions")
	}
	return out, nil
}
