package core

import (
	"context"
	"fmt"
)

// BalanceFilter narrows a balance query. PropertyID is required; the other
// fields are optional and nil means "all".
type BalanceFilter struct {
	PropertyID   int           `json:"property_id"`
	LocationID   *int          `json:"location_id,omitempty"`
	LocationKind *LocationKind `json:"location_kind,omitempty"`
	LinenItemID  *int          `json:"linen_item_id,omitempty"`
	Condition    *Condition    `json:"condition,omitempty"`
}

// Balances sums qty_delta over all entries grouped by
// (location, item, condition). It is a pure read: entries from voided
// originals are included because their effect is cancelled by the paired
// reversal's entries, not by exclusion.
func (l *Ledger) Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	if filter.PropertyID <= 0 {
		return nil, validationErr("property id is required")
	}
	if filter.LocationKind != nil && !ValidKind(*filter.LocationKind) {
		return nil, validationErr("unknown location kind %q", *filter.LocationKind)
	}
	if filter.Condition != nil && !ValidCondition(*filter.Condition) {
		return nil, validationErr("unknown condition %q", *filter.Condition)
	}

	query := `
		SELECT e.location_id, l.name, l.kind, e.linen_item_id, i.name, e.condition, SUM(e.qty_delta)
		FROM transaction_entries e
		JOIN locations l   ON l.id = e.location_id
		JOIN linen_items i ON i.id = e.linen_item_id
		WHERE e.property_id = $1`
	args := []any{filter.PropertyID}

	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		query += fmt.Sprintf(" AND e.location_id = $%d", len(args))
	}
	if filter.LocationKind != nil {
		args = append(args, *filter.LocationKind)
		query += fmt.Sprintf(" AND l.kind = $%d", len(args))
	}
	if filter.LinenItemID != nil {
		args = append(args, *filter.LinenItemID)
		query += fmt.Sprintf(" AND e.linen_item_id = $%d", len(args))
	}
	if filter.Condition != nil {
		args = append(args, *filter.Condition)
		query += fmt.Sprintf(" AND e.condition = $%d", len(args))
	}

	query += `
		GROUP BY e.location_id, l.name, l.kind, e.linen_item_id, i.name, e.condition
		ORDER BY l.name, i.name, e.condition`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unknownErr(err, "failed to query balances")
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.LocationID, &b.LocationName, &b.LocationKind, &b.LinenItemID, &b.ItemName, &b.Condition, &b.Qty); err != nil {
			return nil, unknownErr(err, "failed to scan balance")
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating balances")
	}
	return balances, nil
}

// BalanceForKey returns the derived quantity for one exact
// (location, item, condition) key. Zero if no entries exist.
func (l *Ledger) BalanceForKey(ctx context.Context, propertyID, locationID, linenItemID int, condition Condition) (int64, error) {
	var qty int64
	err := l.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty_delta), 0)
		FROM transaction_entries
		WHERE property_id = $1 AND location_id = $2 AND linen_item_id = $3 AND condition = $4
	`, propertyID, locationID, linenItemID, condition).Scan(&qty)
	if err != nil {
		return 0, unknownErr(err, "failed to compute balance for location %d", locationID)
	}
	return qty, nil
}
