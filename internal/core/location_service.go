package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationService resolves and manages linen locations. The ledger engine
// never resolves locations itself; flow-level callers use Resolve to turn a
// (property, kind, vendor) triple into the single canonical active location.
type LocationService interface {
	// Resolve returns the one active location for (propertyID, kind) or, for
	// vendor holding areas, (propertyID, vendorID).
	Resolve(ctx context.Context, propertyID int, kind LocationKind, vendorID *int) (*Location, error)

	// List returns all locations of a property, active first.
	List(ctx context.Context, propertyID int) ([]Location, error)

	// Create provisions a new location. At most one active location may exist
	// per (property, kindKey); a second insert fails with CONFLICT.
	Create(ctx context.Context, input LocationInput) (*Location, error)

	// Deactivate retires a non-system location whose aggregated balance is
	// zero on every (item, condition) key. Locations are never deleted.
	Deactivate(ctx context.Context, locationID int) error
}

// LocationInput is the input for provisioning a location.
type LocationInput struct {
	PropertyID int          `json:"property_id"`
	Name       string       `json:"name"`
	Kind       LocationKind `json:"kind"`
	VendorID   *int         `json:"vendor_id,omitempty"`
	IsSystem   bool         `json:"is_system"`
}

type locationService struct {
	pool *pgxpool.Pool
}

// NewLocationService constructs a LocationService backed by PostgreSQL.
func NewLocationService(pool *pgxpool.Pool) LocationService {
	return &locationService{pool: pool}
}

// kindKeyFor derives the uniqueness key that guarantees one active location
// per (property, kind) pair, or per (property, vendor) pair for vendor kinds.
func kindKeyFor(kind LocationKind, vendorID *int) string {
	if kind == KindVendor && vendorID != nil {
		return fmt.Sprintf("VENDOR:%d", *vendorID)
	}
	return string(kind)
}

func (s *locationService) Resolve(ctx context.Context, propertyID int, kind LocationKind, vendorID *int) (*Location, error) {
	if !ValidKind(kind) {
		return nil, validationErr("unknown location kind %q", kind)
	}
	if (kind == KindVendor) != (vendorID != nil) {
		return nil, validationErr("vendor id is required for VENDOR locations and forbidden otherwise")
	}

	loc := &Location{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, property_id, name, kind, vendor_id, kind_key, is_active, is_system, created_at
		FROM locations
		WHERE property_id = $1 AND kind_key = $2 AND is_active = true
	`, propertyID, kindKeyFor(kind, vendorID)).Scan(
		&loc.ID, &loc.PropertyID, &loc.Name, &loc.Kind, &loc.VendorID,
		&loc.KindKey, &loc.IsActive, &loc.IsSystem, &loc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if kind == KindVendor {
				return nil, notFoundErr("no active location for vendor %d at property %d", *vendorID, propertyID)
			}
			return nil, notFoundErr("no active %s location at property %d", kind, propertyID)
		}
		return nil, unknownErr(err, "failed to resolve location")
	}
	return loc, nil
}

func (s *locationService) List(ctx context.Context, propertyID int) ([]Location, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, name, kind, vendor_id, kind_key, is_active, is_system, created_at
		FROM locations
		WHERE property_id = $1
		ORDER BY is_active DESC, kind, name
	`, propertyID)
	if err != nil {
		return nil, unknownErr(err, "failed to query locations")
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(
			&loc.ID, &loc.PropertyID, &loc.Name, &loc.Kind, &loc.VendorID,
			&loc.KindKey, &loc.IsActive, &loc.IsSystem, &loc.CreatedAt,
		); err != nil {
			return nil, unknownErr(err, "failed to scan location")
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating locations")
	}
	return locations, nil
}

func (s *locationService) Create(ctx context.Context, input LocationInput) (*Location, error) {
	if input.PropertyID <= 0 {
		return nil, validationErr("property id is required")
	}
	if input.Name == "" {
		return nil, validationErr("location name is required")
	}
	if !ValidKind(input.Kind) {
		return nil, validationErr("unknown location kind %q", input.Kind)
	}
	if (input.Kind == KindVendor) != (input.VendorID != nil) {
		return nil, validationErr("vendor id is required for VENDOR locations and forbidden otherwise")
	}

	loc := &Location{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (property_id, name, kind, vendor_id, kind_key, is_system)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, property_id, name, kind, vendor_id, kind_key, is_active, is_system, created_at
	`, input.PropertyID, input.Name, input.Kind, input.VendorID, kindKeyFor(input.Kind, input.VendorID), input.IsSystem).Scan(
		&loc.ID, &loc.PropertyID, &loc.Name, &loc.Kind, &loc.VendorID,
		&loc.KindKey, &loc.IsActive, &loc.IsSystem, &loc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, conflictErr("an active %s location already exists at property %d", input.Kind, input.PropertyID)
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, notFoundErr("property %d or vendor does not exist", input.PropertyID)
		}
		return nil, unknownErr(err, "failed to create location")
	}
	return loc, nil
}

func (s *locationService) Deactivate(ctx context.Context, locationID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unknownErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var isSystem, isActive bool
	err = tx.QueryRow(ctx, "SELECT is_system, is_active FROM locations WHERE id = $1 FOR UPDATE", locationID).Scan(&isSystem, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundErr("location %d not found", locationID)
		}
		return unknownErr(err, "failed to fetch location %d", locationID)
	}
	if isSystem {
		return conflictErr("location %d is a system location and cannot be deactivated", locationID)
	}
	if !isActive {
		return conflictErr("location %d is already inactive", locationID)
	}

	var nonZeroKeys int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM (
			SELECT linen_item_id, condition
			FROM transaction_entries
			WHERE location_id = $1
			GROUP BY linen_item_id, condition
			HAVING SUM(qty_delta) <> 0
		) nz
	`, locationID).Scan(&nonZeroKeys)
	if err != nil {
		return unknownErr(err, "failed to check balances for location %d", locationID)
	}
	if nonZeroKeys > 0 {
		return conflictErr("location %d still holds stock on %d balance key(s)", locationID, nonZeroKeys)
	}

	if _, err := tx.Exec(ctx, "UPDATE locations SET is_active = false WHERE id = $1", locationID); err != nil {
		return unknownErr(err, "failed to deactivate location %d", locationID)
	}
	if err := tx.Commit(ctx); err != nil {
		return unknownErr(err, "failed to commit deactivation")
	}
	return nil
}
