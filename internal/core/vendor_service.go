package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VendorService manages laundry vendor master data. Provisioning a vendor
// also provisions its holding-area location at each requested property.
type VendorService interface {
	List(ctx context.Context) ([]Vendor, error)
	GetByID(ctx context.Context, vendorID int) (*Vendor, error)
	// Create inserts a vendor and a VENDOR-kind location for it at each of
	// the given properties, atomically.
	Create(ctx context.Context, input VendorInput, propertyIDs []int) (*Vendor, error)
	Deactivate(ctx context.Context, vendorID int) error
}

// VendorInput is the input for creating a vendor.
type VendorInput struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
}

type vendorService struct {
	pool *pgxpool.Pool
}

// NewVendorService constructs a VendorService backed by PostgreSQL.
func NewVendorService(pool *pgxpool.Pool) VendorService {
	return &vendorService{pool: pool}
}

func (s *vendorService) List(ctx context.Context) ([]Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, phone, is_active, created_at
		FROM vendors
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, unknownErr(err, "failed to query vendors")
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt); err != nil {
			return nil, unknownErr(err, "failed to scan vendor")
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating vendors")
	}
	return vendors, nil
}

func (s *vendorService) GetByID(ctx context.Context, vendorID int) (*Vendor, error) {
	v := &Vendor{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, is_active, created_at
		FROM vendors
		WHERE id = $1
	`, vendorID).Scan(&v.ID, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("vendor %d not found", vendorID)
		}
		return nil, unknownErr(err, "failed to fetch vendor %d", vendorID)
	}
	return v, nil
}

func (s *vendorService) Create(ctx context.Context, input VendorInput, propertyIDs []int) (*Vendor, error) {
	if input.Name == "" {
		return nil, validationErr("vendor name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unknownErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	v := &Vendor{}
	err = tx.QueryRow(ctx, `
		INSERT INTO vendors (name, phone)
		VALUES ($1, $2)
		RETURNING id, name, phone, is_active, created_at
	`, input.Name, input.Phone).Scan(&v.ID, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt)
	if err != nil {
		return nil, unknownErr(err, "failed to create vendor %q", input.Name)
	}

	for _, propertyID := range propertyIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO locations (property_id, name, kind, vendor_id, kind_key, is_system)
			VALUES ($1, $2, $3, $4, $5, true)
		`, propertyID, v.Name, KindVendor, v.ID, kindKeyFor(KindVendor, &v.ID))
		if err != nil {
			return nil, unknownErr(err, "failed to create vendor location at property %d", propertyID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unknownErr(err, "failed to commit vendor creation")
	}
	return v, nil
}

func (s *vendorService) Deactivate(ctx context.Context, vendorID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE vendors SET is_active = false WHERE id = $1 AND is_active = true", vendorID)
	if err != nil {
		return unknownErr(err, "failed to deactivate vendor %d", vendorID)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("vendor %d not found or already inactive", vendorID)
	}
	return nil
}
