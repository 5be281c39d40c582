package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PropertyService manages hotel property master data.
type PropertyService interface {
	List(ctx context.Context) ([]Property, error)
	GetByID(ctx context.Context, propertyID int) (*Property, error)
	Create(ctx context.Context, name string) (*Property, error)
}

type propertyService struct {
	pool *pgxpool.Pool
}

// NewPropertyService constructs a PropertyService backed by PostgreSQL.
func NewPropertyService(pool *pgxpool.Pool) PropertyService {
	return &propertyService{pool: pool}
}

func (s *propertyService) List(ctx context.Context) ([]Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, is_active, created_at
		FROM properties
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, unknownErr(err, "failed to query properties")
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, unknownErr(err, "failed to scan property")
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating properties")
	}
	return properties, nil
}

func (s *propertyService) GetByID(ctx context.Context, propertyID int) (*Property, error) {
	p := &Property{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_active, created_at
		FROM properties
		WHERE id = $1
	`, propertyID).Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("property %d not found", propertyID)
		}
		return nil, unknownErr(err, "failed to fetch property %d", propertyID)
	}
	return p, nil
}

func (s *propertyService) Create(ctx context.Context, name string) (*Property, error) {
	if name == "" {
		return nil, validationErr("property name is required")
	}

	p := &Property{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO properties (name)
		VALUES ($1)
		RETURNING id, name, is_active, created_at
	`, name).Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, unknownErr(err, "failed to create property %q", name)
	}
	return p, nil
}
