package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ItemService manages linen item (SKU) master data.
type ItemService interface {
	List(ctx context.Context) ([]LinenItem, error)
	GetByID(ctx context.Context, itemID int) (*LinenItem, error)
	Create(ctx context.Context, name, sku string) (*LinenItem, error)
	Deactivate(ctx context.Context, itemID int) error
}

type itemService struct {
	pool *pgxpool.Pool
}

// NewItemService constructs an ItemService backed by PostgreSQL.
func NewItemService(pool *pgxpool.Pool) ItemService {
	return &itemService{pool: pool}
}

func (s *itemService) List(ctx context.Context) ([]LinenItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, sku, is_active, created_at
		FROM linen_items
		WHERE is_active = true
		ORDER BY sku
	`)
	if err != nil {
		return nil, unknownErr(err, "failed to query linen items")
	}
	defer rows.Close()

	var items []LinenItem
	for rows.Next() {
		var it LinenItem
		if err := rows.Scan(&it.ID, &it.Name, &it.SKU, &it.IsActive, &it.CreatedAt); err != nil {
			return nil, unknownErr(err, "failed to scan linen item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, unknownErr(err, "error iterating linen items")
	}
	return items, nil
}

func (s *itemService) GetByID(ctx context.Context, itemID int) (*LinenItem, error) {
	it := &LinenItem{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, sku, is_active, created_at
		FROM linen_items
		WHERE id = $1
	`, itemID).Scan(&it.ID, &it.Name, &it.SKU, &it.IsActive, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("linen item %d not found", itemID)
		}
		return nil, unknownErr(err, "failed to fetch linen item %d", itemID)
	}
	return it, nil
}

func (s *itemService) Create(ctx context.Context, name, sku string) (*LinenItem, error) {
	if name == "" || sku == "" {
		return nil, validationErr("item name and sku are required")
	}

	it := &LinenItem{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO linen_items (name, sku)
		VALUES ($1, $2)
		RETURNING id, name, sku, is_active, created_at
	`, name, sku).Scan(&it.ID, &it.Name, &it.SKU, &it.IsActive, &it.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, conflictErr("sku %q already exists", sku)
		}
		return nil, unknownErr(err, "failed to create linen item %q", sku)
	}
	return it, nil
}

func (s *itemService) Deactivate(ctx context.Context, itemID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE linen_items SET is_active = false WHERE id = $1 AND is_active = true", itemID)
	if err != nil {
		return unknownErr(err, "failed to deactivate linen item %d", itemID)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("linen item %d not found or already inactive", itemID)
	}
	return nil
}
