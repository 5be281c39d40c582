// seed-demo is a one-shot tool that provisions a demo property with its
// system locations, a house linen catalog, a laundry vendor, and an admin
// user. Run it against a freshly migrated database.
//
// Usage: SEED_ADMIN_PASSWORD=... go run ./cmd/seed-demo
package main

import (
	"context"
	"log"
	"os"

	"linen-ledger/internal/db"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD must be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Creating property...")
	var propertyID int
	err = tx.QueryRow(ctx, `
		INSERT INTO properties (name) VALUES ('Grand Marina Hotel') RETURNING id
	`).Scan(&propertyID)
	if err != nil {
		log.Fatalf("Failed to create property: %v", err)
	}

	log.Println("Creating system locations...")
	_, err = tx.Exec(ctx, `
		INSERT INTO locations (property_id, name, kind, kind_key, is_system, is_active)
		VALUES
			($1, 'Clean Store', 'CLEAN_STORE', 'CLEAN_STORE', TRUE, TRUE),
			($1, 'Soiled Store', 'SOILED_STORE', 'SOILED_STORE', TRUE, TRUE),
			($1, 'Rewash Bin', 'REWASH_BIN', 'REWASH_BIN', TRUE, TRUE),
			($1, 'Damaged Bin', 'DAMAGED_BIN', 'DAMAGED_BIN', TRUE, TRUE),
			($1, 'Discarded / Lost', 'DISCARDED_LOST', 'DISCARDED_LOST', TRUE, TRUE)
	`, propertyID)
	if err != nil {
		log.Fatalf("Failed to create locations: %v", err)
	}

	log.Println("Creating linen catalog...")
	_, err = tx.Exec(ctx, `
		INSERT INTO linen_items (name, sku, is_active)
		VALUES
			('Bath Towel 70x140', 'BT-70140', TRUE),
			('Hand Towel 50x100', 'HT-50100', TRUE),
			('Flat Sheet Queen', 'FS-QUEEN', TRUE),
			('Duvet Cover Queen', 'DC-QUEEN', TRUE),
			('Pillowcase Standard', 'PC-STD', TRUE)
		ON CONFLICT (sku) DO NOTHING
	`)
	if err != nil {
		log.Fatalf("Failed to create linen items: %v", err)
	}

	log.Println("Creating laundry vendor...")
	var vendorID int
	err = tx.QueryRow(ctx, `
		INSERT INTO vendors (name, phone, is_active)
		VALUES ('Adriatic Laundry d.o.o.', '+385 21 555 010', TRUE)
		RETURNING id
	`).Scan(&vendorID)
	if err != nil {
		log.Fatalf("Failed to create vendor: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO locations (property_id, name, kind, kind_key, vendor_id, is_system, is_active)
		VALUES ($1, 'At Adriatic Laundry d.o.o.', 'VENDOR', 'VENDOR:' || $2::text, $2, TRUE, TRUE)
	`, propertyID, vendorID)
	if err != nil {
		log.Fatalf("Failed to create vendor location: %v", err)
	}

	log.Println("Creating admin user...")
	var userID int
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ('admin', $1, 'admin')
		RETURNING id
	`, string(hash)).Scan(&userID)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_properties (user_id, property_id) VALUES ($1, $2)
	`, userID, propertyID)
	if err != nil {
		log.Fatalf("Failed to grant property access: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seed complete.")
}
