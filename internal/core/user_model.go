package core

import (
	"context"
	"time"
)

// User represents an authenticated system user.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// UserService is the identity collaborator. The ledger trusts user ids it
// receives as already-authorized; authorization itself lives here.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// PropertyIDsFor returns the ids of properties the user may act on.
	PropertyIDsFor(ctx context.Context, userID int) ([]int, error)

	// CanAccessProperty reports whether the user has a grant for the property.
	CanAccessProperty(ctx context.Context, userID, propertyID int) (bool, error)
}
