package app

import (
	"context"

	"linen-ledger/internal/ai"
	"linen-ledger/internal/core"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from business logic: implementations contain no display logic.
// Every property-scoped operation verifies the caller's property grant and
// returns FORBIDDEN before touching the ledger.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns the user profile by ID.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// ListProperties returns the properties the user may act on.
	ListProperties(ctx context.Context, userID int) ([]core.Property, error)

	// GetBalances returns derived stock balances for a property.
	GetBalances(ctx context.Context, userID int, filter core.BalanceFilter) ([]core.Balance, error)

	// ListTransactions returns recent ledger transactions for a property.
	ListTransactions(ctx context.Context, userID, propertyID, limit int) ([]core.Transaction, error)

	// GetTransaction returns one transaction with its entries.
	GetTransaction(ctx context.Context, userID int, transactionID int64) (*core.Transaction, error)

	// Movement flows. CreatedByID on the request is overwritten with userID.
	Procure(ctx context.Context, userID int, req core.ProcureRequest) (*core.PostResult, error)
	DispatchToLaundry(ctx context.Context, userID int, req core.DispatchRequest) (*core.PostResult, error)
	ReceiveFromLaundry(ctx context.Context, userID int, req core.ReceiveRequest) (*core.PostResult, error)
	ResendRewash(ctx context.Context, userID int, req core.RewashRequest) (*core.PostResult, error)
	DiscardLost(ctx context.Context, userID int, req core.DiscardRequest) (*core.PostResult, error)
	Adjust(ctx context.Context, userID int, req core.AdjustRequest) (*core.PostResult, error)

	// VoidTransaction voids a posted transaction and creates its reversal.
	VoidTransaction(ctx context.Context, userID int, transactionID int64, reason string) (*core.VoidResult, error)

	// Master data.
	ListVendors(ctx context.Context) ([]core.Vendor, error)
	CreateVendor(ctx context.Context, input core.VendorInput, propertyIDs []int) (*core.Vendor, error)
	ListItems(ctx context.Context) ([]core.LinenItem, error)
	CreateItem(ctx context.Context, name, sku string) (*core.LinenItem, error)
	ListLocations(ctx context.Context, userID, propertyID int) ([]core.Location, error)
	DeactivateLocation(ctx context.Context, userID, propertyID, locationID int) error

	// InterpretMovement turns a free-text note into a movement proposal for
	// human confirmation. Never posts on its own.
	InterpretMovement(ctx context.Context, userID, propertyID int, text string) (*ai.AgentResponse, error)
}

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	PropertyIDs []int  `json:"property_ids"`
}
