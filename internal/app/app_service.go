package app

import (
	"context"
	"fmt"
	"strings"

	"linen-ledger/internal/ai"
	"linen-ledger/internal/core"

	"golang.org/x/crypto/bcrypt"
)

type appService struct {
	ledger     core.LedgerService
	movements  core.MovementService
	locations  core.LocationService
	vendors    core.VendorService
	items      core.ItemService
	properties core.PropertyService
	users      core.UserService
	agent      *ai.Agent
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	ledger core.LedgerService,
	movements core.MovementService,
	locations core.LocationService,
	vendors core.VendorService,
	items core.ItemService,
	properties core.PropertyService,
	users core.UserService,
	agent *ai.Agent,
) ApplicationService {
	return &appService{
		ledger:     ledger,
		movements:  movements,
		locations:  locations,
		vendors:    vendors,
		items:      items,
		properties: properties,
		users:      users,
		agent:      agent,
	}
}

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("authentication failed: invalid password")
	}

	propertyIDs, err := s.users.PropertyIDsFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserSession{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		PropertyIDs: propertyIDs,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

// requireProperty enforces the caller's property grant before any
// property-scoped operation reaches the ledger.
func (s *appService) requireProperty(ctx context.Context, userID, propertyID int) error {
	ok, err := s.users.CanAccessProperty(ctx, userID, propertyID)
	if err != nil {
		return err
	}
	if !ok {
		return core.ForbiddenErr("user %d has no access to property %d", userID, propertyID)
	}
	return nil
}

func (s *appService) ListProperties(ctx context.Context, userID int) ([]core.Property, error) {
	ids, err := s.users.PropertyIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	granted := make(map[int]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}

	all, err := s.properties.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Property, 0, len(ids))
	for _, p := range all {
		if granted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *appService) GetBalances(ctx context.Context, userID int, filter core.BalanceFilter) ([]core.Balance, error) {
	if err := s.requireProperty(ctx, userID, filter.PropertyID); err != nil {
		return nil, err
	}
	return s.ledger.Balances(ctx, filter)
}

func (s *appService) ListTransactions(ctx context.Context, userID, propertyID, limit int) ([]core.Transaction, error) {
	if err := s.requireProperty(ctx, userID, propertyID); err != nil {
		return nil, err
	}
	return s.ledger.ListTransactions(ctx, propertyID, limit)
}

func (s *appService) GetTransaction(ctx context.Context, userID int, transactionID int64) (*core.Transaction, error) {
	t, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProperty(ctx, userID, t.PropertyID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *appService) Procure(ctx context.Context, userID int, req core.ProcureRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.Procure(ctx, req)
}

func (s *appService) DispatchToLaundry(ctx context.Context, userID int, req core.DispatchRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.DispatchToLaundry(ctx, req)
}

func (s *appService) ReceiveFromLaundry(ctx context.Context, userID int, req core.ReceiveRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.ReceiveFromLaundry(ctx, req)
}

func (s *appService) ResendRewash(ctx context.Context, userID int, req core.RewashRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.ResendRewash(ctx, req)
}

func (s *appService) DiscardLost(ctx context.Context, userID int, req core.DiscardRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.DiscardLost(ctx, req)
}

func (s *appService) Adjust(ctx context.Context, userID int, req core.AdjustRequest) (*core.PostResult, error) {
	if err := s.requireProperty(ctx, userID, req.PropertyID); err != nil {
		return nil, err
	}
	req.CreatedByID = userID
	return s.movements.Adjust(ctx, req)
}

func (s *appService) VoidTransaction(ctx context.Context, userID int, transactionID int64, reason string) (*core.VoidResult, error) {
	t, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProperty(ctx, userID, t.PropertyID); err != nil {
		return nil, err
	}
	return s.ledger.Void(ctx, core.VoidInput{
		TransactionID: transactionID,
		VoidedByID:    userID,
		Reason:        reason,
	})
}

func (s *appService) ListVendors(ctx context.Context) ([]core.Vendor, error) {
	return s.vendors.List(ctx)
}

func (s *appService) CreateVendor(ctx context.Context, input core.VendorInput, propertyIDs []int) (*core.Vendor, error) {
	return s.vendors.Create(ctx, input, propertyIDs)
}

func (s *appService) ListItems(ctx context.Context) ([]core.LinenItem, error) {
	return s.items.List(ctx)
}

func (s *appService) CreateItem(ctx context.Context, name, sku string) (*core.LinenItem, error) {
	return s.items.Create(ctx, name, sku)
}

func (s *appService) ListLocations(ctx context.Context, userID, propertyID int) ([]core.Location, error) {
	if err := s.requireProperty(ctx, userID, propertyID); err != nil {
		return nil, err
	}
	return s.locations.List(ctx, propertyID)
}

func (s *appService) DeactivateLocation(ctx context.Context, userID, propertyID, locationID int) error {
	if err := s.requireProperty(ctx, userID, propertyID); err != nil {
		return err
	}

	// The grant covers propertyID only; the location must actually live there.
	owned, err := s.locations.List(ctx, propertyID)
	if err != nil {
		return err
	}
	for _, loc := range owned {
		if loc.ID == locationID {
			return s.locations.Deactivate(ctx, locationID)
		}
	}
	return core.ForbiddenErr("location %d does not belong to property %d", locationID, propertyID)
}

func (s *appService) InterpretMovement(ctx context.Context, userID, propertyID int, text string) (*ai.AgentResponse, error) {
	if err := s.requireProperty(ctx, userID, propertyID); err != nil {
		return nil, err
	}

	items, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	vendors, err := s.vendors.List(ctx)
	if err != nil {
		return nil, err
	}

	var itemList strings.Builder
	for _, it := range items {
		fmt.Fprintf(&itemList, "%s: %s\n", it.SKU, it.Name)
	}
	var vendorList strings.Builder
	for _, v := range vendors {
		fmt.Fprintf(&vendorList, "%s\n", v.Name)
	}

	return s.agent.InterpretMovement(ctx, text, itemList.String(), vendorList.String())
}
