package port

import (
	"context"
	"errors"

	"github.com/compartedu/backend/internal/core/domain"
)

// ErrVersionConflict is returned by StockStore.Update when the version stamp no
// longer matches the stored row. Callers retry the whole read-check-write.
var ErrVersionConflict = errors.New("stock version conflict")

// StockStore persists the per-listing counter records. Get methods return
// (nil, nil) when no record exists.
type StockStore interface {
	GetByID(ctx context.Context, id string) (*domain.Stock, error)

	GetByListing(ctx context.Context, listingID string) (*domain.Stock, error)

	Create(ctx context.Context, stock *domain.Stock) (string, error)

	// Update writes the counters with a version check for optimistic locking.
	// On success the stock's Version is advanced; on a stale version it
	// returns ErrVersionConflict.
	Update(ctx context.Context, stock *domain.Stock) error
}

// RequestStore persists requests. GetByID returns (nil, nil) when absent.
type RequestStore interface {
	GetByID(ctx context.Context, id string) (*domain.Request, error)

	Create(ctx context.Context, req *domain.Request) (string, error)

	// UpdateState moves a request from one state to another as a single
	// compare-and-swap. It reports false when the request was not in the
	// expected state, so concurrent transitions cannot both win.
	UpdateState(ctx context.Context, id string, from, to domain.RequestState) (bool, error)

	ListByRequester(ctx context.Context, requesterID string) ([]domain.Request, error)

	ListByListing(ctx context.Context, listingID string) ([]domain.Request, error)

	ListByState(ctx context.Context, state domain.RequestState) ([]domain.Request, error)
}

// ListingStore persists listings. The engine only writes the active flag.
type ListingStore interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)

	Create(ctx context.Context, listing *domain.Listing) (string, error)

	ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error)

	SetActive(ctx context.Context, id string, active bool) error
}

// ShipmentStore persists delivery records for accepted requests.
type ShipmentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)

	GetByRequest(ctx context.Context, requestID string) (*domain.Shipment, error)

	Create(ctx context.Context, shipment *domain.Shipment) (string, error)

	Update(ctx context.Context, shipment *domain.Shipment) error

	Delete(ctx context.Context, id string) error

	List(ctx context.Context) ([]domain.Shipment, error)
}
