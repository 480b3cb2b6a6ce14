package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/port"
)

// Mock StockStore with real optimistic-locking semantics: the version check
// and the write happen under one lock, like a database row update.
type mockStockStore struct {
	mu        sync.Mutex
	stocks    map[string]*domain.Stock
	conflicts int // force this many version conflicts before accepting updates
	updateErr error
}

func newMockStockStore() *mockStockStore {
	return &mockStockStore{stocks: make(map[string]*domain.Stock)}
}

func (m *mockStockStore) GetByID(ctx context.Context, id string) (*domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stocks[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (m *mockStockStore) GetByListing(ctx context.Context, listingID string) (*domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.stocks {
		if st.ListingID == listingID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStockStore) Create(ctx context.Context, stock *domain.Stock) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stock.ID == "" {
		stock.ID = fmt.Sprintf("stock-%d", len(m.stocks)+1)
	}
	cp := *stock
	m.stocks[stock.ID] = &cp
	return stock.ID, nil
}

func (m *mockStockStore) Update(ctx context.Context, stock *domain.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return port.ErrVersionConflict
	}

	cur, ok := m.stocks[stock.ID]
	if !ok {
		return fmt.Errorf("stock %s not found", stock.ID)
	}
	if cur.Version != stock.Version {
		return port.ErrVersionConflict
	}

	cp := *stock
	cp.Version++
	m.stocks[stock.ID] = &cp
	stock.Version++
	return nil
}

func (m *mockStockStore) snapshot(id string) domain.Stock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.stocks[id]
}

// Mock RequestStore with CAS state updates.
type mockRequestStore struct {
	mu        sync.Mutex
	requests  map[string]*domain.Request
	createErr error
	stateErr  error
}

func newMockRequestStore() *mockRequestStore {
	return &mockRequestStore{requests: make(map[string]*domain.Request)}
}

func (m *mockRequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *mockRequestStore) Create(ctx context.Context, req *domain.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return "", m.createErr
	}
	cp := *req
	m.requests[req.ID] = &cp
	return req.ID, nil
}

func (m *mockRequestStore) UpdateState(ctx context.Context, id string, from, to domain.RequestState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stateErr != nil {
		return false, m.stateErr
	}

	req, ok := m.requests[id]
	if !ok || req.State != from {
		return false, nil
	}
	req.State = to
	req.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockRequestStore) ListByRequester(ctx context.Context, requesterID string) ([]domain.Request, error) {
	return m.filter(func(r *domain.Request) bool { return r.RequesterID == requesterID })
}

func (m *mockRequestStore) ListByListing(ctx context.Context, listingID string) ([]domain.Request, error) {
	return m.filter(func(r *domain.Request) bool { return r.ListingID == listingID })
}

func (m *mockRequestStore) ListByState(ctx context.Context, state domain.RequestState) ([]domain.Request, error) {
	return m.filter(func(r *domain.Request) bool { return r.State == state })
}

func (m *mockRequestStore) filter(keep func(*domain.Request) bool) ([]domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Request
	for _, req := range m.requests {
		if keep(req) {
			out = append(out, *req)
		}
	}
	return out, nil
}

// Mock ListingStore.
type mockListingStore struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func newMockListingStore() *mockListingStore {
	return &mockListingStore{listings: make(map[string]*domain.Listing)}
}

func (m *mockListingStore) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *mockListingStore) Create(ctx context.Context, listing *domain.Listing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *listing
	m.listings[listing.ID] = &cp
	return listing.ID, nil
}

func (m *mockListingStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Listing
	for _, l := range m.listings {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockListingStore) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return fmt.Errorf("listing %s not found", id)
	}
	l.Active = active
	return nil
}

func (m *mockListingStore) activeFlag(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id].Active
}

// Mock ShipmentStore.
type mockShipmentStore struct {
	mu        sync.Mutex
	shipments map[string]*domain.Shipment
}

func newMockShipmentStore() *mockShipmentStore {
	return &mockShipmentStore{shipments: make(map[string]*domain.Shipment)}
}

func (m *mockShipmentStore) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sh, ok := m.shipments[id]
	if !ok {
		return nil, nil
	}
	cp := *sh
	return &cp, nil
}

func (m *mockShipmentStore) GetByRequest(ctx context.Context, requestID string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sh := range m.shipments {
		if sh.RequestID == requestID {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockShipmentStore) Create(ctx context.Context, shipment *domain.Shipment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *shipment
	m.shipments[shipment.ID] = &cp
	return shipment.ID, nil
}

func (m *mockShipmentStore) Update(ctx context.Context, shipment *domain.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shipments[shipment.ID]; !ok {
		return fmt.Errorf("shipment %s not found", shipment.ID)
	}
	cp := *shipment
	m.shipments[shipment.ID] = &cp
	return nil
}

func (m *mockShipmentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.shipments, id)
	return nil
}

func (m *mockShipmentStore) List(ctx context.Context) ([]domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Shipment
	for _, sh := range m.shipments {
		out = append(out, *sh)
	}
	return out, nil
}

// Mock CacheRepository.
type mockCache struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	available      map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{
		idempotencySet: make(map[string]bool),
		available:      make(map[string]int),
	}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) SetAvailable(ctx context.Context, listingID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.available[listingID] = quantity
	return nil
}

func (m *mockCache) DeleteAvailable(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.available, listingID)
	return nil
}

// fixture wires the whole engine over the mocks.
type fixture struct {
	stocks    *mockStockStore
	requests  *mockRequestStore
	listings  *mockListingStore
	shipments *mockShipmentStore
	cache     *mockCache

	stockSvc    *StockService
	listingSvc  *ListingService
	requestSvc  *RequestService
	shipmentSvc *ShipmentService
}

func newFixture() *fixture {
	f := &fixture{
		stocks:    newMockStockStore(),
		requests:  newMockRequestStore(),
		listings:  newMockListingStore(),
		shipments: newMockShipmentStore(),
		cache:     newMockCache(),
	}

	logger := zerolog.Nop()
	f.stockSvc = NewStockService(f.stocks, logger)
	f.listingSvc = NewListingService(f.listings, f.stocks, f.stockSvc, logger)
	f.requestSvc = NewRequestService(f.requests, f.listings, f.stockSvc, f.listingSvc, f.cache, logger)
	f.shipmentSvc = NewShipmentService(f.shipments, f.requests, logger)
	return f
}

// seedListing inserts a listing with its stock record directly into the mocks.
// The stock ID is "stock-" + listing ID.
func (f *fixture) seedListing(listingID string, total int) string {
	now := time.Now()
	f.listings.Create(context.Background(), &domain.Listing{
		ID:          listingID,
		OwnerID:     "owner-1",
		Title:       "seeded listing",
		Active:      total > 0,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})

	stock := domain.NewStock(listingID, total)
	stock.ID = "stock-" + listingID
	f.stocks.Create(context.Background(), stock)
	return stock.ID
}
