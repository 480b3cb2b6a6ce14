package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/port"
)

// ListingService manages listings and derives their visibility from stock.
// The active flag is never set directly by callers; it follows available > 0.
type ListingService struct {
	listings port.ListingStore
	stocks   port.StockStore
	stockSvc *StockService
	logger   zerolog.Logger
}

func NewListingService(listings port.ListingStore, stocks port.StockStore, stockSvc *StockService, logger zerolog.Logger) *ListingService {
	return &ListingService{
		listings: listings,
		stocks:   stocks,
		stockSvc: stockSvc,
		logger:   logger.With().Str("component", "listing").Logger(),
	}
}

type CreateListingInput struct {
	OwnerID     string
	Title       string
	Description string
	PublishedAt time.Time
	Total       int
}

// CreateListing publishes a new offer and creates its paired stock record.
func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	if in.OwnerID == "" {
		return nil, &domain.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if in.Title == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "required"}
	}
	if in.Total < 0 {
		return nil, &domain.ValidationError{Field: "total", Reason: "must not be negative"}
	}
	if in.PublishedAt.IsZero() {
		in.PublishedAt = time.Now()
	}

	now := time.Now()
	listing := &domain.Listing{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		Description: in.Description,
		Active:      in.Total > 0,
		PublishedAt: in.PublishedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if _, err := s.stockSvc.CreateForListing(ctx, listing.ID, in.Total); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listing.ID).
			Msg("listing created but stock bootstrap failed")
		return nil, fmt.Errorf("create stock for listing %s: %w", listing.ID, err)
	}

	s.logger.Info().Str("listing_id", listing.ID).Str("owner_id", in.OwnerID).
		Int("total", in.Total).Msg("listing published")
	return listing, nil
}

func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing == nil {
		return nil, &domain.NotFoundError{Entity: "listing", ID: id}
	}
	return listing, nil
}

func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	if ownerID == "" {
		return nil, &domain.ValidationError{Field: "owner_id", Reason: "required"}
	}
	return s.listings.ListByOwner(ctx, ownerID)
}

// Deactivate is the owner's logical delete. The listing row survives.
func (s *ListingService) Deactivate(ctx context.Context, id string) error {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !listing.Active {
		return nil
	}
	if err := s.listings.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate listing: %w", err)
	}
	return nil
}

// RecomputeVisibility derives the listing's active flag from the paired stock
// snapshot: active iff available > 0. The flag is persisted only when it
// changes. Returns the derived value.
func (s *ListingService) RecomputeVisibility(ctx context.Context, listingID string) (bool, error) {
	stock, err := s.stocks.GetByListing(ctx, listingID)
	if err != nil {
		return false, fmt.Errorf("load stock: %w", err)
	}
	if stock == nil {
		return false, &domain.NotFoundError{Entity: "stock for listing", ID: listingID}
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, fmt.Errorf("load listing: %w", err)
	}
	if listing == nil {
		return false, &domain.NotFoundError{Entity: "listing", ID: listingID}
	}

	active := stock.Available > 0
	if listing.Active == active {
		return active, nil
	}

	if err := s.listings.SetActive(ctx, listingID, active); err != nil {
		return active, fmt.Errorf("persist active flag: %w", err)
	}
	s.logger.Info().Str("listing_id", listingID).Bool("active", active).
		Int("available", stock.Available).Msg("listing visibility changed")
	return active, nil
}
