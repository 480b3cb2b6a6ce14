package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/metrics"
	"github.com/compartedu/backend/internal/port"
)

// maxUpdateAttempts bounds the optimistic-lock retry loop. Each attempt
// re-reads the row, so a lost race re-checks availability before retrying.
const maxUpdateAttempts = 5

// StockService is the inventory ledger. It owns the (total, reserved,
// available) counters per listing and guarantees available = total - reserved
// under concurrent mutation via version-stamped read-check-write.
type StockService struct {
	stocks port.StockStore
	logger zerolog.Logger
}

func NewStockService(stocks port.StockStore, logger zerolog.Logger) *StockService {
	return &StockService{
		stocks: stocks,
		logger: logger.With().Str("component", "stock").Logger(),
	}
}

// CreateForListing creates the one stock record a listing owns. At most one
// record may exist per listing.
func (s *StockService) CreateForListing(ctx context.Context, listingID string, total int) (*domain.Stock, error) {
	if listingID == "" {
		return nil, &domain.ValidationError{Field: "listing_id", Reason: "required"}
	}
	if total < 0 {
		return nil, &domain.ValidationError{Field: "total", Reason: "must not be negative"}
	}

	existing, err := s.stocks.GetByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("check existing stock: %w", err)
	}
	if existing != nil {
		return nil, &domain.ValidationError{Field: "listing_id", Reason: "stock already exists for listing"}
	}

	stock := domain.NewStock(listingID, total)
	id, err := s.stocks.Create(ctx, stock)
	if err != nil {
		return nil, fmt.Errorf("create stock: %w", err)
	}
	stock.ID = id

	s.logger.Info().Str("stock_id", id).Str("listing_id", listingID).
		Int("total", total).Msg("stock created")
	return stock, nil
}

func (s *StockService) Get(ctx context.Context, id string) (*domain.Stock, error) {
	stock, err := s.stocks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}
	if stock == nil {
		return nil, &domain.NotFoundError{Entity: "stock", ID: id}
	}
	return stock, nil
}

func (s *StockService) GetByListing(ctx context.Context, listingID string) (*domain.Stock, error) {
	stock, err := s.stocks.GetByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}
	if stock == nil {
		return nil, &domain.NotFoundError{Entity: "stock for listing", ID: listingID}
	}
	return stock, nil
}

// Reserve provisionally allocates quantity units to a pending request:
// available -= quantity, reserved += quantity. Fails with
// InsufficientStockError when the pool is short.
func (s *StockService) Reserve(ctx context.Context, stockID string, quantity int) (*domain.Stock, error) {
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	stock, err := s.mutate(ctx, stockID, "reserve", func(st *domain.Stock) error {
		return st.Reserve(quantity)
	})
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			metrics.InsufficientStockTotal.Inc()
		}
		return nil, err
	}

	metrics.ReservationsTotal.Inc()
	return stock, nil
}

// Finalize permanently removes quantity reserved units on acceptance:
// total -= quantity, reserved -= quantity, available recomputed.
func (s *StockService) Finalize(ctx context.Context, stockID string, quantity int) (*domain.Stock, error) {
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	return s.mutate(ctx, stockID, "finalize", func(st *domain.Stock) error {
		if st.Finalize(quantity) {
			s.logClamp(stockID, "finalize", quantity)
		}
		return nil
	})
}

// Release returns quantity reserved units to the available pool on rejection
// or cancellation: available += quantity, reserved -= quantity.
func (s *StockService) Release(ctx context.Context, stockID string, quantity int) (*domain.Stock, error) {
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	return s.mutate(ctx, stockID, "release", func(st *domain.Stock) error {
		if st.Release(quantity) {
			s.logClamp(stockID, "release", quantity)
		}
		return nil
	})
}

// mutate runs one counter mutation as an atomic read-check-write: load the
// row, apply, re-validate the invariant, then commit with a version check.
// A stale version means a concurrent writer won; the whole sequence retries.
func (s *StockService) mutate(ctx context.Context, stockID, op string, apply func(*domain.Stock) error) (*domain.Stock, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		stock, err := s.stocks.GetByID(ctx, stockID)
		if err != nil {
			return nil, fmt.Errorf("load stock: %w", err)
		}
		if stock == nil {
			return nil, &domain.NotFoundError{Entity: "stock", ID: stockID}
		}

		if err := apply(stock); err != nil {
			return nil, err
		}

		if err := stock.Validate(); err != nil {
			metrics.ConsistencyFailuresTotal.Inc()
			s.logger.Error().Err(err).Str("stock_id", stockID).Str("op", op).
				Msg("invariant violated after mutation")
			return nil, err
		}

		err = s.stocks.Update(ctx, stock)
		if errors.Is(err, port.ErrVersionConflict) {
			metrics.VersionConflictsTotal.Inc()
			s.logger.Debug().Str("stock_id", stockID).Str("op", op).
				Int("attempt", attempt+1).Msg("version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist stock: %w", err)
		}

		return stock, nil
	}

	return nil, fmt.Errorf("%s stock %s after %d attempts: %w", op, stockID, maxUpdateAttempts, port.ErrVersionConflict)
}

func (s *StockService) logClamp(stockID, op string, quantity int) {
	metrics.ClampAnomaliesTotal.Inc()
	s.logger.Warn().Str("stock_id", stockID).Str("op", op).Int("quantity", quantity).
		Msg("counter clamped at zero, upstream state was inconsistent")
}
