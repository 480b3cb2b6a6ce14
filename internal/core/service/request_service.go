package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/metrics"
	"github.com/compartedu/backend/internal/port"
)

// RequestService drives the request lifecycle: pending -> accepted, rejected
// or cancelled. Every transition pairs a compare-and-swap on the request state
// with the matching ledger mutation; if the ledger call fails the state is
// swapped back, so neither write lands without the other.
type RequestService struct {
	requests   port.RequestStore
	listings   port.ListingStore
	ledger     *StockService
	visibility *ListingService
	cache      port.CacheRepository // optional; nil disables idempotency and the availability cache
	logger     zerolog.Logger
}

func NewRequestService(
	requests port.RequestStore,
	listings port.ListingStore,
	ledger *StockService,
	visibility *ListingService,
	cache port.CacheRepository,
	logger zerolog.Logger,
) *RequestService {
	return &RequestService{
		requests:   requests,
		listings:   listings,
		ledger:     ledger,
		visibility: visibility,
		cache:      cache,
		logger:     logger.With().Str("component", "request").Logger(),
	}
}

type CreateRequestInput struct {
	RequestKey  string // optional client-supplied idempotency key
	RequesterID string
	ListingID   string
	Quantity    int
	RequestedAt time.Time
}

// CreateRequest reserves stock and persists a new pending request. The reserve
// runs first; if the request insert fails the reservation is released, so a
// half-created request never holds stock.
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.Request, error) {
	if in.Quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if in.RequesterID == "" {
		return nil, &domain.ValidationError{Field: "requester_id", Reason: "required"}
	}
	if in.ListingID == "" {
		return nil, &domain.ValidationError{Field: "listing_id", Reason: "required"}
	}
	if in.RequestedAt.IsZero() {
		return nil, &domain.ValidationError{Field: "requested_at", Reason: "required"}
	}

	if in.RequestKey != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, "request:"+in.RequestKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing == nil {
		return nil, &domain.NotFoundError{Entity: "listing", ID: in.ListingID}
	}

	stock, err := s.ledger.GetByListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}

	snap, err := s.ledger.Reserve(ctx, stock.ID, in.Quantity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req := &domain.Request{
		ID:          uuid.NewString(),
		ListingID:   in.ListingID,
		RequesterID: in.RequesterID,
		Quantity:    in.Quantity,
		State:       domain.RequestStatePending,
		RequestedAt: in.RequestedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.requests.Create(ctx, req); err != nil {
		// Compensate: hand the reservation back before reporting failure.
		if _, relErr := s.ledger.Release(ctx, stock.ID, in.Quantity); relErr != nil {
			metrics.ConsistencyFailuresTotal.Inc()
			s.logger.Error().Err(relErr).Str("stock_id", stock.ID).Int("quantity", in.Quantity).
				Msg("reservation rollback failed, counters are stale")
		}
		return nil, fmt.Errorf("persist request: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues("create").Inc()
	s.logger.Info().Str("request_id", req.ID).Str("listing_id", in.ListingID).
		Str("requester_id", in.RequesterID).Int("quantity", in.Quantity).
		Msg("request created")

	s.afterMutation(ctx, in.ListingID, snap.Available)
	return req, nil
}

// AcceptRequest finalizes the reservation: the items permanently leave the
// pool and the request becomes accepted. Owner authorization is the caller's
// concern.
func (s *RequestService) AcceptRequest(ctx context.Context, id string) (*domain.Request, error) {
	return s.transition(ctx, id, "accept", domain.RequestStateAccepted, s.ledger.Finalize)
}

// RejectRequest returns the reserved units to the pool and marks the request
// rejected.
func (s *RequestService) RejectRequest(ctx context.Context, id string) (*domain.Request, error) {
	return s.transition(ctx, id, "reject", domain.RequestStateRejected, s.ledger.Release)
}

// CancelRequest is the requester-initiated counterpart of reject: same
// compensating release, terminal state cancelled.
func (s *RequestService) CancelRequest(ctx context.Context, id string) (*domain.Request, error) {
	return s.transition(ctx, id, "cancel", domain.RequestStateCancelled, s.ledger.Release)
}

// BulkCancelByRequester cancels every pending request the user owns, releasing
// each reservation. Individual failures are logged and skipped; the count of
// requests actually cancelled is returned.
func (s *RequestService) BulkCancelByRequester(ctx context.Context, requesterID string) (int, error) {
	if requesterID == "" {
		return 0, &domain.ValidationError{Field: "requester_id", Reason: "required"}
	}

	reqs, err := s.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return 0, fmt.Errorf("list requests: %w", err)
	}

	cancelled := 0
	for _, req := range reqs {
		if req.State != domain.RequestStatePending {
			continue
		}
		if _, err := s.CancelRequest(ctx, req.ID); err != nil {
			s.logger.Warn().Err(err).Str("request_id", req.ID).
				Msg("bulk cancel: skipping request")
			continue
		}
		cancelled++
	}

	s.logger.Info().Str("requester_id", requesterID).Int("cancelled", cancelled).
		Msg("bulk cancel finished")
	return cancelled, nil
}

func (s *RequestService) Get(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, &domain.NotFoundError{Entity: "request", ID: id}
	}
	return req, nil
}

func (s *RequestService) ListByRequester(ctx context.Context, requesterID string) ([]domain.Request, error) {
	if requesterID == "" {
		return nil, &domain.ValidationError{Field: "requester_id", Reason: "required"}
	}
	return s.requests.ListByRequester(ctx, requesterID)
}

func (s *RequestService) ListByListing(ctx context.Context, listingID string) ([]domain.Request, error) {
	if listingID == "" {
		return nil, &domain.ValidationError{Field: "listing_id", Reason: "required"}
	}
	return s.requests.ListByListing(ctx, listingID)
}

func (s *RequestService) ListByState(ctx context.Context, state domain.RequestState) ([]domain.Request, error) {
	switch state {
	case domain.RequestStatePending, domain.RequestStateAccepted,
		domain.RequestStateRejected, domain.RequestStateCancelled:
	default:
		return nil, &domain.ValidationError{Field: "state", Reason: "unknown state"}
	}
	return s.requests.ListByState(ctx, state)
}

type ledgerOp func(ctx context.Context, stockID string, quantity int) (*domain.Stock, error)

// transition performs one terminal transition. The state swap is a CAS from
// pending, so of two racing callers exactly one reaches the ledger; a ledger
// failure swaps the state back to pending.
func (s *RequestService) transition(ctx context.Context, id, action string, to domain.RequestState, apply ledgerOp) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, &domain.NotFoundError{Entity: "request", ID: id}
	}
	if req.State != domain.RequestStatePending {
		return nil, &domain.InvalidStateTransitionError{RequestID: id, From: req.State, Action: action}
	}

	stock, err := s.ledger.GetByListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}

	moved, err := s.requests.UpdateState(ctx, id, domain.RequestStatePending, to)
	if err != nil {
		return nil, fmt.Errorf("update request state: %w", err)
	}
	if !moved {
		// Someone else transitioned it between our read and the CAS.
		return nil, &domain.InvalidStateTransitionError{RequestID: id, From: req.State, Action: action}
	}

	snap, err := apply(ctx, stock.ID, req.Quantity)
	if err != nil {
		if reverted, revErr := s.requests.UpdateState(ctx, id, to, domain.RequestStatePending); revErr != nil || !reverted {
			metrics.ConsistencyFailuresTotal.Inc()
			s.logger.Error().Err(revErr).Str("request_id", id).Str("action", action).
				Msg("state rollback failed after ledger error")
		}
		return nil, err
	}

	req.State = to
	req.UpdatedAt = time.Now()

	metrics.TransitionsTotal.WithLabelValues(action).Inc()
	s.logger.Info().Str("request_id", id).Str("action", action).
		Int("available", snap.Available).Msg("request transitioned")

	s.afterMutation(ctx, req.ListingID, snap.Available)
	return req, nil
}

// afterMutation recomputes listing visibility and publishes the new available
// quantity to the cache. Both are best effort: the counters already committed
// and the derived flag self-heals on the next mutation.
func (s *RequestService) afterMutation(ctx context.Context, listingID string, available int) {
	if _, err := s.visibility.RecomputeVisibility(ctx, listingID); err != nil {
		s.logger.Warn().Err(err).Str("listing_id", listingID).
			Msg("visibility recompute failed")
	}
	if s.cache != nil {
		if err := s.cache.SetAvailable(ctx, listingID, available); err != nil {
			s.logger.Warn().Err(err).Str("listing_id", listingID).
				Msg("availability cache update failed")
		}
	}
}
