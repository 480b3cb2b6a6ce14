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

// ShipmentService manages delivery records for accepted requests.
type ShipmentService struct {
	shipments port.ShipmentStore
	requests  port.RequestStore
	logger    zerolog.Logger
}

func NewShipmentService(shipments port.ShipmentStore, requests port.RequestStore, logger zerolog.Logger) *ShipmentService {
	return &ShipmentService{
		shipments: shipments,
		requests:  requests,
		logger:    logger.With().Str("component", "shipment").Logger(),
	}
}

type CreateShipmentInput struct {
	RequestID string
	Address   string
	District  string
	City      string
}

// CreateShipment records where an accepted request should be delivered.
func (s *ShipmentService) CreateShipment(ctx context.Context, in CreateShipmentInput) (*domain.Shipment, error) {
	if in.RequestID == "" {
		return nil, &domain.ValidationError{Field: "request_id", Reason: "required"}
	}
	if in.Address == "" || in.District == "" || in.City == "" {
		return nil, &domain.ValidationError{Field: "address", Reason: "address, district and city are required"}
	}

	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, &domain.NotFoundError{Entity: "request", ID: in.RequestID}
	}
	if req.State != domain.RequestStateAccepted {
		return nil, &domain.InvalidStateTransitionError{RequestID: in.RequestID, From: req.State, Action: "ship"}
	}

	now := time.Now()
	shipment := &domain.Shipment{
		ID:        uuid.NewString(),
		RequestID: in.RequestID,
		Address:   in.Address,
		District:  in.District,
		City:      in.City,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}

	s.logger.Info().Str("shipment_id", shipment.ID).Str("request_id", in.RequestID).
		Msg("shipment created")
	return shipment, nil
}

func (s *ShipmentService) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	if shipment == nil {
		return nil, &domain.NotFoundError{Entity: "shipment", ID: id}
	}
	return shipment, nil
}

func (s *ShipmentService) GetByRequest(ctx context.Context, requestID string) (*domain.Shipment, error) {
	shipment, err := s.shipments.GetByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	if shipment == nil {
		return nil, &domain.NotFoundError{Entity: "shipment for request", ID: requestID}
	}
	return shipment, nil
}

// UpdateAddress rewrites the delivery address of an existing shipment.
func (s *ShipmentService) UpdateAddress(ctx context.Context, id string, in CreateShipmentInput) (*domain.Shipment, error) {
	if in.Address == "" || in.District == "" || in.City == "" {
		return nil, &domain.ValidationError{Field: "address", Reason: "address, district and city are required"}
	}

	shipment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	shipment.Address = in.Address
	shipment.District = in.District
	shipment.City = in.City
	shipment.UpdatedAt = time.Now()

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, fmt.Errorf("update shipment: %w", err)
	}
	return shipment, nil
}

func (s *ShipmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.shipments.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	return nil
}

func (s *ShipmentService) List(ctx context.Context) ([]domain.Shipment, error) {
	return s.shipments.List(ctx)
}
