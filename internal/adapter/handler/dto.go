package handler

import (
	"time"

	"github.com/compartedu/backend/internal/core/domain"
)

type listingDTO struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	PublishedAt time.Time `json:"published_at"`
}

func toListingDTO(l *domain.Listing) listingDTO {
	return listingDTO{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		Active:      l.Active,
		PublishedAt: l.PublishedAt,
	}
}

type stockDTO struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	Total     int    `json:"total"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	Active    bool   `json:"active"`
}

func toStockDTO(s *domain.Stock) stockDTO {
	return stockDTO{
		ID:        s.ID,
		ListingID: s.ListingID,
		Total:     s.Total,
		Reserved:  s.Reserved,
		Available: s.Available,
		Active:    s.Active,
	}
}

type requestDTO struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	RequesterID string    `json:"requester_id"`
	Quantity    int       `json:"quantity"`
	State       string    `json:"state"`
	RequestedAt time.Time `json:"requested_at"`
}

func toRequestDTO(r *domain.Request) requestDTO {
	return requestDTO{
		ID:          r.ID,
		ListingID:   r.ListingID,
		RequesterID: r.RequesterID,
		Quantity:    r.Quantity,
		State:       string(r.State),
		RequestedAt: r.RequestedAt,
	}
}

type shipmentDTO struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Address   string `json:"address"`
	District  string `json:"district"`
	City      string `json:"city"`
}

func toShipmentDTO(s *domain.Shipment) shipmentDTO {
	return shipmentDTO{
		ID:        s.ID,
		RequestID: s.RequestID,
		Address:   s.Address,
		District:  s.District,
		City:      s.City,
	}
}
