package domain

import "time"

// Shipment records the delivery address for an accepted request.
type Shipment struct {
	ID        string
	RequestID string
	Address   string
	District  string
	City      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
