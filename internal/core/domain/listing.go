package domain

import "time"

// Listing is a published offer of shareable material. The engine only mutates
// the Active flag, derived from the paired stock's available quantity.
type Listing struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Active      bool
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
