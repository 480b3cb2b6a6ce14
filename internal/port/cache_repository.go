package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// SetAvailable publishes the available quantity for a listing so the
	// browse surface can read it without hitting the database
	SetAvailable(ctx context.Context, listingID string, quantity int) error

	// DeleteAvailable drops the published quantity for a listing
	DeleteAvailable(ctx context.Context, listingID string) error
}
