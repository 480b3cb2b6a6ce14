package domain

import "time"

type RequestState string

const (
	RequestStatePending   RequestState = "pending"
	RequestStateAccepted  RequestState = "accepted"
	RequestStateRejected  RequestState = "rejected"
	RequestStateCancelled RequestState = "cancelled"
)

// Terminal reports whether no further transition is allowed from the state.
func (s RequestState) Terminal() bool {
	return s == RequestStateAccepted || s == RequestStateRejected || s == RequestStateCancelled
}

// Request is one user's ask for a quantity of a listing. Requests are never
// physically deleted; cancellation and rejection are state transitions.
type Request struct {
	ID          string
	ListingID   string
	RequesterID string
	Quantity    int
	State       RequestState
	RequestedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
