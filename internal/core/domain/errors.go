package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
)

// ValidationError reports malformed input. Nothing is mutated when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing listing, stock record, request or shipment.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientStockError reports a reservation that exceeds the available
// quantity, including how far short the stock falls.
type InsufficientStockError struct {
	StockID   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock %s: requested %d, available %d (short %d)",
		e.StockID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// InvalidStateTransitionError reports a lifecycle action applied to a request
// that is not in an eligible state.
type InvalidStateTransitionError struct {
	RequestID string
	From      RequestState
	Action    string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s in state %s", e.Action, e.RequestID, e.From)
}

// ConsistencyError means a stock invariant check failed after a mutation that
// should have preserved it. It signals a bug or an evaded race, never user error.
type ConsistencyError struct {
	StockID string
	Detail  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("stock %s consistency violation: %s", e.StockID, e.Detail)
}
