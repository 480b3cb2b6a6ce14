package domain

import "time"

// Stock holds the counter triple for one listing. Available must always equal
// Total minus Reserved, and no counter may go negative.
type Stock struct {
	ID        string
	ListingID string
	Total     int
	Reserved  int
	Available int
	Active    bool
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewStock(listingID string, total int) *Stock {
	now := time.Now()
	return &Stock{
		ListingID: listingID,
		Total:     total,
		Reserved:  0,
		Available: total,
		Active:    total > 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the counter invariant. A failure after a mutation that
// should have preserved it is a ConsistencyError.
func (s *Stock) Validate() error {
	if s.Total < 0 || s.Reserved < 0 || s.Available < 0 {
		return &ConsistencyError{
			StockID: s.ID,
			Detail:  "negative counter",
		}
	}
	if s.Available != s.Total-s.Reserved {
		return &ConsistencyError{
			StockID: s.ID,
			Detail:  "available != total - reserved",
		}
	}
	return nil
}

// Reserve moves quantity units from available to reserved. It fails with
// InsufficientStockError when the pool is short, leaving the counters untouched.
func (s *Stock) Reserve(quantity int) error {
	if s.Available < quantity {
		return &InsufficientStockError{
			StockID:   s.ID,
			Requested: quantity,
			Available: s.Available,
		}
	}
	s.Reserved += quantity
	s.Available = s.Total - s.Reserved
	s.UpdatedAt = time.Now()
	return nil
}

// Finalize permanently removes quantity reserved units from the pool: the
// physical items leave inventory on acceptance. Counters are clamped at zero;
// the caller logs clamping as an anomaly. Reports whether clamping occurred.
func (s *Stock) Finalize(quantity int) bool {
	clamped := s.Total < quantity || s.Reserved < quantity
	s.Total = max(0, s.Total-quantity)
	s.Reserved = max(0, s.Reserved-quantity)
	s.Available = s.Total - s.Reserved
	s.UpdatedAt = time.Now()
	return clamped
}

// Release returns quantity previously reserved units to the available pool on
// rejection or cancellation. Reports whether the reserved counter was clamped.
func (s *Stock) Release(quantity int) bool {
	clamped := s.Reserved < quantity
	s.Available += quantity
	s.Reserved = max(0, s.Reserved-quantity)
	s.UpdatedAt = time.Now()
	return clamped
}
