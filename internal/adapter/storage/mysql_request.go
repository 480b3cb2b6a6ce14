package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/compartedu/backend/internal/core/domain"
)

type MySQLRequestStore struct {
	db *sql.DB
}

func NewMySQLRequestStore(db *sql.DB) *MySQLRequestStore {
	return &MySQLRequestStore{db: db}
}

const requestColumns = `id, listing_id, requester_id, quantity, state, requested_at, created_at, updated_at`

func (m *MySQLRequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	var req domain.Request
	err := m.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id,
	).Scan(
		&req.ID, &req.ListingID, &req.RequesterID, &req.Quantity,
		&req.State, &req.RequestedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	return &req, nil
}

func (m *MySQLRequestStore) Create(ctx context.Context, req *domain.Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO requests (id, listing_id, requester_id, quantity, state, requested_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ListingID, req.RequesterID, req.Quantity,
		req.State, req.RequestedAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert request: %w", err)
	}
	return req.ID, nil
}

// UpdateState is a compare-and-swap on the state column: the row only moves if
// it is still in the expected source state.
func (m *MySQLRequestStore) UpdateState(ctx context.Context, id string, from, to domain.RequestState) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE requests SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update request state: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLRequestStore) ListByRequester(ctx context.Context, requesterID string) ([]domain.Request, error) {
	return m.list(ctx, `SELECT `+requestColumns+` FROM requests WHERE requester_id = ? ORDER BY created_at`, requesterID)
}

func (m *MySQLRequestStore) ListByListing(ctx context.Context, listingID string) ([]domain.Request, error) {
	return m.list(ctx, `SELECT `+requestColumns+` FROM requests WHERE listing_id = ? ORDER BY created_at`, listingID)
}

func (m *MySQLRequestStore) ListByState(ctx context.Context, state domain.RequestState) ([]domain.Request, error) {
	return m.list(ctx, `SELECT `+requestColumns+` FROM requests WHERE state = ? ORDER BY created_at`, string(state))
}

func (m *MySQLRequestStore) list(ctx context.Context, query string, arg any) ([]domain.Request, error) {
	rows, err := m.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.Request
	for rows.Next() {
		var req domain.Request
		if err := rows.Scan(
			&req.ID, &req.ListingID, &req.RequesterID, &req.Quantity,
			&req.State, &req.RequestedAt, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
