package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/port"
)

type MySQLStockStore struct {
	db *sql.DB
}

func NewMySQLStockStore(db *sql.DB) *MySQLStockStore {
	return &MySQLStockStore{db: db}
}

const stockColumns = `id, listing_id, total, reserved, available, active, version, created_at, updated_at`

func (m *MySQLStockStore) GetByID(ctx context.Context, id string) (*domain.Stock, error) {
	return m.getOne(ctx, `SELECT `+stockColumns+` FROM stocks WHERE id = ?`, id)
}

func (m *MySQLStockStore) GetByListing(ctx context.Context, listingID string) (*domain.Stock, error) {
	return m.getOne(ctx, `SELECT `+stockColumns+` FROM stocks WHERE listing_id = ?`, listingID)
}

func (m *MySQLStockStore) getOne(ctx context.Context, query, arg string) (*domain.Stock, error) {
	var st domain.Stock
	err := m.db.QueryRowContext(ctx, query, arg).Scan(
		&st.ID, &st.ListingID, &st.Total, &st.Reserved, &st.Available,
		&st.Active, &st.Version, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &st, nil
}

func (m *MySQLStockStore) Create(ctx context.Context, stock *domain.Stock) (string, error) {
	if stock.ID == "" {
		stock.ID = uuid.NewString()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stocks (id, listing_id, total, reserved, available, active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		stock.ID, stock.ListingID, stock.Total, stock.Reserved, stock.Available,
		stock.Active, stock.CreatedAt, stock.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert stock: %w", err)
	}
	return stock.ID, nil
}

// Update commits the counters only if the version stamp still matches the row,
// then advances the in-memory stamp to mirror the database.
func (m *MySQLStockStore) Update(ctx context.Context, stock *domain.Stock) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE stocks
		SET total = ?, reserved = ?, available = ?, active = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		stock.Total, stock.Reserved, stock.Available, stock.Active,
		stock.ID, stock.Version,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}

	stock.Version++
	return nil
}
