package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/compartedu/backend/internal/core/domain"
)

type MySQLListingStore struct {
	db *sql.DB
}

func NewMySQLListingStore(db *sql.DB) *MySQLListingStore {
	return &MySQLListingStore{db: db}
}

const listingColumns = `id, owner_id, title, description, active, published_at, created_at, updated_at`

func (m *MySQLListingStore) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	err := m.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id,
	).Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description,
		&l.Active, &l.PublishedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", err)
	}
	return &l, nil
}

func (m *MySQLListingStore) Create(ctx context.Context, listing *domain.Listing) (string, error) {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO listings (id, owner_id, title, description, active, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.OwnerID, listing.Title, listing.Description,
		listing.Active, listing.PublishedAt, listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return listing.ID, nil
}

func (m *MySQLListingStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(
			&l.ID, &l.OwnerID, &l.Title, &l.Description,
			&l.Active, &l.PublishedAt, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (m *MySQLListingStore) SetActive(ctx context.Context, id string, active bool) error {
	result, err := m.db.ExecContext(ctx,
		`UPDATE listings SET active = ?, updated_at = NOW() WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("update listing %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
