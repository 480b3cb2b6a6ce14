package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/compartedu/backend/internal/core/domain"
)

type MySQLShipmentStore struct {
	db *sql.DB
}

func NewMySQLShipmentStore(db *sql.DB) *MySQLShipmentStore {
	return &MySQLShipmentStore{db: db}
}

const shipmentColumns = `id, request_id, address, district, city, created_at, updated_at`

func (m *MySQLShipmentStore) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	return m.getOne(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id)
}

func (m *MySQLShipmentStore) GetByRequest(ctx context.Context, requestID string) (*domain.Shipment, error) {
	return m.getOne(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE request_id = ?`, requestID)
}

func (m *MySQLShipmentStore) getOne(ctx context.Context, query, arg string) (*domain.Shipment, error) {
	var sh domain.Shipment
	err := m.db.QueryRowContext(ctx, query, arg).Scan(
		&sh.ID, &sh.RequestID, &sh.Address, &sh.District, &sh.City,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment: %w", err)
	}
	return &sh, nil
}

func (m *MySQLShipmentStore) Create(ctx context.Context, shipment *domain.Shipment) (string, error) {
	if shipment.ID == "" {
		shipment.ID = uuid.NewString()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO shipments (id, request_id, address, district, city, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shipment.ID, shipment.RequestID, shipment.Address, shipment.District,
		shipment.City, shipment.CreatedAt, shipment.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert shipment: %w", err)
	}
	return shipment.ID, nil
}

func (m *MySQLShipmentStore) Update(ctx context.Context, shipment *domain.Shipment) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE shipments SET address = ?, district = ?, city = ?, updated_at = NOW()
		WHERE id = ?`,
		shipment.Address, shipment.District, shipment.City, shipment.ID,
	)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("update shipment %s: %w", shipment.ID, sql.ErrNoRows)
	}
	return nil
}

func (m *MySQLShipmentStore) Delete(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM shipments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	return nil
}

func (m *MySQLShipmentStore) List(ctx context.Context) ([]domain.Shipment, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []domain.Shipment
	for rows.Next() {
		var sh domain.Shipment
		if err := rows.Scan(
			&sh.ID, &sh.RequestID, &sh.Address, &sh.District, &sh.City,
			&sh.CreatedAt, &sh.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		shipments = append(shipments, sh)
	}
	return shipments, rows.Err()
}
