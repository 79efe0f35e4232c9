package database

import (
	"context"

	"github.com/shelfhero/shelfhero/internal/models"
)

// GetOrCreateRetailer resolves a retailer by code, creating it on first
// sight. Safe under concurrent calls for the same code.
func (db *DB) GetOrCreateRetailer(ctx context.Context, code, name string) (*models.Retailer, error) {
	retailer := &models.Retailer{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO retailers (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = retailers.name
		RETURNING id, code, name, created_at
	`, code, name).Scan(&retailer.ID, &retailer.Code, &retailer.Name, &retailer.CreatedAt)
	if err != nil {
		return nil, err
	}
	return retailer, nil
}

// ListRetailers returns all known retailers
func (db *DB) ListRetailers(ctx context.Context) ([]*models.Retailer, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, code, name, created_at FROM retailers ORDER BY name ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retailers []*models.Retailer
	for rows.Next() {
		retailer := &models.Retailer{}
		if err := rows.Scan(&retailer.ID, &retailer.Code, &retailer.Name, &retailer.CreatedAt); err != nil {
			return nil, err
		}
		retailers = append(retailers, retailer)
	}

	return retailers, rows.Err()
}
