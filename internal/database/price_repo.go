package database

import (
	"context"

	"github.com/shelfhero/shelfhero/internal/models"
)

// UpsertCurrentPrice records the latest observed price for a
// (product, retailer) pair. Repeated or out-of-order submissions are
// safe: the newest seen_at wins and an identical retry is a no-op.
func (db *DB) UpsertCurrentPrice(ctx context.Context, price *models.CurrentPrice) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO current_prices (master_product_id, retailer_id, unit_price, seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (master_product_id, retailer_id) DO UPDATE
		SET unit_price = EXCLUDED.unit_price, seen_at = EXCLUDED.seen_at
		WHERE current_prices.seen_at <= EXCLUDED.seen_at
	`, price.MasterProductID, price.RetailerID, price.UnitPrice, price.SeenAt)
	return err
}

// PricesForProducts returns, per master product id, the current prices
// across all retailers carrying it
func (db *DB) PricesForProducts(ctx context.Context, productIDs []int) (map[int][]models.RetailerPrice, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT cp.master_product_id, cp.retailer_id, r.name, cp.unit_price, cp.seen_at
		FROM current_prices cp
		JOIN retailers r ON cp.retailer_id = r.id
		WHERE cp.master_product_id = ANY($1)
		ORDER BY cp.master_product_id, cp.unit_price ASC
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[int][]models.RetailerPrice)
	for rows.Next() {
		var productID int
		var price models.RetailerPrice
		if err := rows.Scan(&productID, &price.RetailerID, &price.RetailerName, &price.UnitPrice, &price.SeenAt); err != nil {
			return nil, err
		}
		prices[productID] = append(prices[productID], price)
	}

	return prices, rows.Err()
}
