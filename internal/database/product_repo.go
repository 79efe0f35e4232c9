package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/shelfhero/shelfhero/internal/models"
	"github.com/shelfhero/shelfhero/internal/services"
)

const masterProductColumns = `
	id, normalized_name, display_name, brand, size, unit, fat_content,
	keywords, category_id, created_at, updated_at`

// GetMasterProductByNormalizedName retrieves a master product by its canonical key
func (db *DB) GetMasterProductByNormalizedName(ctx context.Context, normalizedName string) (*models.MasterProduct, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_products WHERE normalized_name = $1`, masterProductColumns)

	product, err := scanMasterProduct(db.Pool.QueryRow(ctx, query, normalizedName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrProductNotFound
	}
	return product, err
}

// GetMasterProductByID retrieves a master product by ID
func (db *DB) GetMasterProductByID(ctx context.Context, id int) (*models.MasterProduct, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_products WHERE id = $1`, masterProductColumns)

	product, err := scanMasterProduct(db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrProductNotFound
	}
	return product, err
}

// CreateMasterProduct inserts a new master product. A concurrent insert
// of the same normalized name loses to the uniqueness constraint and
// reports it so the caller can re-fetch the winner's row.
func (db *DB) CreateMasterProduct(ctx context.Context, result *models.NormalizationResult) (*models.MasterProduct, error) {
	query := fmt.Sprintf(`
		INSERT INTO master_products (normalized_name, display_name, brand, size, unit, fat_content, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (normalized_name) DO NOTHING
		RETURNING %s`, masterProductColumns)

	product, err := scanMasterProduct(db.Pool.QueryRow(ctx, query,
		result.NormalizedName, result.DisplayName, result.Brand,
		result.Size, result.Unit, result.FatContent, result.Keywords,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrProductExists
	}
	return product, err
}

// SearchMasterProducts returns products matching the query by keyword
// or by fuzzy display-name match
func (db *DB) SearchMasterProducts(ctx context.Context, params *models.ProductSearchParams) ([]*models.MasterProduct, int, error) {
	where := `WHERE $1 = ANY(keywords) OR display_name ILIKE $2`
	needle := "%" + strings.ToLower(strings.TrimSpace(params.Query)) + "%"
	keyword := strings.ToLower(strings.TrimSpace(params.Query))

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM master_products %s", where)
	if err := db.Pool.QueryRow(ctx, countQuery, keyword, needle).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM master_products
		%s
		ORDER BY display_name ASC
		LIMIT $3 OFFSET $4`, masterProductColumns, where)

	rows, err := db.Pool.Query(ctx, query, keyword, needle, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*models.MasterProduct
	for rows.Next() {
		product, err := scanMasterProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}

	return products, total, rows.Err()
}

// SetProductCategory assigns a category to a master product
func (db *DB) SetProductCategory(ctx context.Context, productID int, categoryCode string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE master_products
		SET category_id = (SELECT id FROM categories WHERE code = $2), updated_at = NOW()
		WHERE id = $1
	`, productID, categoryCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return services.ErrProductNotFound
	}
	return nil
}

// ProductNames resolves display names for the given product ids
func (db *DB) ProductNames(ctx context.Context, productIDs []int) (map[int]string, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, display_name FROM master_products WHERE id = ANY($1)",
		productIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int]string, len(productIDs))
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}

	return names, rows.Err()
}

func scanMasterProduct(row pgx.Row) (*models.MasterProduct, error) {
	product := &models.MasterProduct{}
	err := row.Scan(
		&product.ID, &product.NormalizedName, &product.DisplayName,
		&product.Brand, &product.Size, &product.Unit, &product.FatContent,
		&product.Keywords, &product.CategoryID,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if product.Keywords == nil {
		product.Keywords = []string{}
	}
	return product, nil
}
