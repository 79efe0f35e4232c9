package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shelfhero/shelfhero/internal/models"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
)

// ListCategories returns the fixed category set
func (db *DB) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := db.Pool.Query(ctx, "SELECT id, code, name FROM categories ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.Code, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// GetCategoryByCode retrieves one category from the fixed set
func (db *DB) GetCategoryByCode(ctx context.Context, code string) (*models.Category, error) {
	category := &models.Category{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, code, name FROM categories WHERE code = $1", code,
	).Scan(&category.ID, &category.Code, &category.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

// CreateCorrection records a user-confirmed category fix
func (db *DB) CreateCorrection(ctx context.Context, req *models.CorrectionRequest) (*models.CategoryCorrection, error) {
	correction := &models.CategoryCorrection{
		ProductName:  req.ProductName,
		CategoryCode: req.CategoryCode,
	}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO category_corrections (product_name, category_code)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, req.ProductName, req.CategoryCode).Scan(&correction.ID, &correction.CreatedAt)
	if err != nil {
		return nil, err
	}
	return correction, nil
}

// RecentCorrections returns the newest user corrections, newest first
func (db *DB) RecentCorrections(ctx context.Context, limit int) ([]models.CategoryCorrection, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, product_name, category_code, created_at
		FROM category_corrections
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var corrections []models.CategoryCorrection
	for rows.Next() {
		var c models.CategoryCorrection
		if err := rows.Scan(&c.ID, &c.ProductName, &c.CategoryCode, &c.CreatedAt); err != nil {
			return nil, err
		}
		corrections = append(corrections, c)
	}

	return corrections, rows.Err()
}
