package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shelfhero/shelfhero/internal/models"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
)

// CreateReceiptWithItems persists a receipt and its line items in one
// transaction
func (db *DB) CreateReceiptWithItems(ctx context.Context, receipt *models.Receipt, items []models.ReceiptItem) (*models.ReceiptWithItems, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (
			retailer_id, declared_total, calculated_total, percentage_diff,
			total_valid, overall_confidence, requires_review, raw_text, object_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, receipt.RetailerID, receipt.DeclaredTotal, receipt.CalculatedTotal,
		receipt.PercentageDiff, receipt.TotalValid, receipt.OverallConfidence,
		receipt.RequiresReview, receipt.RawText, receipt.ObjectKey,
	).Scan(&receipt.ID, &receipt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i := range items {
		item := &items[i]
		item.ReceiptID = receipt.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO receipt_items (
				receipt_id, line_number, raw_name, normalized_name,
				master_product_id, price, quantity, confidence, quality_flags
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at
		`, item.ReceiptID, item.LineNumber, item.RawName, item.NormalizedName,
			item.MasterProductID, item.Price, item.Quantity, item.Confidence,
			flagsToStrings(item.QualityFlags),
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert receipt item %d: %w", item.LineNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.ReceiptWithItems{Receipt: *receipt, Items: items}, nil
}

// GetReceiptByID retrieves a receipt with its line items
func (db *DB) GetReceiptByID(ctx context.Context, id int) (*models.ReceiptWithItems, error) {
	receipt := &models.Receipt{}
	err := db.Pool.QueryRow(ctx, `
		SELECT
			rc.id, rc.retailer_id, COALESCE(rt.name, ''), rc.declared_total,
			rc.calculated_total, rc.percentage_diff, rc.total_valid,
			rc.overall_confidence, rc.requires_review, rc.raw_text,
			rc.object_key, rc.created_at
		FROM receipts rc
		LEFT JOIN retailers rt ON rc.retailer_id = rt.id
		WHERE rc.id = $1
	`, id).Scan(
		&receipt.ID, &receipt.RetailerID, &receipt.RetailerName,
		&receipt.DeclaredTotal, &receipt.CalculatedTotal, &receipt.PercentageDiff,
		&receipt.TotalValid, &receipt.OverallConfidence, &receipt.RequiresReview,
		&receipt.RawText, &receipt.ObjectKey, &receipt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT
			id, receipt_id, line_number, raw_name, normalized_name,
			master_product_id, price, quantity, confidence, quality_flags, created_at
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY line_number ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ReceiptItem
	for rows.Next() {
		var item models.ReceiptItem
		var flags []string
		err := rows.Scan(
			&item.ID, &item.ReceiptID, &item.LineNumber, &item.RawName,
			&item.NormalizedName, &item.MasterProductID, &item.Price,
			&item.Quantity, &item.Confidence, &flags, &item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		item.QualityFlags = stringsToFlags(flags)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.ReceiptWithItems{Receipt: *receipt, Items: items}, nil
}

// ListReceipts returns a paginated list of receipts, optionally
// filtered to those flagged for review
func (db *DB) ListReceipts(ctx context.Context, params *models.ReceiptListParams) ([]*models.Receipt, int, error) {
	where := ""
	args := []interface{}{}
	argIndex := 1

	if params.RequiresReview != nil {
		where = fmt.Sprintf("WHERE rc.requires_review = $%d", argIndex)
		args = append(args, *params.RequiresReview)
		argIndex++
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM receipts rc %s", where)
	if err := db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT
			rc.id, rc.retailer_id, COALESCE(rt.name, ''), rc.declared_total,
			rc.calculated_total, rc.percentage_diff, rc.total_valid,
			rc.overall_confidence, rc.requires_review, rc.object_key, rc.created_at
		FROM receipts rc
		LEFT JOIN retailers rt ON rc.retailer_id = rt.id
		%s
		ORDER BY rc.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argIndex, argIndex+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt := &models.Receipt{}
		err := rows.Scan(
			&receipt.ID, &receipt.RetailerID, &receipt.RetailerName,
			&receipt.DeclaredTotal, &receipt.CalculatedTotal, &receipt.PercentageDiff,
			&receipt.TotalValid, &receipt.OverallConfidence, &receipt.RequiresReview,
			&receipt.ObjectKey, &receipt.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, total, rows.Err()
}

func flagsToStrings(flags []models.QualityFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func stringsToFlags(flags []string) []models.QualityFlag {
	if len(flags) == 0 {
		return nil
	}
	out := make([]models.QualityFlag, len(flags))
	for i, f := range flags {
		out[i] = models.QualityFlag(f)
	}
	return out
}
