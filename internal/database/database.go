package database

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Connect creates a new database connection pool
func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// Configure pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Database connected successfully")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations runs all database migrations in version order
func RunMigrations(db *DB) error {
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	versions := make([]int, 0, len(migrations))
	for version := range migrations {
		versions = append(versions, version)
	}
	sort.Ints(versions)

	for _, version := range versions {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", version, err)
		}

		if exists {
			continue
		}

		log.Printf("Applying migration %d...", version)
		_, err = db.Pool.Exec(ctx, migrations[version])
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}

		_, err = db.Pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)",
			version,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		log.Printf("Migration %d applied successfully", version)
	}

	return nil
}

// migrations maps migration version to SQL
var migrations = map[int]string{
	1: migration001,
	2: migration002,
	3: migration003,
}

const migration001 = `
-- Enable extensions
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE EXTENSION IF NOT EXISTS "pg_trgm";

-- Retailers table
CREATE TABLE IF NOT EXISTS retailers (
    id SERIAL PRIMARY KEY,
    code VARCHAR(50) UNIQUE NOT NULL,
    name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);

-- Categories table (fixed, closed set seeded below)
CREATE TABLE IF NOT EXISTS categories (
    id SERIAL PRIMARY KEY,
    code VARCHAR(50) UNIQUE NOT NULL,
    name VARCHAR(100) NOT NULL
);

-- Master products table
-- Exactly one row exists per normalized name; the unique constraint is
-- the arbiter for concurrent creation races.
CREATE TABLE IF NOT EXISTS master_products (
    id SERIAL PRIMARY KEY,
    normalized_name VARCHAR(255) UNIQUE NOT NULL,
    display_name VARCHAR(255) NOT NULL,
    brand VARCHAR(100),
    size NUMERIC(10, 3),
    unit VARCHAR(10),
    fat_content NUMERIC(5, 2),
    keywords TEXT[] NOT NULL DEFAULT ARRAY[]::TEXT[],
    category_id INT REFERENCES categories(id),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_master_products_keywords ON master_products USING GIN (keywords);
CREATE INDEX IF NOT EXISTS idx_master_products_display_name_trgm ON master_products USING GIN (display_name gin_trgm_ops);

-- Current prices table
-- Latest observation per (product, retailer); overwritten, not appended.
CREATE TABLE IF NOT EXISTS current_prices (
    master_product_id INT NOT NULL REFERENCES master_products(id) ON DELETE CASCADE,
    retailer_id INT NOT NULL REFERENCES retailers(id) ON DELETE CASCADE,
    unit_price NUMERIC(10, 2) NOT NULL,
    seen_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (master_product_id, retailer_id)
);
`

const migration002 = `
-- Receipts table
CREATE TABLE IF NOT EXISTS receipts (
    id SERIAL PRIMARY KEY,
    retailer_id INT REFERENCES retailers(id),
    declared_total NUMERIC(10, 2) NOT NULL DEFAULT 0,
    calculated_total NUMERIC(10, 2) NOT NULL DEFAULT 0,
    percentage_diff NUMERIC(6, 2) NOT NULL DEFAULT 0,
    total_valid BOOLEAN NOT NULL DEFAULT FALSE,
    overall_confidence NUMERIC(4, 3) NOT NULL DEFAULT 0,
    requires_review BOOLEAN NOT NULL DEFAULT FALSE,
    raw_text TEXT NOT NULL DEFAULT '',
    object_key VARCHAR(255),
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_receipts_created_at ON receipts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_receipts_requires_review ON receipts(requires_review) WHERE requires_review;

-- Receipt items table
CREATE TABLE IF NOT EXISTS receipt_items (
    id SERIAL PRIMARY KEY,
    receipt_id INT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
    line_number INT NOT NULL,
    raw_name VARCHAR(255) NOT NULL,
    normalized_name VARCHAR(255) NOT NULL,
    master_product_id INT REFERENCES master_products(id),
    price NUMERIC(10, 2) NOT NULL,
    quantity NUMERIC(10, 3) NOT NULL DEFAULT 1,
    confidence NUMERIC(4, 3) NOT NULL DEFAULT 0,
    quality_flags TEXT[] NOT NULL DEFAULT ARRAY[]::TEXT[],
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_receipt_items_receipt_id ON receipt_items(receipt_id);
CREATE INDEX IF NOT EXISTS idx_receipt_items_master_product_id ON receipt_items(master_product_id);

-- Category corrections table
CREATE TABLE IF NOT EXISTS category_corrections (
    id SERIAL PRIMARY KEY,
    product_name VARCHAR(255) NOT NULL,
    category_code VARCHAR(50) NOT NULL REFERENCES categories(code),
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_category_corrections_created_at ON category_corrections(created_at DESC);
`

const migration003 = `
-- Upload queue table
CREATE TABLE IF NOT EXISTS upload_queue (
    id SERIAL PRIMARY KEY,
    object_key VARCHAR(255),
    raw_text TEXT NOT NULL DEFAULT '',
    store_hint VARCHAR(50) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    attempts INT NOT NULL DEFAULT 0,
    last_error TEXT,
    next_attempt_at TIMESTAMP NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_upload_queue_due ON upload_queue(next_attempt_at) WHERE status = 'pending';

-- Seed the fixed category set
INSERT INTO categories (code, name) VALUES
    ('bread',         'Хляб и тестени'),
    ('dairy',         'Мляко и млечни'),
    ('meat_fish',     'Месо и риба'),
    ('produce',       'Плодове и зеленчуци'),
    ('alcohol',       'Алкохол'),
    ('beverages',     'Напитки'),
    ('sweets_snacks', 'Сладки и снаксове'),
    ('hygiene',       'Козметика и хигиена'),
    ('household',     'Домакински'),
    ('other',         'Други')
ON CONFLICT (code) DO NOTHING;
`
