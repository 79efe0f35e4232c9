package models

import (
	"time"
)

// MasterProduct is the canonical, deduplicated product entity shared
// across retailers and receipts. Exactly one row exists per normalized name.
type MasterProduct struct {
	ID             int       `json:"id"`
	NormalizedName string    `json:"normalized_name"`
	DisplayName    string    `json:"display_name"`
	Brand          *string   `json:"brand,omitempty"`
	Size           *float64  `json:"size,omitempty"`
	Unit           *string   `json:"unit,omitempty"`
	FatContent     *float64  `json:"fat_content,omitempty"`
	Keywords       []string  `json:"keywords"`
	CategoryID     *int      `json:"category_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizationResult is the outcome of canonicalizing a raw product string
type NormalizationResult struct {
	NormalizedName string   `json:"normalized_name"`
	DisplayName    string   `json:"display_name"`
	Brand          *string  `json:"brand,omitempty"`
	Size           *float64 `json:"size,omitempty"`
	Unit           *string  `json:"unit,omitempty"`
	FatContent     *float64 `json:"fat_content,omitempty"`
	Keywords       []string `json:"keywords"`
	Miscellaneous  bool     `json:"miscellaneous,omitempty"`
}

// NormalizeProductRequest is the payload for the normalize endpoint
type NormalizeProductRequest struct {
	Name string `json:"name"`
}

// ProductSearchParams contains parameters for keyword search
type ProductSearchParams struct {
	Query  string
	Limit  int
	Offset int
}
