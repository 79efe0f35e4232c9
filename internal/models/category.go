package models

import (
	"time"
)

// Category is one entry in the fixed, closed category set
type Category struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// CategorizationSource identifies which tier produced a categorization
type CategorizationSource string

const (
	SourceRule    CategorizationSource = "rule"
	SourceAI      CategorizationSource = "ai"
	SourceDefault CategorizationSource = "default"
)

// CategorizationResult is the outcome of categorizing a product name
type CategorizationResult struct {
	CategoryCode string               `json:"category_code"`
	Confidence   float64              `json:"confidence"`
	Source       CategorizationSource `json:"source"`
	Reasoning    string               `json:"reasoning,omitempty"`
}

// CategoryCorrection is a user-confirmed category fix. Corrections are
// only ever used as future context for the AI tier, never as a
// retroactive override of already-categorized items.
type CategoryCorrection struct {
	ID           int       `json:"id"`
	ProductName  string    `json:"product_name"`
	CategoryCode string    `json:"category_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// CategorizeRequest is the payload for the categorize endpoint
type CategorizeRequest struct {
	Name string `json:"name"`
}

// CorrectionRequest is the payload for recording a user correction
type CorrectionRequest struct {
	ProductName  string `json:"product_name"`
	CategoryCode string `json:"category_code"`
}
