package models

import (
	"time"
)

// QualityFlag names a specific source of extraction uncertainty on a parsed item
type QualityFlag string

const (
	// FlagOCRUncertain marks items whose numeric tokens needed OCR digit repair
	FlagOCRUncertain QualityFlag = "ocr_uncertain"
	// FlagFuzzyPriceMatch marks items whose price was matched by a fallback pattern
	FlagFuzzyPriceMatch QualityFlag = "fuzzy_price_match"
	// FlagMergedFragment marks items assembled from a name line and a separate price line
	FlagMergedFragment QualityFlag = "merged_fragment"
	// FlagQuantityFolded marks items built from a "qty x unit_price" sub-line
	FlagQuantityFolded QualityFlag = "quantity_folded"
	// FlagMissingName marks items where no usable name text was found
	FlagMissingName QualityFlag = "missing_name"
	// FlagVisionAssisted marks items guessed by the vision service when
	// text parsing found nothing
	FlagVisionAssisted QualityFlag = "vision_assisted"
)

// ParsedItem represents a single line item extracted from receipt text.
// It is immutable once emitted by the parser.
type ParsedItem struct {
	Name           string        `json:"name"`
	NormalizedName string        `json:"normalized_name,omitempty"`
	Price          float64       `json:"price"`
	Quantity       float64       `json:"quantity"`
	Confidence     float64       `json:"confidence"`
	QualityFlags   []QualityFlag `json:"quality_flags,omitempty"`
	LineNumber     int           `json:"line_number"`
}

// HasFlag reports whether the item carries the given quality flag
func (i *ParsedItem) HasFlag(flag QualityFlag) bool {
	for _, f := range i.QualityFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// TotalValidation reconciles summed item cost against the declared total
type TotalValidation struct {
	CalculatedTotal float64 `json:"calculated_total"`
	DeclaredTotal   float64 `json:"declared_total"`
	PercentageDiff  float64 `json:"percentage_diff"`
	Valid           bool    `json:"valid"`
}

// ReceiptParseResult is the terminal output of a single parse call
type ReceiptParseResult struct {
	Retailer          string           `json:"retailer"`
	RetailerCode      string           `json:"retailer_code"`
	DeclaredTotal     float64          `json:"declared_total"`
	Items             []ParsedItem     `json:"items"`
	OverallConfidence float64          `json:"overall_confidence"`
	TotalValidation   *TotalValidation `json:"total_validation,omitempty"`
	RequiresReview    bool             `json:"requires_review"`
	Suggestions       []string         `json:"suggestions,omitempty"`
}

// Receipt is a persisted parse result
type Receipt struct {
	ID                int       `json:"id"`
	RetailerID        *int      `json:"retailer_id,omitempty"`
	RetailerName      string    `json:"retailer_name,omitempty"`
	DeclaredTotal     float64   `json:"declared_total"`
	CalculatedTotal   float64   `json:"calculated_total"`
	PercentageDiff    float64   `json:"percentage_diff"`
	TotalValid        bool      `json:"total_valid"`
	OverallConfidence float64   `json:"overall_confidence"`
	RequiresReview    bool      `json:"requires_review"`
	RawText           string    `json:"raw_text,omitempty"`
	ObjectKey         *string   `json:"object_key,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ReceiptItem is a persisted line item referencing a master product
type ReceiptItem struct {
	ID              int           `json:"id"`
	ReceiptID       int           `json:"receipt_id"`
	LineNumber      int           `json:"line_number"`
	RawName         string        `json:"raw_name"`
	NormalizedName  string        `json:"normalized_name"`
	MasterProductID *int          `json:"master_product_id,omitempty"`
	Price           float64       `json:"price"`
	Quantity        float64       `json:"quantity"`
	Confidence      float64       `json:"confidence"`
	QualityFlags    []QualityFlag `json:"quality_flags,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ReceiptWithItems includes the persisted line items
type ReceiptWithItems struct {
	Receipt
	Items []ReceiptItem `json:"items"`
}

// ParseReceiptRequest is the payload for the raw-text parse endpoint
type ParseReceiptRequest struct {
	RawText   string `json:"raw_text"`
	StoreHint string `json:"store_hint,omitempty"`
	Persist   bool   `json:"persist,omitempty"`
}

// ReceiptListParams contains parameters for listing receipts
type ReceiptListParams struct {
	Limit          int
	Offset         int
	RequiresReview *bool
}
