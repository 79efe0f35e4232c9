package models

import (
	"time"
)

// CurrentPrice is the latest known price for a (product, retailer) pair.
// Each new observation overwrites the prior value; this is not a history.
type CurrentPrice struct {
	MasterProductID int       `json:"master_product_id"`
	RetailerID      int       `json:"retailer_id"`
	UnitPrice       float64   `json:"unit_price"`
	SeenAt          time.Time `json:"seen_at"`
}

// RetailerPrice is a current price joined with retailer details
type RetailerPrice struct {
	RetailerID   int       `json:"retailer_id"`
	RetailerName string    `json:"retailer_name"`
	UnitPrice    float64   `json:"unit_price"`
	SeenAt       time.Time `json:"seen_at"`
}

// RankedPrice is a retailer price positioned within the ascending
// ranking for a product. Rank 0 is the cheapest.
type RankedPrice struct {
	RetailerPrice
	Rank              int     `json:"rank"`
	SavingsVsCheapest float64 `json:"savings_vs_cheapest"`
}

// ProductPriceRanking holds the cross-retailer ranking for one product
type ProductPriceRanking struct {
	MasterProductID int           `json:"master_product_id"`
	ProductName     string        `json:"product_name"`
	Prices          []RankedPrice `json:"prices"`
}

// SingleStoreOption is one retailer's total for a basket
type SingleStoreOption struct {
	RetailerID   int      `json:"retailer_id"`
	RetailerName string   `json:"retailer_name"`
	Total        float64  `json:"total"`
	ItemsCovered int      `json:"items_covered"`
	MissingItems []string `json:"missing_items,omitempty"`
	Incomplete   bool     `json:"incomplete"`
}

// BasketOptimization is the result of a basket optimization call.
// The optimizer reports both strategies; choosing between convenience
// and savings is left to the caller.
type BasketOptimization struct {
	PerItem         []ProductPriceRanking `json:"per_item"`
	SingleStore     *SingleStoreOption    `json:"single_store_recommendation,omitempty"`
	SingleStoreAll  []SingleStoreOption   `json:"single_store_options,omitempty"`
	MultiStoreTotal float64               `json:"multi_store_total"`
	TotalSavings    float64               `json:"total_savings"`
}

// OptimizeBasketRequest is the payload for the basket optimization endpoint
type OptimizeBasketRequest struct {
	ProductIDs []int `json:"product_ids"`
}
