package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shelfhero/shelfhero/internal/models"
)

// minBasketCoverage is the fraction of the basket a retailer must stock
// to be considered for the single-store recommendation
const minBasketCoverage = 0.5

// PriceSource provides current prices for basket optimization
type PriceSource interface {
	// PricesForProducts returns, per master product id, the current
	// prices across all retailers carrying it
	PricesForProducts(ctx context.Context, productIDs []int) (map[int][]models.RetailerPrice, error)
	// ProductNames resolves display names for the given product ids
	ProductNames(ctx context.Context, productIDs []int) (map[int]string, error)
}

// BasketOptimizer computes cross-retailer price rankings and basket
// recommendations
type BasketOptimizer struct {
	prices PriceSource
}

// NewBasketOptimizer creates a basket optimizer over a price source
func NewBasketOptimizer(prices PriceSource) *BasketOptimizer {
	return &BasketOptimizer{prices: prices}
}

// RankProduct returns the ascending price ranking for one product
func (o *BasketOptimizer) RankProduct(ctx context.Context, productID int) (*models.ProductPriceRanking, error) {
	prices, err := o.prices.PricesForProducts(ctx, []int{productID})
	if err != nil {
		return nil, err
	}
	names, err := o.prices.ProductNames(ctx, []int{productID})
	if err != nil {
		return nil, err
	}

	ranking := &models.ProductPriceRanking{
		MasterProductID: productID,
		ProductName:     names[productID],
		Prices:          rankPrices(prices[productID]),
	}
	return ranking, nil
}

// Optimize computes per-item rankings, the single-store recommendation
// and the multi-store total for a basket of master products. The
// multi-store total picks each item's cheapest retailer independently;
// travel cost between stores is not modeled.
func (o *BasketOptimizer) Optimize(ctx context.Context, productIDs []int) (*models.BasketOptimization, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("basket is empty")
	}
	productIDs = dedupeIDs(productIDs)

	priceMap, err := o.prices.PricesForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	names, err := o.prices.ProductNames(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	result := &models.BasketOptimization{}

	// Per-item rankings and the multi-store total
	retailerNames := make(map[int]string)
	for _, id := range productIDs {
		ranked := rankPrices(priceMap[id])
		result.PerItem = append(result.PerItem, models.ProductPriceRanking{
			MasterProductID: id,
			ProductName:     names[id],
			Prices:          ranked,
		})
		if len(ranked) > 0 {
			result.MultiStoreTotal = round2(result.MultiStoreTotal + ranked[0].UnitPrice)
		}
		for _, p := range ranked {
			retailerNames[p.RetailerID] = p.RetailerName
		}
	}

	// Single-store totals per retailer
	for retailerID, name := range retailerNames {
		option := models.SingleStoreOption{
			RetailerID:   retailerID,
			RetailerName: name,
		}
		for _, id := range productIDs {
			price, found := priceAt(priceMap[id], retailerID)
			if !found {
				option.MissingItems = append(option.MissingItems, names[id])
				continue
			}
			option.Total = round2(option.Total + price)
			option.ItemsCovered++
		}
		coverage := float64(option.ItemsCovered) / float64(len(productIDs))
		if coverage < minBasketCoverage {
			continue
		}
		option.Incomplete = option.ItemsCovered < len(productIDs)
		result.SingleStoreAll = append(result.SingleStoreAll, option)
	}

	// Cheapest total wins; ties broken by retailer name
	sort.Slice(result.SingleStoreAll, func(i, j int) bool {
		a, b := result.SingleStoreAll[i], result.SingleStoreAll[j]
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		return a.RetailerName < b.RetailerName
	})
	if len(result.SingleStoreAll) > 0 {
		best := result.SingleStoreAll[0]
		result.SingleStore = &best
		result.TotalSavings = round2(best.Total - result.MultiStoreTotal)
	}

	return result, nil
}

// rankPrices sorts prices ascending and annotates rank and savings
// against the cheapest entry. Ties are broken by retailer name so the
// ranking is stable across calls.
func rankPrices(prices []models.RetailerPrice) []models.RankedPrice {
	sorted := make([]models.RetailerPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].UnitPrice != sorted[j].UnitPrice {
			return sorted[i].UnitPrice < sorted[j].UnitPrice
		}
		return sorted[i].RetailerName < sorted[j].RetailerName
	})

	ranked := make([]models.RankedPrice, len(sorted))
	for i, p := range sorted {
		ranked[i] = models.RankedPrice{
			RetailerPrice: p,
			Rank:          i,
		}
		if len(sorted) > 0 {
			ranked[i].SavingsVsCheapest = round2(p.UnitPrice - sorted[0].UnitPrice)
		}
	}
	return ranked
}

func priceAt(prices []models.RetailerPrice, retailerID int) (float64, bool) {
	for _, p := range prices {
		if p.RetailerID == retailerID {
			return p.UnitPrice, true
		}
	}
	return 0, false
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
