package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfhero/shelfhero/internal/models"
)

// fakePriceSource serves prices and names from fixed maps
type fakePriceSource struct {
	prices map[int][]models.RetailerPrice
	names  map[int]string
}

func (f *fakePriceSource) PricesForProducts(_ context.Context, productIDs []int) (map[int][]models.RetailerPrice, error) {
	out := make(map[int][]models.RetailerPrice)
	for _, id := range productIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePriceSource) ProductNames(_ context.Context, productIDs []int) (map[int]string, error) {
	out := make(map[int]string)
	for _, id := range productIDs {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func price(retailerID int, retailerName string, unitPrice float64) models.RetailerPrice {
	return models.RetailerPrice{RetailerID: retailerID, RetailerName: retailerName, UnitPrice: unitPrice}
}

func TestOptimizeTwoRetailers(t *testing.T) {
	// Retailer A carries the bread cheaper, retailer B the milk; the
	// multi-store total mixes the two and the single-store pick is the
	// cheaper complete basket.
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(1, "Кауфланд", 1.20), price(2, "Лидл", 1.50)},
			2: {price(1, "Кауфланд", 2.70), price(2, "Лидл", 2.30)},
		},
		names: map[int]string{1: "Хляб", 2: "Прясно мляко"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1, 2})
	require.NoError(t, err)

	assert.InDelta(t, 3.50, result.MultiStoreTotal, 0.001)

	require.Len(t, result.SingleStoreAll, 2)
	require.NotNil(t, result.SingleStore)
	assert.Equal(t, "Лидл", result.SingleStore.RetailerName)
	assert.InDelta(t, 3.80, result.SingleStore.Total, 0.001)
	assert.False(t, result.SingleStore.Incomplete)

	assert.InDelta(t, 0.30, result.TotalSavings, 0.001)
}

func TestOptimizeOneRetailerWinsEverything(t *testing.T) {
	// When one retailer is cheapest for every item, the single-store
	// total equals the multi-store total and there is nothing to save
	// by splitting the trip.
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(1, "Кауфланд", 2.50), price(2, "Лидл", 3.00)},
			2: {price(1, "Кауфланд", 1.00), price(2, "Лидл", 1.20)},
		},
		names: map[int]string{1: "Кашкавал", 2: "Хляб"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1, 2})
	require.NoError(t, err)

	assert.InDelta(t, 3.50, result.MultiStoreTotal, 0.001)
	require.NotNil(t, result.SingleStore)
	assert.Equal(t, "Кауфланд", result.SingleStore.RetailerName)
	assert.InDelta(t, 3.50, result.SingleStore.Total, 0.001)
	assert.Zero(t, result.TotalSavings)
}

func TestOptimizePerItemRanking(t *testing.T) {
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(1, "Кауфланд", 2.50), price(2, "Лидл", 1.00)},
		},
		names: map[int]string{1: "Сирене"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1})
	require.NoError(t, err)
	require.Len(t, result.PerItem, 1)

	ranked := result.PerItem[0].Prices
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Rank)
	assert.Equal(t, "Лидл", ranked[0].RetailerName)
	assert.Zero(t, ranked[0].SavingsVsCheapest)
	assert.Equal(t, 1, ranked[1].Rank)
	assert.InDelta(t, 1.50, ranked[1].SavingsVsCheapest, 0.001)
}

func TestOptimizeCoverageFilter(t *testing.T) {
	// Retailer B carries one of four items (25% coverage) and must not
	// appear as a single-store option; retailer C carries two (50%) and
	// stays, flagged incomplete.
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(1, "Кауфланд", 1.00), price(2, "Билла", 0.90), price(3, "Фантастико", 1.10)},
			2: {price(1, "Кауфланд", 2.00), price(3, "Фантастико", 2.20)},
			3: {price(1, "Кауфланд", 3.00)},
			4: {price(1, "Кауфланд", 4.00)},
		},
		names: map[int]string{1: "Хляб", 2: "Мляко", 3: "Сирене", 4: "Кайма"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1, 2, 3, 4})
	require.NoError(t, err)

	require.Len(t, result.SingleStoreAll, 2)
	require.NotNil(t, result.SingleStore)
	assert.Equal(t, "Фантастико", result.SingleStore.RetailerName)
	assert.True(t, result.SingleStore.Incomplete)
	assert.Equal(t, 2, result.SingleStore.ItemsCovered)
	assert.ElementsMatch(t, []string{"Сирене", "Кайма"}, result.SingleStore.MissingItems)

	full := result.SingleStoreAll[1]
	assert.Equal(t, "Кауфланд", full.RetailerName)
	assert.False(t, full.Incomplete)
	assert.InDelta(t, 10.00, full.Total, 0.001)
}

func TestOptimizeTieBrokenByName(t *testing.T) {
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(2, "Лидл", 1.50), price(1, "Билла", 1.50)},
		},
		names: map[int]string{1: "Хляб"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1})
	require.NoError(t, err)
	require.NotNil(t, result.SingleStore)
	assert.Equal(t, "Билла", result.SingleStore.RetailerName)
	assert.Equal(t, "Билла", result.PerItem[0].Prices[0].RetailerName)
}

func TestOptimizeDuplicateIDsCollapse(t *testing.T) {
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			1: {price(1, "Кауфланд", 1.20)},
		},
		names: map[int]string{1: "Хляб"},
	}
	o := NewBasketOptimizer(source)

	result, err := o.Optimize(context.Background(), []int{1, 1, 1})
	require.NoError(t, err)
	assert.Len(t, result.PerItem, 1)
	assert.InDelta(t, 1.20, result.MultiStoreTotal, 0.001)
}

func TestOptimizeEmptyBasket(t *testing.T) {
	o := NewBasketOptimizer(&fakePriceSource{})
	_, err := o.Optimize(context.Background(), nil)
	assert.Error(t, err)
}

func TestRankProduct(t *testing.T) {
	source := &fakePriceSource{
		prices: map[int][]models.RetailerPrice{
			7: {price(1, "Кауфланд", 2.50), price(2, "Лидл", 2.10)},
		},
		names: map[int]string{7: "Кашкавал"},
	}
	o := NewBasketOptimizer(source)

	ranking, err := o.RankProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, ranking.MasterProductID)
	assert.Equal(t, "Кашкавал", ranking.ProductName)
	require.Len(t, ranking.Prices, 2)
	assert.Equal(t, "Лидл", ranking.Prices[0].RetailerName)
}
