package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfhero/shelfhero/internal/models"
)

// fakePipelineStore records every write the pipeline makes
type fakePipelineStore struct {
	retailers  map[string]*models.Retailer
	nextID     int
	prices     []*models.CurrentPrice
	categories map[int]string

	receipt *models.Receipt
	items   []models.ReceiptItem
}

func newFakePipelineStore() *fakePipelineStore {
	return &fakePipelineStore{
		retailers:  map[string]*models.Retailer{},
		nextID:     1,
		categories: map[int]string{},
	}
}

func (f *fakePipelineStore) GetOrCreateRetailer(_ context.Context, code, name string) (*models.Retailer, error) {
	if r, ok := f.retailers[code]; ok {
		return r, nil
	}
	r := &models.Retailer{ID: f.nextID, Code: code, Name: name}
	f.nextID++
	f.retailers[code] = r
	return r, nil
}

func (f *fakePipelineStore) CreateReceiptWithItems(_ context.Context, receipt *models.Receipt, items []models.ReceiptItem) (*models.ReceiptWithItems, error) {
	f.receipt = receipt
	f.items = items
	persisted := &models.ReceiptWithItems{Receipt: *receipt, Items: items}
	persisted.ID = 1
	return persisted, nil
}

func (f *fakePipelineStore) UpsertCurrentPrice(_ context.Context, price *models.CurrentPrice) error {
	f.prices = append(f.prices, price)
	return nil
}

func (f *fakePipelineStore) SetProductCategory(_ context.Context, productID int, categoryCode string) error {
	f.categories[productID] = categoryCode
	return nil
}

func newTestPipeline(store *fakePipelineStore, products *fakeProductRepo) *ReceiptPipeline {
	return NewReceiptPipeline(
		NewReceiptParser(),
		NewNormalizer(products),
		NewCategorizer(nil, nil),
		nil,
		nil,
		nil,
		store,
	)
}

func TestProcessTextPersistsReceipt(t *testing.T) {
	store := newFakePipelineStore()
	products := newFakeProductRepo()
	pipeline := newTestPipeline(store, products)

	raw := `КАУФЛАНД БЪЛГАРИЯ
Хляб Добруджа 650г 1,20
Прясно мляко Верея 3,6% 1л 2,30
ОБЩА СУМА 3,50
ФИСКАЛЕН БОН`

	persisted, result, err := pipeline.ProcessText(context.Background(), raw, "", nil)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	require.NotNil(t, result)

	require.NotNil(t, store.receipt)
	assert.Equal(t, "Кауфланд", store.receipt.RetailerName)
	require.NotNil(t, store.receipt.RetailerID)
	assert.InDelta(t, 3.50, store.receipt.DeclaredTotal, 0.001)
	assert.True(t, store.receipt.TotalValid)
	assert.Equal(t, raw, store.receipt.RawText)

	require.Len(t, store.items, 2)
	assert.Equal(t, "Хляб Добруджа 650г", store.items[0].RawName)
	assert.NotEmpty(t, store.items[0].NormalizedName)
	require.NotNil(t, store.items[0].MasterProductID)

	// Both items resolved to newly created master products
	assert.Equal(t, 2, products.createCalls)
}

func TestProcessTextRecordsUnitPrices(t *testing.T) {
	store := newFakePipelineStore()
	pipeline := newTestPipeline(store, newFakeProductRepo())

	raw := `ЛИДЛ
Банани
0,652 кг x 2,99
1,95
ОБЩО 1,95`

	_, _, err := pipeline.ProcessText(context.Background(), raw, "", nil)
	require.NoError(t, err)

	require.Len(t, store.prices, 1)
	price := store.prices[0]
	assert.Equal(t, store.retailers["lidl"].ID, price.RetailerID)
	// Unit price is derived from the line extension and the weight
	assert.InDelta(t, 2.99, price.UnitPrice, 0.01)
	assert.False(t, price.SeenAt.IsZero())
}

func TestProcessTextCategorizesNewProducts(t *testing.T) {
	store := newFakePipelineStore()
	pipeline := newTestPipeline(store, newFakeProductRepo())

	raw := `КАУФЛАНД
Хляб Добруджа 1,20
ОБЩА СУМА 1,20`

	_, _, err := pipeline.ProcessText(context.Background(), raw, "", nil)
	require.NoError(t, err)

	require.Len(t, store.categories, 1)
	for _, code := range store.categories {
		assert.Equal(t, "bread", code)
	}
}

func TestProcessTextGenericFormatSkipsRetailerAndPrices(t *testing.T) {
	store := newFakePipelineStore()
	pipeline := newTestPipeline(store, newFakeProductRepo())

	raw := `КВАРТАЛЕН МАГАЗИН
Вафла 0,80
ОБЩО 0,80`

	persisted, result, err := pipeline.ProcessText(context.Background(), raw, "", nil)
	require.NoError(t, err)
	assert.Equal(t, GenericFormatCode, result.RetailerCode)
	assert.Nil(t, persisted.RetailerID)
	assert.Empty(t, store.retailers)
	// Without a retailer there is no price row to attribute
	assert.Empty(t, store.prices)
}

func TestMergeVisionItems(t *testing.T) {
	pipeline := newTestPipeline(newFakePipelineStore(), newFakeProductRepo())

	result := &models.ReceiptParseResult{DeclaredTotal: 3.50}
	pipeline.mergeVisionItems(result, []AIItemGuess{
		{Name: "Хляб", Price: 1.20, Confidence: 0.9},
		{Name: "", Price: 2.00, Confidence: 0.9},
		{Name: "Мляко", Price: 2.30, Confidence: 1.7},
	})

	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].HasFlag(models.FlagVisionAssisted))
	// Out-of-range guess confidence falls back to the default
	assert.Equal(t, defaultConfidence, result.Items[1].Confidence)
	require.NotNil(t, result.TotalValidation)
	assert.True(t, result.TotalValidation.Valid)
	assert.True(t, result.RequiresReview)
}

func TestProcessImageUnconfigured(t *testing.T) {
	pipeline := newTestPipeline(newFakePipelineStore(), newFakeProductRepo())
	_, _, err := pipeline.ProcessImage(context.Background(), "receipts/2026/01/x.jpg", "")
	assert.Error(t, err)
}

func TestProcessQueueEntryRoutesRawText(t *testing.T) {
	store := newFakePipelineStore()
	pipeline := newTestPipeline(store, newFakeProductRepo())

	entry := &models.UploadEntry{
		ID:      1,
		RawText: "КАУФЛАНД\nХляб 1,20\nОБЩА СУМА 1,20",
	}
	err := pipeline.Process(context.Background(), entry)
	require.NoError(t, err)
	require.NotNil(t, store.receipt)
}
