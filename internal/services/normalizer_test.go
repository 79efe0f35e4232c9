package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfhero/shelfhero/internal/models"
)

func TestNormalizeExtractsComponents(t *testing.T) {
	n := NewNormalizer(nil)
	result := n.Normalize("Мляко Верея 3.6% 1л")

	assert.Equal(t, "мляко верея 1л 3.6%", result.NormalizedName)
	assert.Equal(t, "Мляко Верея 1л 3.6%", result.DisplayName)
	require.NotNil(t, result.Brand)
	assert.Equal(t, "Верея", *result.Brand)
	require.NotNil(t, result.Size)
	assert.Equal(t, 1.0, *result.Size)
	require.NotNil(t, result.Unit)
	assert.Equal(t, "л", *result.Unit)
	require.NotNil(t, result.FatContent)
	assert.Equal(t, 3.6, *result.FatContent)
	assert.Equal(t, []string{"верея", "мляко"}, result.Keywords)
	assert.False(t, result.Miscellaneous)
}

func TestNormalizeOrderAndCaseInvariance(t *testing.T) {
	n := NewNormalizer(nil)

	variants := []string{
		"Мляко Верея 3.6% 1л",
		"мляко верея 1л 3.6%",
		"ВЕРЕЯ  мляко   3,6%  1л",
		"1л Мляко 3.6% Верея",
	}
	want := n.Normalize(variants[0]).NormalizedName
	for _, v := range variants[1:] {
		assert.Equal(t, want, n.Normalize(v).NormalizedName, "variant %q", v)
	}
}

func TestNormalizeUnitFolding(t *testing.T) {
	n := NewNormalizer(nil)

	t.Run("milliliters fold into liters", func(t *testing.T) {
		a := n.Normalize("Мляко Верея 1000мл")
		b := n.Normalize("Мляко Верея 1л")
		assert.Equal(t, b.NormalizedName, a.NormalizedName)
	})

	t.Run("grams fold into kilograms", func(t *testing.T) {
		result := n.Normalize("Сирене 1500г")
		require.NotNil(t, result.Size)
		assert.Equal(t, 1.5, *result.Size)
		assert.Equal(t, "кг", *result.Unit)
		assert.Equal(t, "сирене 1.5кг", result.NormalizedName)
	})

	t.Run("small grams stay grams", func(t *testing.T) {
		result := n.Normalize("Шоколад Милка 90г")
		require.NotNil(t, result.Unit)
		assert.Equal(t, "г", *result.Unit)
		assert.Equal(t, 90.0, *result.Size)
	})
}

func TestNormalizeMiscellaneousBucket(t *testing.T) {
	n := NewNormalizer(nil)

	result := n.Normalize("@#$*")
	assert.True(t, result.Miscellaneous)
	assert.True(t, strings.HasPrefix(result.NormalizedName, "misc-"))
	assert.Equal(t, "@#$*", result.DisplayName)

	// Same garbage input must land on the same bucket key
	again := n.Normalize("@#$*")
	assert.Equal(t, result.NormalizedName, again.NormalizedName)

	other := n.Normalize("****####")
	assert.NotEqual(t, result.NormalizedName, other.NormalizedName)

	empty := n.Normalize("")
	assert.True(t, empty.Miscellaneous)
	assert.Equal(t, "Некатегоризиран артикул", empty.DisplayName)
}

func TestNormalizeKeywordsDeduplicated(t *testing.T) {
	n := NewNormalizer(nil)
	result := n.Normalize("мляко мляко Верея")
	assert.Equal(t, []string{"верея", "мляко"}, result.Keywords)
}

// fakeProductRepo is an in-memory ProductRepository keyed by
// normalized name
type fakeProductRepo struct {
	products map[string]*models.MasterProduct
	nextID   int

	createCalls int
	// raceOnCreate simulates a concurrent writer inserting the row
	// between the lookup and the create
	raceOnCreate bool
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[string]*models.MasterProduct{}, nextID: 1}
}

func (f *fakeProductRepo) GetMasterProductByNormalizedName(_ context.Context, normalizedName string) (*models.MasterProduct, error) {
	if p, ok := f.products[normalizedName]; ok {
		return p, nil
	}
	return nil, ErrProductNotFound
}

func (f *fakeProductRepo) CreateMasterProduct(_ context.Context, result *models.NormalizationResult) (*models.MasterProduct, error) {
	f.createCalls++
	if f.raceOnCreate {
		f.insert(result)
		return nil, ErrProductExists
	}
	if _, ok := f.products[result.NormalizedName]; ok {
		return nil, ErrProductExists
	}
	return f.insert(result), nil
}

func (f *fakeProductRepo) insert(result *models.NormalizationResult) *models.MasterProduct {
	p := &models.MasterProduct{
		ID:             f.nextID,
		NormalizedName: result.NormalizedName,
		DisplayName:    result.DisplayName,
		Brand:          result.Brand,
		Size:           result.Size,
		Unit:           result.Unit,
		FatContent:     result.FatContent,
		Keywords:       result.Keywords,
	}
	f.nextID++
	f.products[result.NormalizedName] = p
	return p
}

func TestResolveCreatesThenReuses(t *testing.T) {
	repo := newFakeProductRepo()
	n := NewNormalizer(repo)
	ctx := context.Background()

	first, _, err := n.Resolve(ctx, "Мляко Верея 1л")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.createCalls)

	// A differently spelled receipt line for the same product must
	// resolve to the existing row
	second, _, err := n.Resolve(ctx, "ВЕРЕЯ мляко 1000мл")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.createCalls)
}

func TestResolveLostCreationRace(t *testing.T) {
	repo := newFakeProductRepo()
	repo.raceOnCreate = true
	n := NewNormalizer(repo)

	product, result, err := n.Resolve(context.Background(), "Хляб Добруджа")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, result.NormalizedName, product.NormalizedName)
}
