package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfhero/shelfhero/internal/models"
)

// fakeAIProvider records calls and replies with a canned result or
// error
type fakeAIProvider struct {
	result *AICategorization
	err    error
	calls  int
}

func (f *fakeAIProvider) Categorize(_ context.Context, _ string, _ []string, _ []models.CategoryCorrection) (*AICategorization, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCorrectionSource struct {
	corrections []models.CategoryCorrection
	err         error
}

func (f *fakeCorrectionSource) RecentCorrections(context.Context, int) ([]models.CategoryCorrection, error) {
	return f.corrections, f.err
}

func TestCategorizeRuleTier(t *testing.T) {
	c := NewCategorizer(nil, nil)
	ctx := context.Background()

	testCases := []struct {
		name string
		want string
	}{
		{"Хляб бял 650г", "bread"},
		{"Прясно мляко Верея", "dairy"},
		{"Кашкавал от краве мляко", "dairy"},
		{"Пилешко филе", "meat_fish"},
		{"Банани внос", "produce"},
		{"Бира Загорка", "alcohol"},
		{"Минерална вода Девин", "beverages"},
		{"Шоколад Милка", "sweets_snacks"},
		{"Шампоан за коса", "hygiene"},
		{"Тоалетна хартия 8бр", "household"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := c.Categorize(ctx, tc.name)
			assert.Equal(t, tc.want, result.CategoryCode)
			assert.Equal(t, ruleConfidence, result.Confidence)
			assert.Equal(t, models.SourceRule, result.Source)
		})
	}
}

func TestCategorizeAlcoholBeatsBeverages(t *testing.T) {
	c := NewCategorizer(nil, nil)
	// "пиво" must not fall through to the generic drink bucket
	result := c.Categorize(context.Background(), "Пиво светло 500мл")
	assert.Equal(t, "alcohol", result.CategoryCode)
}

func TestCategorizeDefaultWithoutAI(t *testing.T) {
	c := NewCategorizer(nil, nil)
	result := c.Categorize(context.Background(), "Неразпознаваем артикул")
	assert.Equal(t, DefaultCategoryCode, result.CategoryCode)
	assert.Equal(t, defaultConfidence, result.Confidence)
	assert.Equal(t, models.SourceDefault, result.Source)
}

func TestCategorizeAINotConsultedOnRuleHit(t *testing.T) {
	ai := &fakeAIProvider{result: &AICategorization{Category: "household", Confidence: 0.9}}
	c := NewCategorizer(ai, nil)

	result := c.Categorize(context.Background(), "Хляб Добруджа")
	assert.Equal(t, "bread", result.CategoryCode)
	assert.Zero(t, ai.calls)
}

func TestCategorizeAIAssist(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts valid ai result", func(t *testing.T) {
		ai := &fakeAIProvider{result: &AICategorization{Category: "produce", Confidence: 0.8, Reasoning: "сезонен плод"}}
		c := NewCategorizer(ai, nil)

		result := c.Categorize(ctx, "Нектарини Гърция")
		assert.Equal(t, "produce", result.CategoryCode)
		assert.Equal(t, 0.8, result.Confidence)
		assert.Equal(t, models.SourceAI, result.Source)
		assert.Equal(t, "сезонен плод", result.Reasoning)
		assert.Equal(t, 1, ai.calls)
	})

	t.Run("out of enum code coerced to other", func(t *testing.T) {
		ai := &fakeAIProvider{result: &AICategorization{Category: "frozen_goods", Confidence: 0.9}}
		c := NewCategorizer(ai, nil)

		result := c.Categorize(ctx, "Неизвестен артикул")
		assert.Equal(t, DefaultCategoryCode, result.CategoryCode)
		assert.Equal(t, models.SourceAI, result.Source)
	})

	t.Run("code normalized before validation", func(t *testing.T) {
		ai := &fakeAIProvider{result: &AICategorization{Category: " Produce ", Confidence: 0.7}}
		c := NewCategorizer(ai, nil)

		result := c.Categorize(ctx, "Нектарини")
		assert.Equal(t, "produce", result.CategoryCode)
	})

	t.Run("confidence out of range replaced", func(t *testing.T) {
		ai := &fakeAIProvider{result: &AICategorization{Category: "produce", Confidence: 1.4}}
		c := NewCategorizer(ai, nil)

		result := c.Categorize(ctx, "Нектарини")
		assert.Equal(t, defaultConfidence, result.Confidence)
	})

	t.Run("ai failure keeps rule result", func(t *testing.T) {
		ai := &fakeAIProvider{err: errors.New("quota exceeded")}
		c := NewCategorizer(ai, nil)

		result := c.Categorize(ctx, "Неизвестен артикул")
		assert.Equal(t, DefaultCategoryCode, result.CategoryCode)
		assert.Equal(t, models.SourceDefault, result.Source)
	})

	t.Run("correction source failure is non fatal", func(t *testing.T) {
		ai := &fakeAIProvider{result: &AICategorization{Category: "produce", Confidence: 0.8}}
		c := NewCategorizer(ai, &fakeCorrectionSource{err: errors.New("db down")})

		result := c.Categorize(ctx, "Нектарини")
		assert.Equal(t, "produce", result.CategoryCode)
	})
}

func TestCategorizeBatch(t *testing.T) {
	ai := &fakeAIProvider{err: errors.New("unavailable")}
	c := NewCategorizer(ai, nil)

	names := []string{"Хляб", "Бира Каменица", "Загадка", "Домати"}
	results := c.CategorizeBatch(context.Background(), names)

	require.Len(t, results, len(names))
	assert.Equal(t, "bread", results[0].CategoryCode)
	assert.Equal(t, "alcohol", results[1].CategoryCode)
	assert.Equal(t, DefaultCategoryCode, results[2].CategoryCode)
	assert.Equal(t, "produce", results[3].CategoryCode)
}

func TestCategoryCodes(t *testing.T) {
	codes := CategoryCodes()
	assert.Equal(t, "bread", codes[0])
	assert.Equal(t, DefaultCategoryCode, codes[len(codes)-1])
	assert.Len(t, codes, 10)
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Хляб и тестени", CategoryName("bread"))
	assert.Equal(t, "Други", CategoryName("no_such_code"))
}
