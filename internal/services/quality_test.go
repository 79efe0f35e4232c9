package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfhero/shelfhero/internal/models"
)

func TestScoreItem(t *testing.T) {
	scorer := NewQualityScorer()

	testCases := []struct {
		name  string
		base  float64
		flags []models.QualityFlag
		want  float64
	}{
		{name: "no flags", base: 1.0, flags: nil, want: 1.0},
		{name: "single flag", base: 1.0, flags: []models.QualityFlag{models.FlagOCRUncertain}, want: 0.88},
		{name: "two flags", base: 1.0, flags: []models.QualityFlag{models.FlagQuantityFolded, models.FlagMergedFragment}, want: 0.76},
		{name: "low base with flags floors at zero", base: 0.2, flags: []models.QualityFlag{models.FlagOCRUncertain, models.FlagFuzzyPriceMatch, models.FlagMissingName}, want: 0.0},
		{name: "base above one clamps", base: 1.5, flags: nil, want: 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, scorer.ScoreItem(tc.base, tc.flags), 0.001)
		})
	}
}

func TestScoreReceiptEmpty(t *testing.T) {
	scorer := NewQualityScorer()
	confidence, review := scorer.ScoreReceipt(nil, nil)
	assert.Zero(t, confidence)
	assert.True(t, review)
}

func TestScoreReceiptSpendWeighting(t *testing.T) {
	scorer := NewQualityScorer()

	// A cheap uncertain item should drag confidence down less than an
	// expensive one
	cheap := []models.ParsedItem{
		{Price: 10.00, Confidence: 1.0},
		{Price: 0.50, Confidence: 0.5},
	}
	expensive := []models.ParsedItem{
		{Price: 0.50, Confidence: 1.0},
		{Price: 10.00, Confidence: 0.5},
	}

	cheapScore, _ := scorer.ScoreReceipt(cheap, nil)
	expensiveScore, _ := scorer.ScoreReceipt(expensive, nil)
	assert.Greater(t, cheapScore, expensiveScore)
}

func TestScoreReceiptTotalValidation(t *testing.T) {
	scorer := NewQualityScorer()
	items := []models.ParsedItem{{Price: 2.00, Confidence: 0.8}}

	valid, _ := scorer.ScoreReceipt(items, &models.TotalValidation{Valid: true})
	assert.InDelta(t, 0.85, valid, 0.001)

	invalid, _ := scorer.ScoreReceipt(items, &models.TotalValidation{Valid: false})
	assert.InDelta(t, 0.65, invalid, 0.001)
}

func TestScoreReceiptReviewThreshold(t *testing.T) {
	scorer := NewQualityScorer()

	_, review := scorer.ScoreReceipt([]models.ParsedItem{{Price: 1.00, Confidence: 0.71}}, nil)
	assert.False(t, review)

	_, review = scorer.ScoreReceipt([]models.ParsedItem{{Price: 1.00, Confidence: 0.69}}, nil)
	assert.True(t, review)
}

func TestScoreReceiptZeroPriceWeight(t *testing.T) {
	scorer := NewQualityScorer()
	confidence, _ := scorer.ScoreReceipt([]models.ParsedItem{{Price: 0, Confidence: 0.9}}, nil)
	assert.InDelta(t, 0.9, confidence, 0.001)
}
