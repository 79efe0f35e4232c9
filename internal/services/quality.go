package services

import (
	"github.com/shelfhero/shelfhero/internal/models"
)

// Policy constants for confidence scoring and total validation.
// These are fixed policy values, not derived quantities.
const (
	// TotalMismatchThresholdPct is the maximum allowed divergence
	// between calculated and declared totals, in percent
	TotalMismatchThresholdPct = 2.0

	// flagDeduction is subtracted from an item's base confidence for
	// each attached quality flag
	flagDeduction = 0.12

	// totalValidBonus / totalInvalidPenalty adjust receipt-level
	// confidence based on the total validation outcome
	totalValidBonus     = 0.05
	totalInvalidPenalty = 0.15

	// reviewThreshold separates auto-accept from requires-review
	reviewThreshold = 0.70
)

// QualityScorer assigns per-item and per-receipt confidence from
// parsing artifacts
type QualityScorer struct{}

// NewQualityScorer creates a scorer with the fixed policy constants
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{}
}

// ScoreItem deducts a fixed amount per quality flag from the
// engine-provided base score, floored at 0
func (s *QualityScorer) ScoreItem(base float64, flags []models.QualityFlag) float64 {
	confidence := base - float64(len(flags))*flagDeduction
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// ScoreReceipt aggregates item confidences weighted by item spend and
// folds in the total validation outcome. The second result reports
// whether the receipt requires manual review.
func (s *QualityScorer) ScoreReceipt(items []models.ParsedItem, tv *models.TotalValidation) (float64, bool) {
	if len(items) == 0 {
		return 0, true
	}

	var weighted, weightSum float64
	for _, item := range items {
		weight := item.Price
		if weight <= 0 {
			weight = 0.01
		}
		weighted += item.Confidence * weight
		weightSum += weight
	}
	confidence := weighted / weightSum

	if tv != nil {
		if tv.Valid {
			confidence += totalValidBonus
		} else {
			confidence -= totalInvalidPenalty
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence, confidence < reviewThreshold
}
