package services

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shelfhero/shelfhero/internal/models"
)

// DefaultCategoryCode is the closed set's catch-all bucket
const DefaultCategoryCode = "other"

// aiAssistThreshold: the AI tier is consulted only when the rule tier
// confidence falls below this value
const aiAssistThreshold = 0.5

// defaultConfidence is the fixed low confidence of the fallback bucket
const defaultConfidence = 0.2

// ruleConfidence is the fixed confidence of a rule-tier keyword hit
const ruleConfidence = 0.85

// maxCorrectionContext bounds how many recent user corrections are
// sent to the AI tier as soft bias
const maxCorrectionContext = 20

// categoryRule associates a category with its keyword substrings.
// Rules are evaluated in priority order; first match wins.
type categoryRule struct {
	Code     string
	Name     string
	Keywords []string
}

// categoryRules is the fixed, closed category set. Alcohol and sweets
// precede beverages so beer and chocolate ("шоколад" contains "кола")
// do not land in the generic drink bucket.
var categoryRules = []categoryRule{
	{Code: "bread", Name: "Хляб и тестени", Keywords: []string{"хляб", "питка", "багета", "козунак", "баница", "кроасан", "закуска", "тортила"}},
	{Code: "dairy", Name: "Мляко и млечни", Keywords: []string{"мляко", "сирене", "кашкавал", "йогурт", "извара", "масло", "сметана", "айрян", "крема"}},
	{Code: "meat_fish", Name: "Месо и риба", Keywords: []string{"месо", "пиле", "пилешк", "свинск", "телешк", "кайма", "наденица", "луканка", "салам", "шунка", "кренвирш", "риба", "скумрия", "филе"}},
	{Code: "produce", Name: "Плодове и зеленчуци", Keywords: []string{"ябълк", "банан", "домат", "краставиц", "картоф", "лук", "зеле", "морков", "пипер", "грозде", "лимон", "портокал", "праскова", "тиквичк", "спанак"}},
	{Code: "alcohol", Name: "Алкохол", Keywords: []string{"бира", "вино", "ракия", "водка", "уиски", "пиво", "джин"}},
	{Code: "sweets_snacks", Name: "Сладки и снаксове", Keywords: []string{"шоколад", "бонбони", "вафла", "бисквит", "чипс", "снакс", "сладолед", "торта", "локум"}},
	{Code: "beverages", Name: "Напитки", Keywords: []string{"вода", "сок", "кола", "напитка", "безалкохолн", "чай", "кафе", "лимонада"}},
	{Code: "hygiene", Name: "Козметика и хигиена", Keywords: []string{"шампоан", "сапун", "паста за зъби", "дезодорант", "крем", "самобръсначк"}},
	{Code: "household", Name: "Домакински", Keywords: []string{"препарат", "почистващ", "тоалетна хартия", "салфетк", "торбичк", "батери", "гъба"}},
	{Code: DefaultCategoryCode, Name: "Други", Keywords: nil},
}

// CategoryCodes returns the closed enum of category codes in priority
// order
func CategoryCodes() []string {
	codes := make([]string, len(categoryRules))
	for i, rule := range categoryRules {
		codes[i] = rule.Code
	}
	return codes
}

// CategoryName resolves a code to its display name; unknown codes map
// to the default bucket's name
func CategoryName(code string) string {
	for _, rule := range categoryRules {
		if rule.Code == code {
			return rule.Name
		}
	}
	return CategoryName(DefaultCategoryCode)
}

// validCategoryCode reports whether the code belongs to the fixed enum
func validCategoryCode(code string) bool {
	for _, rule := range categoryRules {
		if rule.Code == code {
			return true
		}
	}
	return false
}

// CategorizationProvider is the external AI categorization contract.
// Implementations must be safe for concurrent use.
type CategorizationProvider interface {
	Categorize(ctx context.Context, name string, categories []string, corrections []models.CategoryCorrection) (*AICategorization, error)
}

// CorrectionSource supplies recent user-confirmed corrections used as
// context for the AI tier
type CorrectionSource interface {
	RecentCorrections(ctx context.Context, limit int) ([]models.CategoryCorrection, error)
}

// Categorizer assigns categories via fixed keyword rules with an
// optional AI-assisted fallback
type Categorizer struct {
	ai          CategorizationProvider
	corrections CorrectionSource
	batchLimit  int
}

// NewCategorizer creates a categorizer. Both dependencies may be nil;
// the rule tier alone then decides every call.
func NewCategorizer(ai CategorizationProvider, corrections CorrectionSource) *Categorizer {
	return &Categorizer{ai: ai, corrections: corrections, batchLimit: 5}
}

// Categorize assigns a category to a product name. The rule tier is
// deterministic and always available; the AI tier is consulted only
// for low-confidence results and its response is re-validated against
// the fixed enum. External failures degrade to the rule result.
func (c *Categorizer) Categorize(ctx context.Context, name string) models.CategorizationResult {
	ruleResult := c.ruleTier(name)
	if ruleResult.Confidence >= aiAssistThreshold || c.ai == nil {
		return ruleResult
	}

	var corrections []models.CategoryCorrection
	if c.corrections != nil {
		recent, err := c.corrections.RecentCorrections(ctx, maxCorrectionContext)
		if err != nil {
			log.Printf("categorizer: loading corrections: %v", err)
		} else {
			corrections = recent
		}
	}

	aiResult, err := c.ai.Categorize(ctx, name, CategoryCodes(), corrections)
	if err != nil {
		log.Printf("categorizer: ai tier failed for %q, keeping rule result: %v", name, err)
		return ruleResult
	}

	code := strings.ToLower(strings.TrimSpace(aiResult.Category))
	if !validCategoryCode(code) {
		// Never trust out-of-enum values verbatim
		code = DefaultCategoryCode
	}
	confidence := aiResult.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = defaultConfidence
	}

	return models.CategorizationResult{
		CategoryCode: code,
		Confidence:   confidence,
		Source:       models.SourceAI,
		Reasoning:    aiResult.Reasoning,
	}
}

// ruleTier iterates the fixed category list in priority order; a
// category matches if any keyword substring appears in the lowered
// name, first match wins
func (c *Categorizer) ruleTier(name string) models.CategorizationResult {
	lowered := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return models.CategorizationResult{
					CategoryCode: rule.Code,
					Confidence:   ruleConfidence,
					Source:       models.SourceRule,
				}
			}
		}
	}
	return models.CategorizationResult{
		CategoryCode: DefaultCategoryCode,
		Confidence:   defaultConfidence,
		Source:       models.SourceDefault,
	}
}

// CategorizeBatch categorizes many names with bounded concurrency to
// respect external rate limits. A failing item defaults without
// aborting its siblings; results keep input order.
func (c *Categorizer) CategorizeBatch(ctx context.Context, names []string) []models.CategorizationResult {
	results := make([]models.CategorizationResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = c.Categorize(gctx, name)
			return nil
		})
	}
	// Workers never return errors; failures are already defaulted.
	_ = g.Wait()

	return results
}
