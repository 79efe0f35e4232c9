package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfhero/shelfhero/internal/models"
)

// ErrProductExists is returned by a ProductRepository when an insert
// hits the normalized-name uniqueness constraint
var ErrProductExists = errors.New("master product already exists")

// ProductRepository is the storage contract the normalizer needs:
// exact lookup by canonical key and insert guarded by a uniqueness
// constraint on normalized_name.
type ProductRepository interface {
	GetMasterProductByNormalizedName(ctx context.Context, normalizedName string) (*models.MasterProduct, error)
	CreateMasterProduct(ctx context.Context, result *models.NormalizationResult) (*models.MasterProduct, error)
}

// ErrProductNotFound is the sentinel a ProductRepository returns for
// a missing normalized name
var ErrProductNotFound = errors.New("master product not found")

// knownBrands maps lowered brand tokens to their display form.
// Longest match wins during extraction.
var knownBrands = map[string]string{
	"верея":      "Верея",
	"саяна":      "Саяна",
	"олинеза":    "Олинеза",
	"маджаров":   "Маджаров",
	"родопея":    "Родопея",
	"боженци":    "Боженци",
	"девин":      "Девин",
	"горна баня": "Горна Баня",
	"банкя":      "Банкя",
	"загорка":    "Загорка",
	"каменица":   "Каменица",
	"ариана":     "Ариана",
	"милка":      "Милка",
	"данон":      "Данон",
	"нестле":     "Нестле",
	"престиж":    "Престиж",
	"добруджа":   "Добруджа",
	"симид":      "Симид",
}

// canonical units for size extraction; ml and g fold into l and kg at
// the 1000 boundary so "1000мл" and "1л" collapse
var unitAliases = map[string]string{
	"л": "л", "l": "л", "лт": "л",
	"мл": "мл", "ml": "мл",
	"кг": "кг", "kg": "кг",
	"г": "г", "g": "г", "гр": "г",
	"бр": "бр", "br": "бр",
}

var (
	sizeRe  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(мл|кг|гр|лт|бр|ml|kg|br|л|г|l|g)\.?(?:\s|$)`)
	fatRe   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}%.,\s]`)
)

// Normalizer canonicalizes raw product strings into deduplicated
// master-product keys. normalizedName is a pure function of input
// tokens, independent of order, case, and whitespace.
type Normalizer struct {
	products ProductRepository
}

// NewNormalizer creates a normalizer backed by the given repository.
// A nil repository still supports pure Normalize calls.
func NewNormalizer(products ProductRepository) *Normalizer {
	return &Normalizer{products: products}
}

// Normalize canonicalizes rawName. It never fails: input that reduces
// to garbage is routed to the miscellaneous bucket under a stable
// hash-based name.
func (n *Normalizer) Normalize(rawName string) *models.NormalizationResult {
	text := strings.ToLower(stripDiacritics(rawName))
	text = punctRe.ReplaceAllString(text, " ")

	result := &models.NormalizationResult{}

	// Extraction order is fixed: size+unit, fat content, brand. Each
	// matched span is removed from the residual base-name text.
	if m := sizeRe.FindStringSubmatch(text); m != nil {
		if size, unit, ok := canonicalSize(m[1], m[2]); ok {
			result.Size = &size
			result.Unit = &unit
			text = strings.Replace(text, m[0], " ", 1)
		}
	}
	if m := fatRe.FindStringSubmatch(text); m != nil {
		if fat, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			result.FatContent = &fat
			text = strings.Replace(text, m[0], " ", 1)
		}
	}
	if key, display := n.matchBrand(text); key != "" {
		result.Brand = &display
		text = strings.Replace(text, key, " ", 1)
	}

	base := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == ','
	})
	sort.Strings(base)

	if len(base) == 0 && result.Brand == nil {
		// Nothing usable survived stripping: miscellaneous bucket with
		// a stable hash so repeats land on the same row.
		h := fnv.New32a()
		h.Write([]byte(strings.TrimSpace(rawName)))
		result.NormalizedName = fmt.Sprintf("misc-%08x", h.Sum32())
		result.DisplayName = strings.TrimSpace(rawName)
		if result.DisplayName == "" {
			result.DisplayName = "Некатегоризиран артикул"
		}
		result.Keywords = []string{}
		result.Miscellaneous = true
		return result
	}

	result.NormalizedName = composeNormalizedName(base, result)
	result.Keywords = buildKeywords(base, result.Brand)
	result.DisplayName = composeDisplayName(base, result)
	return result
}

// Resolve normalizes rawName and looks up or creates its
// MasterProduct. Concurrent creation for the same normalizedName is
// resolved by the storage uniqueness constraint plus re-fetch; the
// operation is idempotent and safe to retry.
func (n *Normalizer) Resolve(ctx context.Context, rawName string) (*models.MasterProduct, *models.NormalizationResult, error) {
	result := n.Normalize(rawName)

	product, err := n.products.GetMasterProductByNormalizedName(ctx, result.NormalizedName)
	if err == nil {
		return product, result, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return nil, result, err
	}

	product, err = n.products.CreateMasterProduct(ctx, result)
	if errors.Is(err, ErrProductExists) {
		// Lost the creation race: the row exists now, fetch it.
		product, err = n.products.GetMasterProductByNormalizedName(ctx, result.NormalizedName)
	}
	if err != nil {
		return nil, result, err
	}
	return product, result, nil
}

// matchBrand finds the longest known brand occurring in the text
func (n *Normalizer) matchBrand(text string) (key, display string) {
	for brand, disp := range knownBrands {
		if containsToken(text, brand) && len(brand) > len(key) {
			key, display = brand, disp
		}
	}
	return key, display
}

// composeNormalizedName joins the sorted base tokens with the
// extracted components in fixed field order and separators, so inputs
// differing only in token order, case, or spacing collapse.
func composeNormalizedName(base []string, r *models.NormalizationResult) string {
	parts := make([]string, 0, len(base)+3)
	parts = append(parts, base...)
	if r.Brand != nil {
		parts = append(parts, strings.ToLower(*r.Brand))
	}
	if r.Size != nil && r.Unit != nil {
		parts = append(parts, formatSize(*r.Size)+*r.Unit)
	}
	if r.FatContent != nil {
		parts = append(parts, formatSize(*r.FatContent)+"%")
	}
	return strings.Join(parts, " ")
}

// composeDisplayName reassembles the components for human readability.
// It falls back to the normalized name and never fails.
func composeDisplayName(base []string, r *models.NormalizationResult) string {
	parts := make([]string, 0, len(base)+3)
	for _, tok := range base {
		parts = append(parts, titleToken(tok))
	}
	if r.Brand != nil {
		parts = append(parts, *r.Brand)
	}
	if r.Size != nil && r.Unit != nil {
		parts = append(parts, formatSize(*r.Size)+*r.Unit)
	}
	if r.FatContent != nil {
		parts = append(parts, formatSize(*r.FatContent)+"%")
	}
	if len(parts) == 0 {
		return r.NormalizedName
	}
	return strings.Join(parts, " ")
}

// buildKeywords returns the deduplicated lowercase token set of base
// name plus brand, sorted for determinism
func buildKeywords(base []string, brand *string) []string {
	seen := make(map[string]struct{}, len(base)+2)
	for _, tok := range base {
		seen[tok] = struct{}{}
	}
	if brand != nil {
		for _, tok := range strings.Fields(strings.ToLower(*brand)) {
			seen[tok] = struct{}{}
		}
	}
	keywords := make([]string, 0, len(seen))
	for tok := range seen {
		keywords = append(keywords, tok)
	}
	sort.Strings(keywords)
	return keywords
}

// canonicalSize converts a matched size to its canonical unit,
// folding мл→л and г→кг at the 1000 boundary
func canonicalSize(value, unit string) (float64, string, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, "", false
	}
	u, ok := unitAliases[strings.ToLower(unit)]
	if !ok {
		return 0, "", false
	}
	switch {
	case u == "мл" && v >= 1000:
		return v / 1000, "л", true
	case u == "г" && v >= 1000:
		return v / 1000, "кг", true
	}
	return v, u, true
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func titleToken(tok string) string {
	r := []rune(tok)
	if len(r) == 0 {
		return tok
	}
	return string(unicode.ToUpper(r[0])) + string(r[1:])
}

// containsToken reports whether phrase occurs in text on token
// boundaries
func containsToken(text, phrase string) bool {
	idx := strings.Index(text, phrase)
	for idx >= 0 {
		beforeOK := idx == 0 || text[idx-1] == ' '
		after := idx + len(phrase)
		afterOK := after == len(text) || text[after] == ' '
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(text[idx+1:], phrase)
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return false
}

// stripDiacritics removes combining marks; Cyrillic passes through
// untouched (NFD + strip Mn + NFC, as for any stressed-vowel noise in
// OCR output)
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
