package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shelfhero/shelfhero/internal/models"
)

// parseState tracks the line scanner position within a receipt
type parseState int

const (
	stateHeader parseState = iota
	stateItems
	stateTotalSection
	stateEnd
)

// amountClass matches digits plus the letter glyphs OCR commonly emits
// in their place; repairDigits resolves them before numeric parsing.
const amountClass = `[0-9OoОоlI|ІЗзSsбBВ]`

// ReceiptParser extracts item/price/quantity candidates and the
// declared total from OCR-derived receipt text. Parsing a single
// receipt is strictly sequential: multi-line merging depends on order.
type ReceiptParser struct {
	detector *StoreDetector
	scorer   *QualityScorer

	priceLineRe  *regexp.Regexp
	fuzzyPriceRe *regexp.Regexp
	qtyLineRe    *regexp.Regexp
	excludeRes   []*regexp.Regexp
	endRe        *regexp.Regexp
}

// NewReceiptParser creates a parser with the fixed Bulgarian-receipt
// heuristics
func NewReceiptParser() *ReceiptParser {
	amt := fmt.Sprintf(`%s{1,4}[.,]%s{2}`, amountClass, amountClass)
	qty := fmt.Sprintf(`%s+(?:[.,]%s+)?`, amountClass, amountClass)

	return &ReceiptParser{
		detector: NewStoreDetector(),
		scorer:   NewQualityScorer(),

		// ITEM NAME    1,20 [лв] [Б]
		priceLineRe: regexp.MustCompile(
			`^(.*?)[\s]*(` + amt + `)\s*(?:лв\.?|ЛВ\.?|lv|LV|bgn|BGN)?\s*\*?\s*[АБВГабвг]?\s*$`),
		fuzzyPriceRe: regexp.MustCompile(`(` + amt + `)`),
		// 2 x 1,50  /  0,652 кг x 2,99
		qtyLineRe: regexp.MustCompile(
			`^\s*(` + qty + `)\s*(?:бр\.?|кг|kg|г|g)?\s*[xхXХ×]\s*(` + amt + `)\s*(?:лв\.?|ЛВ\.?)?\s*$`),
		excludeRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(ддс|данъчна|междинна|отстъпка|карта|в брой|ресто|плащане|сметка|касиер|оператор|артикула|благодарим|заповядайте)`),
			regexp.MustCompile(`^\s*[-=*#]+\s*$`),
			regexp.MustCompile(`^\s*\d{2}[.\-/]\d{2}[.\-/]\d{2,4}`),
			regexp.MustCompile(`^\s*\d{1,2}:\d{2}(:\d{2})?\s*$`),
			regexp.MustCompile(`(?i)(еик|зддс|булстат|уникален)`),
		},
		endRe: regexp.MustCompile(`(?i)(фискален бон|системен бон|служебен бон)`),
	}
}

// pendingQty holds a recognized "qty x unit_price" sub-line awaiting
// its priced line
type pendingQty struct {
	quantity  float64
	unitPrice float64
	repaired  bool
}

// Parse extracts structured purchase data from raw receipt text with a
// default base confidence. It never fails on malformed input: unusable
// lines are skipped and uncertainty is reported via flags and scores.
func (p *ReceiptParser) Parse(rawText, storeHint string) *models.ReceiptParseResult {
	return p.ParseWithConfidence(rawText, storeHint, 1.0)
}

// ParseWithConfidence is Parse with an engine-provided base confidence
// score, e.g. from the OCR provider.
func (p *ReceiptParser) ParseWithConfidence(rawText, storeHint string, baseConfidence float64) *models.ReceiptParseResult {
	format := p.detector.DetectWithHint(rawText, storeHint)

	result := &models.ReceiptParseResult{
		Retailer:     format.Name,
		RetailerCode: format.Code,
		Items:        []models.ParsedItem{},
	}

	state := stateHeader
	var pendingName string
	var qtyPending *pendingQty

	lines := strings.Split(rawText, "\n")
	for lineNo, raw := range lines {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		if state == stateEnd {
			break
		}

		if p.endRe.MatchString(line) {
			state = stateEnd
			continue
		}

		if marker, rest := p.totalMarker(line, format); marker && state != stateTotalSection && !p.shouldExclude(line) {
			if total, ok := p.extractAmount(rest, format); ok {
				result.DeclaredTotal = total
			}
			state = stateTotalSection
			pendingName = ""
			qtyPending = nil
			continue
		}

		switch state {
		case stateHeader:
			// The header is consumed until the first price-shaped line
			if !p.looksLikeItem(line) {
				continue
			}
			state = stateItems
			fallthrough

		case stateItems:
			if p.shouldExclude(line) {
				continue
			}

			if m := p.qtyLineRe.FindStringSubmatch(line); m != nil {
				q, qRepaired, qErr := parseAmount(m[1], format.Number)
				u, uRepaired, uErr := parseAmount(m[2], format.Number)
				if qErr == nil && uErr == nil && q > 0 && u > 0 {
					qtyPending = &pendingQty{quantity: q, unitPrice: u, repaired: qRepaired || uRepaired}
				}
				continue
			}

			if item, ok := p.parseItemLine(line, lineNo, format, pendingName, qtyPending, baseConfidence); ok {
				result.Items = append(result.Items, item)
				pendingName = ""
				qtyPending = nil
				continue
			}

			// No price on this line: keep it as a pending name fragment
			// to merge with the next priced line.
			if looksLikeName(line) {
				pendingName = line
			}

		case stateTotalSection:
			// The declared total can trail its marker by a line
			if result.DeclaredTotal == 0 {
				if total, ok := p.extractAmount(line, format); ok {
					result.DeclaredTotal = total
				}
			}
		}
	}

	result.TotalValidation = ValidateTotal(result.Items, result.DeclaredTotal)
	confidence, review := p.scorer.ScoreReceipt(result.Items, result.TotalValidation)
	result.OverallConfidence = confidence
	result.RequiresReview = review

	if result.TotalValidation != nil && !result.TotalValidation.Valid {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf(
			"calculated total %.2f differs from declared total %.2f by %.1f%%; review item prices",
			result.TotalValidation.CalculatedTotal, result.DeclaredTotal, result.TotalValidation.PercentageDiff))
	}
	if result.DeclaredTotal == 0 {
		result.Suggestions = append(result.Suggestions, "no declared total found on receipt")
	}
	if format.Code == GenericFormatCode {
		result.Suggestions = append(result.Suggestions, "store format not recognized; parsed with generic format")
	}

	return result
}

// parseItemLine attempts to interpret a line as a priced item, folding
// in any pending name fragment or quantity sub-line
func (p *ReceiptParser) parseItemLine(line string, lineNo int, format StoreFormat, pendingName string, qty *pendingQty, base float64) (models.ParsedItem, bool) {
	var flags []models.QualityFlag

	var name, amountToken string
	if m := p.priceLineRe.FindStringSubmatch(line); m != nil {
		name = cleanItemName(m[1])
		amountToken = m[2]
	} else {
		// Fallback: a price-shaped token anywhere in the line
		loc := p.fuzzyPriceRe.FindStringIndex(line)
		if loc == nil {
			return models.ParsedItem{}, false
		}
		name = cleanItemName(line[:loc[0]])
		amountToken = line[loc[0]:loc[1]]
		flags = append(flags, models.FlagFuzzyPriceMatch)
	}

	price, repaired, err := parseAmount(amountToken, format.Number)
	if err != nil || price <= 0 || price > 9999 {
		return models.ParsedItem{}, false
	}
	if repaired {
		flags = append(flags, models.FlagOCRUncertain)
	}

	quantity := 1.0
	if qty != nil {
		// Fold the sub-line: quantity from it, price recomputed from
		// qty*unit_price rather than trusting the printed extension.
		quantity = qty.quantity
		price = round2(qty.quantity * qty.unitPrice)
		flags = append(flags, models.FlagQuantityFolded)
		if qty.repaired && !hasFlag(flags, models.FlagOCRUncertain) {
			flags = append(flags, models.FlagOCRUncertain)
		}
	}

	if pendingName != "" {
		if name == "" {
			name = pendingName
		} else {
			name = pendingName + " " + name
		}
		flags = append(flags, models.FlagMergedFragment)
	}
	if name == "" {
		flags = append(flags, models.FlagMissingName)
	}

	return models.ParsedItem{
		Name:         name,
		Price:        price,
		Quantity:     quantity,
		Confidence:   p.scorer.ScoreItem(base, flags),
		QualityFlags: flags,
		LineNumber:   lineNo,
	}, true
}

// totalMarker reports whether the line carries a total marker token
// and returns the remainder of the line after the marker
func (p *ReceiptParser) totalMarker(line string, format StoreFormat) (bool, string) {
	upper := strings.ToUpper(line)
	for _, marker := range format.TotalMarkers {
		if idx := strings.Index(upper, marker); idx >= 0 {
			return true, line[idx+len(marker):]
		}
	}
	return false, ""
}

// extractAmount finds the first price-shaped token in a line
func (p *ReceiptParser) extractAmount(line string, format StoreFormat) (float64, bool) {
	m := p.fuzzyPriceRe.FindString(line)
	if m == "" {
		return 0, false
	}
	value, _, err := parseAmount(m, format.Number)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// looksLikeItem reports whether a line is price-shaped, which marks
// the transition out of the header
func (p *ReceiptParser) looksLikeItem(line string) bool {
	return p.priceLineRe.MatchString(line) && !p.shouldExclude(line)
}

func (p *ReceiptParser) shouldExclude(line string) bool {
	for _, re := range p.excludeRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// ValidateTotal reconciles summed item cost against the declared
// total. An invalid result never discards already-extracted items.
func ValidateTotal(items []models.ParsedItem, declaredTotal float64) *models.TotalValidation {
	if declaredTotal <= 0 {
		return nil
	}

	// Item prices are line extensions, already folded for quantity lines
	var sum float64
	for _, item := range items {
		sum += item.Price
	}
	sum = round2(sum)

	diff := (sum - declaredTotal) / declaredTotal * 100
	if diff < 0 {
		diff = -diff
	}

	return &models.TotalValidation{
		CalculatedTotal: sum,
		DeclaredTotal:   declaredTotal,
		PercentageDiff:  round2(diff),
		Valid:           diff <= TotalMismatchThresholdPct,
	}
}

var spaceRe = regexp.MustCompile(`\s+`)

// cleanLine collapses whitespace and strips common OCR artifacts
func cleanLine(line string) string {
	line = strings.ReplaceAll(line, "\\", "")
	line = spaceRe.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// cleanItemName trims stray punctuation left around an extracted name
func cleanItemName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ".,;:-_*#")
	name = strings.TrimLeft(name, "*#@>")
	return strings.TrimSpace(name)
}

// looksLikeName filters lines worth holding as name fragments: they
// need some letters and must not be purely numeric noise
func looksLikeName(line string) bool {
	if len([]rune(line)) < 3 {
		return false
	}
	letters := 0
	for _, r := range line {
		if ('а' <= r && r <= 'я') || ('А' <= r && r <= 'Я') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			letters++
		}
	}
	return letters >= 3
}

func hasFlag(flags []models.QualityFlag, flag models.QualityFlag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
