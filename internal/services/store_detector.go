package services

import (
	"strings"
)

// NumberFormat describes how a retailer prints amounts
type NumberFormat struct {
	DecimalSep    rune
	ThousandsSep  rune
	Currency      string
	CurrencyLeads bool
}

// StoreFormat describes one retailer's receipt layout
type StoreFormat struct {
	Code         string
	Name         string
	Signatures   []string
	Number       NumberFormat
	TotalMarkers []string
}

// GenericFormatCode identifies the fallback format used when no
// retailer signature matches
const GenericFormatCode = "generic"

// storeFormats is the closed registry of known Bulgarian retailer
// formats, in match priority order. Matching is declarative; no
// per-store code branches exist outside this table.
var storeFormats = []StoreFormat{
	{
		Code:         "kaufland",
		Name:         "Кауфланд",
		Signatures:   []string{"кауфланд", "kaufland"},
		Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩА СУМА", "ОБЩО", "СУМА"},
	},
	{
		Code:         "lidl",
		Name:         "Лидл",
		Signatures:   []string{"лидл", "lidl"},
		Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩО", "СУМА", "TOTAL"},
	},
	{
		Code:         "billa",
		Name:         "Билла",
		Signatures:   []string{"билла", "billa"},
		Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩА СУМА", "СУМА"},
	},
	{
		Code:         "fantastico",
		Name:         "Фантастико",
		Signatures:   []string{"фантастико", "fantastico"},
		Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩО", "ВСИЧКО"},
	},
	{
		Code:         "tmarket",
		Name:         "Т Маркет",
		Signatures:   []string{"т маркет", "t market", "tmarket", "максима", "maxima"},
		Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩО", "СУМА"},
	},
	{
		Code:         "metro",
		Name:         "Метро",
		Signatures:   []string{"метро", "metro"},
		Number:       NumberFormat{DecimalSep: '.', ThousandsSep: ',', Currency: "лв"},
		TotalMarkers: []string{"ОБЩО", "TOTAL"},
	},
}

// genericFormat is returned when no signature matches. Parsing still
// proceeds, at degraded quality.
var genericFormat = StoreFormat{
	Code:         GenericFormatCode,
	Name:         "Неизвестен магазин",
	Number:       NumberFormat{DecimalSep: ',', Currency: "лв"},
	TotalMarkers: []string{"ОБЩА СУМА", "ОБЩО", "СУМА", "ВСИЧКО", "TOTAL"},
}

// headerFolder maps characters that OCR commonly confuses onto a single
// representative, so "ВILLA" and "КАУФЛАНД" with corrupted glyphs still
// match their signatures. Cyrillic lookalikes fold to Latin, digits fold
// to the letters they resemble.
var headerFolder = strings.NewReplacer(
	"а", "a", "в", "b", "е", "e", "к", "k", "м", "m", "н", "h",
	"о", "o", "р", "p", "с", "c", "т", "t", "у", "y", "х", "x",
	"0", "o", "1", "l", "3", "e", "5", "s", "6", "b", "8", "b",
	"і", "l", "|", "l",
)

func foldHeader(s string) string {
	return headerFolder.Replace(strings.ToLower(s))
}

// StoreDetector identifies the issuing retailer's text layout from
// header signatures
type StoreDetector struct {
	headerLines int
}

// NewStoreDetector creates a detector scanning the top of the receipt
func NewStoreDetector() *StoreDetector {
	return &StoreDetector{headerLines: 10}
}

// Detect returns the first matching store format, or the generic
// fallback. It never fails: absence of a match degrades parsing
// quality but does not abort it.
func (d *StoreDetector) Detect(rawText string) StoreFormat {
	lines := strings.Split(rawText, "\n")
	if len(lines) > d.headerLines {
		lines = lines[:d.headerLines]
	}

	for _, line := range lines {
		folded := foldHeader(line)
		for _, format := range storeFormats {
			for _, sig := range format.Signatures {
				if strings.Contains(folded, foldHeader(sig)) {
					return format
				}
			}
		}
	}

	return genericFormat
}

// DetectWithHint resolves an explicit store hint before falling back to
// header detection. The hint is matched against format codes and
// signatures the same way headers are.
func (d *StoreDetector) DetectWithHint(rawText, hint string) StoreFormat {
	if hint != "" {
		folded := foldHeader(hint)
		for _, format := range storeFormats {
			if format.Code == strings.ToLower(hint) {
				return format
			}
			for _, sig := range format.Signatures {
				if strings.Contains(folded, foldHeader(sig)) {
					return format
				}
			}
		}
	}
	return d.Detect(rawText)
}

// KnownFormats returns the registry, generic format excluded
func KnownFormats() []StoreFormat {
	return storeFormats
}
