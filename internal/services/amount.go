package services

import (
	"math"
	"strconv"
	"strings"
)

// ocrDigits maps letter glyphs that OCR commonly emits in place of
// digits. Applied only inside tokens that are otherwise numeric.
var ocrDigits = strings.NewReplacer(
	"O", "0", "o", "0", "О", "0", "о", "0",
	"l", "1", "I", "1", "І", "1", "|", "1",
	"З", "3", "з", "3",
	"S", "5", "s", "5",
	"б", "6",
	"B", "8", "В", "8",
)

// repairDigits normalizes OCR letter/digit confusions in a numeric
// token. Returns the repaired token and whether anything changed.
func repairDigits(token string) (string, bool) {
	repaired := ocrDigits.Replace(token)
	return repaired, repaired != token
}

// parseAmount parses a monetary token printed in the given number
// format. The token must already be free of currency text; OCR digit
// confusions are repaired first, then separators are normalized. The
// boolean result reports whether digit repair was needed.
func parseAmount(token string, nf NumberFormat) (float64, bool, error) {
	s, repaired := repairDigits(strings.TrimSpace(token))

	if nf.ThousandsSep != 0 {
		s = strings.ReplaceAll(s, string(nf.ThousandsSep), "")
	}

	// A single dot or comma followed by exactly two digits is a decimal
	// mark regardless of the declared format; anything before it is a
	// thousands separator. This keeps both conventions parseable.
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		head := strings.NewReplacer(".", "", ",", "").Replace(s[:i])
		s = head + "." + s[i+1:]
	} else if nf.DecimalSep != 0 {
		s = strings.ReplaceAll(s, string(nf.DecimalSep), ".")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, repaired, err
	}
	return value, repaired, nil
}

// renderAmount renders a value back into the given number format with
// two decimals, preserving numeric magnitude for any supported format
func renderAmount(value float64, nf NumberFormat) string {
	s := strconv.FormatFloat(round2(value), 'f', 2, 64)
	if nf.DecimalSep != 0 && nf.DecimalSep != '.' {
		s = strings.ReplaceAll(s, ".", string(nf.DecimalSep))
	}
	return s
}

// round2 rounds to 2 decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
