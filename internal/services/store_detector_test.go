package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := NewStoreDetector()

	testCases := []struct {
		name     string
		rawText  string
		wantCode string
	}{
		{
			name:     "cyrillic kaufland header",
			rawText:  "КАУФЛАНД БЪЛГАРИЯ ЕООД\nСофия, бул. Европа 100\n",
			wantCode: "kaufland",
		},
		{
			name:     "latin lidl header",
			rawText:  "LIDL Bulgaria\nSofia\n",
			wantCode: "lidl",
		},
		{
			name:     "ocr corrupted signature with digit glyphs",
			rawText:  "KAUF1AND BULGARIA\n",
			wantCode: "kaufland",
		},
		{
			name:     "cyrillic lookalike folds onto latin signature",
			rawText:  "ВILLA БЪЛГАРИЯ\n",
			wantCode: "billa",
		},
		{
			name:     "maxima alias maps to tmarket",
			rawText:  "МАКСИМА БЪЛГАРИЯ\n",
			wantCode: "tmarket",
		},
		{
			name:     "unknown store falls back to generic",
			rawText:  "МАГАЗИН ЦВЕТЕЛИНА\nул. Шипка 3\n",
			wantCode: GenericFormatCode,
		},
		{
			name:     "empty input falls back to generic",
			rawText:  "",
			wantCode: GenericFormatCode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			format := d.Detect(tc.rawText)
			assert.Equal(t, tc.wantCode, format.Code)
		})
	}
}

func TestDetectSignatureBeyondHeaderIgnored(t *testing.T) {
	d := NewStoreDetector()

	// Signature on line 12 is past the header window
	var text string
	for i := 0; i < 11; i++ {
		text += "ред без значение\n"
	}
	text += "КАУФЛАНД\n"

	format := d.Detect(text)
	assert.Equal(t, GenericFormatCode, format.Code)
}

func TestDetectWithHint(t *testing.T) {
	d := NewStoreDetector()

	t.Run("hint by code wins over header", func(t *testing.T) {
		format := d.DetectWithHint("ЛИДЛ БЪЛГАРИЯ\n", "billa")
		assert.Equal(t, "billa", format.Code)
	})

	t.Run("hint by signature", func(t *testing.T) {
		format := d.DetectWithHint("", "Фантастико Младост")
		assert.Equal(t, "fantastico", format.Code)
	})

	t.Run("unusable hint falls back to detection", func(t *testing.T) {
		format := d.DetectWithHint("МЕТРО КЕШ ЕНД КЕРИ\n", "кварталния магазин")
		assert.Equal(t, "metro", format.Code)
	})

	t.Run("empty hint falls back to detection", func(t *testing.T) {
		format := d.DetectWithHint("БИЛЛА\n", "")
		assert.Equal(t, "billa", format.Code)
	})
}

func TestKnownFormats(t *testing.T) {
	formats := KnownFormats()
	assert.NotEmpty(t, formats)
	for _, f := range formats {
		assert.NotEqual(t, GenericFormatCode, f.Code)
		assert.NotEmpty(t, f.Signatures)
		assert.NotEmpty(t, f.TotalMarkers)
	}
}
