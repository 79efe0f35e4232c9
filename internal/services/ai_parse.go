package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AICategorization is the single-object response shape of the
// categorization service
type AICategorization struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// AIItemGuess is one element of the array response shape used by
// vision enhancement
type AIItemGuess struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

// AIResponseKind discriminates the two accepted response shapes
type AIResponseKind int

const (
	ResponseCategorization AIResponseKind = iota
	ResponseItemList
)

// AIResponse is the discriminated result of defensively parsing an AI
// payload. The shape is decided by decoding, not by ad hoc property
// inspection.
type AIResponse struct {
	Kind           AIResponseKind
	Categorization *AICategorization
	Items          []AIItemGuess
}

// MalformedResponseError reports an AI payload that survived no
// extraction strategy. It carries the raw payload for diagnostics.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed ai response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ParseAIResponse defensively parses an AI payload: strip markdown
// fences, attempt a direct JSON parse, then fall back to the first
// balanced {...} or [...] substring. A final failure returns a
// *MalformedResponseError, never a panic.
func ParseAIResponse(raw string) (*AIResponse, error) {
	text := stripCodeFences(raw)

	if resp, err := decodeAIResponse([]byte(text)); err == nil {
		return resp, nil
	}

	if extracted, ok := extractBalancedJSON(text); ok {
		if resp, err := decodeAIResponse([]byte(extracted)); err == nil {
			return resp, nil
		}
	}

	return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("no parseable JSON object or array")}
}

// decodeAIResponse tries the two accepted shapes in a fixed order
func decodeAIResponse(data []byte) (*AIResponse, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []AIItemGuess
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, err
		}
		return &AIResponse{Kind: ResponseItemList, Items: items}, nil
	}

	var cat AICategorization
	if err := json.Unmarshal([]byte(trimmed), &cat); err != nil {
		return nil, err
	}
	if cat.Category == "" {
		return nil, fmt.Errorf("object lacks category field")
	}
	return &AIResponse{Kind: ResponseCategorization, Categorization: &cat}, nil
}

// stripCodeFences removes a markdown code-fence wrapper if present
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractBalancedJSON finds the first balanced {...} or [...] span,
// tolerating braces inside JSON strings
func extractBalancedJSON(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	open := rune(text[start])
	var close rune
	if open == '{' {
		close = '}'
	} else {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range text[start:] {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == open:
			depth++
		case r == close:
			depth--
			if depth == 0 {
				return text[start : start+i+1], true
			}
		}
	}
	return "", false
}
