package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/shelfhero/shelfhero/internal/models"
)

const (
	geminiTimeout    = 30 * time.Second
	geminiMaxRetries = 2
	geminiRetryDelay = 500 * time.Millisecond
	defaultModelName = "gemini-2.0-flash"
	visionMaxItems   = 50
)

// GeminiProvider implements CategorizationProvider using Google Gemini
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider creates a Gemini-backed categorization provider
func NewGeminiProvider(apiKey string, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultModelName
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Categorize asks the model to place a product name into one of the
// given category codes. Prior user corrections are passed along as
// advisory context only.
func (g *GeminiProvider) Categorize(ctx context.Context, productName string, categories []string, corrections []models.CategoryCorrection) (*AICategorization, error) {
	prompt := buildCategorizationPrompt(productName, categories, corrections)

	text, err := g.generate(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	resp, err := ParseAIResponse(text)
	if err != nil {
		return nil, err
	}
	if resp.Kind != ResponseCategorization {
		return nil, &MalformedResponseError{Raw: text, Err: fmt.Errorf("expected categorization object, got item list")}
	}
	return resp.Categorization, nil
}

// EnhanceItems sends a receipt image to the model and returns its best
// guess at the line items, for merging with the deterministic parse
func (g *GeminiProvider) EnhanceItems(ctx context.Context, imageData []byte) ([]AIItemGuess, error) {
	parts := []genai.Part{
		genai.ImageData("png", imageData),
		genai.Text(itemExtractionPrompt),
	}

	text, err := g.generate(ctx, parts...)
	if err != nil {
		return nil, err
	}

	resp, err := ParseAIResponse(text)
	if err != nil {
		return nil, err
	}
	if resp.Kind != ResponseItemList {
		return nil, &MalformedResponseError{Raw: text, Err: fmt.Errorf("expected item list, got categorization object")}
	}
	items := resp.Items
	if len(items) > visionMaxItems {
		items = items[:visionMaxItems]
	}
	return items, nil
}

// generate runs one model call with a timeout, retrying transient
// failures. The request is idempotent so a retry is safe.
func (g *GeminiProvider) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= geminiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(geminiRetryDelay << (attempt - 1)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, geminiTimeout)
		resp, err := g.model.GenerateContent(callCtx, parts...)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("generating content: %w", err)
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("no response from gemini")
			continue
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		return sb.String(), nil
	}
	return "", lastErr
}

// Close closes the underlying Gemini client
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func buildCategorizationPrompt(productName string, categories []string, corrections []models.CategoryCorrection) string {
	var sb strings.Builder
	sb.WriteString("Ти си асистент за категоризиране на продукти от български касови бележки.\n")
	sb.WriteString("Категоризирай продукта в точно една от следните категории: ")
	sb.WriteString(strings.Join(categories, ", "))
	sb.WriteString("\n\n")

	if len(corrections) > 0 {
		sb.WriteString("Предишни корекции от потребители (само за ориентир):\n")
		for _, c := range corrections {
			fmt.Fprintf(&sb, "- %q -> %s\n", c.ProductName, c.CategoryCode)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Продукт: %q\n\n", productName)
	sb.WriteString("Отговори само с JSON обект във формат:\n")
	sb.WriteString(`{"category": "<код>", "confidence": <0.0-1.0>, "reasoning": "<кратко обяснение>"}`)
	return sb.String()
}

const itemExtractionPrompt = `Това е снимка на български касов бон. Извлечи продуктите от него.
Отговори само с JSON масив във формат:
[{"name": "<име на продукт>", "price": <цена в лева>, "confidence": <0.0-1.0>}]
Пропусни редове за ДДС, отстъпки, междинни суми и плащане.`
