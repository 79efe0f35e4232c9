package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shelfhero/shelfhero/internal/models"
)

// PipelineStore is the storage contract the receipt pipeline needs
type PipelineStore interface {
	GetOrCreateRetailer(ctx context.Context, code, name string) (*models.Retailer, error)
	CreateReceiptWithItems(ctx context.Context, receipt *models.Receipt, items []models.ReceiptItem) (*models.ReceiptWithItems, error)
	UpsertCurrentPrice(ctx context.Context, price *models.CurrentPrice) error
	SetProductCategory(ctx context.Context, productID int, categoryCode string) error
}

// ItemEnhancer extracts item guesses straight from a receipt image.
// Used as a last resort when text parsing finds nothing.
type ItemEnhancer interface {
	EnhanceItems(ctx context.Context, imageData []byte) ([]AIItemGuess, error)
}

// ReceiptPipeline runs a raw receipt through parsing, product
// resolution, categorization and price recording, then persists the
// result. It is the single write path for submitted receipts, used by
// both the HTTP handlers and the upload queue.
type ReceiptPipeline struct {
	parser      *ReceiptParser
	normalizer  *Normalizer
	categorizer *Categorizer
	ocr         *OCRService
	storage     *StorageService
	vision      ItemEnhancer
	store       PipelineStore
}

// NewReceiptPipeline wires the pipeline. OCR, storage and vision may
// be nil; image submissions are then rejected (or parsed without the
// vision fallback) while raw-text submissions still work.
func NewReceiptPipeline(
	parser *ReceiptParser,
	normalizer *Normalizer,
	categorizer *Categorizer,
	ocr *OCRService,
	storage *StorageService,
	vision ItemEnhancer,
	store PipelineStore,
) *ReceiptPipeline {
	return &ReceiptPipeline{
		parser:      parser,
		normalizer:  normalizer,
		categorizer: categorizer,
		ocr:         ocr,
		storage:     storage,
		vision:      vision,
		store:       store,
	}
}

// ProcessText parses raw receipt text and persists the structured
// result. Per-item resolution failures degrade that item rather than
// failing the receipt.
func (p *ReceiptPipeline) ProcessText(ctx context.Context, rawText, storeHint string, objectKey *string) (*models.ReceiptWithItems, *models.ReceiptParseResult, error) {
	result := p.parser.Parse(rawText, storeHint)
	return p.persist(ctx, rawText, objectKey, result)
}

// persist resolves products, records prices and writes the receipt
func (p *ReceiptPipeline) persist(ctx context.Context, rawText string, objectKey *string, result *models.ReceiptParseResult) (*models.ReceiptWithItems, *models.ReceiptParseResult, error) {
	var retailerID *int
	if result.RetailerCode != GenericFormatCode {
		retailer, err := p.store.GetOrCreateRetailer(ctx, result.RetailerCode, result.Retailer)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving retailer: %w", err)
		}
		retailerID = &retailer.ID
	}

	items := make([]models.ReceiptItem, 0, len(result.Items))
	for _, parsed := range result.Items {
		item := models.ReceiptItem{
			LineNumber:   parsed.LineNumber,
			RawName:      parsed.Name,
			Price:        parsed.Price,
			Quantity:     parsed.Quantity,
			Confidence:   parsed.Confidence,
			QualityFlags: parsed.QualityFlags,
		}

		product, norm, err := p.normalizer.Resolve(ctx, parsed.Name)
		if err != nil {
			log.Printf("receipt pipeline: resolving product %q: %v", parsed.Name, err)
			item.NormalizedName = p.normalizer.Normalize(parsed.Name).NormalizedName
			items = append(items, item)
			continue
		}
		item.NormalizedName = norm.NormalizedName
		item.MasterProductID = &product.ID

		if product.CategoryID == nil {
			categorization := p.categorizer.Categorize(ctx, product.DisplayName)
			if err := p.store.SetProductCategory(ctx, product.ID, categorization.CategoryCode); err != nil {
				log.Printf("receipt pipeline: categorizing product %d: %v", product.ID, err)
			}
		}

		if retailerID != nil && parsed.Quantity > 0 {
			price := &models.CurrentPrice{
				MasterProductID: product.ID,
				RetailerID:      *retailerID,
				UnitPrice:       round2(parsed.Price / parsed.Quantity),
				SeenAt:          time.Now(),
			}
			if err := p.store.UpsertCurrentPrice(ctx, price); err != nil {
				log.Printf("receipt pipeline: recording price for product %d: %v", product.ID, err)
			}
		}

		items = append(items, item)
	}

	receipt := &models.Receipt{
		RetailerID:        retailerID,
		RetailerName:      result.Retailer,
		DeclaredTotal:     result.DeclaredTotal,
		OverallConfidence: result.OverallConfidence,
		RequiresReview:    result.RequiresReview,
		RawText:           rawText,
		ObjectKey:         objectKey,
	}
	if v := result.TotalValidation; v != nil {
		receipt.CalculatedTotal = v.CalculatedTotal
		receipt.PercentageDiff = v.PercentageDiff
		receipt.TotalValid = v.Valid
	}

	persisted, err := p.store.CreateReceiptWithItems(ctx, receipt, items)
	if err != nil {
		return nil, nil, fmt.Errorf("persisting receipt: %w", err)
	}

	return persisted, result, nil
}

// ProcessImage stores nothing; it extracts text from an already stored
// image and runs the text pipeline
func (p *ReceiptPipeline) ProcessImage(ctx context.Context, objectKey, storeHint string) (*models.ReceiptWithItems, *models.ReceiptParseResult, error) {
	if p.ocr == nil || p.storage == nil {
		return nil, nil, fmt.Errorf("image processing is not configured")
	}

	obj, err := p.storage.Download(ctx, objectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching receipt image: %w", err)
	}
	defer obj.Close()

	imageBytes, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("reading receipt image: %w", err)
	}

	ocrResult, err := p.ocr.ProcessImage(imageBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("running OCR: %w", err)
	}

	result := p.parser.Parse(ocrResult.Text, storeHint)
	if len(result.Items) == 0 && p.vision != nil {
		guesses, err := p.vision.EnhanceItems(ctx, imageBytes)
		if err != nil {
			log.Printf("receipt pipeline: vision fallback for %s: %v", objectKey, err)
		} else {
			p.mergeVisionItems(result, guesses)
		}
	}

	return p.persist(ctx, ocrResult.Text, &objectKey, result)
}

// mergeVisionItems appends usable vision guesses to an empty parse and
// re-scores the receipt. Guessed items carry a flag so review queues
// can tell them from regex-extracted ones.
func (p *ReceiptPipeline) mergeVisionItems(result *models.ReceiptParseResult, guesses []AIItemGuess) {
	for _, g := range guesses {
		if g.Name == "" || g.Price <= 0 || g.Price > 9999 {
			continue
		}
		confidence := g.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = defaultConfidence
		}
		result.Items = append(result.Items, models.ParsedItem{
			Name:         g.Name,
			Price:        round2(g.Price),
			Quantity:     1,
			Confidence:   confidence,
			QualityFlags: []models.QualityFlag{models.FlagVisionAssisted},
			LineNumber:   len(result.Items),
		})
	}
	if len(result.Items) == 0 {
		return
	}

	result.TotalValidation = ValidateTotal(result.Items, result.DeclaredTotal)
	scorer := NewQualityScorer()
	result.OverallConfidence, result.RequiresReview = scorer.ScoreReceipt(result.Items, result.TotalValidation)
}

// Process runs one queued submission through the pipeline, satisfying
// the upload queue's processor contract
func (p *ReceiptPipeline) Process(ctx context.Context, entry *models.UploadEntry) error {
	var err error
	if entry.ObjectKey != nil {
		_, _, err = p.ProcessImage(ctx, *entry.ObjectKey, entry.StoreHint)
	} else {
		_, _, err = p.ProcessText(ctx, entry.RawText, entry.StoreHint, nil)
	}
	return err
}
