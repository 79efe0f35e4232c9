package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/shelfhero/shelfhero/internal/database"
	"github.com/shelfhero/shelfhero/internal/models"
	"github.com/shelfhero/shelfhero/internal/services"
)

const maxImageSize = 10 * 1024 * 1024

// ParseReceipt parses raw receipt text, optionally persisting the result
func (h *Handler) ParseReceipt(c *fiber.Ctx) error {
	var req models.ParseReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.RawText) == "" {
		return Error(c, fiber.StatusBadRequest, "raw_text is required")
	}

	if !req.Persist {
		return Success(c, h.parser.Parse(req.RawText, req.StoreHint))
	}

	persisted, result, err := h.pipeline.ProcessText(c.Context(), req.RawText, req.StoreHint, nil)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to process receipt")
	}

	return Success(c, fiber.Map{
		"receipt": persisted,
		"parse":   result,
	})
}

// UploadReceipt stores a receipt image and queues it for processing
func (h *Handler) UploadReceipt(c *fiber.Ctx) error {
	if h.storage == nil {
		return Error(c, fiber.StatusServiceUnavailable, "image upload is not configured")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "image file is required")
	}

	contentType := file.Header.Get("Content-Type")
	if !isValidImageType(contentType) {
		return Error(c, fiber.StatusBadRequest, "invalid image type. Supported: JPEG, PNG, WebP")
	}

	if file.Size > maxImageSize {
		return Error(c, fiber.StatusBadRequest, "file too large. Maximum size is 10MB")
	}

	storeHint := c.FormValue("store_hint")

	src, err := file.Open()
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}
	defer src.Close()

	imageBytes, err := io.ReadAll(src)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}

	objectKey := services.ReceiptObjectKey(utils.UUIDv4(), time.Now())
	_, err = h.storage.UploadReceiptImage(c.Context(), objectKey, strings.NewReader(string(imageBytes)), file.Size, contentType)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to upload image")
	}

	entry := &models.UploadEntry{
		ObjectKey: &objectKey,
		StoreHint: storeHint,
		Status:    models.UploadStatusPending,
	}
	if err := h.db.EnqueueUpload(c.Context(), entry); err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to queue receipt")
	}

	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success: true,
		Data:    entry,
	})
}

// GetReceipt returns a persisted receipt with its line items
func (h *Handler) GetReceipt(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid receipt id")
	}

	receipt, err := h.db.GetReceiptByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrReceiptNotFound) {
			return Error(c, fiber.StatusNotFound, "receipt not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get receipt")
	}

	return Success(c, receipt)
}

// ListReceipts returns a paginated list of receipts
func (h *Handler) ListReceipts(c *fiber.Ctx) error {
	params := &models.ReceiptListParams{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	if review := c.Query("requires_review"); review != "" {
		val := review == "true"
		params.RequiresReview = &val
	}

	receipts, total, err := h.db.ListReceipts(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list receipts")
	}

	return SuccessWithMeta(c, receipts, total, params.Limit, params.Offset)
}

// ListUploadQueue returns recent upload queue entries so stuck or
// failed submissions are visible
func (h *Handler) ListUploadQueue(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	entries, err := h.db.ListQueueEntries(c.Context(), limit)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list upload queue")
	}

	return Success(c, entries)
}

// GetReceiptImageURL returns a presigned URL for a receipt's stored image
func (h *Handler) GetReceiptImageURL(c *fiber.Ctx) error {
	if h.storage == nil {
		return Error(c, fiber.StatusServiceUnavailable, "image storage is not configured")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid receipt id")
	}

	receipt, err := h.db.GetReceiptByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrReceiptNotFound) {
			return Error(c, fiber.StatusNotFound, "receipt not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get receipt")
	}

	if receipt.ObjectKey == nil {
		return Error(c, fiber.StatusNotFound, "receipt has no stored image")
	}

	url, err := h.storage.GetPresignedURL(c.Context(), *receipt.ObjectKey, 15*time.Minute)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate image URL")
	}

	return Success(c, fiber.Map{"url": url})
}

func isValidImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	}
	return false
}
