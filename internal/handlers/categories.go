package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shelfhero/shelfhero/internal/database"
	"github.com/shelfhero/shelfhero/internal/models"
)

// ListCategories returns the fixed category set
func (h *Handler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.db.ListCategories(c.Context())
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list categories")
	}
	return Success(c, categories)
}

// CategorizeProduct assigns a category to a product name
func (h *Handler) CategorizeProduct(c *fiber.Ctx) error {
	var req models.CategorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" {
		return Error(c, fiber.StatusBadRequest, "name is required")
	}

	return Success(c, h.categorizer.Categorize(c.Context(), req.Name))
}

// CreateCorrection records a user-confirmed category fix. Corrections
// only bias future AI categorizations; existing items are untouched.
func (h *Handler) CreateCorrection(c *fiber.Ctx) error {
	var req models.CorrectionRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.ProductName) == "" {
		return Error(c, fiber.StatusBadRequest, "product_name is required")
	}

	if _, err := h.db.GetCategoryByCode(c.Context(), req.CategoryCode); err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			return Error(c, fiber.StatusBadRequest, "unknown category code")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to validate category")
	}

	correction, err := h.db.CreateCorrection(c.Context(), &req)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to record correction")
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    correction,
	})
}
