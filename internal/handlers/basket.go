package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shelfhero/shelfhero/internal/models"
)

// OptimizeBasket computes per-item price rankings plus single-store and
// multi-store recommendations for a basket of products
func (h *Handler) OptimizeBasket(c *fiber.Ctx) error {
	var req models.OptimizeBasketRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.ProductIDs) == 0 {
		return Error(c, fiber.StatusBadRequest, "product_ids is required")
	}
	if len(req.ProductIDs) > 100 {
		return Error(c, fiber.StatusBadRequest, "basket too large, maximum 100 products")
	}

	result, err := h.optimizer.Optimize(c.Context(), req.ProductIDs)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to optimize basket")
	}

	return Success(c, result)
}

// ListRetailers returns all known retailers
func (h *Handler) ListRetailers(c *fiber.Ctx) error {
	retailers, err := h.db.ListRetailers(c.Context())
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list retailers")
	}
	return Success(c, retailers)
}
