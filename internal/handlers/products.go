package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shelfhero/shelfhero/internal/models"
	"github.com/shelfhero/shelfhero/internal/services"
)

// NormalizeProduct canonicalizes a raw product name and resolves its
// master product entity
func (h *Handler) NormalizeProduct(c *fiber.Ctx) error {
	var req models.NormalizeProductRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" {
		return Error(c, fiber.StatusBadRequest, "name is required")
	}

	product, result, err := h.normalizer.Resolve(c.Context(), req.Name)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to resolve product")
	}

	return Success(c, fiber.Map{
		"product":       product,
		"normalization": result,
	})
}

// SearchProducts returns master products matching the query
func (h *Handler) SearchProducts(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return Error(c, fiber.StatusBadRequest, "q is required")
	}

	params := &models.ProductSearchParams{
		Query:  query,
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	products, total, err := h.db.SearchMasterProducts(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to search products")
	}

	return SuccessWithMeta(c, products, total, params.Limit, params.Offset)
}

// GetProduct returns a master product by ID
func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid product id")
	}

	product, err := h.db.GetMasterProductByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return Error(c, fiber.StatusNotFound, "product not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get product")
	}

	return Success(c, product)
}

// GetProductPrices returns the cross-retailer price ranking for a product
func (h *Handler) GetProductPrices(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid product id")
	}

	if _, err := h.db.GetMasterProductByID(c.Context(), id); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return Error(c, fiber.StatusNotFound, "product not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get product")
	}

	ranking, err := h.optimizer.RankProduct(c.Context(), id)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to rank prices")
	}

	return Success(c, ranking)
}
