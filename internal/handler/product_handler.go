package handler

import (
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service service.ProductService
	log     *zap.Logger
}

func NewProductHandler(s service.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{service: s, log: log}
}

// GetProducts returns live listings
// GET /products?q=&category=&page=&limit=
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	page, err := h.service.ListProducts(c.UserContext(), service.ProductQuery{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 0),
	})
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Products retrieved successfully", page)
}

// GET /product/search/:name
func (h *ProductHandler) SearchProducts(c *fiber.Ctx) error {
	page, err := h.service.ListProducts(c.UserContext(), service.ProductQuery{
		Query: c.Params("name"),
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 0),
	})
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Products retrieved successfully", page)
}

// GET /product/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Product retrieved successfully", product)
}

// CreateProduct accepts JSON, or multipart with an optional image file
// POST /add-product
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	image, err := saveUpload(c, "image")
	if err != nil {
		return handleError(c, h.log, err)
	}
	defer discardUpload(h.log, image)

	product, err := h.service.CreateProduct(c.UserContext(), identity(c), req, image)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusCreated, "Product created successfully", product)
}

// PUT /product/:id
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	image, err := saveUpload(c, "image")
	if err != nil {
		return handleError(c, h.log, err)
	}
	defer discardUpload(h.log, image)

	product, err := h.service.UpdateProduct(c.UserContext(), identity(c), c.Params("id"), req, image)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Product updated successfully", product)
}

// DELETE /product/:id
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), identity(c), c.Params("id")); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Product deleted successfully", nil)
}
