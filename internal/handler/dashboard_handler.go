package handler

import (
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	service service.DashboardService
	log     *zap.Logger
}

func NewDashboardHandler(s service.DashboardService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, log: log}
}

// GetSalesSummary returns per-status counts and settled revenue for the
// caller's sales
// GET /my-sales/summary
func (h *DashboardHandler) GetSalesSummary(c *fiber.Ctx) error {
	summary, err := h.service.GetSalesSummary(identity(c).UserID)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Sales summary retrieved successfully", summary)
}
