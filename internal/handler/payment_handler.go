package handler

import (
	"encoding/json"

	"go-marketplace/internal/gateway"
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service service.TransactionService
	log     *zap.Logger
}

func NewPaymentHandler(s service.TransactionService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, log: log}
}

// Notification receives the gateway webhook. Authenticity comes from the
// signature_key field, not from a session.
// POST /payment/notification
func (h *PaymentHandler) Notification(c *fiber.Ctx) error {
	// c.Body() is reused by fasthttp after the handler returns
	raw := append([]byte(nil), c.Body()...)

	var n gateway.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return invalidBody(c)
	}

	tx, err := h.service.HandleNotification(c.UserContext(), n, raw)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Notification processed", fiber.Map{
		"transaction_id": tx.TransactionID,
		"payment_status": tx.PaymentStatus,
	})
}
