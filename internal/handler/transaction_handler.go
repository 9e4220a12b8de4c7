package handler

import (
	"go-marketplace/internal/repository"
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	service service.TransactionService
	log     *zap.Logger
}

func NewTransactionHandler(s service.TransactionService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{service: s, log: log}
}

// CreateTransaction records a purchase and opens a payment session.
// A gateway failure still answers 201; payment_error tells the client to retry.
// POST /create-transaction
func (h *TransactionHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.service.CreateTransaction(c.UserContext(), identity(c), req)
	if err != nil {
		return handleError(c, h.log, err)
	}

	msg := "Transaction created successfully"
	if result.PaymentError != "" {
		msg = "Transaction created, but the payment session could not be opened"
	}
	return response.Success(c, fiber.StatusCreated, msg, result)
}

// GET /transaction/:id
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	tx, err := h.service.GetTransaction(identity(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Transaction retrieved successfully", tx)
}

// GetMyTransactions lists the caller's purchases and/or sales
// GET /my-transactions?as=buyer|seller|all&page=&limit=
func (h *TransactionHandler) GetMyTransactions(c *fiber.Ctx) error {
	party := c.Query("as", "all")
	if party == "all" {
		party = repository.PartyAny
	}

	page, err := h.service.ListMyTransactions(identity(c), party, c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Transactions retrieved successfully", page)
}

// PUT /transaction/:id/status
func (h *TransactionHandler) UpdateStatus(c *fiber.Ctx) error {
	var req service.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	tx, err := h.service.UpdateStatus(c.UserContext(), identity(c), c.Params("id"), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Transaction status updated successfully", tx)
}

// POST /transaction/:id/payment-session
func (h *TransactionHandler) CreatePaymentSession(c *fiber.Ctx) error {
	result, err := h.service.CreatePaymentSession(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Payment session created successfully", result)
}

// GetPaymentStatus asks the gateway for the current status and stores it
// GET /transaction/:id/payment-status
func (h *TransactionHandler) GetPaymentStatus(c *fiber.Ctx) error {
	tx, err := h.service.SyncPaymentStatus(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Payment status synchronized", tx)
}
