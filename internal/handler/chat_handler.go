package handler

import (
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ChatHandler struct {
	service service.ChatService
	log     *zap.Logger
}

func NewChatHandler(s service.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{service: s, log: log}
}

// POST /chat
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req service.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	chat, err := h.service.SendMessage(c.UserContext(), identity(c), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusCreated, "Message sent successfully", chat)
}

// GET /chat/conversations
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	convs, err := h.service.ListConversations(identity(c).UserID)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Conversations retrieved successfully", convs)
}

// GetConversation returns messages with one partner, oldest first
// GET /chat/conversation/:user_id?page=&limit=
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	page, err := h.service.GetConversation(identity(c).UserID, c.Params("user_id"), c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Conversation retrieved successfully", page)
}

// PUT /chat/:id/status
func (h *ChatHandler) UpdateStatus(c *fiber.Ctx) error {
	var req service.UpdateChatStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	chat, err := h.service.UpdateStatus(identity(c).UserID, c.Params("id"), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Message status updated successfully", chat)
}

// DELETE /chat/:id
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.service.DeleteMessage(identity(c).UserID, c.Params("id")); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Message deleted successfully", nil)
}
