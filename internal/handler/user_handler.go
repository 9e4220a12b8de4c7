package handler

import (
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService service.UserService
	log         *zap.Logger
}

func NewUserHandler(userService service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// GET /me-profile
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.userService.GetProfile(identity(c).UserID)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Profile retrieved successfully", user)
}

// UpdateProfile accepts JSON, or multipart with an optional profile_picture file
// PUT /me-profile
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	picture, err := saveUpload(c, "profile_picture")
	if err != nil {
		return handleError(c, h.log, err)
	}
	defer discardUpload(h.log, picture)

	user, err := h.userService.UpdateProfile(c.UserContext(), identity(c).UserID, req, picture)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Profile updated successfully", user)
}

// DELETE /me-profile
func (h *UserHandler) DeleteAccount(c *fiber.Ctx) error {
	if err := h.userService.DeleteAccount(identity(c).UserID); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Account deleted successfully", nil)
}

// GetUsers lists accounts for admins
// GET /users?page=&limit=
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	page, err := h.userService.ListUsers(c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Users retrieved successfully", page)
}

// DELETE /users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.userService.DeleteUser(c.Params("id")); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "User deleted successfully", nil)
}
