package handler

import (
	"go-marketplace/internal/service"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService service.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Signup registers a local account
// POST /signup
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req service.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.Signup(c.UserContext(), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusCreated, "User registered successfully", resp)
}

// Login handles user authentication
// POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Login successful", resp)
}

// POST /login/google
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req service.GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.GoogleLogin(c.UserContext(), req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Login successful", resp)
}

// POST /logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(identity(c).UserID); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Logged out successfully", nil)
}

// ChangePassword verifies the current password and rotates the session token
// POST /change-password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.ChangePassword(c.UserContext(), identity(c).UserID, req)
	if err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Password updated successfully", resp)
}

// POST /request-password-reset
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req service.RequestResetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	res, err := h.authService.RequestPasswordReset(c.UserContext(), req)
	if err != nil {
		return handleError(c, h.log, err)
	}

	var data interface{}
	if res.ResetToken != "" {
		data = fiber.Map{"reset_token": res.ResetToken}
	}
	return response.Success(c, fiber.StatusOK, res.Message, data)
}

// POST /reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req service.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := h.authService.ResetPassword(c.UserContext(), req); err != nil {
		return handleError(c, h.log, err)
	}
	return response.Success(c, fiber.StatusOK, "Password has been reset successfully", nil)
}
