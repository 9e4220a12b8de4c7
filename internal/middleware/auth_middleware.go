package middleware

import (
	"strings"

	"go-marketplace/internal/repository"
	"go-marketplace/pkg/jwt"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID      = "user_id"
	LocalUserEmail   = "user_email"
	LocalUserRole    = "user_role"
	LocalAccessToken = "access_token"
)

// RequireAuth is middleware that validates the JWT and sets user info in context.
// The token must also be the one stored on the user: a newer login or a
// logout invalidates it.
func RequireAuth(userRepo repository.UserRepository, tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := extractToken(c)
		if !ok {
			return response.Error(c, fiber.StatusUnauthorized, "Missing or malformed authorization token. Use: Bearer <token>", nil)
		}

		// Validate token
		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		// Check strict session against DB
		user, err := userRepo.FindByID(claims.UserID)
		if err != nil {
			return response.Error(c, fiber.StatusInternalServerError, "Failed to verify session", nil)
		}
		if user == nil {
			return response.Error(c, fiber.StatusUnauthorized, "User not found", nil)
		}
		if user.AccessToken == nil || *user.AccessToken != tokenString {
			return response.Error(c, fiber.StatusUnauthorized, "Session expired (logged out or signed in elsewhere)", nil)
		}

		// Set user info in context for downstream handlers
		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUserEmail, user.Email)
		c.Locals(LocalUserRole, user.Role)
		c.Locals(LocalAccessToken, tokenString)

		return c.Next()
	}
}

// RequireRole checks that the authenticated user has one of the given roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalUserRole).(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return response.Error(c, fiber.StatusForbidden, "Forbidden: requires role "+strings.Join(roles, " or "), nil)
	}
}

// extractToken reads "Bearer <token>" from the Authorization header, falling
// back to the token query parameter for websocket clients.
func extractToken(c *fiber.Ctx) (string, bool) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
