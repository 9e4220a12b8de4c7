package handler

import (
	"time"

	"go-marketplace/internal/middleware"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/jwt"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Router wires every handler onto the app.
type Router struct {
	Auth        *AuthHandler
	User        *UserHandler
	Product     *ProductHandler
	Transaction *TransactionHandler
	Payment     *PaymentHandler
	Chat        *ChatHandler
	Dashboard   *DashboardHandler
	WS          *WSHandler

	UserRepo repository.UserRepository
	Tokens   *jwt.Manager
	Ping     func() error

	// Credential endpoints allow RateLimit requests per RateWindow per IP.
	RateLimit  int
	RateWindow time.Duration
}

func (r *Router) Register(app *fiber.App) {
	auth := middleware.RequireAuth(r.UserRepo, r.Tokens)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	limited := r.limiter()

	app.Get("/health", r.health)

	// ============ PUBLIC ROUTES ============
	app.Post("/signup", limited, r.Auth.Signup)
	app.Post("/login", limited, r.Auth.Login)
	app.Post("/login/google", r.Auth.GoogleLogin)
	app.Post("/request-password-reset", limited, r.Auth.RequestPasswordReset)
	app.Post("/reset-password", r.Auth.ResetPassword)

	app.Get("/products", r.Product.GetProducts)
	app.Get("/product/search/:name", r.Product.SearchProducts)
	app.Get("/product/:id", r.Product.GetProduct)

	// Gateway webhook, authenticated by signature
	app.Post("/payment/notification", r.Payment.Notification)

	// ============ PROTECTED ROUTES ============
	app.Post("/logout", auth, r.Auth.Logout)
	app.Post("/change-password", auth, r.Auth.ChangePassword)

	app.Get("/me-profile", auth, r.User.GetProfile)
	app.Put("/me-profile", auth, r.User.UpdateProfile)
	app.Delete("/me-profile", auth, r.User.DeleteAccount)

	app.Get("/users", auth, adminOnly, r.User.GetUsers)
	app.Delete("/users/:id", auth, adminOnly, r.User.DeleteUser)

	app.Post("/add-product", auth, r.Product.CreateProduct)
	app.Put("/product/:id", auth, r.Product.UpdateProduct)
	app.Delete("/product/:id", auth, r.Product.DeleteProduct)

	app.Post("/create-transaction", auth, r.Transaction.CreateTransaction)
	app.Get("/my-transactions", auth, r.Transaction.GetMyTransactions)
	app.Get("/my-sales/summary", auth, r.Dashboard.GetSalesSummary)
	app.Get("/transaction/:id", auth, r.Transaction.GetTransaction)
	app.Put("/transaction/:id/status", auth, r.Transaction.UpdateStatus)
	app.Post("/transaction/:id/payment-session", auth, r.Transaction.CreatePaymentSession)
	app.Get("/transaction/:id/payment-status", auth, r.Transaction.GetPaymentStatus)

	app.Post("/chat", auth, r.Chat.SendMessage)
	app.Get("/chat/conversations", auth, r.Chat.GetConversations)
	app.Get("/chat/conversation/:user_id", auth, r.Chat.GetConversation)
	app.Put("/chat/:id/status", auth, r.Chat.UpdateStatus)
	app.Delete("/chat/:id", auth, r.Chat.DeleteMessage)

	// WebSocket Route
	app.Get("/ws", r.WS.RequireUpgrade, auth, r.WS.Serve())
}

func (r *Router) limiter() fiber.Handler {
	max, window := r.RateLimit, r.RateWindow
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "Too many requests, please try again later", nil)
		},
	})
}

// GET /health
func (r *Router) health(c *fiber.Ctx) error {
	if r.Ping != nil {
		if err := r.Ping(); err != nil {
			return response.Error(c, fiber.StatusServiceUnavailable, "Database unreachable", nil)
		}
	}
	return response.Success(c, fiber.StatusOK, "OK", fiber.Map{"time": time.Now().UTC()})
}
