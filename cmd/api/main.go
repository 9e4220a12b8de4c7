package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-marketplace/internal/config"
	"go-marketplace/internal/events"
	"go-marketplace/internal/gateway"
	"go-marketplace/internal/handler"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/internal/service"
	"go-marketplace/internal/ws"
	"go-marketplace/pkg/cache"
	"go-marketplace/pkg/database"
	"go-marketplace/pkg/googleauth"
	"go-marketplace/pkg/jwt"
	applog "go-marketplace/pkg/logger"
	"go-marketplace/pkg/mailer"
	"go-marketplace/pkg/response"
	"go-marketplace/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	config.LoadEnv()
	cfg := config.Load()

	zl, err := applog.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DB.DSN(), !cfg.IsProduction())
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	// Auto Migrate (Hati-hati di production, sebaiknya pakai tools migrasi terpisah)
	if err := db.AutoMigrate(&model.User{}, &model.Product{}, &model.Transaction{}, &model.Chat{}, &model.PaymentNotification{}); err != nil {
		zl.Fatal("auto migrate failed", zap.Error(err))
	}

	// 3. Infrastructure with local fallbacks
	var redisClient *redis.Client
	var productCache cache.Cache = cache.NopCache{}
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zl.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			productCache = cache.NewRedisCache(redisClient, cfg.Redis.TTL)
		}
	}

	var store storage.Storage
	if cfg.S3.Enabled() {
		store, err = storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})
	} else {
		zl.Info("S3 not configured, storing uploads locally", zap.String("dir", cfg.UploadDir))
		store, err = storage.NewLocalStorage(cfg.UploadDir, "/uploads")
	}
	if err != nil {
		zl.Fatal("storage setup failed", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, 3, zl)
		if err != nil {
			zl.Warn("kafka unavailable, events disabled", zap.Error(err))
		} else {
			publisher = kp
		}
	}

	var mail mailer.Mailer = mailer.NewLogMailer(zl)
	if cfg.SMTP.User != "" && cfg.SMTP.Pass != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.From)
	}

	if cfg.Midtrans.ServerKey == "" {
		zl.Warn("MIDTRANS_SERVER_KEY is empty, payment sessions will fail and webhooks will be rejected")
	}
	paymentGateway := gateway.NewMidtrans(cfg.Midtrans.ServerKey, cfg.Midtrans.Production)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(zl)
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	chatRepo := repository.NewChatRepo(db)
	notifRepo := repository.NewNotificationRepo(db)

	authService := service.NewAuthService(userRepo, tokens, mail, googleauth.NewVerifier(cfg.GoogleClientID), service.AuthConfig{
		FrontendURL:      cfg.FrontendURL,
		ExposeResetToken: !cfg.IsProduction(),
	}, zl)
	userService := service.NewUserService(userRepo, store, zl)
	productService := service.NewProductService(productRepo, productCache, store, publisher, zl)
	txService := service.NewTransactionService(service.TransactionDeps{
		Transactions:  txRepo,
		Products:      productRepo,
		Users:         userRepo,
		Notifications: notifRepo,
		Gateway:       paymentGateway,
		Cache:         productCache,
		Notifier:      wsHub,
		Events:        publisher,
		Log:           zl,
	})
	chatService := service.NewChatService(chatRepo, userRepo, wsHub, publisher, zl)
	dashService := service.NewDashboardService(txRepo)

	router := &handler.Router{
		Auth:        handler.NewAuthHandler(authService, zl),
		User:        handler.NewUserHandler(userService, zl),
		Product:     handler.NewProductHandler(productService, zl),
		Transaction: handler.NewTransactionHandler(txService, zl),
		Payment:     handler.NewPaymentHandler(txService, zl),
		Chat:        handler.NewChatHandler(chatService, zl),
		Dashboard:   handler.NewDashboardHandler(dashService, zl),
		WS:          handler.NewWSHandler(wsHub),
		UserRepo:    userRepo,
		Tokens:      tokens,
		Ping:        func() error { return database.Ping(db) },
		RateLimit:   config.GetIntEnv("AUTH_RATE_LIMIT", 10),
		RateWindow:  config.GetDurationEnv("AUTH_RATE_WINDOW", time.Minute),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Marketplace API v1.0",
		ErrorHandler: response.ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	if !cfg.S3.Enabled() {
		app.Static("/uploads", cfg.UploadDir)
	}

	// 7. Routes
	router.Register(app)

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Panic("server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		zl.Warn("event publisher close failed", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zl.Warn("redis close failed", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		zl.Warn("database close failed", zap.Error(err))
	}

	zl.Info("Server exited")
}
