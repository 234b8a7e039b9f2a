package router

import (
	"time"

	"duka/config"
	"duka/internal/handler"
	"duka/internal/middleware"
	"duka/internal/repository"
	"duka/internal/service"
	"duka/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise; use gin.Default() if you need request logging
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	notifier := service.NewTelegramNotifier(settingsRepo)
	paymentSvc := service.NewPaymentService(orderRepo, notifier)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	catalogHandler := handler.NewCatalogHandler(catalogRepo, walletRepo)
	orderHandler := handler.NewOrderHandler(cfg, orderRepo, catalogRepo, walletRepo, notifier)
	mpesaHandler := handler.NewMpesaHandler(cfg, settingsRepo, paymentSvc, orderRepo)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(paymentSvc)
	adminHandler := handler.NewAdminHandler(catalogRepo, walletRepo, orderRepo, settingsRepo, paymentSvc)
	uploadHandler := handler.NewUploadHandler(cloud)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		api.GET("/categories", catalogHandler.ListCategories)
		api.GET("/packages", catalogHandler.ListPackages)
		api.GET("/packages/:id", catalogHandler.GetPackage)
		api.GET("/products", catalogHandler.ListProducts)
		api.GET("/wallets", catalogHandler.ListWallets)

		api.POST("/orders", authMw, orderHandler.Create)
		api.GET("/orders", authMw, orderHandler.ListMine)
		api.GET("/orders/:id", authMw, orderHandler.Get)

		api.POST("/payments/mpesa/initiate", authMw, mpesaHandler.Initiate)
		api.POST("/payments/mpesa/query", authMw, mpesaHandler.Query)

		// Called by Safaricom; correlation happens via the session token in
		// the payload, not via auth.
		api.POST("/webhooks/mpesa", mpesaWebhookHandler.Handle)

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.POST("/categories", adminHandler.CreateCategory)
			admin.PUT("/categories/:id", adminHandler.UpdateCategory)
			admin.POST("/packages", adminHandler.CreatePackage)
			admin.PUT("/packages/:id", adminHandler.UpdatePackage)
			admin.POST("/products", adminHandler.CreateProduct)
			admin.PUT("/products/:id", adminHandler.UpdateProduct)
			admin.POST("/wallets", adminHandler.CreateWallet)
			admin.DELETE("/wallets/:id", adminHandler.DeleteWallet)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings", adminHandler.UpdateSettings)
			admin.GET("/orders", adminHandler.ListOrders)
			admin.POST("/orders/:id/confirm", adminHandler.ConfirmOrder)
			admin.POST("/orders/:id/release", adminHandler.ReleaseOrder)
			admin.POST("/orders/:id/reject", adminHandler.RejectOrder)
			admin.POST("/upload", uploadHandler.UploadImage)
		}
	}

	return r
}
