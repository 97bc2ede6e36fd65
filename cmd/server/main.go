package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/alfares/bakery-backend/internal/auth"
	"github.com/alfares/bakery-backend/internal/branch"
	"github.com/alfares/bakery-backend/internal/cash"
	"github.com/alfares/bakery-backend/internal/grocery"
	"github.com/alfares/bakery-backend/internal/item"
	"github.com/alfares/bakery-backend/internal/machine"
	"github.com/alfares/bakery-backend/internal/notification"
	"github.com/alfares/bakery-backend/internal/reports"
	"github.com/alfares/bakery-backend/internal/stock"
	"github.com/alfares/bakery-backend/internal/transfer"
	"github.com/alfares/bakery-backend/internal/user"
	"github.com/alfares/bakery-backend/pkg/database"
	"github.com/alfares/bakery-backend/pkg/logger"
	"github.com/alfares/bakery-backend/pkg/middleware"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	logger.Init("bakery-backend", os.Getenv("ENVIRONMENT") == "development")
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logger.SetLevel(level)
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if os.Getenv("ENVIRONMENT") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Background expiry scan
	scanner := notification.NewScanner(db)
	scanner.Start(time.Hour)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.Refresh)

		// Google OAuth routes
		v1.GET("/auth/google", authHandler.GoogleLogin)
		v1.GET("/auth/google/callback", authHandler.GoogleCallback)

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth - get current user
			protected.GET("/auth/me", authHandler.GetMe)

			// Branch routes
			branchHandler := branch.NewHandler(db)
			protected.GET("/branches", branchHandler.List)
			protected.GET("/branches/:id", branchHandler.Get)
			protected.POST("/branches", middleware.RequireAccess("branches"), branchHandler.Create)
			protected.PUT("/branches/:id", middleware.RequireAccess("branches"), branchHandler.Update)
			protected.DELETE("/branches/:id", middleware.RequireAccess("branches"), branchHandler.Delete)

			// Item catalog routes
			itemHandler := item.NewHandler(db)
			protected.GET("/items", itemHandler.List)
			protected.GET("/items/:id", itemHandler.Get)
			protected.POST("/items", middleware.RequireAccess("items"), itemHandler.Create)
			protected.PUT("/items/:id", middleware.RequireAccess("items"), itemHandler.Update)
			protected.DELETE("/items/:id", middleware.RequireAccess("items"), itemHandler.Delete)

			// Normal-item stock ledger routes
			stockHandler := stock.NewHandler(db)
			protected.GET("/stocks", stockHandler.List)
			protected.POST("/stocks", middleware.RequireAccess("stocks"), stockHandler.Add)
			protected.POST("/stocks/return", middleware.RequireAccess("stocks"), stockHandler.Return)
			protected.POST("/stocks/finish", middleware.RequireAccess("stocks"), stockHandler.Finish)

			// Grocery batch routes
			groceryHandler := grocery.NewHandler(db)
			protected.GET("/grocery", groceryHandler.ListBatches)
			protected.POST("/grocery", middleware.RequireAccess("grocery"), groceryHandler.CreateBatch)
			protected.GET("/grocery/sales", groceryHandler.ListSales)
			protected.POST("/grocery/sales", middleware.RequireAccess("grocery"), groceryHandler.CreateSale)
			protected.GET("/grocery/returns", groceryHandler.ListReturns)
			protected.POST("/grocery/returns", middleware.RequireAccess("grocery"), groceryHandler.CreateReturn)
			protected.POST("/grocery/returns/:id/complete", middleware.RequireAccess("grocery"), groceryHandler.CompleteReturn)

			// Machine batch routes
			machineHandler := machine.NewHandler(db)
			protected.GET("/machines/batches", machineHandler.ListBatches)
			protected.POST("/machines/batches", middleware.RequireAccess("machines"), machineHandler.CreateBatch)
			protected.POST("/machines/batches/:id/finish", middleware.RequireAccess("machines"), machineHandler.FinishBatch)
			protected.GET("/machines/sales", machineHandler.ListSales)

			// Cash reconciliation routes
			cashHandler := cash.NewHandler(db)
			protected.GET("/cash", cashHandler.List)
			protected.GET("/cash/expected", cashHandler.Expected)
			protected.POST("/cash", middleware.RequireAccess("cash"), cashHandler.Create)

			// Transfer routes
			transferHandler := transfer.NewHandler(db)
			protected.GET("/transfers", transferHandler.List)
			protected.POST("/transfers", middleware.RequireAccess("transfers"), transferHandler.Create)

			// Notification routes
			notificationHandler := notification.NewHandler(db)
			protected.GET("/notifications", notificationHandler.List)
			protected.POST("/notifications/:id/read", notificationHandler.MarkRead)
			protected.POST("/notifications/scan", middleware.RequireAccess("notifications"), notificationHandler.Scan)

			// Reports routes
			reportsHandler := reports.NewHandler(db)
			protected.POST("/reports/generate", reportsHandler.Generate)
			protected.GET("/reports/export", reportsHandler.Export)

			// User management routes
			userHandler := user.NewHandler(db)
			protected.GET("/users", middleware.RequireAccess("users"), userHandler.List)
			protected.POST("/users", middleware.RequireAccess("users"), userHandler.Create)
			protected.PUT("/users/:id", middleware.RequireAccess("users"), userHandler.Update)
			protected.DELETE("/users/:id", middleware.RequireAccess("users"), userHandler.Delete)
			protected.GET("/users/logs", middleware.RequireAccess("users"), userHandler.ListActivityLogs)
		}
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("Server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
