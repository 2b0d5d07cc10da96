package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/eazisol/Driptyard-backend/config"
	"github.com/eazisol/Driptyard-backend/handlers"
	"github.com/eazisol/Driptyard-backend/internal/mailer"
	"github.com/eazisol/Driptyard-backend/internal/storage"
	"github.com/eazisol/Driptyard-backend/middleware"
	"github.com/eazisol/Driptyard-backend/services"
	"github.com/eazisol/Driptyard-backend/utils"
)

func main() {
	cfg := config.LoadConfig()

	db := config.ConnectDatabase(cfg)
	if len(os.Args) > 1 && os.Args[1] == "reset" {
		if err := config.ResetAndMigrate(db); err != nil {
			log.Fatalf("Failed to reset database: %v", err)
		}
		return
	}
	if err := config.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	smtpMailer := mailer.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFromName,
	)

	store, err := storage.NewS3Store(context.Background(), storage.Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Bucket:          cfg.S3Bucket,
		BaseURL:         cfg.S3BaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	verifier := services.NewVerificationService(db, smtpMailer)
	productService := services.NewProductService(db, verifier)

	authHandler := handlers.NewAuthHandler(db, verifier)
	productHandler := handlers.NewProductHandler(productService, store)
	userHandler := handlers.NewUserHandler(db, store)
	categoryHandler := handlers.NewCategoryHandler(db)
	adminHandler := handlers.NewAdminHandler(db, productService)

	app := fiber.New(fiber.Config{
		AppName:      "Driptyard Backend",
		ServerHeader: "Driptyard Backend Server/1.0",
		BodyLimit:    12 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": msg,
			})
		},
	})

	middleware.SetupMiddleware(app)

	// Health Check Endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "API is healthy",
		})
	})

	api := app.Group("/api")

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify-email", authHandler.VerifyEmail)
	auth.Post("/resend-verification", authHandler.ResendVerification)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	api.Get("/categories", categoryHandler.GetCategories)
	api.Get("/products", productHandler.GetAllProducts)
	api.Get("/products/featured", productHandler.GetFeaturedProducts)
	api.Get("/products/recommended", productHandler.GetRecommendedProducts)
	api.Get("/products/:id", productHandler.GetProduct)

	// Authenticated
	api.Get("/me", utils.AuthMiddleware, userHandler.GetMe)
	api.Patch("/me", utils.AuthMiddleware, userHandler.UpdateMe)
	api.Post("/me/avatar", utils.AuthMiddleware, userHandler.UploadAvatar)
	api.Get("/users/search", utils.AuthMiddleware, userHandler.SearchUsers)

	api.Get("/my-products", utils.AuthMiddleware, productHandler.GetMyProducts)
	api.Post("/products", utils.AuthMiddleware, productHandler.CreateProduct)
	api.Patch("/products/:id", utils.AuthMiddleware, productHandler.UpdateProduct)
	api.Delete("/products/:id", utils.AuthMiddleware, productHandler.DeleteProduct)
	api.Post("/products/:id/images", utils.AuthMiddleware, productHandler.AddProductImages)
	api.Post("/products/:id/send-verification", utils.AuthMiddleware, productHandler.SendVerification)
	api.Post("/products/:id/verify", utils.AuthMiddleware, productHandler.VerifyProduct)
	api.Post("/products/:id/sold", utils.AuthMiddleware, productHandler.MarkProductSold)

	// Admin moderation
	admin := api.Group("/admin", utils.AuthMiddleware, utils.AdminOnly)
	admin.Get("/products", adminHandler.ListProducts)
	admin.Patch("/products/:id", adminHandler.UpdateProduct)
	admin.Delete("/products/:id", adminHandler.DeleteProduct)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users/:id/suspend", adminHandler.SuspendUser)
	admin.Post("/users/:id/unsuspend", adminHandler.UnsuspendUser)
	admin.Delete("/users/:id", adminHandler.DeleteUser)

	middleware.SetupErrorHandler(app)

	log.Printf("🚀 Server starting on host %s in port %s mode", cfg.HOST, cfg.AppPort)

	if err := app.Listen(cfg.HOST + ":" + cfg.AppPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
