package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/shelfhero/shelfhero/internal/config"
	"github.com/shelfhero/shelfhero/internal/database"
	"github.com/shelfhero/shelfhero/internal/handlers"
	"github.com/shelfhero/shelfhero/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Gemini-backed AI tier; the categorizer degrades to rules alone
	// when no API key is configured
	var aiProvider services.CategorizationProvider
	var visionProvider services.ItemEnhancer
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("Warning: Failed to initialize Gemini provider: %v", err)
		} else {
			defer gemini.Close()
			aiProvider = gemini
			visionProvider = gemini
			log.Println("Gemini categorization provider initialized")
		}
	} else {
		log.Println("GEMINI_API_KEY not set, AI categorization disabled")
	}

	// Receipt image storage and OCR are optional; raw-text parsing
	// works without them
	var storageService *services.StorageService
	var ocrService *services.OCRService
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		storageService, err = services.NewStorageService(
			cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL,
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize storage service: %v", err)
			storageService = nil
		} else if err := storageService.EnsureBucket(context.Background()); err != nil {
			log.Printf("Warning: Failed to ensure S3 bucket exists: %v", err)
		} else {
			log.Printf("Receipt image storage ready, bucket %s", storageService.GetBucketName())
		}

		ocrService, err = services.NewOCRService(cfg.OCRLanguages)
		if err != nil {
			log.Printf("Warning: Failed to initialize OCR service: %v", err)
			ocrService = nil
		}
	} else {
		log.Println("S3 credentials not configured, receipt image upload disabled")
	}

	// Core services
	parser := services.NewReceiptParser()
	normalizer := services.NewNormalizer(db)
	categorizer := services.NewCategorizer(aiProvider, db)
	optimizer := services.NewBasketOptimizer(db)
	pipeline := services.NewReceiptPipeline(parser, normalizer, categorizer, ocrService, storageService, visionProvider, db)

	// Upload queue scheduler
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()
	queue := services.NewUploadQueue(db, pipeline)
	go queue.Run(queueCtx)

	// Create handler with dependencies
	h := handlers.New(db, cfg, parser, normalizer, categorizer, optimizer, pipeline, storageService)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Receipt routes
	receipts := api.Group("/receipts")
	receipts.Post("/parse", h.ParseReceipt)
	receipts.Post("/upload", h.UploadReceipt)
	receipts.Get("/", h.ListReceipts)
	receipts.Get("/queue", h.ListUploadQueue)
	receipts.Get("/:id", h.GetReceipt)
	receipts.Get("/:id/image", h.GetReceiptImageURL)

	// Product routes
	products := api.Group("/products")
	products.Post("/normalize", h.NormalizeProduct)
	products.Get("/search", h.SearchProducts)
	products.Get("/:id", h.GetProduct)
	products.Get("/:id/prices", h.GetProductPrices)

	// Category routes
	api.Get("/categories", h.ListCategories)
	api.Post("/categorize", h.CategorizeProduct)
	api.Post("/categories/corrections", h.CreateCorrection)

	// Basket routes
	api.Post("/basket/optimize", h.OptimizeBasket)
	api.Get("/retailers", h.ListRetailers)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
