package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/handlers"
	"alfredoptarigan/rubric-evaluator/internal/middleware"
	"alfredoptarigan/rubric-evaluator/internal/repositories"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	ctx := context.Background()

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	evalRepo := repositories.NewEvaluationRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	analysisRepo := repositories.NewAnalysisRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize document access
	storage, err := services.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("❌ Failed to initialize object storage: %v", err)
	}
	locator := services.NewDocumentLocator(storage, cfg.Storage.MaxFileSize, cfg.Storage.LocalRoot)
	pdfParser := services.NewPDFParserService(cfg.Storage.MaxFileSize)
	log.Printf("✅ Object storage ready (bucket %s)", cfg.S3.Bucket)

	// Initialize model providers
	var providers []services.LLMProvider
	var gemini services.GeminiService
	if cfg.Gemini.APIKey != "" {
		gemini, err = services.NewGeminiService(ctx, cfg.Gemini)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
		}
		providers = append(providers, gemini)
		log.Println("✅ Gemini AI initialized successfully")
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, services.NewOpenRouterService(cfg.OpenRouter))
		log.Println("✅ OpenRouter initialized successfully")
	}
	if len(providers) == 0 {
		log.Println("⚠️  No model provider configured; analysis endpoints will reject requests")
	}
	invoker := services.NewModelInvoker(cfg.Analysis.ProviderTimeout, providers...)

	// Initialize Qdrant, optional
	var index services.SubmissionIndex
	if cfg.Qdrant.URL != "" && gemini != nil {
		qdrantIndex, err := services.NewSubmissionIndex(cfg.Qdrant, gemini)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
		}
		if err := qdrantIndex.InitCollection(ctx); err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
		}
		index = qdrantIndex
		log.Println("✅ Qdrant initialized successfully")
	} else {
		log.Println("⚠️  Qdrant disabled (requires QDRANT_URL and GEMINI_API_KEY)")
	}

	// Initialize services
	analysisService := services.NewAnalysisService(services.AnalysisDeps{
		EvalRepo:     evalRepo,
		GroupRepo:    groupRepo,
		AnalysisRepo: analysisRepo,
		Locator:      locator,
		Parser:       pdfParser,
		Chunker:      services.NewTextChunker(),
		Prompts:      services.NewPromptBuilder(locator, pdfParser),
		Invoker:      invoker,
		Pool:         services.NewGroupPool(cfg.Worker.Concurrency),
		Index:        index,
	}, services.AnalysisOptions{
		RetryMaxAttempts:  cfg.Worker.RetryMaxAttempts,
		RetryInitialDelay: cfg.Worker.RetryInitialDelay,
		DefaultChunkSize:  cfg.Analysis.DefaultChunkSize,
		TokenBudgets: map[services.Provider]int{
			services.ProviderGemini:     cfg.Analysis.GeminiMaxTokens,
			services.ProviderOpenRouter: cfg.Analysis.OpenRouterMaxTokens,
		},
	})

	evaluationService := services.NewEvaluationService(
		evalRepo,
		groupRepo,
		storage,
		pdfParser,
		index,
		cfg.S3.Bucket,
		cfg.Storage.MaxFileSize,
	)
	log.Printf("✅ Services initialized (group concurrency %d)", cfg.Worker.Concurrency)

	// Initialize handlers
	h := handlers.Handlers{
		Evaluations: handlers.NewEvaluationHandler(evaluationService, cfg.Storage.MaxFileSize),
		Uploads:     handlers.NewUploadHandler(evaluationService, cfg.Storage.MaxFileSize),
		Analysis:    handlers.NewAnalysisHandler(analysisService),
		Results:     handlers.NewResultHandler(analysisService, index),
	}
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Rubric Evaluator API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		// Leave room for multipart framing around the largest allowed file.
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	handlers.RegisterRoutes(app.Group("/api/v1"), h, middleware.RateLimiter(cfg.Server.RateLimit, 0))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Rubric Evaluator API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/evaluations",
				"GET|PATCH|DELETE /api/v1/evaluations/:id",
				"POST /api/v1/evaluations/:id/rubrics",
				"POST /api/v1/rubrics/:id/items",
				"POST /api/v1/evaluations/:id/groups",
				"POST /api/v1/groups/:id/submissions",
				"POST /api/v1/evaluations/:id/analyses",
				"GET /api/v1/analyses/:id",
				"POST /api/v1/groups/:id/analyze",
				"POST /api/v1/analyze/chunks",
				"POST /api/v1/analyze/document",
				"GET /api/v1/evaluations/:id/groups/:groupId/similar",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
