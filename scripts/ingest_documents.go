package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/repositories"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

// Rebuilds the similarity index for every group of one evaluation from the
// groups' latest submissions.
//
//	go run ./scripts -evaluation <uuid>
func main() {
	evaluationFlag := flag.String("evaluation", "", "ID of the evaluation whose submissions are indexed")
	flag.Parse()

	evaluationID, err := uuid.Parse(*evaluationFlag)
	if err != nil {
		log.Fatalf("❌ -evaluation must be a valid UUID: %v", err)
	}

	log.Println("🚀 Starting submission ingestion...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if cfg.Qdrant.URL == "" || cfg.Gemini.APIKey == "" {
		log.Fatalf("❌ QDRANT_URL and GEMINI_API_KEY are required")
	}

	ctx := context.Background()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	evalRepo := repositories.NewEvaluationRepository(db)

	storage, err := services.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("❌ Failed to initialize object storage: %v", err)
	}
	locator := services.NewDocumentLocator(storage, cfg.Storage.MaxFileSize, cfg.Storage.LocalRoot)
	pdfParser := services.NewPDFParserService(cfg.Storage.MaxFileSize)

	geminiService, err := services.NewGeminiService(ctx, cfg.Gemini)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	index, err := services.NewSubmissionIndex(cfg.Qdrant, geminiService)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}
	if err := index.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	evaluation, err := evalRepo.LoadForAnalysis(ctx, evaluationID)
	if err != nil {
		log.Fatalf("❌ Failed to load evaluation: %v", err)
	}

	successCount := 0
	skipCount := 0
	failCount := 0

	for i := range evaluation.Groups {
		group := &evaluation.Groups[i]
		log.Printf("\n📄 Processing group: %s", group.Code)

		submission := group.LatestSubmission()
		if submission == nil {
			log.Printf("   ⚠️  No submissions, skipping...")
			skipCount++
			continue
		}
		log.Printf("   Ref: %s", submission.StorageRef)

		data, err := locator.FetchBytes(ctx, submission.StorageRef)
		if err != nil {
			log.Printf("   ❌ Failed to fetch document: %v", err)
			failCount++
			continue
		}

		log.Printf("   📖 Extracting text...")
		content, err := pdfParser.Extract(data)
		if err != nil {
			log.Printf("   ❌ Failed to extract text: %v", err)
			failCount++
			continue
		}

		text := services.CleanText(content.Text)
		log.Printf("   ✅ Extracted %d pages, %d characters", content.PageCount, len([]rune(text)))

		log.Printf("   🔄 Embedding and storing chunks...")
		if err := index.IndexSubmission(ctx, evaluation.ID, group.ID, submission.ID, text); err != nil {
			log.Printf("   ❌ Failed to index submission: %v", err)
			failCount++
			continue
		}

		log.Printf("   ✅ Successfully ingested %s", group.Code)
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary for %s:", evaluation.Title)
	log.Printf("   ✅ Indexed: %d groups", successCount)
	log.Printf("   ⚠️  Without submissions: %d groups", skipCount)
	log.Printf("   ❌ Failed: %d groups", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️  Some submissions failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All submissions ingested successfully!")
}
