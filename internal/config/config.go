package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// MaxDocumentSize is the hard ceiling for any processed document (10 MiB).
const MaxDocumentSize int64 = 10 << 20

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	S3         S3Config
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Qdrant     QdrantConfig
	Worker     WorkerConfig
	Analysis   AnalysisConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"3000"`
	Env          string        `env:"ENV" envDefault:"development"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	RateLimit    int           `env:"ANALYSIS_RATE_LIMIT_PER_MIN" envDefault:"20"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName   string `env:"DB_NAME" envDefault:"rubric_evaluator"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

type StorageConfig struct {
	MaxFileSize int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"`
	// LocalRoot is the only directory local document references may point into.
	// Empty disables local references.
	LocalRoot string `env:"LOCAL_DOCUMENT_ROOT"`
}

type S3Config struct {
	Bucket          string `env:"S3_BUCKET" envDefault:"rubric-evaluator"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
}

type GeminiConfig struct {
	APIKey     string `env:"GEMINI_API_KEY"`
	Model      string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	EmbedModel string `env:"GEMINI_EMBED_MODEL" envDefault:"text-embedding-004"`
}

type OpenRouterConfig struct {
	APIKey  string `env:"OPENROUTER_API_KEY"`
	BaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model   string `env:"OPENROUTER_MODEL" envDefault:"openai/gpt-4o-mini"`
	Title   string `env:"OPENROUTER_TITLE" envDefault:"Rubric Evaluator"`
}

type QdrantConfig struct {
	URL        string `env:"QDRANT_URL"`
	APIKey     string `env:"QDRANT_API_KEY"`
	Collection string `env:"QDRANT_COLLECTION" envDefault:"submission_chunks"`
	VectorSize uint64 `env:"QDRANT_VECTOR_SIZE" envDefault:"768"`
}

type WorkerConfig struct {
	Concurrency       int           `env:"WORKER_CONCURRENCY" envDefault:"3"`
	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
}

type AnalysisConfig struct {
	ProviderTimeout     time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"120s"`
	DefaultChunkSize    int           `env:"DEFAULT_CHUNK_SIZE" envDefault:"10000"`
	GeminiMaxTokens     int           `env:"GEMINI_MAX_DOCUMENT_TOKENS" envDefault:"200000"`
	OpenRouterMaxTokens int           `env:"OPENROUTER_MAX_DOCUMENT_TOKENS" envDefault:"24000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using environment and default values.")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 1
	}
	if cfg.Storage.MaxFileSize <= 0 || cfg.Storage.MaxFileSize > MaxDocumentSize {
		log.Printf("⚠️  MAX_FILE_SIZE=%d outside (0, %d], using %d", cfg.Storage.MaxFileSize, MaxDocumentSize, MaxDocumentSize)
		cfg.Storage.MaxFileSize = MaxDocumentSize
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
