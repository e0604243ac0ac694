package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from RAGINDEX_-prefixed environment variables, each falling
// back to its unprefixed name. A .env file in the working directory is loaded
// first when present.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	DatabaseURL      string `envconfig:"DATABASE_URL" validate:"required_if=Store postgres"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10" validate:"min=1"`
	SQLitePath       string `envconfig:"SQLITE_PATH" validate:"required_if=Store sqlite"`

	OpenAIAPIKey              string `envconfig:"OPENAI_API_KEY" validate:"required_if=Embedder openai"`
	OpenAIBaseURL             string `envconfig:"OPENAI_BASE_URL"`
	OpenAIEmbeddingModel      string `envconfig:"OPENAI_EMBEDDING_MODEL"`
	OpenAIEmbeddingDimensions int    `envconfig:"OPENAI_EMBEDDING_DIMENSIONS" validate:"gte=0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ragindex-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Default pipeline; a PIPELINE_FILE profile replaces all of it.
	PipelineFile string `envconfig:"PIPELINE_FILE"`
	Chunker      string `envconfig:"CHUNKER" default:"sentence"`
	ChunkSize    int    `envconfig:"CHUNK_SIZE"`
	Overlap      int    `envconfig:"OVERLAP" validate:"gte=0"`
	Embedder     string `envconfig:"EMBEDDER" default:"reference"`
	Store        string `envconfig:"STORE" default:"memory"`
	TopK         int    `envconfig:"TOP_K" default:"5" validate:"gte=0"`
}

var validate = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGINDEX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and that the selected store and embedder
// have what they need to connect.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid config: %w", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required_if":
			fields = append(fields, fmt.Sprintf("%s is required when %s", fe.Field(), strings.Replace(fe.Param(), " ", "=", 1)))
		case "oneof":
			fields = append(fields, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, "; "))
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasPostgres() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSQLite() bool {
	return c.SQLitePath != ""
}
