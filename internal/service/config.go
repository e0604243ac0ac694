package service

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/chunking"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultTopK is used when neither the call nor the pipeline sets one.
const DefaultTopK = 5

// Registered component names.
const (
	EmbedderReference = "reference"
	EmbedderOpenAI    = "openai"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// PipelineConfig selects the components of one pipeline run.
type PipelineConfig struct {
	Chunker   chunking.Kind `json:"chunker" yaml:"chunker" validate:"required"`
	ChunkSize int           `json:"chunk_size,omitempty" yaml:"chunk_size"`
	Overlap   int           `json:"overlap,omitempty" yaml:"overlap" validate:"gte=0"`
	Embedder  string        `json:"embedder" yaml:"embedder" validate:"required"`
	Store     string        `json:"store" yaml:"store" validate:"required"`
	TopK      int           `json:"top_k,omitempty" yaml:"top_k" validate:"gte=0"`
}

// DefaultPipelineConfig runs entirely in process.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Chunker:  chunking.KindSentence,
		Embedder: EmbedderReference,
		Store:    StoreMemory,
		TopK:     DefaultTopK,
	}
}

// Validate reports missing or out-of-range fields as a ConfigurationError.
// Component names are checked later, against what the engine has registered.
func (c PipelineConfig) Validate() error {
	return validateStruct(c)
}

// ChunkerOptions maps the pipeline onto chunking.Options.
func (c PipelineConfig) ChunkerOptions() chunking.Options {
	return chunking.Options{Kind: c.Chunker, Size: c.ChunkSize, Overlap: c.Overlap}
}

// LoadPipelineConfig reads a YAML pipeline profile. Fields missing from the
// file keep their DefaultPipelineConfig values.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, domain.NewConfigurationError(fmt.Sprintf("failed to read pipeline file %s", path), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, domain.NewConfigurationError(fmt.Sprintf("failed to parse pipeline file %s", path), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return domain.NewConfigurationError("invalid configuration", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must have at least %s entries", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed on '%s'", field, fe.Tag()))
		}
	}
	sort.Strings(messages)

	return domain.NewConfigurationError(strings.Join(messages, "; "), err)
}
