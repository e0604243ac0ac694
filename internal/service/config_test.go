package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/chunking"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePipelineFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineConfig(t *testing.T) {
	path := writePipelineFile(t, `
chunker: window
chunk_size: 800
overlap: 100
embedder: openai
store: postgres
top_k: 8
`)

	cfg, err := LoadPipelineConfig(path)

	require.NoError(t, err)
	assert.Equal(t, PipelineConfig{
		Chunker:   chunking.KindWindow,
		ChunkSize: 800,
		Overlap:   100,
		Embedder:  EmbedderOpenAI,
		Store:     StorePostgres,
		TopK:      8,
	}, cfg)
}

func TestLoadPipelineConfig_KeepsDefaults(t *testing.T) {
	path := writePipelineFile(t, "store: sqlite\n")

	cfg, err := LoadPipelineConfig(path)

	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, chunking.KindSentence, cfg.Chunker)
	assert.Equal(t, EmbedderReference, cfg.Embedder)
	assert.Equal(t, DefaultTopK, cfg.TopK)
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"invalid yaml", "chunker: [window", "failed to parse"},
		{"blank embedder", "embedder: \"\"\n", "Embedder is required"},
		{"negative overlap", "overlap: -5\n", "Overlap must be greater than or equal to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPipelineConfig(writePipelineFile(t, tt.content))

			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadPipelineConfig_MissingFile(t *testing.T) {
	_, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipelineConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultPipelineConfig().Validate())

	cfg := DefaultPipelineConfig()
	cfg.Chunker = chunking.KindFixed
	cfg.ChunkSize = -3
	assert.NoError(t, cfg.Validate(), "non-positive fixed sizes are allowed and yield no chunks")

	err := PipelineConfig{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PipelineConfig.Chunker is required")
	assert.Contains(t, err.Error(), "PipelineConfig.Embedder is required")
	assert.Contains(t, err.Error(), "PipelineConfig.Store is required")
}
