package cli

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/chunking"
	"github.com/cloo-solutions/ragindex/internal/config"
	"github.com/cloo-solutions/ragindex/internal/database"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/embedding"
	"github.com/cloo-solutions/ragindex/internal/openai"
	"github.com/cloo-solutions/ragindex/internal/repository"
	"github.com/cloo-solutions/ragindex/internal/repository/sqlite"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/cloo-solutions/ragindex/internal/source"
	"github.com/cloo-solutions/ragindex/internal/storage"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// PipelineOverrides replace fields of the configured pipeline. Nil fields
// keep the configured value.
type PipelineOverrides struct {
	File      string
	Chunker   *string
	ChunkSize *int
	Overlap   *int
	Embedder  *string
	Store     *string
	TopK      *int
}

// ResolvePipeline picks the pipeline a command runs: the --pipeline file, else
// PIPELINE_FILE, else the CHUNKER/EMBEDDER/STORE settings, with overrides
// applied last.
func ResolvePipeline(cfg *config.Config, o PipelineOverrides) (service.PipelineConfig, error) {
	var (
		pipeline service.PipelineConfig
		err      error
	)

	switch {
	case o.File != "":
		pipeline, err = service.LoadPipelineConfig(o.File)
	case cfg.PipelineFile != "":
		pipeline, err = service.LoadPipelineConfig(cfg.PipelineFile)
	default:
		pipeline = service.PipelineConfig{
			Chunker:   chunking.Kind(cfg.Chunker),
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.Overlap,
			Embedder:  cfg.Embedder,
			Store:     cfg.Store,
			TopK:      cfg.TopK,
		}
	}
	if err != nil {
		return pipeline, err
	}

	if o.Chunker != nil {
		pipeline.Chunker = chunking.Kind(*o.Chunker)
	}
	if o.ChunkSize != nil {
		pipeline.ChunkSize = *o.ChunkSize
	}
	if o.Overlap != nil {
		pipeline.Overlap = *o.Overlap
	}
	if o.Embedder != nil {
		pipeline.Embedder = *o.Embedder
	}
	if o.Store != nil {
		pipeline.Store = *o.Store
	}
	if o.TopK != nil {
		pipeline.TopK = *o.TopK
	}

	if err := pipeline.Validate(); err != nil {
		return pipeline, err
	}
	return pipeline, nil
}

// Stack holds the components built for one process.
type Stack struct {
	Engine   *service.Engine
	Pipeline service.PipelineConfig
	Sources  *source.Resolver
	Logger   *zap.Logger

	closers []func()
}

// BuildStack registers the reference embedder and the memory store, plus the
// OpenAI embedder when a key is configured. Postgres and SQLite are only
// connected when the pipeline selects them.
func BuildStack(ctx context.Context, cfg *config.Config, pipeline service.PipelineConfig, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stack{Pipeline: pipeline, Logger: logger}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithEmbedder(service.EmbedderReference, embedding.NewReference()),
		service.WithStore(service.StoreMemory, vectorstore.NewMemoryStore()),
	}

	if cfg.HasOpenAI() {
		opts = append(opts, service.WithEmbedder(service.EmbedderOpenAI, openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.OpenAIEmbeddingModel),
			EmbeddingDimensions: cfg.OpenAIEmbeddingDimensions,
		})))
	} else if pipeline.Embedder == service.EmbedderOpenAI {
		return nil, domain.NewConfigurationError("openai embedder requires OPENAI_API_KEY", domain.ErrUnknownEmbedder)
	}

	switch pipeline.Store {
	case service.StorePostgres:
		store, err := s.connectPostgres(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, service.WithStore(service.StorePostgres, store))
	case service.StoreSQLite:
		store, err := s.openSQLite(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, service.WithStore(service.StoreSQLite, store))
	}

	var s3Loader *source.S3Loader
	if cfg.HasS3() {
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			s.Close()
			return nil, domain.NewConfigurationError("failed to create S3 client", err)
		}
		s3Loader = source.NewS3Loader(client)
	}

	s.Engine = service.NewEngine(opts...)
	s.Sources = source.NewResolver(source.NewFileLoader(), s3Loader)
	return s, nil
}

func (s *Stack) connectPostgres(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	if !cfg.HasPostgres() {
		return nil, domain.NewConfigurationError("postgres store requires DATABASE_URL", domain.ErrUnknownStore)
	}
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return nil, domain.NewStorageError("failed to connect to database", err)
	}
	s.closers = append(s.closers, pool.Close)
	s.Logger.Debug("connected to database")
	return repository.NewChunkRecordRepository(pool), nil
}

func (s *Stack) openSQLite(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	if !cfg.HasSQLite() {
		return nil, domain.NewConfigurationError("sqlite store requires SQLITE_PATH", domain.ErrUnknownStore)
	}
	db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, domain.NewStorageError("failed to open sqlite database", err)
	}
	s.closers = append(s.closers, func() { _ = db.Close() })

	store, err := sqlite.NewStore(db)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to open sqlite store at %s", cfg.SQLitePath), err)
	}
	s.Logger.Debug("opened sqlite database", zap.String("path", cfg.SQLitePath))
	return store, nil
}

// Close releases database connections in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
