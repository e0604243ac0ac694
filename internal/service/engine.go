// Package service runs the indexing and lookup pipeline: chunk, embed, store
// and query, plus retrieval-quality evaluation on top of it.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cloo-solutions/ragindex/internal/chunking"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/embedding"
	"github.com/cloo-solutions/ragindex/internal/telemetry"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// Engine wires chunkers, embedders and stores into ingest and query runs.
// It keeps no state between calls; concurrent calls are as safe as the
// registered stores.
type Engine struct {
	embedders map[string]embedding.Embedder
	stores    map[string]vectorstore.Store
	logger    *zap.Logger
	uuidGen   UUIDGenerator
}

type Option func(*Engine)

func WithEmbedder(name string, e embedding.Embedder) Option {
	return func(eng *Engine) { eng.embedders[name] = e }
}

func WithStore(name string, s vectorstore.Store) Option {
	return func(eng *Engine) { eng.stores[name] = s }
}

func WithLogger(logger *zap.Logger) Option {
	return func(eng *Engine) {
		if logger != nil {
			eng.logger = logger
		}
	}
}

func WithUUIDGenerator(gen UUIDGenerator) Option {
	return func(eng *Engine) { eng.uuidGen = gen }
}

func NewEngine(opts ...Option) *Engine {
	eng := &Engine{
		embedders: make(map[string]embedding.Embedder),
		stores:    make(map[string]vectorstore.Store),
		logger:    zap.NewNop(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Embedders returns the registered embedder names, sorted.
func (e *Engine) Embedders() []string {
	return sortedKeys(e.embedders)
}

// Stores returns the registered store names, sorted.
func (e *Engine) Stores() []string {
	return sortedKeys(e.stores)
}

type IngestInput struct {
	Text       string
	Provenance string
	Metadata   map[string]any
}

type QueryInput struct {
	Text string
	TopK int
}

type pipeline struct {
	chunker  chunking.Chunker
	embedder embedding.Embedder
	store    vectorstore.Store
}

func (e *Engine) resolve(cfg PipelineConfig) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunker, err := chunking.New(cfg.ChunkerOptions())
	if err != nil {
		return nil, err
	}
	if cfg.Chunker == chunking.KindFixed && cfg.ChunkSize <= 0 {
		e.logger.Warn("fixed chunker without a positive size yields no chunks", zap.Int("chunk_size", cfg.ChunkSize))
	}

	embedder, ok := e.embedders[cfg.Embedder]
	if !ok {
		return nil, domain.NewConfigurationError(fmt.Sprintf("embedder %q is not one of %v", cfg.Embedder, e.Embedders()), domain.ErrUnknownEmbedder)
	}

	store, err := e.store(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &pipeline{chunker: chunker, embedder: embedder, store: store}, nil
}

func (e *Engine) store(name string) (vectorstore.Store, error) {
	store, ok := e.stores[name]
	if !ok {
		return nil, domain.NewConfigurationError(fmt.Sprintf("store %q is not one of %v", name, e.Stores()), domain.ErrUnknownStore)
	}
	return store, nil
}

// Ingest chunks text, embeds every chunk in one batch and stores the pairs.
// Nothing is stored unless the whole batch embedded; text that yields no
// chunks never reaches the embedder or the store.
func (e *Engine) Ingest(ctx context.Context, input IngestInput, cfg PipelineConfig) (*domain.EvalResult, error) {
	start := time.Now()

	provenance := input.Provenance
	if provenance == "" {
		provenance = e.uuidGen.NewString()
	}

	ctx, span := telemetry.StartSpan(ctx, "Engine.Ingest", telemetry.SpanAttributes{
		Provenance: provenance,
		Chunker:    string(cfg.Chunker),
		Embedder:   cfg.Embedder,
		Store:      cfg.Store,
		Operation:  "ingest",
	})
	defer span.End()

	r := newRun(ctx, "ingest", e.logger)

	p, err := e.resolve(cfg)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	r.advance(domain.StageChunking)
	chunks := p.chunker.Chunk(input.Text)
	if len(chunks) == 0 {
		r.advance(domain.StageDone)
		return r.result(start, []domain.Match{}, 0, 0, provenance), nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i] = chunks[i].WithMetadata(input.Metadata)
		texts[i] = chunks[i].Text
	}

	stageCtx := r.advance(domain.StageEmbedding)
	vectors, err := embedding.EmbedBatch(stageCtx, p.embedder, texts)
	if err != nil {
		return nil, r.fail(err)
	}

	stageCtx = r.advance(domain.StageStoring)
	if err := p.store.Put(stageCtx, chunks, vectors, provenance); err != nil {
		return nil, r.fail(err)
	}

	r.advance(domain.StageDone)
	span.SetData("count_ingested", len(chunks))
	res := r.result(start, []domain.Match{}, len(chunks), 0, provenance)
	e.logger.Info("ingest complete",
		zap.String("store", cfg.Store),
		zap.String("embedder", cfg.Embedder),
		zap.Int("count_ingested", res.CountIngested),
		zap.Int64("elapsed_ms", res.ElapsedMs),
	)
	return res, nil
}

// Query embeds text as a batch of one and returns the top matches from the
// configured store. TopK falls back to the pipeline's, then to DefaultTopK.
func (e *Engine) Query(ctx context.Context, input QueryInput, cfg PipelineConfig) (*domain.EvalResult, error) {
	start := time.Now()

	topK := input.TopK
	if topK <= 0 {
		topK = cfg.TopK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "Engine.Query", telemetry.SpanAttributes{
		Embedder:  cfg.Embedder,
		Store:     cfg.Store,
		Operation: "query",
	})
	defer span.End()

	r := newRun(ctx, "query", e.logger)

	p, err := e.resolve(cfg)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	stageCtx := r.advance(domain.StageEmbedding)
	vectors, err := embedding.EmbedBatch(stageCtx, p.embedder, []string{input.Text})
	if err != nil {
		return nil, r.fail(err)
	}

	stageCtx = r.advance(domain.StageQuerying)
	found, err := p.store.Query(stageCtx, vectors[0], topK)
	if err != nil {
		return nil, r.fail(err)
	}

	r.advance(domain.StageScoring)
	matches := rank(found.Matches, topK)

	r.advance(domain.StageDone)
	span.SetData("count_searched", found.Searched)
	res := r.result(start, matches, 0, found.Searched, "")
	e.logger.Info("query complete",
		zap.String("store", cfg.Store),
		zap.String("embedder", cfg.Embedder),
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
		zap.Int("count_searched", res.CountSearched),
		zap.Int64("elapsed_ms", res.ElapsedMs),
	)
	return res, nil
}

// Clear removes every record from the configured store.
func (e *Engine) Clear(ctx context.Context, cfg PipelineConfig) error {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Clear", telemetry.SpanAttributes{
		Store:     cfg.Store,
		Operation: "clear",
	})
	defer span.End()

	store, err := e.store(cfg.Store)
	if err != nil {
		return domain.AtStage(err, domain.StageIdle)
	}
	if err := store.Clear(ctx); err != nil {
		span.SetError(err)
		return domain.AtStage(err, domain.StageStoring)
	}

	e.logger.Info("store cleared", zap.String("store", cfg.Store))
	return nil
}

// rank orders matches by score, highest first, keeping the store's order on
// ties, and caps them at topK.
func rank(matches []domain.Match, topK int) []domain.Match {
	ranked := make([]domain.Match, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
