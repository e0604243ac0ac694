package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/telemetry"
	"go.uber.org/zap"
)

// EvalDocument is ingested before the cases run. Provenance is required so
// expected IDs can name its chunks.
type EvalDocument struct {
	Provenance string         `json:"provenance" validate:"required"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EvalCase is one query with the chunks it should find. An expected ID is
// either a bare chunk ID ("c2") or qualified with its provenance
// ("guide.md#c2").
type EvalCase struct {
	Query       string   `json:"query" validate:"required"`
	ExpectedIDs []string `json:"expected_ids" validate:"min=1"`
}

type EvalSuite struct {
	Documents []EvalDocument `json:"documents,omitempty" validate:"dive"`
	Cases     []EvalCase     `json:"cases" validate:"min=1,dive"`
	K         int            `json:"k,omitempty" validate:"gte=0"`
}

type EvalSummary struct {
	Total         int     `json:"total"`
	K             int     `json:"k"`
	CountIngested int     `json:"count_ingested"`
	RecallAtK     float64 `json:"recall_at_k"`
	MRR           float64 `json:"mrr"`
	HitRateAtK    float64 `json:"hit_rate_at_k"`
}

type EvalCaseResult struct {
	Query       string   `json:"query"`
	ExpectedIDs []string `json:"expected_ids"`
	FoundIDs    []string `json:"found_ids"`
	Rank        int      `json:"rank"`
	RecallAtK   float64  `json:"recall_at_k"`
	RR          float64  `json:"rr"`
}

type EvalReport struct {
	Summary   EvalSummary      `json:"summary"`
	Cases     []EvalCaseResult `json:"cases,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// ParseEvalSuite accepts either a suite object or a bare array of cases.
func ParseEvalSuite(data []byte) (*EvalSuite, error) {
	var suite EvalSuite
	if err := json.Unmarshal(data, &suite); err != nil || len(suite.Cases) == 0 {
		var cases []EvalCase
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, domain.NewConfigurationError("failed to parse eval suite", err)
		}
		suite = EvalSuite{Cases: cases}
	}
	return &suite, nil
}

// Evaluate ingests the suite's documents, runs every case through Query and
// scores the results with Recall@k, MRR and Hit@k. k comes from the suite,
// then the pipeline, then DefaultTopK.
func (e *Engine) Evaluate(ctx context.Context, suite EvalSuite, cfg PipelineConfig) (*EvalReport, error) {
	start := time.Now()

	if err := validateStruct(suite); err != nil {
		return nil, err
	}

	k := suite.K
	if k <= 0 {
		k = cfg.TopK
	}
	if k <= 0 {
		k = DefaultTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "Engine.Evaluate", telemetry.SpanAttributes{
		Embedder:  cfg.Embedder,
		Store:     cfg.Store,
		Operation: "evaluate",
	})
	defer span.End()

	ingested := 0
	for _, doc := range suite.Documents {
		res, err := e.Ingest(ctx, IngestInput{Text: doc.Text, Provenance: doc.Provenance, Metadata: doc.Metadata}, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest %s: %w", doc.Provenance, err)
		}
		ingested += res.CountIngested
	}

	var (
		sumRecall float64
		sumRR     float64
		hitCount  int
		results   = make([]EvalCaseResult, 0, len(suite.Cases))
	)

	for _, c := range suite.Cases {
		res, err := e.Query(ctx, QueryInput{Text: c.Query, TopK: k}, cfg)
		if err != nil {
			return nil, fmt.Errorf("query %q failed: %w", c.Query, err)
		}

		cr := scoreCase(c, res.Matches, k)
		sumRecall += cr.RecallAtK
		sumRR += cr.RR
		if cr.Rank > 0 {
			hitCount++
		}
		results = append(results, cr)
	}

	total := len(suite.Cases)
	report := &EvalReport{
		Summary: EvalSummary{
			Total:         total,
			K:             k,
			CountIngested: ingested,
			RecallAtK:     sumRecall / float64(total),
			MRR:           sumRR / float64(total),
			HitRateAtK:    float64(hitCount) / float64(total),
		},
		Cases:     results,
		ElapsedMs: time.Since(start).Milliseconds(),
	}

	e.logger.Info("evaluation complete",
		zap.Int("cases", total),
		zap.Int("k", k),
		zap.Float64("recall_at_k", report.Summary.RecallAtK),
		zap.Float64("mrr", report.Summary.MRR),
		zap.Float64("hit_rate_at_k", report.Summary.HitRateAtK),
	)
	return report, nil
}

func scoreCase(c EvalCase, matches []domain.Match, k int) EvalCaseResult {
	expected := make(map[string]struct{}, len(c.ExpectedIDs))
	for _, id := range c.ExpectedIDs {
		expected[id] = struct{}{}
	}

	found := make([]string, 0, len(matches))
	matched := make(map[string]struct{}, len(expected))
	rank := 0
	for i, m := range matches {
		qualified := MatchID(m)
		found = append(found, qualified)
		if i >= k {
			continue
		}
		hit := false
		// A bare and a qualified expected ID can both name this match.
		for _, key := range []string{m.ChunkID, qualified} {
			if _, ok := expected[key]; ok {
				matched[key] = struct{}{}
				hit = true
			}
		}
		if hit && rank == 0 {
			rank = i + 1
		}
	}

	cr := EvalCaseResult{
		Query:       c.Query,
		ExpectedIDs: c.ExpectedIDs,
		FoundIDs:    found,
		Rank:        rank,
		RecallAtK:   float64(len(matched)) / float64(len(expected)),
	}
	if rank > 0 {
		cr.RR = 1.0 / float64(rank)
	}
	return cr
}

// MatchID qualifies a match's chunk ID with its provenance.
func MatchID(m domain.Match) string {
	if m.Provenance == "" {
		return m.ChunkID
	}
	return m.Provenance + "#" + m.ChunkID
}
