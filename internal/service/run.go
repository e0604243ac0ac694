package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/telemetry"
	"go.uber.org/zap"
)

// run tracks one engine call through the stage machine. Each non-terminal
// stage gets its own child span.
type run struct {
	ctx    context.Context
	op     string
	stage  domain.Stage
	span   *telemetry.Span
	logger *zap.Logger
}

func newRun(ctx context.Context, op string, logger *zap.Logger) *run {
	return &run{ctx: ctx, op: op, stage: domain.StageIdle, logger: logger}
}

// advance moves to next and returns the context to run that stage under.
func (r *run) advance(next domain.Stage) context.Context {
	if !r.stage.CanTransition(next) {
		r.logger.Error("invalid stage transition",
			zap.String("op", r.op),
			zap.String("from", string(r.stage)),
			zap.String("to", string(next)),
		)
	}
	r.endStage()

	r.logger.Debug("stage transition",
		zap.String("op", r.op),
		zap.String("from", string(r.stage)),
		zap.String("to", string(next)),
	)
	r.stage = next
	telemetry.AddBreadcrumb(r.ctx, "pipeline", r.op+" "+string(next))
	if next.IsTerminal() {
		return r.ctx
	}

	ctx, span := telemetry.StartSpan(r.ctx, r.op+"."+string(next), telemetry.SpanAttributes{
		Stage:     string(next),
		Operation: r.op,
	})
	r.span = span
	return ctx
}

// fail tags err with the current stage and moves the run to failed.
func (r *run) fail(err error) error {
	tagged := domain.AtStage(err, r.stage)
	if r.span != nil {
		r.span.SetError(tagged)
	}
	r.endStage()

	r.logger.Warn(r.op+" failed",
		zap.String("stage", string(r.stage)),
		zap.String("code", domain.CodeOf(tagged)),
		zap.Error(tagged),
	)
	// Only backend failures are reported.
	switch domain.CodeOf(tagged) {
	case domain.ErrCodeEmbedding, domain.ErrCodeStorage:
		telemetry.CaptureError(r.ctx, tagged)
	}
	r.stage = domain.StageFailed
	return tagged
}

func (r *run) endStage() {
	if r.span != nil {
		r.span.End()
		r.span = nil
	}
}

func (r *run) result(start time.Time, matches []domain.Match, ingested, searched int, provenance string) *domain.EvalResult {
	return &domain.EvalResult{
		Matches:       matches,
		CountIngested: ingested,
		CountSearched: searched,
		ElapsedMs:     time.Since(start).Milliseconds(),
		Provenance:    provenance,
		Stage:         r.stage,
	}
}
