package domain

// Stage is a step of the pipeline state machine.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageStoring   Stage = "storing"
	StageQuerying  Stage = "querying"
	StageScoring   Stage = "scoring"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

var stageTransitions = map[Stage][]Stage{
	StageIdle:      {StageChunking, StageEmbedding},
	StageChunking:  {StageEmbedding, StageDone},
	StageEmbedding: {StageStoring, StageQuerying},
	StageStoring:   {StageDone},
	StageQuerying:  {StageScoring},
	StageScoring:   {StageDone},
}

// CanTransition reports whether the state machine allows moving from s to next.
// Failed is reachable from every non-terminal stage.
func (s Stage) CanTransition(next Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for done and failed.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}
