package engine

import "fmt"

// Stage is one step of the run state machine.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageScoring    Stage = "SCORING"
	StageSolving    Stage = "SOLVING"
	StageReporting  Stage = "REPORTING"
	StagePersisting Stage = "PERSISTING"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// next holds the only forward transition allowed from each stage. Any stage
// may additionally transition to FAILED.
var next = map[Stage]Stage{
	StageInit:       StageScoring,
	StageScoring:    StageSolving,
	StageSolving:    StageReporting,
	StageReporting:  StagePersisting,
	StagePersisting: StageDone,
}

func transitionAllowed(from, to Stage) bool {
	if to == StageFailed {
		return from != StageDone && from != StageFailed
	}

	return next[from] == to
}

// StageError wraps a fatal run failure with the stage it occurred in, so a
// failed run surfaces SCORING/SOLVING/REPORTING/PERSISTING and the condition
// instead of a bare error chain.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
