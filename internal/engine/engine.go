// Package engine runs one matching batch: INIT -> SCORING -> SOLVING ->
// REPORTING -> PERSISTING -> DONE. Any stage failure aborts the run before
// persistence, leaving the previous artifact untouched.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cohortmatch/internal/assign"
	"cohortmatch/internal/cohort"
	"cohortmatch/internal/quality"
	"cohortmatch/internal/report"
	"cohortmatch/internal/scoring"
)

// Config tunes one matching run.
type Config struct {
	Weights scoring.Weights
	Solver  assign.Options
	Scoring scoring.BuildOptions
}

// Engine executes matching runs. One run is a single blocking batch
// operation; the caller may bound it with a context deadline.
type Engine struct {
	cfg    Config
	scorer *scoring.Scorer
	repo   *report.Repository
	logger *zap.Logger
	stage  Stage
}

func New(cfg Config, repo *report.Repository, logger *zap.Logger) (*Engine, error) {
	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("configuring scorer: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:    cfg,
		scorer: scorer,
		repo:   repo,
		logger: logger,
		stage:  StageInit,
	}, nil
}

// Stage returns the stage the engine is in or finished at.
func (e *Engine) Stage() Stage {
	return e.stage
}

// Run executes one full matching batch and returns the persisted artifact.
func (e *Engine) Run(ctx context.Context, profiles *cohort.Profiles, records *cohort.Records) (*report.Artifact, error) {
	e.stage = StageInit

	if err := profiles.Validate(); err != nil {
		return nil, e.fail(StageInit, fmt.Errorf("validating profiles: %w", err))
	}
	if err := records.Validate(); err != nil {
		return nil, e.fail(StageInit, fmt.Errorf("validating records: %w", err))
	}

	e.logger.Info("collections loaded",
		zap.Int("profiles", profiles.Len()),
		zap.Int("records", records.Len()),
	)

	// The mode is resolved before scoring so large heuristic runs can use
	// the pruned representation instead of the dense matrix.
	mode := e.cfg.Solver.Resolve(profiles.Len(), records.Len())

	if err := e.advance(StageScoring); err != nil {
		return nil, err
	}
	src, err := e.buildSource(ctx, mode, profiles, records)
	if err != nil {
		return nil, e.fail(StageScoring, err)
	}

	if err := e.advance(StageSolving); err != nil {
		return nil, err
	}
	assignment, err := assign.Solve(src, e.cfg.Solver)
	if err != nil {
		return nil, e.fail(StageSolving, err)
	}

	e.logger.Info("solving complete",
		zap.String("method", string(assignment.Method)),
		zap.Int("pairs", len(assignment.Pairs)),
		zap.Int("unmatched_profiles", len(assignment.UnmatchedProfiles)),
		zap.Int("unmatched_records", len(assignment.UnmatchedRecords)),
	)

	if err := e.advance(StageReporting); err != nil {
		return nil, err
	}
	artifact := e.buildArtifact(src, assignment, profiles, records)

	e.logger.Info("diagnostics computed",
		zap.Float64("quality_index", artifact.Diagnostics.QualityIndex),
		zap.Float64("mean_gap", artifact.Diagnostics.MeanGap),
		zap.Int("excellent", artifact.Diagnostics.TierCounts.Excellent),
		zap.Int("good", artifact.Diagnostics.TierCounts.Good),
		zap.Int("fair", artifact.Diagnostics.TierCounts.Fair),
		zap.Int("poor", artifact.Diagnostics.TierCounts.Poor),
	)

	if err := e.advance(StagePersisting); err != nil {
		return nil, err
	}
	if err := e.repo.Save(artifact); err != nil {
		return nil, e.fail(StagePersisting, err)
	}

	if err := e.advance(StageDone); err != nil {
		return nil, err
	}

	e.logger.Info("artifact persisted",
		zap.String("path", e.repo.Path()),
		zap.String("run_id", artifact.RunID),
	)

	return artifact, nil
}

// buildSource scores all pairs into the representation matching the solving
// mode: the pruned sparse view for thresholded heuristic runs, the dense
// matrix otherwise.
func (e *Engine) buildSource(ctx context.Context, mode assign.Mode, profiles *cohort.Profiles, records *cohort.Records) (assign.Source, error) {
	if mode == assign.ModeHeuristic && e.cfg.Solver.MinScore > 0 {
		return scoring.BuildSparse(ctx, e.scorer, profiles, records, e.cfg.Solver.MinScore, e.cfg.Scoring)
	}

	return scoring.BuildMatrix(ctx, e.scorer, profiles, records, e.cfg.Scoring)
}

// buildArtifact enriches the raw assignment with identifiers, quality tiers
// and run diagnostics.
func (e *Engine) buildArtifact(src assign.Source, a *assign.Assignment, profiles *cohort.Profiles, records *cohort.Records) *report.Artifact {
	pairs := make([]report.MatchedPair, 0, len(a.Pairs))
	samples := make([]quality.Sample, 0, len(a.Pairs))

	for _, pair := range a.Pairs {
		pairs = append(pairs, report.MatchedPair{
			ProfileID:   src.ProfileID(pair.Profile),
			RecordID:    src.RecordID(pair.Record),
			Score:       pair.Score.Composite,
			SubScores:   report.SubScores{Age: pair.Score.Age, Socio: pair.Score.Socio},
			QualityTier: quality.TierFor(pair.Score.Composite),
		})
		samples = append(samples, quality.Sample{
			Score:  pair.Score.Composite,
			AgeGap: profiles.Items[pair.Profile].Age - records.Items[pair.Record].Age,
		})
	}

	unmatchedProfiles := make([]string, 0, len(a.UnmatchedProfiles))
	for _, i := range a.UnmatchedProfiles {
		unmatchedProfiles = append(unmatchedProfiles, src.ProfileID(i))
	}
	unmatchedRecords := make([]string, 0, len(a.UnmatchedRecords))
	for _, j := range a.UnmatchedRecords {
		unmatchedRecords = append(unmatchedRecords, src.RecordID(j))
	}

	return &report.Artifact{
		RunID:             uuid.NewString(),
		RunTimestamp:      time.Now().UTC(),
		Method:            string(a.Method),
		Pairs:             pairs,
		UnmatchedProfiles: unmatchedProfiles,
		UnmatchedRecords:  unmatchedRecords,
		Diagnostics:       quality.Analyze(samples),
	}
}

func (e *Engine) advance(to Stage) error {
	if !transitionAllowed(e.stage, to) {
		return e.fail(e.stage, fmt.Errorf("invalid stage transition %s -> %s", e.stage, to))
	}
	e.stage = to

	return nil
}

func (e *Engine) fail(stage Stage, err error) error {
	e.stage = StageFailed
	e.logger.Error("run failed",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)

	return &StageError{Stage: stage, Err: err}
}
