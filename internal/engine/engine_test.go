package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortmatch/internal/assign"
	"cohortmatch/internal/cohort"
	"cohortmatch/internal/report"
	"cohortmatch/internal/scoring"
)

func testConfig() Config {
	return Config{
		Weights: scoring.DefaultWeights(),
		Solver:  assign.Options{Mode: assign.ModeExact},
	}
}

func testCollections(profileAges, recordAges []int) (*cohort.Profiles, *cohort.Records) {
	dem := cohort.Demographics{Education: "bachelor", Occupation: "technical", Income: "middle", Marital: "single"}

	profiles := &cohort.Profiles{}
	for i, age := range profileAges {
		profiles.Items = append(profiles.Items, &cohort.Profile{
			ID:           fmt.Sprintf("p%02d", i+1),
			Age:          age,
			Demographics: dem,
		})
	}

	records := &cohort.Records{}
	for i, age := range recordAges {
		records.Items = append(records.Items, &cohort.Record{
			ID:  fmt.Sprintf("r%02d", i+1),
			Age: age,
			ClinicalProfile: map[string]any{
				"demographics": map[string]any{
					"education":           dem.Education,
					"occupation_category": dem.Occupation,
					"income_bracket":      dem.Income,
					"marital_status":      dem.Marital,
				},
			},
		})
	}

	return profiles, records
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *report.Repository) {
	t.Helper()

	repo := report.NewRepository(filepath.Join(t.TempDir(), "matches.json"))
	eng, err := New(cfg, repo, nil)
	require.NoError(t, err)

	return eng, repo
}

func TestRunFullBatch(t *testing.T) {
	eng, repo := newTestEngine(t, testConfig())
	profiles, records := testCollections([]int{28, 32, 40}, []int{30, 33, 41})

	artifact, err := eng.Run(context.Background(), profiles, records)
	require.NoError(t, err)
	assert.Equal(t, StageDone, eng.Stage())

	require.Len(t, artifact.Pairs, 3)
	assert.NotEmpty(t, artifact.RunID)
	assert.Equal(t, "exact", artifact.Method)

	for i, pair := range artifact.Pairs {
		assert.Equal(t, fmt.Sprintf("p%02d", i+1), pair.ProfileID)
		assert.Equal(t, fmt.Sprintf("r%02d", i+1), pair.RecordID)
		assert.GreaterOrEqual(t, pair.SubScores.Age, 0.9)
	}

	assert.Equal(t, len(artifact.Pairs), artifact.Diagnostics.TierCounts.Total())

	// The persisted artifact matches the returned one.
	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, artifact.Pairs, loaded.Pairs)
	assert.Equal(t, artifact.Diagnostics, loaded.Diagnostics)
}

func TestRunImbalancedPools(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig())
	profiles, records := testCollections([]int{25, 30, 35, 60, 70}, []int{26, 31, 36})

	artifact, err := eng.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	assert.Len(t, artifact.Pairs, 3)
	assert.Equal(t, []string{"p04", "p05"}, artifact.UnmatchedProfiles)
	assert.Empty(t, artifact.UnmatchedRecords)
}

func TestRunEmptyRecords(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig())
	profiles, records := testCollections([]int{25, 30}, nil)

	artifact, err := eng.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	assert.Empty(t, artifact.Pairs)
	assert.Len(t, artifact.UnmatchedProfiles, 2)
	assert.Zero(t, artifact.Diagnostics.TierCounts.Total())
	assert.Zero(t, artifact.Diagnostics.QualityIndex)
}

func TestRunReproduciblePairs(t *testing.T) {
	profiles, records := testCollections([]int{22, 37, 41, 58}, []int{25, 36, 44, 59})

	eng1, repo1 := newTestEngine(t, testConfig())
	first, err := eng1.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	eng2, repo2 := newTestEngine(t, testConfig())
	second, err := eng2.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	// Identical inputs yield identical pairs and diagnostics; only run id
	// and timestamp differ.
	assert.Equal(t, first.Pairs, second.Pairs)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	assert.Equal(t, first.UnmatchedProfiles, second.UnmatchedProfiles)
	assert.NotEqual(t, first.RunID, second.RunID)

	loaded1, err := repo1.Load()
	require.NoError(t, err)
	loaded2, err := repo2.Load()
	require.NoError(t, err)
	assert.Equal(t, loaded1.Pairs, loaded2.Pairs)
}

func TestRunInitFailureOnDuplicateIDs(t *testing.T) {
	eng, repo := newTestEngine(t, testConfig())

	profiles := &cohort.Profiles{Items: []*cohort.Profile{
		{ID: "p01", Age: 30},
		{ID: "p01", Age: 31},
	}}

	_, err := eng.Run(context.Background(), profiles, &cohort.Records{})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageInit, stageErr.Stage)
	assert.Equal(t, StageFailed, eng.Stage())
	assert.False(t, repo.Exists(), "no artifact may be written on a failed run")
}

func TestRunScoringFailureOnCellLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Scoring.MaxCells = 2

	eng, repo := newTestEngine(t, cfg)
	profiles, records := testCollections([]int{25, 30}, []int{26, 31})

	_, err := eng.Run(context.Background(), profiles, records)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageScoring, stageErr.Stage)
	assert.False(t, repo.Exists())
}

func TestRunPersistFailurePreservesPreviousArtifact(t *testing.T) {
	dir := t.TempDir()
	repo := report.NewRepository(filepath.Join(dir, "matches.json"))

	eng, err := New(testConfig(), repo, nil)
	require.NoError(t, err)

	profiles, records := testCollections([]int{28, 32}, []int{30, 33})
	first, err := eng.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	// Point a fresh engine at an unwritable destination.
	brokenRepo := report.NewRepository(filepath.Join(dir, "missing", "matches.json"))
	broken, err := New(testConfig(), brokenRepo, nil)
	require.NoError(t, err)

	_, err = broken.Run(context.Background(), profiles, records)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePersisting, stageErr.Stage)

	// The earlier artifact is still intact and loadable.
	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, first.Pairs, loaded.Pairs)
}

func TestRunCanceledContext(t *testing.T) {
	eng, repo := newTestEngine(t, testConfig())
	profiles, records := testCollections(make([]int, 30), make([]int, 30))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx, profiles, records)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	assert.False(t, repo.Exists())
}

func TestRunHeuristicWithPruning(t *testing.T) {
	cfg := testConfig()
	cfg.Solver = assign.Options{Mode: assign.ModeHeuristic, MinScore: 0.6, RepairPasses: 2}

	eng, _ := newTestEngine(t, cfg)
	profiles, records := testCollections([]int{25, 30, 90}, []int{26, 31})

	artifact, err := eng.Run(context.Background(), profiles, records)
	require.NoError(t, err)

	assert.Equal(t, "heuristic", artifact.Method)
	assert.Len(t, artifact.Pairs, 2)
	assert.Contains(t, artifact.UnmatchedProfiles, "p03")
}

func TestNewRejectsBadWeights(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = scoring.Weights{Age: 0.9, Socio: 0.4}

	_, err := New(cfg, report.NewRepository(filepath.Join(t.TempDir(), "m.json")), nil)
	require.Error(t, err)
}
