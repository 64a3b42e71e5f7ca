package assign

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortmatch/internal/cohort"
	"cohortmatch/internal/scoring"
)

// stubSource is a fixed score table with synthetic identifiers.
type stubSource struct {
	scores [][]float64
}

func (s *stubSource) Rows() int { return len(s.scores) }

func (s *stubSource) Cols() int {
	if len(s.scores) == 0 {
		return 0
	}
	return len(s.scores[0])
}

func (s *stubSource) Score(i, j int) scoring.Breakdown {
	v := s.scores[i][j]
	return scoring.Breakdown{Age: v, Socio: v, Composite: v}
}

func (s *stubSource) ProfileID(i int) string { return fmt.Sprintf("p%02d", i+1) }

func (s *stubSource) RecordID(j int) string { return fmt.Sprintf("r%02d", j+1) }

func matrixSource(t *testing.T, profileAges, recordAges []int, dem cohort.Demographics) *scoring.Matrix {
	t.Helper()

	scorer, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)

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

	m, err := scoring.BuildMatrix(context.Background(), scorer, profiles, records, scoring.BuildOptions{Workers: 2})
	require.NoError(t, err)

	return m
}

func TestSolveCloseAgesPairUp(t *testing.T) {
	dem := cohort.Demographics{Education: "bachelor", Occupation: "technical", Income: "middle", Marital: "single"}
	src := matrixSource(t, []int{28, 32, 40}, []int{30, 33, 41}, dem)

	for _, mode := range []Mode{ModeExact, ModeHeuristic} {
		a, err := Solve(src, Options{Mode: mode})
		require.NoError(t, err, "mode %s", mode)
		require.Len(t, a.Pairs, 3, "mode %s", mode)

		// 28<->30, 32<->33, 40<->41: every gap is at most 2 years.
		for i, pair := range a.Pairs {
			assert.Equal(t, i, pair.Profile, "mode %s", mode)
			assert.Equal(t, i, pair.Record, "mode %s", mode)
			assert.GreaterOrEqual(t, pair.Score.Age, 0.9, "mode %s", mode)
		}

		assert.Empty(t, a.UnmatchedProfiles)
		assert.Empty(t, a.UnmatchedRecords)
		assert.Equal(t, mode, a.Method)
	}
}

func TestSolveImbalancedPools(t *testing.T) {
	src := matrixSource(t, []int{25, 30, 35, 60, 70}, []int{26, 31, 36}, cohort.Demographics{})

	a, err := Solve(src, Options{Mode: ModeExact})
	require.NoError(t, err)

	assert.Len(t, a.Pairs, 3)
	assert.Len(t, a.UnmatchedProfiles, 2)
	assert.Empty(t, a.UnmatchedRecords)

	// Unmatched ids come out sorted.
	assert.Equal(t, []int{3, 4}, a.UnmatchedProfiles)
}

func TestSolveEmptyRecords(t *testing.T) {
	src := matrixSource(t, []int{25, 30}, nil, cohort.Demographics{})

	for _, mode := range []Mode{ModeExact, ModeHeuristic} {
		a, err := Solve(src, Options{Mode: mode})
		require.NoError(t, err)

		assert.Empty(t, a.Pairs)
		assert.Len(t, a.UnmatchedProfiles, 2)
		assert.Empty(t, a.UnmatchedRecords)
		assert.Zero(t, a.Total)
	}
}

func TestSolveExactBeatsRowByRowGreedy(t *testing.T) {
	// Row-by-row greedy takes (p1,r1)=0.9 and is left with (p2,r2)=0.1.
	// The optimal pairing crosses over for 1.6 total.
	src := &stubSource{scores: [][]float64{
		{0.9, 0.8},
		{0.8, 0.1},
	}}

	baseline := rowByRowTotal(src)
	require.InDelta(t, 1.0, baseline, 1e-9)

	exact, err := Solve(src, Options{Mode: ModeExact})
	require.NoError(t, err)
	assert.InDelta(t, 1.6, exact.Total, 1e-9)
	assert.GreaterOrEqual(t, exact.Total, baseline)

	// The heuristic starts with the same trap but the repair pass swaps
	// its way out.
	heuristic, err := Solve(src, Options{Mode: ModeHeuristic, RepairPasses: 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.6, heuristic.Total, 1e-9)
	assert.GreaterOrEqual(t, heuristic.Total, baseline)
}

// rowByRowTotal is the naive baseline: each profile takes its best still-free
// record in input order.
func rowByRowTotal(src Source) float64 {
	taken := make([]bool, src.Cols())
	var total float64

	for i := 0; i < src.Rows(); i++ {
		best, bestScore := -1, 0.0
		for j := 0; j < src.Cols(); j++ {
			if taken[j] {
				continue
			}
			if s := src.Score(i, j).Composite; best < 0 || s > bestScore {
				best, bestScore = j, s
			}
		}
		if best >= 0 {
			taken[best] = true
			total += bestScore
		}
	}

	return total
}

func TestSolveTieBreakPrefersLowerIDs(t *testing.T) {
	src := &stubSource{scores: [][]float64{
		{0.5, 0.5},
		{0.5, 0.5},
	}}

	for _, mode := range []Mode{ModeExact, ModeHeuristic} {
		a, err := Solve(src, Options{Mode: mode})
		require.NoError(t, err, "mode %s", mode)
		require.Len(t, a.Pairs, 2, "mode %s", mode)

		// All scores tie: the lower (profile, record) key wins in both modes.
		assert.Equal(t, 0, a.Pairs[0].Record, "mode %s", mode)
		assert.Equal(t, 1, a.Pairs[1].Record, "mode %s", mode)
	}
}

func TestSolveDeterministic(t *testing.T) {
	src := matrixSource(t, []int{22, 37, 41, 58, 63}, []int{25, 36, 44, 59}, cohort.Demographics{Education: "secondary"})

	for _, mode := range []Mode{ModeExact, ModeHeuristic} {
		first, err := Solve(src, Options{Mode: mode})
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			next, err := Solve(src, Options{Mode: mode})
			require.NoError(t, err)
			assert.Equal(t, first, next, "mode %s run %d", mode, i)
		}
	}
}

func TestSolveUniqueness(t *testing.T) {
	src := matrixSource(t, []int{20, 25, 30, 35, 40, 45}, []int{21, 26, 31, 36}, cohort.Demographics{})

	for _, mode := range []Mode{ModeExact, ModeHeuristic} {
		a, err := Solve(src, Options{Mode: mode})
		require.NoError(t, err)

		seenProfiles := map[int]bool{}
		seenRecords := map[int]bool{}
		for _, pair := range a.Pairs {
			assert.False(t, seenProfiles[pair.Profile], "profile %d matched twice", pair.Profile)
			assert.False(t, seenRecords[pair.Record], "record %d matched twice", pair.Record)
			seenProfiles[pair.Profile] = true
			seenRecords[pair.Record] = true
		}
	}
}

func TestSolveHeuristicMinScorePrunes(t *testing.T) {
	src := &stubSource{scores: [][]float64{
		{0.9, 0.1},
		{0.1, 0.2},
	}}

	a, err := Solve(src, Options{Mode: ModeHeuristic, MinScore: 0.5})
	require.NoError(t, err)

	// Only (p1, r1) clears the threshold; both leftovers are reported.
	require.Len(t, a.Pairs, 1)
	assert.Equal(t, []int{1}, a.UnmatchedProfiles)
	assert.Equal(t, []int{1}, a.UnmatchedRecords)
}

func TestOptionsResolve(t *testing.T) {
	opts := Options{Mode: ModeAuto, ExactLimit: 100}

	assert.Equal(t, ModeExact, opts.Resolve(100, 50))
	assert.Equal(t, ModeHeuristic, opts.Resolve(101, 50))
	assert.Equal(t, ModeHeuristic, opts.Resolve(50, 101))

	forced := Options{Mode: ModeExact, ExactLimit: 10}
	assert.Equal(t, ModeExact, forced.Resolve(1000, 1000))
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeAuto, true},
		{"auto", ModeAuto, true},
		{"exact", ModeExact, true},
		{"heuristic", ModeHeuristic, true},
		{"optimal", "", false},
	} {
		got, err := ParseMode(tc.in)
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Error(t, err)
		}
	}
}
