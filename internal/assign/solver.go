package assign

import (
	"errors"
	"fmt"
	"sort"

	"cohortmatch/internal/scoring"
)

// Source is the view of pairwise scores the solver consumes. Both the dense
// matrix and the pruned sparse representation satisfy it.
type Source interface {
	Rows() int
	Cols() int
	Score(i, j int) scoring.Breakdown
	ProfileID(i int) string
	RecordID(j int) string
}

// candidateSource is implemented by pruned score sources that can enumerate
// their retained cells directly.
type candidateSource interface {
	Candidates() []scoring.Cell
}

// Mode selects the solving strategy.
type Mode string

const (
	// ModeAuto picks exact solving up to ExactLimit entries per side and
	// heuristic solving beyond it.
	ModeAuto Mode = "auto"
	// ModeExact runs the Kuhn-Munkres algorithm for a provably optimal
	// total score.
	ModeExact Mode = "exact"
	// ModeHeuristic runs greedy selection with bounded local repair.
	ModeHeuristic Mode = "heuristic"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeExact, ModeHeuristic:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	}

	return "", fmt.Errorf("unknown solver mode %q: must be auto, exact or heuristic", s)
}

const (
	// DefaultExactLimit is the per-side size above which ModeAuto falls
	// back to the heuristic.
	DefaultExactLimit = 3000
	// DefaultRepairPasses bounds the local-improvement sweeps after the
	// greedy selection.
	DefaultRepairPasses = 2

	improvementEpsilon = 1e-9
)

// Options tunes the solver.
type Options struct {
	Mode       Mode
	ExactLimit int
	// RepairPasses bounds the local-improvement sweeps after the greedy
	// selection. Zero means DefaultRepairPasses; negative disables repair.
	RepairPasses int
	// MinScore drops candidate cells below the threshold in heuristic
	// mode. Entries left without any candidate are reported unmatched.
	MinScore float64
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeAuto
	}
	if o.ExactLimit <= 0 {
		o.ExactLimit = DefaultExactLimit
	}
	if o.RepairPasses == 0 {
		o.RepairPasses = DefaultRepairPasses
	} else if o.RepairPasses < 0 {
		o.RepairPasses = 0
	}

	return o
}

// Resolve returns the concrete mode used for the given dimensions. The choice
// is explicit: callers report it instead of silently downgrading accuracy.
func (o Options) Resolve(rows, cols int) Mode {
	o = o.withDefaults()
	if o.Mode != ModeAuto {
		return o.Mode
	}

	if rows > o.ExactLimit || cols > o.ExactLimit {
		return ModeHeuristic
	}

	return ModeExact
}

// Pair is one committed profile/record match, by source index.
type Pair struct {
	Profile int
	Record  int
	Score   scoring.Breakdown
}

// Assignment is the one-to-one pairing produced by Solve. Pairs are sorted by
// profile identifier; unmatched indices are sorted by their identifiers too.
type Assignment struct {
	Pairs             []Pair
	UnmatchedProfiles []int
	UnmatchedRecords  []int
	Method            Mode
	Total             float64
}

// ErrUniqueness signals a solver defect: a produced assignment reused a
// profile or record. It is never repaired by deduplication.
var ErrUniqueness = errors.New("assignment violates one-to-one uniqueness")

// Solve produces the pairing maximizing total composite score, subject to
// each profile and each record appearing in at most one pair.
func Solve(src Source, opts Options) (*Assignment, error) {
	opts = opts.withDefaults()
	mode := opts.Resolve(src.Rows(), src.Cols())

	var match []int
	switch mode {
	case ModeExact:
		match = solveExact(src)
	case ModeHeuristic:
		match = solveGreedy(src, opts.MinScore, opts.RepairPasses)
	default:
		return nil, fmt.Errorf("unresolved solver mode %q", mode)
	}

	return buildAssignment(src, match, mode)
}

// buildAssignment converts the row-to-column match into the final pairing,
// verifying uniqueness and collecting unmatched entries on both sides.
func buildAssignment(src Source, match []int, mode Mode) (*Assignment, error) {
	a := &Assignment{Method: mode}

	colUsed := make(map[int]int, len(match))
	for i, j := range match {
		if j < 0 {
			a.UnmatchedProfiles = append(a.UnmatchedProfiles, i)
			continue
		}
		if prev, ok := colUsed[j]; ok {
			return nil, fmt.Errorf("%w: record %s claimed by profiles %s and %s",
				ErrUniqueness, src.RecordID(j), src.ProfileID(prev), src.ProfileID(i))
		}
		colUsed[j] = i

		score := src.Score(i, j)
		a.Pairs = append(a.Pairs, Pair{Profile: i, Record: j, Score: score})
		a.Total += score.Composite
	}

	for j := 0; j < src.Cols(); j++ {
		if _, ok := colUsed[j]; !ok {
			a.UnmatchedRecords = append(a.UnmatchedRecords, j)
		}
	}

	sort.Slice(a.Pairs, func(x, y int) bool {
		return src.ProfileID(a.Pairs[x].Profile) < src.ProfileID(a.Pairs[y].Profile)
	})
	sort.Slice(a.UnmatchedProfiles, func(x, y int) bool {
		return src.ProfileID(a.UnmatchedProfiles[x]) < src.ProfileID(a.UnmatchedProfiles[y])
	})
	sort.Slice(a.UnmatchedRecords, func(x, y int) bool {
		return src.RecordID(a.UnmatchedRecords[x]) < src.RecordID(a.UnmatchedRecords[y])
	})

	return a, nil
}

// idOrder returns source indices sorted by identifier. Solvers iterate in
// this order so ties break on the lower (profile, record) key across modes.
func idOrder(n int, id func(int) string) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool {
		return id(order[x]) < id(order[y])
	})

	return order
}
