package scoring

import (
	"fmt"
	"math"
	"strings"

	"cohortmatch/internal/cohort"
)

const (
	// neutralScore substitutes a sub-score when one side of a pair carries
	// no usable data for that dimension. The pair stays eligible for
	// matching instead of being excluded.
	neutralScore = 0.5

	// adjacentScore is assigned when two ordered categories sit next to
	// each other (e.g. bachelor vs master).
	adjacentScore = 0.5

	weightEpsilon = 1e-9
)

// Weights controls the contribution of each scoring dimension to the
// composite. They must be positive and sum to 1.
type Weights struct {
	Age   float64
	Socio float64
}

// DefaultWeights favors demographic age proximity over socio-economic
// similarity.
func DefaultWeights() Weights {
	return Weights{Age: 0.6, Socio: 0.4}
}

func (w Weights) Validate() error {
	if w.Age <= 0 || w.Socio <= 0 {
		return fmt.Errorf("weights must be positive, got age=%v socio=%v", w.Age, w.Socio)
	}
	if math.Abs(w.Age+w.Socio-1) > weightEpsilon {
		return fmt.Errorf("weights must sum to 1, got age=%v socio=%v", w.Age, w.Socio)
	}

	return nil
}

// Breakdown is the result of scoring one profile/record pair. All values are
// in [0,1].
type Breakdown struct {
	Age       float64
	Socio     float64
	Composite float64
}

// Scorer computes compatibility scores. Scoring is a pure function of the two
// inputs: identical inputs always produce an identical breakdown.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &Scorer{weights: weights}, nil
}

// Score computes the weighted composite score for one pair.
func (s *Scorer) Score(p *cohort.Profile, r *cohort.Record) Breakdown {
	age := ageScore(p.Age, r.Age)
	socio := socioScore(p.Demographics, r.Demographics())

	return Breakdown{
		Age:       age,
		Socio:     socio,
		Composite: s.weights.Age*age + s.weights.Socio*socio,
	}
}

// ageScore rewards closeness in tiers while tolerating noise. Beyond a five
// year gap it decreases continuously so large gaps still differentiate from
// each other instead of collapsing to a flat floor.
func ageScore(a, b int) float64 {
	if !cohort.PlausibleAge(a) || !cohort.PlausibleAge(b) {
		return neutralScore
	}

	gap := a - b
	if gap < 0 {
		gap = -gap
	}

	switch {
	case gap == 0:
		return 1.0
	case gap <= 2:
		return 0.9
	case gap <= 5:
		return 0.7
	default:
		return math.Max(0, 1-float64(gap)/20)
	}
}

// Ordered category ranks used for adjacency lookups. Occupation and marital
// status carry no natural order, so they score exact-or-nothing.
var (
	educationRank = map[string]int{
		"none":      0,
		"primary":   1,
		"secondary": 2,
		"associate": 3,
		"bachelor":  4,
		"master":    5,
		"doctorate": 6,
	}

	incomeRank = map[string]int{
		"low":          0,
		"lower_middle": 1,
		"middle":       2,
		"upper_middle": 3,
		"high":         4,
	}
)

// socioScore averages per-dimension similarity over the dimensions present on
// both sides. A dimension missing on either side is excluded from the average
// rather than penalized, so sparse records are not unfairly disadvantaged.
// When no dimension is shared the score is neutral.
func socioScore(p, r cohort.Demographics) float64 {
	var sum float64
	var present int

	for _, dim := range []struct {
		a, b string
		rank map[string]int
	}{
		{p.Education, r.Education, educationRank},
		{p.Occupation, r.Occupation, nil},
		{p.Income, r.Income, incomeRank},
		{p.Marital, r.Marital, nil},
	} {
		value, ok := categoryScore(dim.a, dim.b, dim.rank)
		if !ok {
			continue
		}
		sum += value
		present++
	}

	if present == 0 {
		return neutralScore
	}

	return sum / float64(present)
}

// categoryScore compares one categorical dimension. The second return value
// is false when the dimension is missing on either side.
func categoryScore(a, b string, rank map[string]int) (float64, bool) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0, false
	}

	if a == b {
		return 1.0, true
	}

	if rank != nil {
		ra, okA := rank[a]
		rb, okB := rank[b]
		if okA && okB {
			gap := ra - rb
			if gap < 0 {
				gap = -gap
			}
			if gap == 1 {
				return adjacentScore, true
			}
		}
	}

	return 0, true
}
