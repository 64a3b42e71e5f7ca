// Package quality derives aggregate diagnostics from a finished pairing.
package quality

import "sort"

// Tier buckets a pair's composite score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// Fixed tier thresholds.
const (
	thresholdExcellent = 0.85
	thresholdGood      = 0.75
	thresholdFair      = 0.65
)

// TierFor classifies a composite score.
func TierFor(score float64) Tier {
	switch {
	case score >= thresholdExcellent:
		return TierExcellent
	case score >= thresholdGood:
		return TierGood
	case score >= thresholdFair:
		return TierFair
	default:
		return TierPoor
	}
}

// TierCounts is the histogram of pair tiers. The counts always sum to the
// number of analyzed pairs.
type TierCounts struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

func (c TierCounts) Total() int {
	return c.Excellent + c.Good + c.Fair + c.Poor
}

// Sample is the per-pair input to the analyzer.
type Sample struct {
	Score  float64
	AgeGap int
}

// Diagnostics aggregates run-level quality statistics. A run with zero pairs
// reports all-zero diagnostics rather than failing.
type Diagnostics struct {
	Pairs        int        `json:"pairs"`
	MeanGap      float64    `json:"mean_gap"`
	MedianGap    float64    `json:"median_gap"`
	Within2      float64    `json:"within_2y"`
	Within5      float64    `json:"within_5y"`
	TierCounts   TierCounts `json:"tier_counts"`
	QualityIndex float64    `json:"quality_index"`
}

// Analyze computes diagnostics over the final pairing.
func Analyze(samples []Sample) Diagnostics {
	d := Diagnostics{Pairs: len(samples)}
	if len(samples) == 0 {
		return d
	}

	gaps := make([]int, 0, len(samples))
	var gapSum, scoreSum float64
	var within2, within5 int

	for _, s := range samples {
		gap := s.AgeGap
		if gap < 0 {
			gap = -gap
		}
		gaps = append(gaps, gap)
		gapSum += float64(gap)
		scoreSum += s.Score

		if gap <= 2 {
			within2++
		}
		if gap <= 5 {
			within5++
		}

		switch TierFor(s.Score) {
		case TierExcellent:
			d.TierCounts.Excellent++
		case TierGood:
			d.TierCounts.Good++
		case TierFair:
			d.TierCounts.Fair++
		case TierPoor:
			d.TierCounts.Poor++
		}
	}

	n := float64(len(samples))
	d.MeanGap = gapSum / n
	d.MedianGap = median(gaps)
	d.Within2 = float64(within2) / n
	d.Within5 = float64(within5) / n
	d.QualityIndex = scoreSum / n

	return d
}

func median(values []int) float64 {
	sort.Ints(values)

	mid := len(values) / 2
	if len(values)%2 == 1 {
		return float64(values[mid])
	}

	return float64(values[mid-1]+values[mid]) / 2
}
