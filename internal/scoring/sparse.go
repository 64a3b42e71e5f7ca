package scoring

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cohortmatch/internal/cohort"
)

// Cell identifies one retained matrix cell.
type Cell struct {
	Row   int
	Col   int
	Score Breakdown
}

// Sparse is the blocked representation for large inputs: rows are scored in
// chunks and only cells at or above a score threshold are retained, keeping
// peak memory bounded instead of materializing the full dense matrix.
// Discarded cells can still be rescored on demand because scoring is pure.
type Sparse struct {
	profiles *cohort.Profiles
	records  *cohort.Records
	scorer   *Scorer
	cells    []Cell
}

func (s *Sparse) Rows() int { return s.profiles.Len() }

func (s *Sparse) Cols() int { return s.records.Len() }

// Score recomputes the breakdown for an arbitrary cell. Retained cells are
// not indexed for lookup; recomputing is cheaper than holding an N x M index.
func (s *Sparse) Score(i, j int) Breakdown {
	return s.scorer.Score(s.profiles.Items[i], s.records.Items[j])
}

func (s *Sparse) ProfileID(i int) string { return s.profiles.Items[i].ID }

func (s *Sparse) RecordID(j int) string { return s.records.Items[j].ID }

// Candidates returns the retained cells in row-major order.
func (s *Sparse) Candidates() []Cell {
	return s.cells
}

// BuildSparse scores all pairs across a bounded worker pool and keeps only
// cells with a composite score of at least minScore. Workers own whole rows;
// the per-row slices are flattened in row order so the result is
// deterministic regardless of completion order.
func BuildSparse(ctx context.Context, scorer *Scorer, profiles *cohort.Profiles, records *cohort.Records, minScore float64, opts BuildOptions) (*Sparse, error) {
	rows := profiles.Len()
	byRow := make([][]Cell, rows)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i := range profiles.Items {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			profile := profiles.Items[i]
			for j, record := range records.Items {
				b := scorer.Score(profile, record)
				if err := checkBreakdown(b, profile.ID, record.ID); err != nil {
					return err
				}
				if b.Composite < minScore {
					continue
				}
				byRow[i] = append(byRow[i], Cell{Row: i, Col: j, Score: b})
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Sparse{
		profiles: profiles,
		records:  records,
		scorer:   scorer,
	}
	for _, row := range byRow {
		s.cells = append(s.cells, row...)
	}

	return s, nil
}
