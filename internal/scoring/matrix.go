package scoring

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cohortmatch/internal/cohort"
)

// BuildOptions tunes the scoring fan-out.
type BuildOptions struct {
	// Workers bounds the scoring worker pool. Zero means one worker per CPU.
	Workers int
	// MaxCells caps the number of matrix cells the dense representation may
	// materialize. Zero means DefaultMaxCells. Exceeding the cap aborts the
	// run before allocation instead of exhausting memory mid-build.
	MaxCells int
}

// DefaultMaxCells allows roughly 400 MB of dense breakdowns.
const DefaultMaxCells = 16_000_000

func (o BuildOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}

	return runtime.NumCPU()
}

func (o BuildOptions) maxCells() int {
	if o.MaxCells > 0 {
		return o.MaxCells
	}

	return DefaultMaxCells
}

// Matrix is the dense write-once table of pairwise breakdowns. Each cell is
// written exactly once during the build and never mutated afterwards.
type Matrix struct {
	profiles *cohort.Profiles
	records  *cohort.Records
	cells    []Breakdown
}

func (m *Matrix) Rows() int { return m.profiles.Len() }

func (m *Matrix) Cols() int { return m.records.Len() }

func (m *Matrix) Score(i, j int) Breakdown {
	return m.cells[i*m.records.Len()+j]
}

func (m *Matrix) ProfileID(i int) string { return m.profiles.Items[i].ID }

func (m *Matrix) RecordID(j int) string { return m.records.Items[j].ID }

// BuildMatrix scores every profile/record pair across a bounded worker pool.
// Each worker owns whole rows, so cells are written without shared mutable
// state. Any cell outside [0,1] aborts the build: it signals a scorer defect
// and must not be clamped.
func BuildMatrix(ctx context.Context, scorer *Scorer, profiles *cohort.Profiles, records *cohort.Records, opts BuildOptions) (*Matrix, error) {
	rows, cols := profiles.Len(), records.Len()
	if rows > 0 && cols > opts.maxCells()/rows {
		return nil, fmt.Errorf("matrix of %d x %d cells exceeds the configured limit of %d", rows, cols, opts.maxCells())
	}

	m := &Matrix{
		profiles: profiles,
		records:  records,
		cells:    make([]Breakdown, rows*cols),
	}

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
				m.cells[i*cols+j] = b
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m, nil
}

func checkBreakdown(b Breakdown, profileID, recordID string) error {
	for _, v := range []float64{b.Age, b.Socio, b.Composite} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("score %v for pair %s/%s is outside [0,1]", v, profileID, recordID)
		}
	}

	return nil
}
