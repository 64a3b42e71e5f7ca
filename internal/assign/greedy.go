package assign

import (
	"sort"

	"cohortmatch/internal/scoring"
)

// solveGreedy commits the highest-scoring unassigned pairs first, then runs a
// bounded number of local-improvement passes swapping record assignments
// between pair couples whenever the swap strictly increases the total score.
func solveGreedy(src Source, minScore float64, passes int) []int {
	cells := gatherCandidates(src, minScore)

	sort.Slice(cells, func(x, y int) bool {
		if cells[x].Score.Composite != cells[y].Score.Composite {
			return cells[x].Score.Composite > cells[y].Score.Composite
		}
		px, py := src.ProfileID(cells[x].Row), src.ProfileID(cells[y].Row)
		if px != py {
			return px < py
		}
		return src.RecordID(cells[x].Col) < src.RecordID(cells[y].Col)
	})

	match := make([]int, src.Rows())
	for i := range match {
		match[i] = -1
	}

	colTaken := make([]bool, src.Cols())
	for _, c := range cells {
		if match[c.Row] >= 0 || colTaken[c.Col] {
			continue
		}
		match[c.Row] = c.Col
		colTaken[c.Col] = true
	}

	repair(src, match, passes)

	return match
}

// gatherCandidates enumerates candidate cells at or above the threshold. A
// pruned source hands over its retained cells directly; a dense source is
// scanned in full.
func gatherCandidates(src Source, minScore float64) []scoring.Cell {
	if cs, ok := src.(candidateSource); ok {
		retained := cs.Candidates()
		cells := make([]scoring.Cell, 0, len(retained))
		for _, c := range retained {
			if c.Score.Composite < minScore {
				continue
			}
			cells = append(cells, c)
		}
		return cells
	}

	var cells []scoring.Cell
	for i := 0; i < src.Rows(); i++ {
		for j := 0; j < src.Cols(); j++ {
			b := src.Score(i, j)
			if b.Composite < minScore {
				continue
			}
			cells = append(cells, scoring.Cell{Row: i, Col: j, Score: b})
		}
	}

	return cells
}

// repair sweeps committed pairs in identifier order and swaps record
// assignments between couples when the swap strictly increases total score.
// Swaps serialize on the shared match state; the sweep stops early once a
// full pass improved nothing.
func repair(src Source, match []int, passes int) {
	committed := make([]int, 0, len(match))
	for _, i := range idOrder(len(match), src.ProfileID) {
		if match[i] >= 0 {
			committed = append(committed, i)
		}
	}

	for pass := 0; pass < passes; pass++ {
		improved := false

		for x := 0; x < len(committed); x++ {
			for y := x + 1; y < len(committed); y++ {
				ix, iy := committed[x], committed[y]
				jx, jy := match[ix], match[iy]

				current := src.Score(ix, jx).Composite + src.Score(iy, jy).Composite
				swapped := src.Score(ix, jy).Composite + src.Score(iy, jx).Composite
				if swapped > current+improvementEpsilon {
					match[ix], match[iy] = jy, jx
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}
}
