package assign

import "math"

// solveExact runs the Kuhn-Munkres algorithm over the score source,
// minimizing cost = 1 - composite so the maximum-score pairing falls out.
// Rows and columns are visited in identifier order, which makes the chosen
// optimum deterministic and biased toward lower identifiers on ties. The
// smaller side is always fully matched.
func solveExact(src Source) []int {
	rows, cols := src.Rows(), src.Cols()
	match := make([]int, rows)
	for i := range match {
		match[i] = -1
	}
	if rows == 0 || cols == 0 {
		return match
	}

	rowOrder := idOrder(rows, src.ProfileID)
	colOrder := idOrder(cols, src.RecordID)

	if rows <= cols {
		assigned := kuhnMunkres(rows, cols, func(a, b int) float64 {
			return 1 - src.Score(rowOrder[a], colOrder[b]).Composite
		})
		for a, b := range assigned {
			match[rowOrder[a]] = colOrder[b]
		}
		return match
	}

	// More profiles than records: solve with records as the scanned side.
	assigned := kuhnMunkres(cols, rows, func(a, b int) float64 {
		return 1 - src.Score(rowOrder[b], colOrder[a]).Composite
	})
	for a, b := range assigned {
		match[rowOrder[b]] = colOrder[a]
	}

	return match
}

// kuhnMunkres solves the rectangular assignment problem for n <= m using the
// O(n^2 * m) potentials formulation. cost(i, j) must be finite. The returned
// slice maps each of the n scanned rows to its assigned column.
func kuhnMunkres(n, m int, cost func(i, j int) float64) []int {
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	// p[j] is the 1-based row currently assigned to column j; 0 means free.
	p := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		// Grow an alternating tree from row i until a free column is found.
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0

			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the found path.
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assigned := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			assigned[p[j]-1] = j - 1
		}
	}

	return assigned
}
