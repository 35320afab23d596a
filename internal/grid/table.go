package grid

// Table is a read-only 2-D grid of precomputed values indexed by the positions
// of two dimensions. It is built once before dispatch and shared by all
// workers.
type Table struct {
	rows, cols int
	data       []float64
}

// Precompute evaluates fn for every (row, col) pair: At(i, j) == fn(rows[i], cols[j]).
func Precompute(rows, cols []float64, fn func(row, col float64) float64) Table {
	t := Table{rows: len(rows), cols: len(cols), data: make([]float64, len(rows)*len(cols))}
	for i, r := range rows {
		for j, c := range cols {
			t.data[i*t.cols+j] = fn(r, c)
		}
	}
	return t
}

// At returns the value for row index i and column index j.
func (t Table) At(i, j int) float64 {
	return t.data[i*t.cols+j]
}

// Shape returns the number of rows and columns.
func (t Table) Shape() (rows, cols int) {
	return t.rows, t.cols
}
