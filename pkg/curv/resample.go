package curv

// Resample linearly resamples every column of m to n rows, treating the
// row index as a uniform curve parameter. Columns are independent; the
// first and last rows are preserved exactly.
//
// Returns nil if m is empty or n < 1. A single-row input broadcasts to n
// identical rows.
func Resample(m [][]float64, n int) [][]float64 {
	rows := len(m)
	if rows == 0 || n < 1 {
		return nil
	}
	cols := len(m[0])

	out := make([][]float64, n)
	if rows == 1 {
		for i := range out {
			out[i] = append([]float64(nil), m[0]...)
		}
		return out
	}

	for i := 0; i < n; i++ {
		var pos float64
		if n > 1 {
			pos = float64(i) * float64(rows-1) / float64(n-1)
		}
		lo := int(pos)
		hi := lo + 1
		if hi > rows-1 {
			hi = rows - 1
		}
		frac := pos - float64(lo)

		row := make([]float64, cols)
		for c := 0; c < cols; c++ {
			row[c] = m[lo][c]*(1-frac) + m[hi][c]*frac
		}
		out[i] = row
	}
	return out
}
