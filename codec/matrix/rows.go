/*
NAME
  rows.go

DESCRIPTION
  rows.go provides row-wise chunking and reassembly of matrices, and the
  shift used to make a matrix non-negative before factorisation.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SplitRows splits m into consecutive chunks of at most n rows. The last
// chunk holds the remainder. Chunks are copies and do not share storage
// with m.
func SplitRows(m mat.Matrix, n int) ([]*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", n)
	}
	r, c := m.Dims()
	chunks := make([]*mat.Dense, 0, (r+n-1)/n)
	for i := 0; i < r; i += n {
		end := min(i+n, r)
		chunk := mat.NewDense(end-i, c, nil)
		for j := i; j < end; j++ {
			for k := 0; k < c; k++ {
				chunk.Set(j-i, k, m.At(j, k))
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// StackRows concatenates ms vertically in order. All matrices must have the
// same number of columns.
func StackRows(ms ...mat.Matrix) (*mat.Dense, error) {
	if len(ms) == 0 {
		return nil, ErrEmpty
	}
	_, cols := ms[0].Dims()
	var rows int
	for i, m := range ms {
		r, c := m.Dims()
		if c != cols {
			return nil, fmt.Errorf("%w: chunk %d has %d columns, want %d", ErrDimensionMismatch, i, c, cols)
		}
		rows += r
	}

	out := mat.NewDense(rows, cols, nil)
	var off int
	for _, m := range ms {
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < cols; j++ {
				out.Set(off+i, j, m.At(i, j))
			}
		}
		off += r
	}
	return out, nil
}

// Shift returns a copy of m with -min(m) added to every element, so the
// minimum of the result is exactly zero, along with the shift applied.
// The shift is negative when every element of m is positive.
func Shift(m mat.Matrix) (*mat.Dense, float64) {
	shift := -mat.Min(m)
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 { return v + shift }, out)
	return out, shift
}

// Unshift subtracts shift from every element of m in place.
func Unshift(m *mat.Dense, shift float64) {
	m.Apply(func(_, _ int, v float64) float64 { return v - shift }, m)
}

// Reshape lays out s row by row into a rows x cols matrix. len(s) must equal
// rows*cols.
func Reshape(s []float64, rows, cols int) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmpty
	}
	if len(s) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrDimensionMismatch, len(s), rows, cols)
	}
	data := make([]float64, len(s))
	copy(data, s)
	return mat.NewDense(rows, cols, data), nil
}

// Flatten returns the elements of m in row-major order.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	s := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s = append(s, m.At(i, j))
		}
	}
	return s
}
