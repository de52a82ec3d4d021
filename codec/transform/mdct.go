/*
NAME
  mdct.go

DESCRIPTION
  mdct.go provides the modified discrete cosine transform of whole signals
  using 50% overlapping blocks, and its inverse by overlap-add.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package transform provides the time-frequency transforms used by the NMF
// codec: an MDCT producing a real coefficient matrix and an STFT producing
// complex spectra that are split into magnitude and phase matrices.
//
// Both transforms return matrices with one row per block or frame and one
// column per coefficient or frequency bin.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrBlockSize = errors.New("block size must be even and positive")
	ErrShape     = errors.New("coefficient matrix has an invalid shape")
	ErrPadding   = errors.New("padding exceeds signal length")
)

// MDCT transforms signals block by block. Each block of 2N samples, hopping
// N samples at a time, yields N coefficients. No window is applied; time
// domain aliasing cancels between neighbouring blocks on overlap-add.
type MDCT struct {
	// BlockSize is N, the number of coefficients per block. It must be even.
	BlockSize int

	// Slow selects the O(N^2) transform computed from the MDCT definition.
	Slow bool
}

// Forward returns the MDCT coefficient matrix of s and the number of zeros
// appended to s to make its length a multiple of BlockSize.
//
// The padded signal is bordered by one block of zeros on each side so the
// first and last blocks are fully overlapped. For a padded length of B*N
// the result has B+1 rows.
func (t MDCT) Forward(s []float64) (*mat.Dense, int, error) {
	n := t.BlockSize
	if n <= 0 || n%2 != 0 {
		return nil, 0, ErrBlockSize
	}

	padded, padding := Pad(s, n)
	bordered := make([]float64, len(padded)+2*n)
	copy(bordered[n:], padded)

	rows := len(bordered)/n - 1
	out := mat.NewDense(rows, n, nil)
	fast := newDCT4(n)
	fold := make([]float64, n)
	coef := make([]float64, n)
	for i := 0; i < rows; i++ {
		block := bordered[i*n : i*n+2*n]
		if t.Slow {
			out.SetRow(i, MDCTBlockSlow(block))
			continue
		}
		foldBlock(fold, block)
		fast.transform(coef, fold)
		out.SetRow(i, coef)
	}
	return out, padding, nil
}

// Inverse reverses Forward, overlap-adding the inverse transform of each row
// and trimming the border blocks and the given padding.
func (t MDCT) Inverse(m mat.Matrix, padding int) ([]float64, error) {
	rows, n := m.Dims()
	if n <= 0 || n%2 != 0 {
		return nil, ErrBlockSize
	}
	if rows < 1 {
		return nil, fmt.Errorf("%w: %d rows", ErrShape, rows)
	}
	if t.BlockSize != 0 && t.BlockSize != n {
		return nil, fmt.Errorf("%w: %d columns for block size %d", ErrShape, n, t.BlockSize)
	}

	out := make([]float64, (rows+1)*n)
	fast := newDCT4(n)
	row := make([]float64, n)
	u := make([]float64, n)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, m)
		var block []float64
		if t.Slow {
			block = IMDCTBlockSlow(row)
		} else {
			fast.transform(u, row)
			block = unfoldBlock(u)
		}
		for j, v := range block {
			out[i*n+j] += v
		}
	}

	signal := out[n : len(out)-n]
	if padding < 0 || padding > len(signal) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPadding, padding, len(signal))
	}
	return signal[:len(signal)-padding], nil
}

// MDCTBlock returns the N MDCT coefficients of a block of 2N samples,
// computed through a DCT-IV of the folded block.
func MDCTBlock(block []float64) ([]float64, error) {
	if len(block) == 0 || len(block)%4 != 0 {
		return nil, ErrBlockSize
	}
	n := len(block) / 2
	fold := make([]float64, n)
	foldBlock(fold, block)
	out := make([]float64, n)
	newDCT4(n).transform(out, fold)
	return out, nil
}

// IMDCTBlock returns the 2N time domain samples for N MDCT coefficients,
// scaled by 1/N so that overlap-adding neighbouring blocks restores the
// signal.
func IMDCTBlock(coef []float64) ([]float64, error) {
	if len(coef) == 0 || len(coef)%2 != 0 {
		return nil, ErrBlockSize
	}
	u := make([]float64, len(coef))
	newDCT4(len(coef)).transform(u, coef)
	return unfoldBlock(u), nil
}

// MDCTBlockSlow computes the MDCT of a 2N sample block directly from
//
//	X[k] = sum_{n=0}^{2N-1} x[n] cos(pi/N (n + 1/2 + N/2)(k + 1/2)).
func MDCTBlockSlow(block []float64) []float64 {
	n := len(block) / 2
	out := make([]float64, n)
	for k := range out {
		var sum float64
		for i, v := range block {
			sum += v * math.Cos(math.Pi/float64(n)*(float64(i)+0.5+float64(n)/2)*(float64(k)+0.5))
		}
		out[k] = sum
	}
	return out
}

// IMDCTBlockSlow computes the inverse MDCT of N coefficients directly from
//
//	y[n] = 1/N sum_{k=0}^{N-1} X[k] cos(pi/N (n + 1/2 + N/2)(k + 1/2)).
func IMDCTBlockSlow(coef []float64) []float64 {
	n := len(coef)
	out := make([]float64, 2*n)
	for i := range out {
		var sum float64
		for k, v := range coef {
			sum += v * math.Cos(math.Pi/float64(n)*(float64(i)+0.5+float64(n)/2)*(float64(k)+0.5))
		}
		out[i] = sum / float64(n)
	}
	return out
}

// foldBlock maps a block (a, b, c, d) of 2N samples, each quarter N/2 long,
// to the DCT-IV input (-c_r - d, a - b_r) where _r denotes reversal.
func foldBlock(dst, block []float64) {
	n := len(dst)
	h := n / 2
	for i := 0; i < h; i++ {
		dst[i] = -block[3*h-1-i] - block[3*h+i]
		dst[h+i] = block[i] - block[n-1-i]
	}
}

// unfoldBlock maps the DCT-IV u of a coefficient row back to the 2N
// samples of the inverse MDCT, using the odd extension of the DCT-IV kernel
// about N and its anti-periodicity over 2N.
func unfoldBlock(u []float64) []float64 {
	n := len(u)
	h := n / 2
	scale := 1 / float64(n)
	out := make([]float64, 2*n)
	for i := 0; i < h; i++ {
		out[i] = u[h+i] * scale
	}
	for i := h; i < 3*h; i++ {
		out[i] = -u[3*h-1-i] * scale
	}
	for i := 3 * h; i < 2*n; i++ {
		out[i] = -u[i-3*h] * scale
	}
	return out
}
