/*
NAME
  stft.go

DESCRIPTION
  stft.go provides a Hann windowed short-time Fourier transform with 50%
  overlap, its weighted overlap-add inverse, and conversion between complex
  spectra and magnitude/phase matrices.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package transform

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/mat"
)

// Minimum summed squared window weight for a sample to be reconstructed.
const minWeight = 1e-10

// STFT transforms signals frame by frame. Frames are FrameSize samples long
// and hop FrameSize/2 samples. Each frame yields FrameSize/2+1 complex bins.
type STFT struct {
	// FrameSize is F, the frame length in samples. It must be even.
	FrameSize int
}

// hann returns the periodic Hann window of length n, which sums to a
// constant at 50% overlap.
func hann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}

// Forward returns the spectrum of s, one row of bins per frame, and the
// number of zeros appended to s to make its length a multiple of the hop.
//
// The padded signal is bordered by half a frame of zeros on each side. For a
// padded length of B hops the result has B+1 frames.
func (t STFT) Forward(s []float64) ([][]complex128, int, error) {
	f := t.FrameSize
	if f <= 0 || f%2 != 0 {
		return nil, 0, ErrBlockSize
	}
	hop := f / 2

	padded, padding := Pad(s, hop)
	bordered := make([]float64, len(padded)+2*hop)
	copy(bordered[hop:], padded)

	win := hann(f)
	frames := (len(bordered)-f)/hop + 1
	spec := make([][]complex128, frames)
	buf := make([]float64, f)
	for i := range spec {
		start := i * hop
		for j := range buf {
			buf[j] = bordered[start+j] * win[j]
		}
		spec[i] = fft.FFTReal(buf)[:hop+1]
	}
	return spec, padding, nil
}

// Inverse reverses Forward. Each frame is inverse transformed, windowed and
// overlap-added, then normalised by the summed squared window.
func (t STFT) Inverse(spec [][]complex128, padding int) ([]float64, error) {
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrShape)
	}
	bins := len(spec[0])
	if bins < 2 {
		return nil, fmt.Errorf("%w: %d bins", ErrShape, bins)
	}
	f := 2 * (bins - 1)
	if t.FrameSize != 0 && t.FrameSize != f {
		return nil, fmt.Errorf("%w: %d bins for frame size %d", ErrShape, bins, t.FrameSize)
	}
	hop := f / 2

	win := hann(f)
	n := (len(spec)-1)*hop + f
	out := make([]float64, n)
	weight := make([]float64, n)
	full := make([]complex128, f)
	for i, row := range spec {
		if len(row) != bins {
			return nil, fmt.Errorf("%w: frame %d has %d bins, want %d", ErrShape, i, len(row), bins)
		}

		// Rebuild the conjugate symmetric spectrum of a real frame.
		copy(full, row)
		full[0] = complex(real(row[0]), 0)
		full[hop] = complex(real(row[hop]), 0)
		for k := 1; k < hop; k++ {
			full[f-k] = cmplx.Conj(row[k])
		}

		frame := fft.IFFT(full)
		start := i * hop
		for j, v := range frame {
			out[start+j] += real(v) * win[j]
			weight[start+j] += win[j] * win[j]
		}
	}
	for i := range out {
		if weight[i] > minWeight {
			out[i] /= weight[i]
		}
	}

	signal := out[hop : n-hop]
	if padding < 0 || padding > len(signal) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPadding, padding, len(signal))
	}
	return signal[:len(signal)-padding], nil
}

// Polar splits a spectrum into magnitude and phase matrices. Phases lie in
// [-pi, pi].
func Polar(spec [][]complex128) (mag, phase *mat.Dense, err error) {
	if len(spec) == 0 || len(spec[0]) == 0 {
		return nil, nil, fmt.Errorf("%w: empty spectrum", ErrShape)
	}
	rows, cols := len(spec), len(spec[0])
	mag = mat.NewDense(rows, cols, nil)
	phase = mat.NewDense(rows, cols, nil)
	for i, row := range spec {
		if len(row) != cols {
			return nil, nil, fmt.Errorf("%w: frame %d has %d bins, want %d", ErrShape, i, len(row), cols)
		}
		for j, c := range row {
			mag.Set(i, j, cmplx.Abs(c))
			phase.Set(i, j, cmplx.Phase(c))
		}
	}
	return mag, phase, nil
}

// FromPolar joins magnitude and phase matrices of equal shape into a
// spectrum.
func FromPolar(mag, phase mat.Matrix) ([][]complex128, error) {
	r, c := mag.Dims()
	pr, pc := phase.Dims()
	if r != pr || c != pc {
		return nil, fmt.Errorf("%w: magnitude %dx%d, phase %dx%d", ErrShape, r, c, pr, pc)
	}
	spec := make([][]complex128, r)
	for i := range spec {
		spec[i] = make([]complex128, c)
		for j := range spec[i] {
			m, p := mag.At(i, j), phase.At(i, j)
			spec[i][j] = complex(m*math.Cos(p), m*math.Sin(p))
		}
	}
	return spec, nil
}

// Pad appends zeros to s so its length is a multiple of n, returning the
// padded copy and the number of zeros added.
func Pad(s []float64, n int) ([]float64, int) {
	padding := (n - len(s)%n) % n
	out := make([]float64, len(s)+padding)
	copy(out, s)
	return out, padding
}
