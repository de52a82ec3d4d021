/*
NAME
  filters.go

DESCRIPTION
  filters.go contains a windowed-sinc FIR low-pass filter used to band limit
  audio before decimation.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// LowPass is a linear phase FIR low-pass filter.
type LowPass struct {
	coeffs []float64
	cutoff float64
	rate   uint
	taps   int
}

// NewLowPass generates a lowpass filter of the given even length with cutoff
// frequency fc for audio sampled at rate Hz.
func NewLowPass(fc float64, rate uint, length int) (*LowPass, error) {
	// Ensure that all input values are valid.
	if fc <= 0 || fc >= float64(rate)/2 {
		return nil, errors.New("cutoff frequency out of bounds")
	} else if length <= 0 || length%2 != 0 {
		return nil, errors.New("filter length must be even and positive")
	}

	lp := &LowPass{cutoff: fc, rate: rate, taps: length}
	fd := fc / float64(rate)

	// Windowed sinc, symmetric about taps/2.
	size := lp.taps + 1
	lp.coeffs = make([]float64, size)
	b := 2 * math.Pi * fd
	winData := window.FlatTop(size)
	for n := 0; n < lp.taps/2; n++ {
		c := float64(n) - float64(lp.taps)/2
		y := math.Sin(c*b) / (math.Pi * c)
		lp.coeffs[n] = y * winData[n]
		lp.coeffs[size-1-n] = lp.coeffs[n]
	}
	lp.coeffs[lp.taps/2] = 2 * fd * winData[lp.taps/2]
	return lp, nil
}

// Apply filters s, returning a slice of the same length aligned with s: the
// filter's group delay of taps/2 samples is removed.
func (lp *LowPass) Apply(s []float64) ([]float64, error) {
	if len(s) == 0 {
		return []float64{}, nil
	}
	y, err := fastConvolve(s, lp.coeffs)
	if err != nil {
		return nil, fmt.Errorf("could not compute fast convolution: %w", err)
	}
	delay := lp.taps / 2
	return y[delay : delay+len(s)], nil
}

// fastConvolve takes in a signal and an FIR filter and computes the convolution (runs in O(nlog(n)) time).
func fastConvolve(x, h []float64) ([]float64, error) {
	// Ensure valid data to convolve.
	if len(x) == 0 || len(h) == 0 {
		return nil, errors.New("convolution requires slice of length > 0")
	}

	// Calculate the length of the linear convolution.
	convLen := len(x) + len(h) - 1

	// Pad copies of both signals to the next power of 2 at least convLen.
	padLen := 1
	for padLen < convLen {
		padLen <<= 1
	}
	xp := make([]float64, padLen)
	copy(xp, x)
	hp := make([]float64, padLen)
	copy(hp, h)

	// Multiply in the frequency domain and transform back.
	xf, hf := fft.FFTReal(xp), fft.FFTReal(hp)
	for i := range xf {
		xf[i] *= hf[i]
	}
	iy := fft.IFFT(xf)

	y := make([]float64, convLen)
	for i := range y {
		y[i] = real(iy[i])
	}
	return y, nil
}
