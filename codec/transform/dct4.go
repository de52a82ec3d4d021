/*
NAME
  dct4.go

DESCRIPTION
  dct4.go provides the type IV discrete cosine transform used as the kernel
  of the MDCT, in a fast form built on a half length complex FFT and a slow
  form computed directly from the definition.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package transform

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dct4 computes DCT-IV transforms of a fixed even length N using an N/2
// point complex FFT. The twiddle factors are computed once.
type dct4 struct {
	n    int
	fft  *fourier.CmplxFFT
	pre  []complex128 // exp(-i*pi*m/N), applied before the FFT.
	post []complex128 // exp(-i*pi*(k+1/4)/N), applied after the FFT.
	buf  []complex128
	coef []complex128
}

func newDCT4(n int) *dct4 {
	m := n / 2
	d := &dct4{
		n:    n,
		fft:  fourier.NewCmplxFFT(m),
		pre:  make([]complex128, m),
		post: make([]complex128, m),
		buf:  make([]complex128, m),
		coef: make([]complex128, m),
	}
	for i := 0; i < m; i++ {
		d.pre[i] = cmplx.Exp(complex(0, -math.Pi*float64(i)/float64(n)))
		d.post[i] = cmplx.Exp(complex(0, -math.Pi*(float64(i)+0.25)/float64(n)))
	}
	return d
}

// transform writes the DCT-IV of in to out. Both must have length N.
//
// Even and mirrored odd inputs are paired into v[m] = in[2m] + i*in[N-1-2m].
// Then sum_m v[m]*exp(-i*pi*(2m+1/2)(2k+1/2)/N) has real part X[2k] and
// imaginary part -X[N-1-2k], and the exponent factors into the pre-twiddle,
// an N/2 point DFT and the post-twiddle.
func (d *dct4) transform(out, in []float64) {
	n, m := d.n, d.n/2
	for i := 0; i < m; i++ {
		d.buf[i] = complex(in[2*i], in[n-1-2*i]) * d.pre[i]
	}
	c := d.fft.Coefficients(d.coef, d.buf)
	for k := 0; k < m; k++ {
		z := c[k] * d.post[k]
		out[2*k] = real(z)
		out[n-1-2*k] = -imag(z)
	}
}

// DCT4 returns the type IV DCT of s,
//
//	X[k] = sum_{n=0}^{N-1} s[n] cos(pi/N (n+1/2)(k+1/2)),
//
// computed in O(N log N). len(s) must be even and non-zero.
func DCT4(s []float64) ([]float64, error) {
	if len(s) == 0 || len(s)%2 != 0 {
		return nil, ErrBlockSize
	}
	out := make([]float64, len(s))
	newDCT4(len(s)).transform(out, s)
	return out, nil
}

// DCT4Slow returns the type IV DCT of s directly from the definition in
// O(N^2). It is a reference for testing the fast transform.
func DCT4Slow(s []float64) []float64 {
	n := len(s)
	out := make([]float64, n)
	for k := range out {
		var sum float64
		for i, v := range s {
			sum += v * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*(float64(k)+0.5))
		}
		out[k] = sum
	}
	return out
}
