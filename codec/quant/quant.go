/*
NAME
  quant.go

DESCRIPTION
  quant.go provides uniform quantisation, linear rescaling and mu-law
  companding of coefficient values.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package quant maps continuous coefficients to bounded integer symbol
// levels and back.
package quant

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrLevels    = errors.New("quantizer needs at least two levels")
	ErrRange     = errors.New("quantizer maximum must exceed minimum")
	ErrZeroRange = errors.New("cannot scale from a zero width range")
)

// Uniform is a uniform quantizer of Levels evenly spaced levels spanning
// [Min, Max] inclusive.
type Uniform struct {
	Min, Max float64
	Levels   int
	step     float64
}

// NewUniform returns a quantizer over [min, max] with the given number of
// levels.
func NewUniform(min, max float64, levels int) (*Uniform, error) {
	if levels < 2 {
		return nil, ErrLevels
	}
	if !(max > min) {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrRange, min, max)
	}
	return &Uniform{Min: min, Max: max, Levels: levels, step: (max - min) / float64(levels-1)}, nil
}

// Step returns the distance between adjacent levels.
func (q *Uniform) Step() float64 { return q.step }

// Quantize returns the index of the level nearest x, clamped to
// [0, Levels-1].
func (q *Uniform) Quantize(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	i := math.Round((x - q.Min) / q.step)
	switch {
	case i < 0:
		return 0
	case i > float64(q.Levels-1):
		return q.Levels - 1
	}
	return int(i)
}

// Dequantize returns the value of level idx.
func (q *Uniform) Dequantize(idx int) float64 {
	return q.Min + float64(idx)*q.step
}

// QuantizeMatrix quantizes every element of m, returning a grid of level
// indices with the same shape.
func (q *Uniform) QuantizeMatrix(m mat.Matrix) [][]int {
	r, c := m.Dims()
	g := make([][]int, r)
	for i := range g {
		g[i] = make([]int, c)
		for j := range g[i] {
			g[i][j] = q.Quantize(m.At(i, j))
		}
	}
	return g
}

// DequantizeGrid returns the level values of a grid of indices. Rows must
// have equal length.
func (q *Uniform) DequantizeGrid(g [][]int) (*mat.Dense, error) {
	if len(g) == 0 || len(g[0]) == 0 {
		return nil, errors.New("empty symbol grid")
	}
	m := mat.NewDense(len(g), len(g[0]), nil)
	for i, row := range g {
		if len(row) != len(g[0]) {
			return nil, fmt.Errorf("ragged symbol grid: row %d has %d columns, want %d", i, len(row), len(g[0]))
		}
		for j, idx := range row {
			if idx < 0 || idx >= q.Levels {
				return nil, fmt.Errorf("symbol %d outside %d levels", idx, q.Levels)
			}
			m.Set(i, j, q.Dequantize(idx))
		}
	}
	return m, nil
}

// Scale linearly maps x from [oldMin, oldMax] onto [newMin, newMax].
func Scale(x, oldMin, oldMax, newMin, newMax float64) (float64, error) {
	oldRange := math.Abs(oldMax - oldMin)
	if oldRange == 0 {
		return 0, ErrZeroRange
	}
	newRange := math.Abs(newMax - newMin)
	return (x-oldMin)/oldRange*newRange + newMin, nil
}

// ScaleMatrix returns a copy of m with Scale applied to every element.
func ScaleMatrix(m mat.Matrix, oldMin, oldMax, newMin, newMax float64) (*mat.Dense, error) {
	if oldMax == oldMin {
		return nil, ErrZeroRange
	}
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 {
		s, _ := Scale(v, oldMin, oldMax, newMin, newMax)
		return s
	}, out)
	return out, nil
}

// MuLawCompand applies the mu-law compressor to x in [-1, 1].
func MuLawCompand(x, mu float64) float64 {
	return sign(x) * math.Log1p(mu*math.Abs(x)) / math.Log1p(mu)
}

// MuLawExpand applies the mu-law expander to y in [-1, 1], inverting
// MuLawCompand.
func MuLawExpand(y, mu float64) float64 {
	return sign(y) / mu * (math.Pow(1+mu, math.Abs(y)) - 1)
}

// CompandMatrix returns a copy of m with MuLawCompand applied to every
// element.
func CompandMatrix(m mat.Matrix, mu float64) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 { return MuLawCompand(v, mu) }, out)
	return out
}

// ExpandMatrix returns a copy of m with MuLawExpand applied to every
// element.
func ExpandMatrix(m mat.Matrix, mu float64) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 { return MuLawExpand(v, mu) }, out)
	return out
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
