/*
NAME
  nmf.go

DESCRIPTION
  nmf.go provides non-negative matrix factorisation by Lee-Seung
  multiplicative updates minimising the Frobenius reconstruction error.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package nmf approximates a non-negative matrix V by the product of two
// smaller non-negative matrices W and H.
package nmf

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidRank   = errors.New("rank must be positive and less than the smallest matrix dimension")
	ErrNegativeInput = errors.New("matrix contains negative values")
	ErrMaxIter       = errors.New("maximum iterations must be positive")
	ErrTolerance     = errors.New("tolerance must be non-negative")
)

// Result holds a factorisation V ≈ W·H.
type Result struct {
	W *mat.Dense // rows x rank basis.
	H *mat.Dense // rank x cols activations.

	// Costs holds the Frobenius norm of V - W·H after each iteration.
	Costs []float64

	// Iterations is the number of update steps performed.
	Iterations int
}

// Product returns W·H.
func (r *Result) Product() *mat.Dense {
	var p mat.Dense
	p.Mul(r.W, r.H)
	return &p
}

// Balance rescales each column of W and the matching row of H so both have
// the same maximum. The product W·H is unchanged up to rounding.
func (r *Result) Balance() {
	rows, k := r.W.Dims()
	_, cols := r.H.Dims()
	for j := 0; j < k; j++ {
		var a, b float64
		for i := 0; i < rows; i++ {
			a = max(a, r.W.At(i, j))
		}
		for i := 0; i < cols; i++ {
			b = max(b, r.H.At(j, i))
		}
		if a == 0 || b == 0 {
			continue
		}
		s := math.Sqrt(b / a)
		for i := 0; i < rows; i++ {
			r.W.Set(i, j, r.W.At(i, j)*s)
		}
		for i := 0; i < cols; i++ {
			r.H.Set(j, i, r.H.At(j, i)/s)
		}
	}
}

// Option configures a factorisation.
type Option func(*settings) error

type settings struct {
	src rand.Source
	tol float64
	log logging.Logger
}

// WithSeed seeds the random initialisation of W and H.
func WithSeed(seed int64) Option {
	return func(s *settings) error {
		s.src = rand.NewSource(seed)
		return nil
	}
}

// WithSource sets the source used for the random initialisation of W and H.
func WithSource(src rand.Source) Option {
	return func(s *settings) error {
		if src == nil {
			return errors.New("nil random source")
		}
		s.src = src
		return nil
	}
}

// WithTolerance stops iteration once the relative cost improvement of an
// iteration falls to tol or below. A tolerance of zero stops only when the
// cost is unchanged.
func WithTolerance(tol float64) Option {
	return func(s *settings) error {
		if tol < 0 {
			return ErrTolerance
		}
		s.tol = tol
		return nil
	}
}

// WithLogger sets a logger for convergence reporting.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) error {
		s.log = l
		return nil
	}
}

// FitRank returns rank reduced, if needed, to one less than the smallest of
// rows and cols. A result below one means the matrix admits no factorisation
// of lower rank and should be handled by Degenerate.
func FitRank(rank, rows, cols int) int {
	return min(rank, min(rows, cols)-1)
}

// Factorize decomposes the non-negative matrix v into W (rows x rank) and
// H (rank x cols). W and H start as uniform random values in [0, max(v)) and
// are refined by multiplicative updates until the cost stops decreasing or
// maxIter updates have been made. Unless WithSeed or WithSource is given the
// initialisation is seeded with 1.
func Factorize(v mat.Matrix, rank, maxIter int, opts ...Option) (*Result, error) {
	s := settings{src: rand.NewSource(1)}
	for i, opt := range opts {
		err := opt(&s)
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", i, err)
		}
	}

	rows, cols := v.Dims()
	if rank < 1 || rank >= min(rows, cols) {
		return nil, fmt.Errorf("%w: rank %d for %dx%d matrix", ErrInvalidRank, rank, rows, cols)
	}
	if maxIter < 1 {
		return nil, ErrMaxIter
	}
	if mat.Min(v) < 0 {
		return nil, ErrNegativeInput
	}

	rng := rand.New(s.src)
	hi := mat.Max(v)
	w := mat.NewDense(rows, rank, nil)
	h := mat.NewDense(rank, cols, nil)
	fill := func(_, _ int, _ float64) float64 { return rng.Float64() * hi }
	w.Apply(fill, w)
	h.Apply(fill, h)

	u := newUpdater(v, w, h)
	res := &Result{W: w, H: h, Costs: make([]float64, 0, maxIter)}
	last := -1.0
	for res.Iterations < maxIter {
		u.step()
		res.Iterations++
		c := u.cost()
		res.Costs = append(res.Costs, c)
		if last >= 0 && converged(last, c, s.tol) {
			break
		}
		last = c
	}
	if s.log != nil {
		s.log.Debug("factorised matrix", "rows", rows, "cols", cols, "rank", rank, "iterations", res.Iterations, "cost", res.Costs[len(res.Costs)-1])
	}
	return res, nil
}

func converged(last, cost, tol float64) bool {
	if tol == 0 {
		return cost == last
	}
	return last-cost <= tol*last
}

// Degenerate returns the exact rank one factorisation of a single row or
// single column non-negative matrix: W = v, H = [1] for a column and
// W = [1], H = v for a row.
func Degenerate(v mat.Matrix) (*Result, error) {
	rows, cols := v.Dims()
	if rows != 1 && cols != 1 {
		return nil, fmt.Errorf("%w: %dx%d matrix is not a single row or column", ErrInvalidRank, rows, cols)
	}
	if mat.Min(v) < 0 {
		return nil, ErrNegativeInput
	}
	one := mat.NewDense(1, 1, []float64{1})
	if cols == 1 {
		return &Result{W: mat.DenseCopyOf(v), H: one, Costs: []float64{0}}, nil
	}
	return &Result{W: one, H: mat.DenseCopyOf(v), Costs: []float64{0}}, nil
}

// updater holds the work matrices for the multiplicative update rules
//
//	W <- W ⊙ (V·Hᵗ) / (W·H·Hᵗ)
//	H <- H ⊙ (Wᵗ·V) / (Wᵗ·W·H)
//
// where the division is element-wise and a zero denominator yields zero.
type updater struct {
	v    mat.Matrix
	w, h *mat.Dense

	// Scratch space reused across iterations.
	wh, num, den, hh, ww, diff mat.Dense
}

func newUpdater(v mat.Matrix, w, h *mat.Dense) *updater {
	return &updater{v: v, w: w, h: h}
}

func (u *updater) step() {
	// W update: W·H·Hᵗ is formed as W·(H·Hᵗ) which is rank x rank.
	u.num.Mul(u.v, u.h.T())
	u.hh.Mul(u.h, u.h.T())
	u.den.Mul(u.w, &u.hh)
	u.w.Apply(func(i, j int, x float64) float64 {
		return x * ratio(u.num.At(i, j), u.den.At(i, j))
	}, u.w)

	// H update uses the new W.
	u.num.Reset()
	u.den.Reset()
	u.num.Mul(u.w.T(), u.v)
	u.ww.Mul(u.w.T(), u.w)
	u.den.Mul(&u.ww, u.h)
	u.h.Apply(func(i, j int, x float64) float64 {
		return x * ratio(u.num.At(i, j), u.den.At(i, j))
	}, u.h)
	u.num.Reset()
	u.den.Reset()
}

// cost returns ||V - W·H||_F.
func (u *updater) cost() float64 {
	u.wh.Mul(u.w, u.h)
	u.diff.Sub(u.v, &u.wh)
	return mat.Norm(&u.diff, 2)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
