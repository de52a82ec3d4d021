/*
NAME
  nmf_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package nmf

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

// randomMatrix returns a rows x cols matrix of values in [0, 100).
func randomMatrix(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	m := mat.NewDense(rows, cols, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() * 100 }, m)
	return m
}

func TestCostNonIncreasing(t *testing.T) {
	tests := []struct {
		rows, cols, rank int
	}{
		{rows: 20, cols: 15, rank: 5},
		{rows: 50, cols: 30, rank: 10},
		{rows: 3, cols: 40, rank: 2},
	}
	for _, test := range tests {
		v := randomMatrix(test.rows, test.cols, 7)
		res, err := Factorize(v, test.rank, 200, WithSeed(3))
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if len(res.Costs) != res.Iterations {
			t.Errorf("got %d costs for %d iterations", len(res.Costs), res.Iterations)
		}
		for i := 1; i < len(res.Costs); i++ {
			if res.Costs[i] > res.Costs[i-1]*(1+1e-9) {
				t.Errorf("%dx%d rank %d: cost increased at iteration %d: %v -> %v", test.rows, test.cols, test.rank, i, res.Costs[i-1], res.Costs[i])
			}
		}
		r, k := res.W.Dims()
		k2, c := res.H.Dims()
		if r != test.rows || k != test.rank || k2 != test.rank || c != test.cols {
			t.Errorf("unexpected factor shapes W %dx%d H %dx%d", r, k, k2, c)
		}
		if mat.Min(res.W) < 0 || mat.Min(res.H) < 0 {
			t.Error("factor contains negative values")
		}
	}
}

func TestFactorizeApproximates(t *testing.T) {
	// A matrix of exact rank 2 should be approximated closely.
	a := randomMatrix(30, 2, 1)
	b := randomMatrix(2, 25, 2)
	var v mat.Dense
	v.Mul(a, b)

	res, err := Factorize(&v, 2, 2000, WithSeed(5))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	final := res.Costs[len(res.Costs)-1]
	if rel := final / mat.Norm(&v, 2); rel > 0.1 {
		t.Errorf("relative reconstruction error %v too large", rel)
	}
}

func TestFactorizeDeterministic(t *testing.T) {
	v := randomMatrix(12, 9, 11)
	a, err := Factorize(v, 4, 50, WithSeed(42))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	b, err := Factorize(v, 4, 50, WithSource(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if !mat.Equal(a.W, b.W) || !mat.Equal(a.H, b.H) {
		t.Error("same seed gave different factors")
	}
	if !cmp.Equal(a.Costs, b.Costs) {
		t.Errorf("same seed gave different costs\n%v", cmp.Diff(a.Costs, b.Costs))
	}
}

func TestFactorizeErrors(t *testing.T) {
	v := randomMatrix(5, 4, 1)
	for _, rank := range []int{0, 4, 5, 10} {
		if _, err := Factorize(v, rank, 10); !errors.Is(err, ErrInvalidRank) {
			t.Errorf("rank %d: expected ErrInvalidRank, got %v", rank, err)
		}
	}

	v.Set(2, 2, -0.5)
	if _, err := Factorize(v, 2, 10); !errors.Is(err, ErrNegativeInput) {
		t.Errorf("expected ErrNegativeInput, got %v", err)
	}

	v.Set(2, 2, 0.5)
	if _, err := Factorize(v, 2, 0); !errors.Is(err, ErrMaxIter) {
		t.Errorf("expected ErrMaxIter, got %v", err)
	}
	if _, err := Factorize(v, 2, 10, WithTolerance(-1)); !errors.Is(err, ErrTolerance) {
		t.Errorf("expected ErrTolerance, got %v", err)
	}
}

func TestZeroMatrix(t *testing.T) {
	res, err := Factorize(mat.NewDense(4, 4, nil), 2, 100)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if res.Iterations != 2 {
		t.Errorf("expected to stop after 2 iterations, stopped after %d", res.Iterations)
	}
	if c := res.Costs[len(res.Costs)-1]; c != 0 {
		t.Errorf("expected zero cost, got %v", c)
	}
}

func TestTolerance(t *testing.T) {
	v := randomMatrix(40, 30, 3)
	exact, err := Factorize(v, 5, 500, WithSeed(1))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	loose, err := Factorize(v, 5, 500, WithSeed(1), WithTolerance(1e-2))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if loose.Iterations > exact.Iterations {
		t.Errorf("tolerance increased iterations: %d > %d", loose.Iterations, exact.Iterations)
	}
}

func TestDegenerate(t *testing.T) {
	row := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	col := mat.NewDense(3, 1, []float64{5, 0, 7})
	for _, v := range []*mat.Dense{row, col} {
		res, err := Degenerate(v)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if !mat.Equal(res.Product(), v) {
			t.Errorf("degenerate factors do not reproduce %v", mat.Formatted(v))
		}
	}

	if _, err := Degenerate(mat.NewDense(2, 2, nil)); !errors.Is(err, ErrInvalidRank) {
		t.Errorf("expected ErrInvalidRank, got %v", err)
	}
	if _, err := Degenerate(mat.NewDense(1, 2, []float64{1, -1})); !errors.Is(err, ErrNegativeInput) {
		t.Errorf("expected ErrNegativeInput, got %v", err)
	}
}

func TestBalance(t *testing.T) {
	v := randomMatrix(10, 8, 4)
	res, err := Factorize(v, 3, 50)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	// Skew the factors without changing their product.
	for i := 0; i < 10; i++ {
		res.W.Set(i, 1, res.W.At(i, 1)*1e4)
	}
	for j := 0; j < 8; j++ {
		res.H.Set(1, j, res.H.At(1, j)/1e4)
	}
	before := res.Product()
	res.Balance()
	if !mat.EqualApprox(res.Product(), before, 1e-9*mat.Max(before)) {
		t.Error("balancing changed the product")
	}
	for k := 0; k < 3; k++ {
		w := mat.Max(res.W.ColView(k))
		h := mat.Max(res.H.RowView(k))
		if math.Abs(w-h) > 1e-9*math.Max(w, h) {
			t.Errorf("component %d: W max %v, H max %v", k, w, h)
		}
	}
}

func TestFitRank(t *testing.T) {
	tests := []struct {
		rank, rows, cols, want int
	}{
		{40, 500, 577, 40},
		{40, 12, 577, 11},
		{40, 1, 577, 0},
		{3, 4, 4, 3},
	}
	for _, test := range tests {
		if got := FitRank(test.rank, test.rows, test.cols); got != test.want {
			t.Errorf("FitRank(%d, %d, %d) = %d, want %d", test.rank, test.rows, test.cols, got, test.want)
		}
	}
}
