package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NNLS solves min ‖A·x − b‖₂ subject to x ≥ 0 with the Lawson-Hanson
// active-set method.
func NNLS(a mat.Matrix, b []float64) ([]float64, error) {
	m, n := a.Dims()
	if len(b) != m {
		return nil, fmt.Errorf("nnls: matrix has %d rows but b has %d entries", m, len(b))
	}
	bv := mat.NewVecDense(m, append([]float64(nil), b...))
	tol := 10 * math.Max(float64(m), float64(n)) * mat.Norm(a, 1) * 2.220446049250313e-16

	x := make([]float64, n)
	passive := make([]bool, n)
	w := make([]float64, n)

	gradient := func() {
		var ax, res, g mat.VecDense
		ax.MulVec(a, mat.NewVecDense(n, x))
		res.SubVec(bv, &ax)
		g.MulVec(a.T(), &res)
		for j := range w {
			w[j] = g.AtVec(j)
		}
	}

	gradient()
	for outer := 0; outer < 3*n; outer++ {
		t, best := -1, tol
		for j := 0; j < n; j++ {
			if !passive[j] && w[j] > best {
				t, best = j, w[j]
			}
		}
		if t < 0 {
			return x, nil
		}
		passive[t] = true

		for inner := 0; ; inner++ {
			if inner > 3*n {
				return x, fmt.Errorf("nnls: inner loop did not terminate")
			}
			if !anyTrue(passive) {
				break
			}
			s, err := passiveSolve(a, bv, passive)
			if err != nil {
				return nil, err
			}
			feasible := true
			for j := 0; j < n; j++ {
				if passive[j] && s[j] <= tol {
					feasible = false
					break
				}
			}
			if feasible {
				x = s
				break
			}
			alpha := math.Inf(1)
			for j := 0; j < n; j++ {
				if passive[j] && s[j] <= tol {
					if d := x[j] - s[j]; d > 0 {
						alpha = math.Min(alpha, x[j]/d)
					} else {
						alpha = 0
					}
				}
			}
			for j := 0; j < n; j++ {
				x[j] += alpha * (s[j] - x[j])
				if passive[j] && x[j] <= tol {
					passive[j] = false
					x[j] = 0
				}
			}
		}
		gradient()
	}
	if floats.HasNaN(x) {
		return nil, fmt.Errorf("nnls: solution contains NaN")
	}
	return x, nil
}

func anyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}
	return false
}

// passiveSolve returns the unconstrained least-squares solution on the
// passive columns, zero elsewhere.
func passiveSolve(a mat.Matrix, b *mat.VecDense, passive []bool) ([]float64, error) {
	m, n := a.Dims()
	var cols []int
	for j := 0; j < n; j++ {
		if passive[j] {
			cols = append(cols, j)
		}
	}
	sub := mat.NewDense(m, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < m; i++ {
			sub.Set(i, k, a.At(i, j))
		}
	}
	var s mat.VecDense
	if err := s.SolveVec(sub, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("nnls: least squares on %d columns: %w", len(cols), err)
		}
	}
	out := make([]float64, n)
	for k, j := range cols {
		out[j] = s.AtVec(k)
	}
	return out, nil
}

// Rank is the numerical rank of a: the number of singular values above
// σ_max·max(m,n)·ε.
func Rank(a mat.Matrix) int {
	m, n := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	tol := values[0] * math.Max(float64(m), float64(n)) * 2.220446049250313e-16
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	return rank
}
