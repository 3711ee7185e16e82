package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when a fit stops without meeting its
// tolerances. The accompanying Params hold the last iterate.
var ErrNoConvergence = errors.New("fit did not converge")

// Params are the fitted coefficients of y = A·exp(B·x).
type Params struct {
	A, B float64
}

// Bounds is a closed box on (A, B). Use ±Inf for an open side.
type Bounds struct {
	Lower, Upper Params
}

// Options tune the solver. Zero values select the defaults.
type Options struct {
	MaxIter int     // default 200
	XTol    float64 // relative step tolerance, default 1e-10
	FTol    float64 // relative cost tolerance, default 1e-12
	GTol    float64 // projected gradient tolerance, default 1e-12
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = 200
	}
	if o.XTol <= 0 {
		o.XTol = 1e-10
	}
	if o.FTol <= 0 {
		o.FTol = 1e-12
	}
	if o.GTol <= 0 {
		o.GTol = 1e-12
	}
	return o
}

// Exponential fits y = A·exp(B·x) to the points by projected
// Levenberg-Marquardt. p0 is clipped into bounds before the first step.
//
// A parameter on a bound whose gradient points out of the box is held
// there and the damped Gauss-Newton step is solved over the remaining
// parameters. The fit has converged when the projected gradient vanishes,
// or when an unclipped accepted step changes the parameters or the cost by
// less than the tolerances.
func Exponential(xs, ys []float64, p0 Params, bounds Bounds, opts Options) (Params, error) {
	if len(xs) != len(ys) {
		return Params{}, fmt.Errorf("exponential fit: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return Params{}, fmt.Errorf("exponential fit: need at least 2 points, got %d", len(xs))
	}
	for i := range ys {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			return Params{}, fmt.Errorf("exponential fit: non-finite point %d", i)
		}
	}
	opts = opts.withDefaults()

	lo := []float64{bounds.Lower.A, bounds.Lower.B}
	hi := []float64{bounds.Upper.A, bounds.Upper.B}
	theta := clip([]float64{p0.A, p0.B}, lo, hi)

	m := len(xs)
	r := make([]float64, m)
	jac := mat.NewDense(m, 2, nil)
	cost := residuals(xs, ys, theta, r, jac)

	mu := 1e-3
	for iter := 0; iter < opts.MaxIter; iter++ {
		var gv mat.VecDense
		gv.MulVec(jac.T(), mat.NewVecDense(m, r))
		g := gv.RawVector().Data

		free := freeParams(theta, g, lo, hi)
		pg := 0.0
		for _, k := range free {
			pg = math.Max(pg, math.Abs(g[k]))
		}
		if pg <= opts.GTol {
			return Params{A: theta[0], B: theta[1]}, nil
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for {
			step, err := dampedStep(&jtj, g, free, theta, lo, hi, mu)
			if err != nil {
				return unconverged(theta, "solving damped step: %v", err)
			}
			raw := []float64{theta[0] - step[0], theta[1] - step[1]}
			trial := clip(raw, lo, hi)
			clipped := !floats.Equal(raw, trial)

			tr := make([]float64, m)
			tj := mat.NewDense(m, 2, nil)
			trialCost := residuals(xs, ys, trial, tr, tj)
			if !math.IsNaN(trialCost) && !math.IsInf(trialCost, 0) && trialCost <= cost {
				moved := math.Hypot(trial[0]-theta[0], trial[1]-theta[1])
				small := moved <= opts.XTol*(floats.Norm(theta, 2)+opts.XTol) ||
					cost-trialCost <= opts.FTol*math.Max(cost, opts.FTol)
				theta, r, jac, cost = trial, tr, tj, trialCost
				mu = math.Max(mu/10, 1e-12)
				if small && !clipped {
					return Params{A: theta[0], B: theta[1]}, nil
				}
				break
			}
			mu *= 10
			if mu > 1e16 {
				return unconverged(theta, "damping exhausted after %d iterations", iter)
			}
		}
	}
	return unconverged(theta, "%d iterations", opts.MaxIter)
}

func unconverged(theta []float64, format string, args ...any) (Params, error) {
	return Params{A: theta[0], B: theta[1]}, fmt.Errorf("%w: %s", ErrNoConvergence, fmt.Sprintf(format, args...))
}

// freeParams lists the parameters that may move: interior ones, and those
// on a bound whose descent direction points into the box.
func freeParams(theta, g, lo, hi []float64) []int {
	var free []int
	for k := range theta {
		if theta[k] <= lo[k] && g[k] >= 0 {
			continue
		}
		if theta[k] >= hi[k] && g[k] <= 0 {
			continue
		}
		free = append(free, k)
	}
	return free
}

// dampedStep solves the damped normal equations over free. A parameter on
// a bound whose step would leave the box is held and the system solved
// again without it. If that holds every parameter, the coupling is dropped
// and each free parameter takes its own scaled gradient step, which always
// points into the box.
func dampedStep(jtj mat.Matrix, g []float64, free []int, theta, lo, hi []float64, mu float64) ([]float64, error) {
	active := free
	for len(active) > 0 {
		step, err := solveReduced(jtj, g, active, mu, true)
		if err != nil {
			return nil, err
		}
		var kept []int
		for _, k := range active {
			if (theta[k] <= lo[k] && step[k] > 0) || (theta[k] >= hi[k] && step[k] < 0) {
				continue
			}
			kept = append(kept, k)
		}
		if len(kept) == len(active) {
			return step, nil
		}
		active = kept
	}
	return solveReduced(jtj, g, free, mu, false)
}

// solveReduced solves (JᵀJ + μ·diag(JᵀJ))·s = g restricted to idx and
// returns s padded with zeros for the held parameters.
func solveReduced(jtj mat.Matrix, g []float64, idx []int, mu float64, coupled bool) ([]float64, error) {
	n := len(idx)
	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	for i, fi := range idx {
		b.SetVec(i, g[fi])
		if coupled {
			for j, fj := range idx {
				a.Set(i, j, jtj.At(fi, fj))
			}
		}
		a.Set(i, i, jtj.At(fi, fi)*(1+mu)+mu*1e-12)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	step := make([]float64, len(g))
	for i, fi := range idx {
		step[fi] = x.AtVec(i)
	}
	return step, nil
}

// residuals fills r_i = A·exp(B·x_i) − y_i and the Jacobian, returning ½‖r‖².
func residuals(xs, ys, theta, r []float64, jac *mat.Dense) float64 {
	a, b := theta[0], theta[1]
	for i, x := range xs {
		e := math.Exp(b * x)
		r[i] = a*e - ys[i]
		jac.Set(i, 0, e)
		jac.Set(i, 1, a*x*e)
	}
	return 0.5 * floats.Dot(r, r)
}

func clip(v, lo, hi []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = math.Min(math.Max(v[i], lo[i]), hi[i])
	}
	return out
}
