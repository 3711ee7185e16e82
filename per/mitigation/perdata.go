package mitigation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/fit"
)

// extrapolationBounds keep |a| ≤ 1.5 and b ∈ [-1, 0]: expectations can
// only shrink as noise grows.
var extrapolationBounds = fit.Bounds{
	Lower: fit.Params{A: -1.5, B: -1},
	Upper: fit.Params{A: 1.5, B: 0},
}

// PERData collects the mitigated expectations of one observable of one
// circuit across noise strengths.
type PERData struct {
	Pauli per.Pauli
	// SPAM is the readout correction the expectations are divided by.
	SPAM float64

	sums   map[float64]float64
	counts map[float64]int
	params fit.Params
	fitted bool
}

// NewPERData returns empty data for observable p.
func NewPERData(p per.Pauli, spam float64) *PERData {
	return &PERData{
		Pauli:  p,
		SPAM:   spam,
		sums:   make(map[float64]float64),
		counts: make(map[float64]int),
	}
}

// AddData records the SPAM-corrected adjusted expectation of inst.
func (d *PERData) AddData(inst *PERInstance) {
	d.add(inst.Strength, inst.AdjustedExpectation(d.Pauli)/d.SPAM)
}

func (d *PERData) add(strength, value float64) {
	d.sums[strength] += value
	d.counts[strength]++
}

// Strengths returns the sampled strengths in increasing order.
func (d *PERData) Strengths() []float64 {
	out := make([]float64, 0, len(d.sums))
	for s := range d.sums {
		out = append(out, s)
	}
	sort.Float64s(out)
	return out
}

// Expectations returns the mean expectation per strength, parallel to
// Strengths.
func (d *PERData) Expectations() []float64 {
	strengths := d.Strengths()
	out := make([]float64, len(strengths))
	for i, s := range strengths {
		out[i] = d.sums[s] / float64(d.counts[s])
	}
	return out
}

// Fit fits a·exp(b·x) over the strengths. A fit that stops without
// converging keeps its last iterate and logs a warning.
func (d *PERData) Fit() (fit.Params, error) {
	xs, ys := d.Strengths(), d.Expectations()
	if len(xs) < 2 {
		return fit.Params{}, fmt.Errorf("%w: observable %s has %d", ErrTooFewStrengths, d.Pauli, len(xs))
	}
	p0 := fit.Params{A: math.Max(-1.5, math.Min(1.5, ys[0])), B: -0.01}
	p, err := fit.Exponential(xs, ys, p0, extrapolationBounds, fit.Options{})
	switch {
	case errors.Is(err, fit.ErrNoConvergence):
		logrus.Warnf("Extrapolation of %s did not converge, keeping a=%.6f b=%.6f: %v", d.Pauli, p.A, p.B, err)
	case err != nil:
		return fit.Params{}, fmt.Errorf("extrapolating %s: %w", d.Pauli, err)
	}
	d.params = p
	d.fitted = true
	return p, nil
}

// Params returns the last fit and whether one succeeded.
func (d *PERData) Params() (fit.Params, bool) { return d.params, d.fitted }

// Expectation is the zero-noise estimate a. It is 0 before a successful
// Fit.
func (d *PERData) Expectation() float64 { return d.params.A }
