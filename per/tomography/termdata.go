package tomography

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/fit"
)

// decayBounds constrain E(d) = A·exp(B·d) to A ∈ [0,1], B ∈ [-1,0].
var decayBounds = fit.Bounds{
	Lower: fit.Params{A: 0, B: -1},
	Upper: fit.Params{A: 1, B: 0},
}

var decayGuess = fit.Params{A: 0.8, B: -0.01}

// TermData collects the expectations of one model term across depths and
// turns them into a SPAM coefficient and a fidelity.
type TermData struct {
	Pauli per.Pauli
	// Pair is the conjugate of Pauli under the layer.
	Pair per.Pauli

	sums       map[int]float64
	counts     map[int]int
	singleVals []float64

	// SPAM is the fitted amplitude, the state-preparation and measurement
	// fidelity of the term.
	SPAM float64
	// Fidelity is the value used for reconstruction: SingleFidelity when a
	// degeneracy-lifting estimate exists, PairFidelity otherwise.
	Fidelity float64
	// PairFidelity is the per-layer decay of the depth sweep, the geometric
	// mean of the fidelities of Pauli and Pair.
	PairFidelity   float64
	SingleFidelity float64
	HasSingle      bool
	// Converged is false when the decay fit failed and the term fell back
	// to fidelity 1.
	Converged bool
}

// NewTermData returns empty data for pauli with its layer conjugate pair.
func NewTermData(pauli, pair per.Pauli) *TermData {
	return &TermData{
		Pauli:  pauli,
		Pair:   pair,
		sums:   make(map[int]float64),
		counts: make(map[int]int),
	}
}

// AddExpectation records one measured value. Single-kind values feed the
// degeneracy-lifting estimate and are not part of the depth sweep.
func (t *TermData) AddExpectation(depth int, value float64, kind InstanceKind) {
	if kind == KindSingle {
		t.singleVals = append(t.singleVals, value)
		return
	}
	t.sums[depth] += value
	t.counts[depth]++
}

// Depths returns the measured depths in increasing order.
func (t *TermData) Depths() []int {
	depths := make([]int, 0, len(t.sums))
	for d := range t.sums {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	return depths
}

// Expectations returns the mean expectation at each depth, parallel to
// Depths.
func (t *TermData) Expectations() []float64 {
	depths := t.Depths()
	out := make([]float64, len(depths))
	for i, d := range depths {
		out[i] = t.sums[d] / float64(t.counts[d])
	}
	return out
}

// HasSingleData reports whether degeneracy-lifting values were recorded.
func (t *TermData) HasSingleData() bool { return len(t.singleVals) > 0 }

// Fit fits E(d) = SPAM·Fidelity^d. A fit that does not converge leaves the
// term with SPAM 1 and fidelity 1 and logs a warning.
func (t *TermData) Fit() {
	depths := t.Depths()
	xs := make([]float64, len(depths))
	for i, d := range depths {
		xs[i] = float64(d)
	}
	p, err := fit.Exponential(xs, t.Expectations(), decayGuess, decayBounds, fit.Options{})
	t.Converged = err == nil
	if err != nil {
		logrus.Warnf("Fit did not converge for term %s: %v", t.Pauli, err)
		p = fit.Params{A: 1, B: 0}
	}
	t.SPAM = p.A
	t.PairFidelity = math.Exp(p.B)
	t.Fidelity = t.PairFidelity
}

// FitSingle estimates the term's own fidelity from the depth-1 values
// divided by pairSPAM. The estimate cannot fall below PairFidelity², which
// would imply a conjugate fidelity above one; it is clamped up to that
// bound with a warning. Fit must have run first.
func (t *TermData) FitSingle(pairSPAM float64) {
	if !t.HasSingleData() {
		return
	}
	if pairSPAM == 0 {
		logrus.Warnf("Zero SPAM coefficient for pair of %s, skipping single estimate", t.Pauli)
		return
	}
	fidelity := math.Abs(stat.Mean(t.singleVals, nil)) / pairSPAM

	bound := t.PairFidelity * t.PairFidelity
	if fidelity < bound {
		logrus.Warnf("Single-depth measurement of %s,%s implies a pair fidelity above one (product %.6f, single %.6f), clamping",
			t.Pauli, t.Pair, t.PairFidelity, fidelity)
		fidelity = bound
	}
	t.SingleFidelity = fidelity
	t.Fidelity = fidelity
	t.HasSingle = true
}
