package tomography

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/fit"
)

// ErrRankDeficient is returned when the measured terms cannot determine a
// unique generator.
var ErrRankDeficient = errors.New("commutation matrix is rank deficient")

type measKey struct {
	basis per.Pauli
	kind  InstanceKind
}

// LayerNoiseData aggregates benchmark results for one Clifford layer and
// reconstructs its noise model.
type LayerNoiseData struct {
	layer per.Circuit
	key   string
	terms map[per.Pauli]*TermData

	// simultaneous caches, per basis and instance kind, the model terms a
	// measurement determines.
	simultaneous map[measKey][]per.Pauli
	model        *per.NoiseModel
}

// NewLayerNoiseData returns an empty aggregate for layer.
func NewLayerNoiseData(layer per.Circuit) *LayerNoiseData {
	return &LayerNoiseData{
		layer:        layer,
		key:          per.CircuitKey(layer),
		terms:        make(map[per.Pauli]*TermData),
		simultaneous: make(map[measKey][]per.Pauli),
	}
}

// Key is the layer fingerprint.
func (l *LayerNoiseData) Key() string { return l.key }

// measured returns the model terms determined by a measurement in basis. A
// pair measurement determines every term simultaneous with the basis; a
// single measurement additionally needs the prepared state, an eigenstate
// of the conjugated basis, to fix the conjugated term.
func (l *LayerNoiseData) measured(basis per.Pauli, kind InstanceKind, spec *ProcessorSpec) []per.Pauli {
	k := measKey{basis, kind}
	if terms, ok := l.simultaneous[k]; ok {
		return terms
	}
	prep := l.layer.Conjugate(basis)
	var terms []per.Pauli
	for _, term := range spec.ModelTerms() {
		if !basis.Simultaneous(term) {
			continue
		}
		if kind == KindSingle && !prep.Simultaneous(l.layer.Conjugate(term)) {
			continue
		}
		terms = append(terms, term)
	}
	l.simultaneous[k] = terms
	return terms
}

// AddExpectation distributes the result of inst over every term its
// measurement determines.
func (l *LayerNoiseData) AddExpectation(inst *BenchmarkInstance, spec *ProcessorSpec) {
	for _, term := range l.measured(inst.MeasBasis(), inst.Kind, spec) {
		td, ok := l.terms[term]
		if !ok {
			td = NewTermData(term, l.layer.Conjugate(term))
			l.terms[term] = td
		}
		td.AddExpectation(inst.Depth, inst.Expectation(term), inst.Kind)
	}
}

// Terms returns the measured terms in label order.
func (l *LayerNoiseData) Terms() []per.Pauli {
	terms := make([]per.Pauli, 0, len(l.terms))
	for t := range l.terms {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })
	return terms
}

// TermData returns the aggregate for one term.
func (l *LayerNoiseData) TermData(p per.Pauli) (*TermData, bool) {
	td, ok := l.terms[p]
	return td, ok
}

// FitNoiseModel fits every term, refines the degenerate ones with their
// single measurements, and solves for the generator rates.
//
// Row i of the system reads
//
//	Σ_j (⟨F1_i,F1_j⟩ + ⟨F2_i,F1_j⟩)·λ_j = −log f_i
//
// where ⟨·,·⟩ is 1 for anticommuting Paulis and F2_i is F1_i itself when a
// single fidelity was measured for it, and its conjugate pair otherwise.
func (l *LayerNoiseData) FitNoiseModel() (*per.NoiseModel, error) {
	terms := l.Terms()
	if len(terms) == 0 {
		return nil, fmt.Errorf("layer %s: no measured terms", l.key)
	}
	for _, t := range terms {
		l.terms[t].Fit()
	}
	for _, t := range terms {
		td := l.terms[t]
		if !td.HasSingleData() {
			continue
		}
		spam := td.SPAM
		if pair, ok := l.terms[td.Pair]; ok {
			spam = pair.SPAM
		}
		td.FitSingle(spam)
	}

	n := len(terms)
	f2 := make([]per.Pauli, n)
	rhs := make([]float64, n)
	fidelities := make([]float64, n)
	for i, t := range terms {
		td := l.terms[t]
		f2[i] = td.Pair
		if td.HasSingle {
			f2[i] = t
		}
		fidelities[i] = td.Fidelity
		rhs[i] = -math.Log(td.Fidelity)
	}
	logrus.Infof("Fit noise model for layer %s with fidelities %v", l.key, fidelities)

	m := mat.NewDense(n, n, nil)
	for i := range terms {
		for j := range terms {
			m.Set(i, j, anti(terms[i], terms[j])+anti(f2[i], terms[j]))
		}
	}
	if r := fit.Rank(m); r != n {
		return nil, fmt.Errorf("%w: layer %s has rank %d for %d terms", ErrRankDeficient, l.key, r, n)
	}

	coeffs, err := fit.NNLS(m, rhs)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", l.key, err)
	}
	model, err := per.NewNoiseModel(l.layer, terms, coeffs)
	if err != nil {
		return nil, err
	}
	l.model = model
	return model, nil
}

// NoiseModel returns the last fitted model, nil before FitNoiseModel.
func (l *LayerNoiseData) NoiseModel() *per.NoiseModel { return l.model }

// SPAMCoeffs returns the fitted SPAM coefficient of every term.
func (l *LayerNoiseData) SPAMCoeffs() map[per.Pauli]float64 {
	out := make(map[per.Pauli]float64, len(l.terms))
	for p, td := range l.terms {
		out[p] = td.SPAM
	}
	return out
}

// Fidelities returns the fidelity used for reconstruction of every term.
func (l *LayerNoiseData) Fidelities() map[per.Pauli]float64 {
	out := make(map[per.Pauli]float64, len(l.terms))
	for p, td := range l.terms {
		out[p] = td.Fidelity
	}
	return out
}

func anti(a, b per.Pauli) float64 {
	if a.Commutes(b) {
		return 0
	}
	return 1
}
