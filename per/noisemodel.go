package per

import (
	"fmt"
	"math"
	"math/rand"
)

// NoiseModel is a learned sparse Pauli-Lindblad generator for one Clifford
// layer: a rate λ_k for every model term P_k. It is immutable; scaling and
// tuning produce Distribution values instead of modifying the model, so any
// number of goroutines may sample from one model.
type NoiseModel struct {
	layer  Circuit
	key    string
	terms  []Pauli
	coeffs []float64
}

// NewNoiseModel stores the rates learned for layer. terms and coeffs are
// parallel slices and are copied.
func NewNoiseModel(layer Circuit, terms []Pauli, coeffs []float64) (*NoiseModel, error) {
	if len(terms) != len(coeffs) {
		return nil, fmt.Errorf("noise model: %d terms but %d coefficients", len(terms), len(coeffs))
	}
	for _, t := range terms {
		if t.Len() != layer.NumQubits() {
			return nil, fmt.Errorf("noise model: term %s does not act on %d qubits", t, layer.NumQubits())
		}
	}
	return &NoiseModel{
		layer:  layer,
		key:    CircuitKey(layer),
		terms:  append([]Pauli(nil), terms...),
		coeffs: append([]float64(nil), coeffs...),
	}, nil
}

// Layer is the Clifford layer the model belongs to.
func (m *NoiseModel) Layer() Circuit { return m.layer }

// Key is the fingerprint of the layer, see CircuitKey.
func (m *NoiseModel) Key() string { return m.key }

// Terms returns the model terms in learned order.
func (m *NoiseModel) Terms() []Pauli { return append([]Pauli(nil), m.terms...) }

// Coeffs returns the rates, parallel to Terms.
func (m *NoiseModel) Coeffs() []float64 { return append([]float64(nil), m.coeffs...) }

// Coeff looks up the rate of a single term.
func (m *NoiseModel) Coeff(term Pauli) (float64, bool) {
	for i, t := range m.terms {
		if t == term {
			return m.coeffs[i], true
		}
	}
	return 0, false
}

// TermProbability is the per-term entry of a sampling distribution.
type TermProbability struct {
	Term        Pauli
	Probability float64
	// Sign is 1 when the term is suppressed below its learned rate and its
	// insertion carries a negative quasi-probability.
	Sign int
}

// Distribution is the quasi-probability representation derived from a model
// for one set of target rates.
type Distribution struct {
	Terms []TermProbability
	// Overhead is γ², the factor by which the estimator variance grows.
	Overhead float64
	n        int
}

// DeriveScaling targets φ_k = strength·λ_k for every term.
func (m *NoiseModel) DeriveScaling(strength float64) Distribution {
	targets := make(map[Pauli]float64, len(m.terms))
	for i, t := range m.terms {
		targets[t] = strength * m.coeffs[i]
	}
	return m.DeriveTuning(targets)
}

// DeriveTuning builds the distribution that moves each rate λ_k to the target
// φ_k. Terms absent from targets are driven to zero.
//
//	p_k = ½(1 − exp(−2|φ_k − λ_k|)),  sign_k = [φ_k < λ_k]
//	overhead = Π_{φ_k < λ_k} exp(2(λ_k − φ_k))
func (m *NoiseModel) DeriveTuning(targets map[Pauli]float64) Distribution {
	d := Distribution{
		Terms:    make([]TermProbability, len(m.terms)),
		Overhead: 1,
		n:        m.layer.NumQubits(),
	}
	for i, t := range m.terms {
		lambda := m.coeffs[i]
		phi := targets[t]
		tp := TermProbability{
			Term:        t,
			Probability: 0.5 * (1 - math.Exp(-2*math.Abs(phi-lambda))),
		}
		if phi < lambda {
			tp.Sign = 1
			d.Overhead *= math.Exp(2 * (lambda - phi))
		}
		d.Terms[i] = tp
	}
	return d
}

// Sample draws one operator from d: each term fires independently with its
// probability, the fired terms are multiplied together and their sign bits
// XORed.
func (m *NoiseModel) Sample(d Distribution, rng *rand.Rand) (Pauli, int) {
	n := d.n
	if n == 0 {
		n = m.layer.NumQubits()
	}
	op := Identity(n)
	sign := 0
	for _, tp := range d.Terms {
		if rng.Float64() < tp.Probability {
			op = op.Mul(tp.Term)
			sign ^= tp.Sign
		}
	}
	return op, sign
}
