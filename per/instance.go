package per

import "math/rand"

// Instance is the part shared by benchmark and PER instances: a circuit that
// ends with a basis change, a readout twirl and a full measurement, plus the
// counts returned for it.
//
// Each Instance owns its circuit and result buffer; nothing is shared between
// instances.
type Instance struct {
	circ      Circuit
	measBasis Pauli
	roTwirl   Pauli
	result    Counts
}

// NewInstance wraps a circuit that will be measured in measBasis.
func NewInstance(circ Circuit, measBasis Pauli) *Instance {
	return &Instance{circ: circ, measBasis: measBasis}
}

// Finish appends the measurement-basis change, a random {I,X} readout twirl
// and measurements on every qubit.
func (in *Instance) Finish(rng *rand.Rand) {
	in.circ.Compose(in.circ.BasisChange(in.measBasis).Inverse())
	in.roTwirl = RandomPauli(rng, in.circ.NumQubits(), "IX")
	in.circ.AddPauli(in.roTwirl)
	in.circ.MeasureAll()
}

// Circuit returns the instance circuit.
func (in *Instance) Circuit() Circuit { return in.circ }

// SetCircuit replaces the circuit, typically with its transpiled form.
func (in *Instance) SetCircuit(c Circuit) { in.circ = c }

// MeasBasis is the basis the instance measures in.
func (in *Instance) MeasBasis() Pauli { return in.measBasis }

// ReadoutTwirl is the {I,X} string inserted before measurement.
func (in *Instance) ReadoutTwirl() Pauli { return in.roTwirl }

// Native returns the circuit in the backend representation.
func (in *Instance) Native() any { return in.circ.Native() }

// AddResult attaches counts, merging with earlier results. A bit string seen
// twice keeps the later frequency.
func (in *Instance) AddResult(c Counts) {
	if in.result == nil {
		in.result = make(Counts, len(c))
	}
	for k, v := range c {
		in.result[k] = v
	}
}

// Result returns the raw (still twirled) counts.
func (in *Instance) Result() Counts { return in.result }

// untwirled flips every bit whose readout twirl was X.
func (in *Instance) untwirled() Counts {
	out := make(Counts, len(in.result))
	for key, freq := range in.result {
		b := []byte(key)
		for i := 0; i < len(b) && i < len(in.roTwirl); i++ {
			if in.roTwirl[i] == 'X' {
				b[i] ^= '0' ^ '1'
			}
		}
		out[string(b)] += freq
	}
	return out
}

// Expectation estimates <p> from the untwirled counts as the signed parity of
// the bits in p's support. Bit strings are assumed to be as long as the
// circuit; malformed results are not detected. Returns 0 without results.
func (in *Instance) Expectation(p Pauli) float64 {
	var estimator, total float64
	support := p.Support()
	for key, freq := range in.untwirled() {
		parity := 0
		for _, q := range support {
			if q < len(key) && key[q] == '1' {
				parity ^= 1
			}
		}
		if parity == 1 {
			estimator -= float64(freq)
		} else {
			estimator += float64(freq)
		}
		total += float64(freq)
	}
	if total == 0 {
		return 0
	}
	return estimator / total
}
