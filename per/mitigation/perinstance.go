package mitigation

import (
	"fmt"
	"math/rand"

	"github.com/pauli-lindblad/plper/per"
)

// PERInstance is one sampled rendition of a PERCircuit.
type PERInstance struct {
	*per.Instance

	Strength float64
	// Sign is the XOR of the sign bits sampled in every layer.
	Sign int
	// Overhead is the product of the layer overheads.
	Overhead float64
}

// NewPERInstance samples every layer of pc at strength, measures in basis
// and transpiles for the processor.
func NewPERInstance(
	processor per.Processor,
	qubitMap []int,
	pc *PERCircuit,
	basis per.Pauli,
	strength float64,
	rng *rand.Rand,
) (*PERInstance, error) {
	circ := pc.circ.CopyEmpty()
	pi := &PERInstance{Strength: strength, Overhead: 1}
	for i, l := range pc.layers {
		sign, overhead, err := l.Sample(strength, circ, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		pi.Sign ^= sign
		pi.Overhead *= overhead
	}

	inst := per.NewInstance(circ, basis)
	inst.Finish(rng)
	transpiled, err := processor.Transpile(inst.Circuit(), qubitMap)
	if err != nil {
		return nil, fmt.Errorf("PER instance (%s, strength %g): %w", basis, strength, err)
	}
	inst.SetCircuit(transpiled)
	pi.Instance = inst
	return pi, nil
}

// AdjustedExpectation is the raw estimate of p rescaled by the overhead and
// the sampled sign.
func (pi *PERInstance) AdjustedExpectation(p per.Pauli) float64 {
	e := pi.Expectation(p) * pi.Overhead
	if pi.Sign == 1 {
		return -e
	}
	return e
}
