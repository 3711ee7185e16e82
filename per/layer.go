package per

import (
	"fmt"
	"math/rand"
)

// CircuitLayer is one layer of the form
//
//	single-qubit gates + disjoint self-adjoint two-qubit Clifford gates
//
// Two layers with the same set of Clifford instructions share a noise
// profile, so Key only looks at Clifford.
type CircuitLayer struct {
	Single   Circuit
	Clifford Circuit

	layer Circuit
	key   string
	noise *NoiseModel
}

// NewCircuitLayer splits layer into its single-qubit and two-qubit parts.
// The two-qubit instructions must have pairwise disjoint supports.
func NewCircuitLayer(layer Circuit) (*CircuitLayer, error) {
	single := layer.CopyEmpty()
	cliff := layer.CopyEmpty()
	used := make(map[int]bool)
	for _, inst := range layer.Instructions() {
		switch Weight(inst) {
		case 1:
			single.AddInstruction(inst)
		case 2:
			for _, q := range inst.Support() {
				if used[q] {
					return nil, fmt.Errorf("%w: %s overlaps another two-qubit gate in the layer",
						ErrUnsupportedCircuit, InstructionKey(inst))
				}
				used[q] = true
			}
			cliff.AddInstruction(inst)
		default:
			return nil, fmt.Errorf("%w: %s acts on %d qubits", ErrUnsupportedCircuit, InstructionKey(inst), Weight(inst))
		}
	}
	return &CircuitLayer{
		Single:   single,
		Clifford: cliff,
		layer:    layer,
		key:      CircuitKey(cliff),
	}, nil
}

// Key is the fingerprint of the Clifford part. Layers with equal keys are
// benchmarked once and share a NoiseModel.
func (l *CircuitLayer) Key() string { return l.key }

// Circuit returns the full layer.
func (l *CircuitLayer) Circuit() Circuit { return l.layer }

// NoiseModel returns the attached model, nil until one is assigned.
func (l *CircuitLayer) NoiseModel() *NoiseModel { return l.noise }

// SetNoiseModel attaches the model learned for this layer's Clifford profile.
func (l *CircuitLayer) SetNoiseModel(m *NoiseModel) { l.noise = m }

// Sample appends one PER sample of the layer to circ: single-qubit gates, a
// random Pauli twirl, a correction drawn from the noise model at strength,
// the Clifford gates, a barrier, and the twirl pushed through the Clifford
// gates so it is undone in the next layer's frame. Returns the sign bit of
// the drawn correction and the layer overhead.
func (l *CircuitLayer) Sample(strength float64, circ Circuit, rng *rand.Rand) (int, float64, error) {
	if l.noise == nil {
		return 0, 0, fmt.Errorf("layer %q has no noise model", l.key)
	}
	dist := l.noise.DeriveScaling(strength)

	circ.Compose(l.Single)

	twirl := RandomPauli(rng, circ.NumQubits(), "")
	circ.AddPauli(twirl)

	op, sign := l.noise.Sample(dist, rng)
	circ.AddPauli(op)

	circ.Compose(l.Clifford)
	circ.Barrier()

	circ.AddPauli(l.Clifford.Conjugate(twirl))
	return sign, dist.Overhead, nil
}

// String lists the layer instructions.
func (l *CircuitLayer) String() string {
	return CircuitKey(l.layer)
}

// Partition breaks c into layers of single-qubit gates followed by disjoint
// two-qubit gates. Each sweep over the remaining instructions takes every
// instruction whose support avoids the qubits of two-qubit gates met so far
// in the sweep, placed or not, which keeps gate order on every qubit.
// Measurements and barriers are dropped; layers without two-qubit gates are
// discarded.
func Partition(c Circuit) ([]*CircuitLayer, error) {
	var remaining []Instruction
	for _, inst := range c.Instructions() {
		if inst.IsMeasurement() || inst.IsBarrier() {
			continue
		}
		if w := Weight(inst); w < 1 || w > 2 {
			return nil, fmt.Errorf("%w: %s acts on %d qubits", ErrUnsupportedCircuit, InstructionKey(inst), w)
		}
		remaining = append(remaining, inst)
	}

	var layers []*CircuitLayer
	for len(remaining) > 0 {
		circ := c.CopyEmpty()
		blocked := make(map[int]bool)
		var rest []Instruction
		for _, inst := range remaining {
			free := true
			for _, q := range inst.Support() {
				if blocked[q] {
					free = false
					break
				}
			}
			if free {
				circ.AddInstruction(inst)
			} else {
				rest = append(rest, inst)
			}
			if Weight(inst) == 2 {
				for _, q := range inst.Support() {
					blocked[q] = true
				}
			}
		}
		remaining = rest

		layer, err := NewCircuitLayer(circ)
		if err != nil {
			return nil, err
		}
		if len(layer.Clifford.Instructions()) > 0 {
			layers = append(layers, layer)
		}
	}
	return layers, nil
}
