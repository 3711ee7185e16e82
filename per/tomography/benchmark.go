package tomography

import (
	"fmt"
	"math/rand"

	"github.com/pauli-lindblad/plper/per"
)

// InstanceKind tells how a benchmark instance contributes to the fit.
type InstanceKind int

const (
	// KindPair instances sweep the depth and measure the product fidelity of
	// a term and its conjugate.
	KindPair InstanceKind = iota
	// KindSingle instances run the layer once to lift the pair degeneracy.
	KindSingle
)

func (k InstanceKind) String() string {
	if k == KindSingle {
		return "single"
	}
	return "pair"
}

// BenchmarkInstance is one randomized circuit: prepare the +1 eigenstate of
// PrepBasis, apply Depth twirled repetitions of the Clifford layer, undo the
// accumulated twirl frame, and measure in the measurement basis.
type BenchmarkInstance struct {
	*per.Instance

	PrepBasis per.Pauli
	Layer     per.Circuit
	LayerKey  string
	Depth     int
	Kind      InstanceKind
}

// NewBenchmarkInstance builds and transpiles the instance circuit. All
// randomness comes from rng, which the instance may consume freely.
func NewBenchmarkInstance(
	prep, meas per.Pauli,
	depth int,
	spec *ProcessorSpec,
	layer per.Circuit,
	kind InstanceKind,
	rng *rand.Rand,
) (*BenchmarkInstance, error) {
	n := layer.NumQubits()
	circ := layer.CopyEmpty()
	frame := per.Identity(n)

	circ.Compose(circ.BasisChange(prep))

	// frame always equals the product of all twirls pushed through the
	// layers applied so far, so appending it at the end undoes them.
	for i := 0; i < depth; i++ {
		twirl := per.RandomPauli(rng, n, "")
		frame = layer.Conjugate(frame.Mul(twirl))
		circ.AddPauli(twirl)
		circ.Compose(layer)
		circ.Barrier()
	}
	circ.AddPauli(frame)

	inst := per.NewInstance(circ, meas)
	inst.Finish(rng)
	transpiled, err := spec.Transpile(inst.Circuit())
	if err != nil {
		return nil, fmt.Errorf("benchmark instance (%s, depth %d): %w", meas, depth, err)
	}
	inst.SetCircuit(transpiled)

	return &BenchmarkInstance{
		Instance:  inst,
		PrepBasis: prep,
		Layer:     layer,
		LayerKey:  per.CircuitKey(layer),
		Depth:     depth,
		Kind:      kind,
	}, nil
}
