package tomography

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
	"github.com/pauli-lindblad/plper/per/statevec"
)

func cxLayer() *qasm.Circuit { return qasm.New(2).Append("cx", 0, 1) }

func TestLayerLearning_CXPairs(t *testing.T) {
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	l := NewLayerLearning(cxLayer(), spec)

	// Terms fixed by cx are not degenerate.
	for _, p := range []string{"ZI", "IX", "ZX"} {
		assert.Equal(t, per.MustPauli(p), l.Pair(per.MustPauli(p)))
		assert.False(t, l.IsSingle(per.MustPauli(p)), p)
	}

	want := [][2]per.Pauli{
		{"IY", "ZY"}, {"IZ", "ZZ"}, {"XI", "XX"},
		{"XY", "YZ"}, {"XZ", "YY"}, {"YI", "YX"},
	}
	assert.Equal(t, want, l.SinglePairs())
	for _, pair := range want {
		assert.True(t, l.IsSingle(pair[0]))
		assert.True(t, l.IsSingle(pair[1]))
		assert.Equal(t, pair[1], l.Pair(pair[0]))
	}

	// Every pair overlaps every other on two qubits, so no packing happens.
	assert.ElementsMatch(t,
		[]per.Pauli{"ZY", "ZZ", "XX", "YZ", "YY", "YX"},
		l.SingleBases())
}

func TestLayerLearning_PacksDisjointPairs(t *testing.T) {
	// GIVEN two cx gates on disjoint edges of a 4-qubit line
	spec := newSpec(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, []int{0, 1, 2, 3})
	layer := qasm.New(4).Append("cx", 0, 1).Append("cx", 2, 3)

	l := NewLayerLearning(layer, spec)

	// THEN pairs on different gates share bases
	assert.Less(t, len(l.SingleBases()), len(l.SinglePairs()))
	for _, pair := range l.SinglePairs() {
		covered := false
		for _, b := range l.SingleBases() {
			if b.Simultaneous(pair[1]) && layer.Conjugate(b).Simultaneous(pair[0]) {
				covered = true
				break
			}
		}
		assert.True(t, covered, "pair %v not measured by any single basis", pair)
	}
}

func TestLayerLearning_Procedure(t *testing.T) {
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	l := NewLayerLearning(cxLayer(), spec)

	insts, err := l.Procedure(context.Background(), 2, 3, []int{0, 2}, per.NewPartitionedRNG(per.NewExperimentKey(1)))

	require.NoError(t, err)
	require.Len(t, insts, NumBases*2*2+6*3)
	pairs, singles := 0, 0
	for _, inst := range insts {
		switch inst.Kind {
		case KindPair:
			pairs++
			assert.Equal(t, inst.PrepBasis, inst.MeasBasis())
		case KindSingle:
			singles++
			assert.Equal(t, 1, inst.Depth)
			assert.Equal(t, cxLayer().Conjugate(inst.MeasBasis()), inst.PrepBasis)
		}
		assert.Equal(t, "cx(0,1)", inst.LayerKey)
	}
	assert.Equal(t, 36, pairs)
	assert.Equal(t, 18, singles)
}

func TestLayerLearning_ProcedureIsReproducible(t *testing.T) {
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	l := NewLayerLearning(cxLayer(), spec)
	gen := func() []string {
		insts, err := l.Procedure(context.Background(), 3, 2, []int{1, 3, 5}, per.NewPartitionedRNG(per.NewExperimentKey(42)))
		require.NoError(t, err)
		out := make([]string, len(insts))
		for i, inst := range insts {
			out[i] = inst.Circuit().(*qasm.Circuit).QASM()
		}
		return out
	}

	assert.Equal(t, gen(), gen())
}

func TestLayerLearning_TooFewDepths(t *testing.T) {
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	l := NewLayerLearning(cxLayer(), spec)

	_, err := l.Procedure(context.Background(), 1, 1, []int{4}, per.NewPartitionedRNG(1))

	assert.ErrorIs(t, err, ErrTooFewDepths)
}

func TestBenchmarkInstance_NoiselessFrameIsIdentity(t *testing.T) {
	// With an ideal executor the twirl frame must cancel: at even depth a
	// self-inverse layer is the identity, so every term in the basis reads +1.
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	rng := per.NewPartitionedRNG(per.NewExperimentKey(9))
	sim, err := statevec.NewSimulator(statevec.Config{Shots: 50, Trajectories: 1}, 9)
	require.NoError(t, err)

	var insts []*BenchmarkInstance
	var natives []any
	for i, basis := range spec.MeasBases() {
		for _, depth := range []int{0, 2, 4} {
			inst, err := NewBenchmarkInstance(basis, basis, depth, spec, cxLayer(), KindPair,
				rng.Derive(per.SubsystemInstance("frame", i*10+depth)))
			require.NoError(t, err)
			insts = append(insts, inst)
			natives = append(natives, inst.Native())
		}
	}
	results, err := sim.Execute(context.Background(), natives)
	require.NoError(t, err)

	for i, inst := range insts {
		inst.AddResult(results[i])
		for _, term := range spec.ModelTerms() {
			if inst.MeasBasis().Simultaneous(term) {
				assert.Equal(t, 1.0, inst.Expectation(term), "basis %s depth %d term %s", inst.MeasBasis(), inst.Depth, term)
			}
		}
	}
}

func TestBenchmarkInstance_SingleReadsConjugatePair(t *testing.T) {
	spec := newSpec(t, [][2]int{{0, 1}}, []int{0, 1})
	sim, err := statevec.NewSimulator(statevec.Config{Shots: 50, Trajectories: 1}, 2)
	require.NoError(t, err)
	meas := per.MustPauli("ZZ")
	prep := cxLayer().Conjugate(meas)

	inst, err := NewBenchmarkInstance(prep, meas, 1, spec, cxLayer(), KindSingle, per.NewPartitionedRNG(2).Derive("single"))
	require.NoError(t, err)
	results, err := sim.Execute(context.Background(), []any{inst.Native()})
	require.NoError(t, err)
	inst.AddResult(results[0])

	assert.Equal(t, per.MustPauli("IZ"), prep)
	assert.InDelta(t, 1.0, abs(inst.Expectation("ZZ")), 1e-12)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
