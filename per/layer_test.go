package per_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
)

func keys(c per.Circuit) []string {
	var out []string
	for _, inst := range c.Instructions() {
		out = append(out, per.InstructionKey(inst))
	}
	return out
}

func TestPartition_BellPair(t *testing.T) {
	c := qasm.New(2).Append("h", 0).Append("cx", 0, 1).Append("h", 1).Append("cx", 0, 1)
	c.MeasureAll()

	layers, err := per.Partition(c)

	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, []string{"h(0)"}, keys(layers[0].Single))
	assert.Equal(t, []string{"h(1)"}, keys(layers[1].Single))
	for _, l := range layers {
		assert.Equal(t, "cx(0,1)", l.Key())
	}
}

func TestPartition_ParallelGatesShareALayer(t *testing.T) {
	c := qasm.New(4).
		Append("cx", 0, 1).
		Append("cx", 2, 3).
		Append("h", 1).
		Append("cx", 1, 2)

	layers, err := per.Partition(c)

	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, "cx(0,1) cx(2,3)", layers[0].Key())
	assert.Empty(t, layers[0].Single.Instructions())
	assert.Equal(t, "cx(1,2)", layers[1].Key())
	assert.Equal(t, []string{"h(1)"}, keys(layers[1].Single))
}

func TestPartition_KeepsEveryGateOnce(t *testing.T) {
	// GIVEN a circuit ending in two-qubit gates
	c := qasm.New(3).
		Append("h", 0).Append("s", 2).
		Append("cz", 0, 1).
		Append("x", 2).
		Append("cx", 1, 2).
		Append("h", 0).
		Append("cx", 0, 1)

	layers, err := per.Partition(c)
	require.NoError(t, err)

	// THEN the layers hold the input gates and no two Clifford gates of
	// a layer touch the same qubit
	var got []string
	for _, l := range layers {
		got = append(got, keys(l.Circuit())...)
		used := map[int]bool{}
		for _, inst := range l.Clifford.Instructions() {
			for _, q := range inst.Support() {
				assert.False(t, used[q], "qubit %d reused in %s", q, l)
				used[q] = true
			}
		}
	}
	want := keys(c)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestPartition_DropsTrailingSingleQubitGates(t *testing.T) {
	c := qasm.New(2).Append("cx", 0, 1).Append("x", 1)
	c.Barrier()

	layers, err := per.Partition(c)

	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "cx(0,1)", layers[0].Key())
}

func TestNewCircuitLayer_OverlappingGates(t *testing.T) {
	_, err := per.NewCircuitLayer(qasm.New(3).Append("cx", 0, 1).Append("cx", 1, 2))

	assert.ErrorIs(t, err, per.ErrUnsupportedCircuit)
}

func TestCircuitLayer_SampleWithoutModel(t *testing.T) {
	l, err := per.NewCircuitLayer(qasm.New(2).Append("cx", 0, 1))
	require.NoError(t, err)

	_, _, err = l.Sample(1, qasm.New(2), rand.New(rand.NewSource(1)))

	assert.Error(t, err)
}

func TestCircuitLayer_SampleEndsInBarrierAndTwirl(t *testing.T) {
	layer := qasm.New(2).Append("h", 0).Append("cx", 0, 1)
	l, err := per.NewCircuitLayer(layer)
	require.NoError(t, err)
	m, err := per.NewNoiseModel(l.Clifford, []per.Pauli{"XI", "IZ"}, []float64{0.01, 0.02})
	require.NoError(t, err)
	l.SetNoiseModel(m)

	circ := qasm.New(2)
	sign, overhead, err := l.Sample(1, circ, rand.New(rand.NewSource(4)))

	require.NoError(t, err)
	assert.Equal(t, 0, sign)
	assert.Equal(t, 1.0, overhead)
	gates := keys(circ)
	assert.Equal(t, "h(0)", gates[0])
	assert.Contains(t, gates, "cx(0,1)")
	assert.Contains(t, gates, "barrier(0,1)")
}
