package per_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
	"github.com/pauli-lindblad/plper/per/statevec"
)

// twirled applies the readout twirl to an ideal bit string.
func twirled(bits string, twirl per.Pauli) string {
	b := []byte(bits)
	for i := range b {
		if twirl.At(i) == 'X' {
			b[i] ^= '0' ^ '1'
		}
	}
	return string(b)
}

func TestInstance_UntwirlsReadout(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		inst := per.NewInstance(qasm.New(2).Append("x", 0), "ZZ")
		inst.Finish(rng)

		inst.AddResult(per.Counts{twirled("10", inst.ReadoutTwirl()): 100})

		assert.Equal(t, -1.0, inst.Expectation("ZI"))
		assert.Equal(t, 1.0, inst.Expectation("IZ"))
		assert.Equal(t, -1.0, inst.Expectation("ZZ"))
	}
}

func TestInstance_ExpectationMixesCounts(t *testing.T) {
	inst := per.NewInstance(qasm.New(2), "ZZ")
	assert.Equal(t, 0.0, inst.Expectation("ZZ"), "no results yet")

	inst.AddResult(per.Counts{"00": 3, "01": 1})

	assert.Equal(t, 0.5, inst.Expectation("ZZ"))
	assert.Equal(t, 1.0, inst.Expectation("ZI"))
	assert.Equal(t, 0.5, inst.Expectation("IZ"))
}

func TestInstance_MeasuresInRotatedBasis(t *testing.T) {
	// GIVEN |+>|+i>, an eigenstate of XY
	c := qasm.New(2).Append("h", 0).Append("h", 1).Append("s", 1)
	inst := per.NewInstance(c, "XY")
	inst.Finish(rand.New(rand.NewSource(5)))
	sim, err := statevec.NewSimulator(statevec.Config{Shots: 50, Trajectories: 1}, 1)
	require.NoError(t, err)

	res, err := sim.Execute(context.Background(), []any{inst.Native()})
	require.NoError(t, err)
	inst.AddResult(res[0])

	assert.Equal(t, 1.0, inst.Expectation("XY"))
	assert.Equal(t, 1.0, inst.Expectation("XI"))
	assert.Equal(t, 1.0, inst.Expectation("IY"))
}
