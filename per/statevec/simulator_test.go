package statevec

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
)

func noiseless(t *testing.T, shots int) *Simulator {
	t.Helper()
	sim, err := NewSimulator(Config{Shots: shots, Trajectories: 1}, per.NewExperimentKey(7))
	require.NoError(t, err)
	return sim
}

func TestExecute_DeterministicCircuits(t *testing.T) {
	tests := []struct {
		name string
		circ *qasm.Circuit
		want string
	}{
		{"empty", qasm.New(2), "00"},
		{"x on qubit 1", qasm.New(2).Append("x", 1), "01"},
		{"bell flip", qasm.New(2).Append("x", 0).Append("cx", 0, 1), "11"},
		{"hh is identity", qasm.New(1).Append("h", 0).Append("h", 0), "0"},
		{"y flips", qasm.New(1).Append("y", 0), "1"},
		{"swap", qasm.New(3).Append("x", 0).Append("swap", 0, 2), "001"},
		{"s sdg", qasm.New(1).Append("h", 0).Append("s", 0).Append("sdg", 0).Append("h", 0), "0"},
		{"sx twice", qasm.New(1).Append("sx", 0).Append("sx", 0), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.circ.MeasureAll()
			res, err := noiseless(t, 100).Execute(context.Background(), []any{tt.circ})
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, per.Counts{tt.want: 100}, res[0])
		})
	}
}

func TestExecute_PreservesOrder(t *testing.T) {
	var circuits []any
	for i := 0; i < 8; i++ {
		c := qasm.New(3)
		for q := 0; q < 3; q++ {
			if i>>q&1 == 1 {
				c.Append("x", q)
			}
		}
		c.MeasureAll()
		circuits = append(circuits, c)
	}

	res, err := noiseless(t, 10).Execute(context.Background(), circuits)

	require.NoError(t, err)
	require.Len(t, res, 8)
	for i, counts := range res {
		want := []byte("000")
		for q := 0; q < 3; q++ {
			if i>>q&1 == 1 {
				want[q] = '1'
			}
		}
		assert.Equal(t, per.Counts{string(want): 10}, counts, "circuit %d", i)
	}
}

func TestExecute_SuperpositionIsBalanced(t *testing.T) {
	c := qasm.New(1).Append("h", 0)
	c.MeasureAll()

	res, err := noiseless(t, 4000).Execute(context.Background(), []any{c})

	require.NoError(t, err)
	assert.InDelta(t, 2000, res[0]["0"], 200)
	assert.Equal(t, 4000, res[0]["0"]+res[0]["1"])
}

func TestExecute_ReadoutErrorFlipsBits(t *testing.T) {
	sim, err := NewSimulator(Config{Shots: 5000, Trajectories: 1, ReadoutError: 0.1}, per.NewExperimentKey(3))
	require.NoError(t, err)
	c := qasm.New(1)
	c.MeasureAll()

	res, err := sim.Execute(context.Background(), []any{c})

	require.NoError(t, err)
	assert.InDelta(t, 500, res[0]["1"], 120)
}

func TestExecute_TwoQubitNoiseDecaysZZ(t *testing.T) {
	// Per cx, the 8 Paulis anticommuting with ZZ after the gate flip its sign;
	// each fires with p = (1-exp(-2r))/2, so <ZZ> = (1-2p)^8 = exp(-16r).
	rate := 0.01
	sim, err := NewSimulator(Config{Shots: 20000, Trajectories: 4000, TwoQubitRate: rate}, per.NewExperimentKey(11))
	require.NoError(t, err)
	c := qasm.New(2).Append("cx", 0, 1)
	c.MeasureAll()

	res, err := sim.Execute(context.Background(), []any{c})
	require.NoError(t, err)

	var zz float64
	for bits, n := range res[0] {
		sign := 1.0
		if (bits[0] == '1') != (bits[1] == '1') {
			sign = -1
		}
		zz += sign * float64(n)
	}
	zz /= 20000
	assert.InDelta(t, math.Exp(-16*rate), zz, 0.03)
}

func TestExecute_RejectsForeignCircuit(t *testing.T) {
	_, err := noiseless(t, 1).Execute(context.Background(), []any{"not a circuit"})
	assert.ErrorIs(t, err, per.ErrUnsupportedCircuit)
}

func TestExecute_SameKeySameCounts(t *testing.T) {
	cfg := Config{Shots: 500, Trajectories: 10, TwoQubitRate: 0.05, ReadoutError: 0.02}
	c := qasm.New(2).Append("h", 0).Append("cx", 0, 1)
	c.MeasureAll()

	a, err := NewSimulator(cfg, per.NewExperimentKey(5))
	require.NoError(t, err)
	b, err := NewSimulator(cfg, per.NewExperimentKey(5))
	require.NoError(t, err)
	ra, err := a.Execute(context.Background(), []any{c})
	require.NoError(t, err)
	rb, err := b.Execute(context.Background(), []any{c})
	require.NoError(t, err)

	assert.Equal(t, ra, rb)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Shots: 0, Trajectories: 1}.Validate())
	assert.Error(t, Config{Shots: 1, Trajectories: 0}.Validate())
	assert.Error(t, Config{Shots: 1, Trajectories: 1, TwoQubitRate: -1}.Validate())
	assert.Error(t, Config{Shots: 1, Trajectories: 1, ReadoutError: 0.7}.Validate())
}
