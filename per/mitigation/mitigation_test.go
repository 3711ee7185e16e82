package mitigation

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
	"github.com/pauli-lindblad/plper/per/statevec"
	"github.com/pauli-lindblad/plper/per/tomography"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	goleak.VerifyTestMain(m)
}

// uniformFrame returns a frame for the cx(0,1) layer with rate on all 15
// two-qubit Paulis and unit SPAM.
func uniformFrame(t *testing.T, rate float64) *tomography.NoiseDataFrame {
	t.Helper()
	var terms []per.Pauli
	var coeffs []float64
	for _, a := range []byte("IXYZ") {
		for _, b := range []byte("IXYZ") {
			p := per.Pauli([]byte{a, b})
			if !p.IsIdentity() {
				terms = append(terms, p)
				coeffs = append(coeffs, rate)
			}
		}
	}
	m, err := per.NewNoiseModel(qasm.New(2).Append("cx", 0, 1), terms, coeffs)
	require.NoError(t, err)
	return tomography.NewNoiseDataFrame([]*per.NoiseModel{m}, map[per.Pauli]float64{"ZI": 1, "IZ": 1, "XI": 1, "IX": 1})
}

func device(t *testing.T) *qasm.Device {
	t.Helper()
	dev, err := qasm.NewDevice("pair", [][2]int{{0, 1}})
	require.NoError(t, err)
	return dev
}

func bellPrep() *qasm.Circuit {
	return qasm.New(2).Append("h", 0).Append("cx", 0, 1)
}

func TestPERData_RecoversKnownCurve(t *testing.T) {
	d := NewPERData("ZZ", 1)
	for _, s := range []float64{0, 0.5, 1, 1.5, 2} {
		d.add(s, 0.8*math.Exp(-0.5*s))
	}

	p, err := d.Fit()

	require.NoError(t, err)
	assert.InDelta(t, 0.8, p.A, 1e-6)
	assert.InDelta(t, -0.5, p.B, 1e-6)
	assert.InDelta(t, 0.8, d.Expectation(), 1e-6)
}

func TestPERData_NegativeObservable(t *testing.T) {
	d := NewPERData("ZI", 1)
	for _, s := range []float64{0.5, 1, 2} {
		d.add(s, -0.9*math.Exp(-0.2*s))
	}

	p, err := d.Fit()

	require.NoError(t, err)
	assert.InDelta(t, -0.9, p.A, 1e-6)
	assert.InDelta(t, -0.2, p.B, 1e-6)
}

func TestPERData_Plateau(t *testing.T) {
	// GIVEN identical values at every strength
	d := NewPERData("ZZ", 1)
	for _, s := range []float64{0, 1, 2} {
		d.add(s, 0.6)
		d.add(s, 0.6)
	}

	p, err := d.Fit()

	// THEN the fit is flat
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p.A, 1e-6)
	assert.InDelta(t, 0, p.B, 1e-6)
}

func TestPERData_AveragesPerStrength(t *testing.T) {
	d := NewPERData("ZZ", 1)
	d.add(1, 0.2)
	d.add(0.5, 0.9)
	d.add(1, 0.4)

	assert.Equal(t, []float64{0.5, 1}, d.Strengths())
	assert.InDeltaSlice(t, []float64{0.9, 0.3}, d.Expectations(), 1e-12)
}

func TestPERData_TooFewStrengths(t *testing.T) {
	d := NewPERData("ZZ", 1)
	d.add(1, 0.5)

	_, err := d.Fit()

	assert.ErrorIs(t, err, ErrTooFewStrengths)
	_, ok := d.Params()
	assert.False(t, ok)
}

func TestMeasBases_FirstFit(t *testing.T) {
	obs := []per.Pauli{"ZIZ", "IZI", "XII", "IIX", "ZZZ"}

	bases := MeasBases(obs)

	assert.Equal(t, []per.Pauli{"ZZZ", "XIX"}, bases)
	for _, p := range obs {
		found := false
		for _, b := range bases {
			found = found || b.Simultaneous(p)
		}
		assert.True(t, found, "%s not measurable", p)
	}
}

func TestPERCircuit_AttachAndOverhead(t *testing.T) {
	c := bellPrep().Append("h", 1).Append("cx", 0, 1)
	pc, err := NewPERCircuit(c)
	require.NoError(t, err)
	require.Len(t, pc.Layers(), 2)

	require.NoError(t, pc.AttachNoiseModels(uniformFrame(t, 0.01)))

	// Two occurrences of the layer, 15 suppressed terms each.
	assert.InDelta(t, math.Exp(2*0.01*15*2), pc.Overhead(0), 1e-12)
	assert.Equal(t, 1.0, pc.Overhead(1))
	assert.GreaterOrEqual(t, pc.Overhead(0), pc.Overhead(0.5))
	spam, ok := pc.SPAM("ZI")
	assert.True(t, ok)
	assert.Equal(t, 1.0, spam)
}

func TestPERRun_SPAMCorrection(t *testing.T) {
	pc, err := NewPERCircuit(bellPrep())
	require.NoError(t, err)
	m, _ := uniformFrame(t, 0.01).Model("cx(0,1)")
	frame := tomography.NewNoiseDataFrame([]*per.NoiseModel{m}, map[per.Pauli]float64{"ZI": 0, "IZ": 0.9, "XI": 0.8})
	require.NoError(t, pc.AttachNoiseModels(frame))
	r := &PERRun{pc: pc}

	tests := []struct {
		obs  per.Pauli
		want float64
	}{
		{"IZ", 0.9},
		{"XZ", 0.8 * 0.9},
		{"ZZ", 0.9}, // zero coefficient on ZI falls back to 1
		{"IX", 1},   // missing coefficient
	}
	for _, tt := range tests {
		t.Run(string(tt.obs), func(t *testing.T) {
			got := r.spamFor(tt.obs)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.False(t, math.IsInf(1/got, 0))
		})
	}
}

func TestPERCircuit_MissingNoiseModel(t *testing.T) {
	pc, err := NewPERCircuit(qasm.New(2).Append("cz", 0, 1))
	require.NoError(t, err)

	err = pc.AttachNoiseModels(uniformFrame(t, 0.01))

	assert.ErrorIs(t, err, ErrMissingNoiseModel)
}

func TestPERInstance_StrengthOneIsUnmitigated(t *testing.T) {
	// At strength 1 nothing is inserted, so the instance is the ideal
	// circuit up to twirls.
	pc, err := NewPERCircuit(qasm.New(2).Append("x", 0).Append("cx", 0, 1))
	require.NoError(t, err)
	require.NoError(t, pc.AttachNoiseModels(uniformFrame(t, 0.02)))
	sim, err := statevec.NewSimulator(statevec.Config{Shots: 20, Trajectories: 1}, 1)
	require.NoError(t, err)
	rng := per.NewPartitionedRNG(4)

	for i := 0; i < 10; i++ {
		inst, err := NewPERInstance(device(t), []int{0, 1}, pc, "ZZ", 1, rng.Derive(per.SubsystemInstance("one", i)))
		require.NoError(t, err)
		assert.Equal(t, 0, inst.Sign)
		assert.Equal(t, 1.0, inst.Overhead)

		res, err := sim.Execute(context.Background(), []any{inst.Native()})
		require.NoError(t, err)
		inst.AddResult(res[0])
		assert.Equal(t, 1.0, inst.AdjustedExpectation("ZZ"))
		assert.Equal(t, -1.0, inst.AdjustedExpectation("ZI"))
		assert.Equal(t, -1.0, inst.AdjustedExpectation("IZ"))
	}
}

func TestPERInstance_SignAndOverhead(t *testing.T) {
	pc, err := NewPERCircuit(bellPrep())
	require.NoError(t, err)
	require.NoError(t, pc.AttachNoiseModels(uniformFrame(t, 0.05)))
	rng := per.NewPartitionedRNG(8)

	for i := 0; i < 20; i++ {
		inst, err := NewPERInstance(device(t), []int{0, 1}, pc, "ZZ", 0, rng.Derive(per.SubsystemInstance("zero", i)))
		require.NoError(t, err)
		assert.InDelta(t, pc.Overhead(0), inst.Overhead, 1e-12)
		assert.Contains(t, []int{0, 1}, inst.Sign)

		inst.AddResult(per.Counts{"00": 1})
		raw := inst.Expectation("ZZ")
		want := raw * inst.Overhead
		if inst.Sign == 1 {
			want = -want
		}
		assert.Equal(t, want, inst.AdjustedExpectation("ZZ"))
	}
}

func TestExperiment_Validation(t *testing.T) {
	frame := uniformFrame(t, 0.01)

	_, err := NewExperiment(nil, []int{0, 1}, frame, device(t), per.NewPartitionedRNG(1))
	assert.Error(t, err)

	_, err = NewExperiment([]per.Circuit{qasm.New(2).Append("cz", 0, 1)}, []int{0, 1}, frame, device(t), per.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, ErrMissingNoiseModel)

	e, err := NewExperiment([]per.Circuit{bellPrep()}, []int{0, 1}, frame, device(t), per.NewPartitionedRNG(1))
	require.NoError(t, err)

	err = e.Generate(context.Background(), []per.Pauli{"ZZ"}, 1, []float64{1})
	assert.ErrorIs(t, err, ErrTooFewStrengths)
	assert.Error(t, e.Generate(context.Background(), []per.Pauli{"ZZZ"}, 1, []float64{0, 1}))
	assert.Error(t, e.Generate(context.Background(), []per.Pauli{"II"}, 1, []float64{0, 1}))
	assert.Error(t, e.Run(context.Background(), statevecExecutor(t, statevec.DefaultConfig())))

	_, err = e.Overhead(3, 0)
	assert.Error(t, err)
}

func statevecExecutor(t *testing.T, cfg statevec.Config) per.Executor {
	t.Helper()
	sim, err := statevec.NewSimulator(cfg, 99)
	require.NoError(t, err)
	return sim.Executor()
}

func TestExperiment_NoiselessBellState(t *testing.T) {
	// GIVEN a zero-rate model and an ideal executor
	e, err := NewExperiment([]per.Circuit{bellPrep()}, []int{0, 1}, uniformFrame(t, 0), device(t), per.NewPartitionedRNG(2))
	require.NoError(t, err)

	require.NoError(t, e.Generate(context.Background(), []per.Pauli{"ZZ", "XX", "ZI", "ZZ"}, 4, []float64{0, 0.5, 1}))
	assert.Equal(t, []per.Pauli{"ZZ", "XX"}, e.Bases())
	require.NoError(t, e.Run(context.Background(), statevecExecutor(t, statevec.Config{Shots: 200, Trajectories: 1})))
	runs, err := e.Analyze()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	// THEN the Bell correlations are exact and ZI is unbiased
	zz, err := runs[0].Result("ZZ")
	require.NoError(t, err)
	assert.InDelta(t, 1, zz.Expectation(), 1e-6)
	xx, err := runs[0].Result("XX")
	require.NoError(t, err)
	assert.InDelta(t, 1, xx.Expectation(), 1e-6)
	zi, err := runs[0].Result("ZI")
	require.NoError(t, err)
	assert.InDelta(t, 0, zi.Expectation(), 0.2)

	_, err = runs[0].Result("YY")
	assert.Error(t, err)
	overhead, err := e.Overhead(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, overhead)
}

func TestExperiment_MitigatesUniformNoise(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	// GIVEN a simulator whose cx noise matches the attached model, where
	// <ZZ> decays as exp(-16·r·strength)
	const rate = 0.01
	e, err := NewExperiment([]per.Circuit{bellPrep()}, []int{0, 1}, uniformFrame(t, rate), device(t), per.NewPartitionedRNG(5))
	require.NoError(t, err)
	cfg := statevec.Config{Shots: 20, Trajectories: 20, TwoQubitRate: rate}

	require.NoError(t, e.Generate(context.Background(), []per.Pauli{"ZZ"}, 400, []float64{0, 0.5, 1}))
	require.NoError(t, e.Run(context.Background(), statevecExecutor(t, cfg)))
	runs, err := e.Analyze()
	require.NoError(t, err)

	// THEN the extrapolation undoes the decay
	zz, err := runs[0].Result("ZZ")
	require.NoError(t, err)
	assert.InDelta(t, 1, zz.Expectation(), 0.15)
	ys := zz.Expectations()
	assert.InDelta(t, math.Exp(-16*rate), ys[len(ys)-1], 0.05)
}
