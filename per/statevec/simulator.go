// Package statevec is a noisy state-vector Executor for local runs and
// tests. Every two-qubit gate is followed by a sparse Pauli-Lindblad channel
// with the same rate on all 15 non-identity Paulis of the gate's qubits, and
// every measured bit flips with a fixed readout error.
package statevec

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
)

// MaxQubits bounds the state size.
const MaxQubits = 20

// Config holds the simulator parameters.
type Config struct {
	Shots        int     `yaml:"shots"`
	Trajectories int     `yaml:"trajectories"`
	TwoQubitRate float64 `yaml:"two_qubit_rate"`
	ReadoutError float64 `yaml:"readout_error"`
}

// DefaultConfig returns a noiseless simulator with 1024 shots.
func DefaultConfig() Config {
	return Config{Shots: 1024, Trajectories: 32}
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	if c.Shots <= 0 {
		return fmt.Errorf("shots must be positive, got %d", c.Shots)
	}
	if c.Trajectories <= 0 {
		return fmt.Errorf("trajectories must be positive, got %d", c.Trajectories)
	}
	if c.TwoQubitRate < 0 || math.IsNaN(c.TwoQubitRate) {
		return fmt.Errorf("two_qubit_rate must be non-negative, got %v", c.TwoQubitRate)
	}
	if c.ReadoutError < 0 || c.ReadoutError > 0.5 {
		return fmt.Errorf("readout_error must be in [0, 0.5], got %v", c.ReadoutError)
	}
	return nil
}

// Simulator runs *qasm.Circuit values. It is safe for concurrent use.
type Simulator struct {
	cfg     Config
	rng     *per.PartitionedRNG
	batches atomic.Int64
	// termProb is the firing probability of each of the 15 noise terms.
	termProb float64
}

// NewSimulator returns a simulator whose randomness is derived from key.
func NewSimulator(cfg Config, key per.ExperimentKey) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulator config: %w", err)
	}
	return &Simulator{
		cfg:      cfg,
		rng:      per.NewPartitionedRNG(key),
		termProb: 0.5 * (1 - math.Exp(-2*cfg.TwoQubitRate)),
	}, nil
}

// Executor adapts the simulator to per.Executor.
func (s *Simulator) Executor() per.Executor { return s.Execute }

// Execute implements per.Executor. Circuits are simulated in parallel and
// results keep the input order.
func (s *Simulator) Execute(ctx context.Context, circuits []any) ([]per.Counts, error) {
	batch := s.batches.Add(1)
	scope := fmt.Sprintf("%s/batch_%d", per.SubsystemExecutor, batch)

	results := make([]per.Counts, len(circuits))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, native := range circuits {
		i, native := i, native
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, ok := native.(*qasm.Circuit)
			if !ok {
				return fmt.Errorf("%w: circuit %d is %T, want *qasm.Circuit", per.ErrUnsupportedCircuit, i, native)
			}
			counts, err := s.run(c, s.rng.Derive(per.SubsystemInstance(scope, i)))
			if err != nil {
				return fmt.Errorf("circuit %d: %w", i, err)
			}
			results[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logrus.Debugf("statevec: executed batch %d with %d circuits", batch, len(circuits))
	return results, nil
}

// run samples the configured shots, split evenly across trajectories.
func (s *Simulator) run(c *qasm.Circuit, rng *rand.Rand) (per.Counts, error) {
	n := c.NumQubits()
	if n > MaxQubits {
		return nil, fmt.Errorf("statevec: %d qubits exceeds the limit of %d", n, MaxQubits)
	}
	gates := c.Gates()
	measured := make([]bool, n)
	for _, g := range gates {
		if g.IsMeasurement() {
			measured[g.Qubits[0]] = true
		}
	}

	counts := make(per.Counts)
	trajectories := min(s.cfg.Trajectories, s.cfg.Shots)
	for t := 0; t < trajectories; t++ {
		shots := s.cfg.Shots / trajectories
		if t < s.cfg.Shots%trajectories {
			shots++
		}
		st := newState(n)
		for _, g := range gates {
			if err := st.gate(g.Op, g.Qubits, g.Params); err != nil {
				return nil, err
			}
			if len(g.Qubits) == 2 && !g.IsBarrier() {
				s.noise(st, g.Qubits, rng)
			}
		}
		s.sample(st, measured, shots, rng, counts)
	}
	return counts, nil
}

// noise applies each non-identity Pauli on the pair independently.
func (s *Simulator) noise(st *state, qs []int, rng *rand.Rand) {
	if s.termProb == 0 {
		return
	}
	const labels = "IXYZ"
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			if a == 0 && b == 0 {
				continue
			}
			if rng.Float64() < s.termProb {
				st.pauli(qs[0], labels[a])
				st.pauli(qs[1], labels[b])
			}
		}
	}
}

// sample draws shots outcomes, applies readout flips and records bit
// strings with qubit i at character i. Unmeasured qubits read 0.
func (s *Simulator) sample(st *state, measured []bool, shots int, rng *rand.Rand, counts per.Counts) {
	cdf := st.probabilities()
	floats.CumSum(cdf, cdf)
	total := cdf[len(cdf)-1]
	var b strings.Builder
	for k := 0; k < shots; k++ {
		r := rng.Float64() * total
		idx := sort.Search(len(cdf), func(i int) bool { return cdf[i] > r })
		if idx >= len(cdf) {
			idx = len(cdf) - 1
		}
		b.Reset()
		for q := 0; q < st.n; q++ {
			bit := idx>>q&1 == 1
			if !measured[q] {
				bit = false
			} else if s.cfg.ReadoutError > 0 && rng.Float64() < s.cfg.ReadoutError {
				bit = !bit
			}
			if bit {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		counts[b.String()]++
	}
}
