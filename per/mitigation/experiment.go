package mitigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/tomography"
)

// ErrTooFewStrengths is returned when fewer than two noise strengths are
// requested; the extrapolation needs at least two points.
var ErrTooFewStrengths = errors.New("extrapolation needs at least 2 noise strengths")

// Experiment runs PER on a set of circuits with a learned noise data frame.
type Experiment struct {
	ID uuid.UUID

	processor per.Processor
	qubitMap  []int
	rng       *per.PartitionedRNG
	circuits  []*PERCircuit
	bases     []per.Pauli
	runs      []*PERRun
}

// NewExperiment parses every circuit and attaches the frame's models. Every
// layer must have been benchmarked.
func NewExperiment(
	circuits []per.Circuit,
	qubitMap []int,
	frame *tomography.NoiseDataFrame,
	processor per.Processor,
	rng *per.PartitionedRNG,
) (*Experiment, error) {
	if len(circuits) == 0 {
		return nil, fmt.Errorf("mitigation: no circuits")
	}
	e := &Experiment{
		ID:        uuid.New(),
		processor: processor,
		qubitMap:  append([]int(nil), qubitMap...),
		rng:       rng,
	}
	for i, c := range circuits {
		if c.NumQubits() != len(qubitMap) {
			return nil, fmt.Errorf("circuit %d acts on %d qubits but the qubit map has %d", i, c.NumQubits(), len(qubitMap))
		}
		pc, err := NewPERCircuit(c)
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
		if err := pc.AttachNoiseModels(frame); err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
		e.circuits = append(e.circuits, pc)
	}
	return e, nil
}

// MeasBases packs the observables first-fit into composite bases: an
// observable joins the first basis it agrees with on every shared qubit.
func MeasBases(observables []per.Pauli) []per.Pauli {
	var bases []per.Pauli
	for _, p := range observables {
		placed := false
		for i, b := range bases {
			if b.NonOverlapping(p) {
				bases[i] = b.Composite(p)
				placed = true
				break
			}
		}
		if !placed {
			bases = append(bases, p)
		}
	}
	return bases
}

// Generate builds a PERRun per circuit measuring every observable at every
// strength. It fails before generating anything when fewer than two
// strengths are given.
func (e *Experiment) Generate(ctx context.Context, observables []per.Pauli, samples int, strengths []float64) error {
	if len(strengths) < 2 {
		return fmt.Errorf("%w: got %v", ErrTooFewStrengths, strengths)
	}
	if samples < 1 {
		return fmt.Errorf("samples must be positive, got %d", samples)
	}
	if len(observables) == 0 {
		return fmt.Errorf("mitigation: no observables")
	}
	seen := make(map[per.Pauli]bool, len(observables))
	var unique []per.Pauli
	for _, p := range observables {
		if p.Len() != len(e.qubitMap) {
			return fmt.Errorf("observable %s does not act on %d qubits", p, len(e.qubitMap))
		}
		if p.IsIdentity() {
			return fmt.Errorf("observable %s is the identity", p)
		}
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	e.bases = MeasBases(unique)
	logrus.Infof("Experiment %s: measuring %d observables in %d bases: %v", e.ID, len(unique), len(e.bases), e.bases)

	e.runs = nil
	for i, pc := range e.circuits {
		scope := fmt.Sprintf("%s/circuit_%d", per.SubsystemMitigation, i)
		run, err := newPERRun(ctx, e.processor, e.qubitMap, pc, samples, strengths, e.bases, unique, e.rng, scope)
		if err != nil {
			return fmt.Errorf("circuit %d: %w", i, err)
		}
		e.runs = append(e.runs, run)
	}
	logrus.Infof("Experiment %s: %d PER instances", e.ID, len(e.instances()))
	return nil
}

// Bases returns the measurement bases chosen by Generate.
func (e *Experiment) Bases() []per.Pauli { return append([]per.Pauli(nil), e.bases...) }

func (e *Experiment) instances() []*PERInstance {
	var out []*PERInstance
	for _, r := range e.runs {
		out = append(out, r.instances...)
	}
	return out
}

// Run executes the instances of all runs in one batch.
func (e *Experiment) Run(ctx context.Context, executor per.Executor) error {
	insts := e.instances()
	if len(insts) == 0 {
		return fmt.Errorf("mitigation: no instances, call Generate first")
	}
	natives := make([]any, len(insts))
	for i, inst := range insts {
		natives[i] = inst.Native()
	}
	results, err := executor(ctx, natives)
	if err != nil {
		return fmt.Errorf("executing %d PER circuits: %w", len(natives), err)
	}
	if len(results) != len(natives) {
		return fmt.Errorf("executor returned %d results for %d circuits", len(results), len(natives))
	}
	for i, res := range results {
		insts[i].AddResult(res)
	}
	return nil
}

// Analyze fits every observable of every run.
func (e *Experiment) Analyze() ([]*PERRun, error) {
	for i, r := range e.runs {
		if err := r.Analyze(); err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
	}
	return append([]*PERRun(nil), e.runs...), nil
}

// Overhead is the per-instance sampling overhead of circuit i at strength.
func (e *Experiment) Overhead(circuit int, strength float64) (float64, error) {
	if circuit < 0 || circuit >= len(e.circuits) {
		return 0, fmt.Errorf("circuit index %d out of range [0,%d)", circuit, len(e.circuits))
	}
	return e.circuits[circuit].Overhead(strength), nil
}
