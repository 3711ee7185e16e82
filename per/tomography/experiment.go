package tomography

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/pauli-lindblad/plper/per"
)

// Experiment learns the noise of every distinct Clifford layer found in a
// set of circuits: Generate builds the benchmark instances, Run executes
// them in one batch, Analyze fits the models.
type Experiment struct {
	ID uuid.UUID

	spec      *ProcessorSpec
	rng       *per.PartitionedRNG
	profiles  []per.Circuit
	instances []*BenchmarkInstance
	data      map[string]*LayerNoiseData
}

// NewExperiment partitions the circuits and keeps one Clifford layer per
// fingerprint.
func NewExperiment(circuits []per.Circuit, qubitMap []int, processor per.Processor, rng *per.PartitionedRNG) (*Experiment, error) {
	if len(circuits) == 0 {
		return nil, fmt.Errorf("tomography: no circuits")
	}
	byKey := make(map[string]per.Circuit)
	for i, c := range circuits {
		layers, err := per.Partition(c)
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
		for _, l := range layers {
			byKey[l.Key()] = l.Clifford
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec, err := NewProcessorSpec(qubitMap, processor)
	if err != nil {
		return nil, err
	}

	e := &Experiment{ID: uuid.New(), spec: spec, rng: rng}
	for _, k := range keys {
		if byKey[k].NumQubits() != spec.NumQubits() {
			return nil, fmt.Errorf("layer %s acts on %d qubits but the qubit map has %d",
				k, byKey[k].NumQubits(), spec.NumQubits())
		}
		e.profiles = append(e.profiles, byKey[k])
	}
	logrus.Infof("Experiment %s: generated layer profile with %d layers", e.ID, len(e.profiles))
	for _, k := range keys {
		logrus.Infof("  %s", k)
	}
	return e, nil
}

// ProcessorSpec returns the bases and model terms used by the experiment.
func (e *Experiment) ProcessorSpec() *ProcessorSpec { return e.spec }

// Profiles returns the distinct Clifford layers in key order.
func (e *Experiment) Profiles() []per.Circuit { return append([]per.Circuit(nil), e.profiles...) }

// Generate replaces the instance list with a fresh benchmark procedure for
// every layer profile. It fails before generating anything when fewer than
// two depths are given.
func (e *Experiment) Generate(ctx context.Context, samples, singleSamples int, depths []int) error {
	if len(depths) < 2 {
		return fmt.Errorf("%w: got %v", ErrTooFewDepths, depths)
	}
	e.instances = nil
	for _, layer := range e.profiles {
		insts, err := NewLayerLearning(layer, e.spec).Procedure(ctx, samples, singleSamples, depths, e.rng)
		if err != nil {
			return err
		}
		e.instances = append(e.instances, insts...)
	}
	logrus.Infof("Experiment %s: %d benchmark instances", e.ID, len(e.instances))
	return nil
}

// Instances returns the generated instances in execution order.
func (e *Experiment) Instances() []*BenchmarkInstance {
	return append([]*BenchmarkInstance(nil), e.instances...)
}

// Run sends every instance to executor in a single batch and attaches the
// results in order.
func (e *Experiment) Run(ctx context.Context, executor per.Executor) error {
	if len(e.instances) == 0 {
		return fmt.Errorf("tomography: no instances, call Generate first")
	}
	natives := make([]any, len(e.instances))
	for i, inst := range e.instances {
		natives[i] = inst.Native()
	}
	results, err := executor(ctx, natives)
	if err != nil {
		return fmt.Errorf("executing %d benchmark circuits: %w", len(natives), err)
	}
	if len(results) != len(natives) {
		return fmt.Errorf("executor returned %d results for %d circuits", len(results), len(natives))
	}
	for i, res := range results {
		e.instances[i].AddResult(res)
	}
	return nil
}

// LayerData returns the fitted term data of a layer after Analyze.
func (e *Experiment) LayerData(key string) (*LayerNoiseData, bool) {
	d, ok := e.data[key]
	return d, ok
}

// Analyze fits a noise model for every layer. A term learned in several
// layers gets the mean of its SPAM coefficients.
func (e *Experiment) Analyze() (*NoiseDataFrame, error) {
	data := make(map[string]*LayerNoiseData, len(e.profiles))
	for _, layer := range e.profiles {
		d := NewLayerNoiseData(layer)
		data[d.Key()] = d
	}
	for _, inst := range e.instances {
		d, ok := data[inst.LayerKey]
		if !ok {
			return nil, fmt.Errorf("instance for unknown layer %s", inst.LayerKey)
		}
		d.AddExpectation(inst, e.spec)
	}

	var models []*per.NoiseModel
	spamSamples := make(map[per.Pauli][]float64)
	for _, layer := range e.profiles {
		d := data[per.CircuitKey(layer)]
		m, err := d.FitNoiseModel()
		if err != nil {
			return nil, err
		}
		models = append(models, m)
		for p, v := range d.SPAMCoeffs() {
			spamSamples[p] = append(spamSamples[p], v)
		}
	}
	spam := make(map[per.Pauli]float64, len(spamSamples))
	for p, vs := range spamSamples {
		spam[p] = stat.Mean(vs, nil)
	}

	e.data = data
	frame := NewNoiseDataFrame(models, spam)
	logrus.Infof("Experiment %s: noise data frame %s with %d layers", e.ID, frame.RunID, len(models))
	return frame, nil
}
