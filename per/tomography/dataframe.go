package tomography

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pauli-lindblad/plper/per"
)

// NoiseDataFrame is the artifact of a tomography run: the noise model of
// every benchmarked layer, looked up by layer fingerprint, plus the SPAM
// coefficient of every model term.
type NoiseDataFrame struct {
	RunID  uuid.UUID
	models map[string]*per.NoiseModel
	spam   map[per.Pauli]float64
}

// NewNoiseDataFrame indexes models by their layer key.
func NewNoiseDataFrame(models []*per.NoiseModel, spam map[per.Pauli]float64) *NoiseDataFrame {
	f := &NoiseDataFrame{
		RunID:  uuid.New(),
		models: make(map[string]*per.NoiseModel, len(models)),
		spam:   make(map[per.Pauli]float64, len(spam)),
	}
	for _, m := range models {
		f.models[m.Key()] = m
	}
	for p, v := range spam {
		f.spam[p] = v
	}
	return f
}

// Model returns the noise model learned for the layer with the given key.
func (f *NoiseDataFrame) Model(key string) (*per.NoiseModel, bool) {
	m, ok := f.models[key]
	return m, ok
}

// Models returns all noise models ordered by layer key.
func (f *NoiseDataFrame) Models() []*per.NoiseModel {
	keys := make([]string, 0, len(f.models))
	for k := range f.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*per.NoiseModel, len(keys))
	for i, k := range keys {
		out[i] = f.models[k]
	}
	return out
}

// SPAM returns the SPAM coefficient of a term.
func (f *NoiseDataFrame) SPAM(term per.Pauli) (float64, bool) {
	v, ok := f.spam[term]
	return v, ok
}

// SPAMCoeffs returns a copy of all SPAM coefficients.
func (f *NoiseDataFrame) SPAMCoeffs() map[per.Pauli]float64 {
	out := make(map[per.Pauli]float64, len(f.spam))
	for p, v := range f.spam {
		out[p] = v
	}
	return out
}

// Overhead is the product over all layers of the sampling overhead of
// scaling that layer's noise by strength.
func (f *NoiseDataFrame) Overhead(strength float64) float64 {
	overhead := 1.0
	for _, m := range f.models {
		overhead *= m.DeriveScaling(strength).Overhead
	}
	return overhead
}

// Tuning derives, for every layer, the distribution that moves each of its
// rates to the target of the same term. Terms without a target are driven
// to zero. The result is keyed by layer key.
func (f *NoiseDataFrame) Tuning(targets map[per.Pauli]float64) map[string]per.Distribution {
	out := make(map[string]per.Distribution, len(f.models))
	for k, m := range f.models {
		out[k] = m.DeriveTuning(targets)
	}
	return out
}

// OverheadTuned is the product over all layers of the sampling overhead of
// Tuning(targets).
func (f *NoiseDataFrame) OverheadTuned(targets map[per.Pauli]float64) float64 {
	overhead := 1.0
	for _, d := range f.Tuning(targets) {
		overhead *= d.Overhead
	}
	return overhead
}

// === Persistence ===

// InstructionRecord is the stored form of one layer instruction.
type InstructionRecord struct {
	Name   string `yaml:"name"`
	Qubits []int  `yaml:"qubits"`
}

// CircuitFactory rebuilds a backend circuit from stored instructions.
type CircuitFactory func(numQubits int, instructions []InstructionRecord) (per.Circuit, error)

type termRecord struct {
	Pauli string  `yaml:"pauli"`
	Value float64 `yaml:"value"`
}

type layerRecord struct {
	Key          string              `yaml:"key"`
	NumQubits    int                 `yaml:"num_qubits"`
	Instructions []InstructionRecord `yaml:"instructions"`
	Coeffs       []termRecord        `yaml:"coeffs"`
}

type frameRecord struct {
	RunID  string        `yaml:"run_id"`
	Layers []layerRecord `yaml:"layers"`
	SPAM   []termRecord  `yaml:"spam"`
}

// SaveDataFrame writes f as YAML.
func SaveDataFrame(w io.Writer, f *NoiseDataFrame) error {
	rec := frameRecord{RunID: f.RunID.String()}
	for _, m := range f.Models() {
		lr := layerRecord{Key: m.Key(), NumQubits: m.Layer().NumQubits()}
		for _, inst := range m.Layer().Instructions() {
			lr.Instructions = append(lr.Instructions, InstructionRecord{
				Name:   inst.Name(),
				Qubits: append([]int(nil), inst.Support()...),
			})
		}
		coeffs := m.Coeffs()
		for i, t := range m.Terms() {
			lr.Coeffs = append(lr.Coeffs, termRecord{Pauli: t.Label(), Value: coeffs[i]})
		}
		rec.Layers = append(rec.Layers, lr)
	}
	terms := make([]per.Pauli, 0, len(f.spam))
	for p := range f.spam {
		terms = append(terms, p)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })
	for _, p := range terms {
		rec.SPAM = append(rec.SPAM, termRecord{Pauli: p.Label(), Value: f.spam[p]})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&rec); err != nil {
		return fmt.Errorf("encoding noise data frame: %w", err)
	}
	return enc.Close()
}

// LoadDataFrame reads a frame written by SaveDataFrame, rebuilding layer
// circuits with factory. Unknown fields are rejected.
func LoadDataFrame(r io.Reader, factory CircuitFactory) (*NoiseDataFrame, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var rec frameRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding noise data frame: %w", err)
	}
	id, err := uuid.Parse(rec.RunID)
	if err != nil {
		return nil, fmt.Errorf("noise data frame run_id: %w", err)
	}

	f := &NoiseDataFrame{
		RunID:  id,
		models: make(map[string]*per.NoiseModel, len(rec.Layers)),
		spam:   make(map[per.Pauli]float64, len(rec.SPAM)),
	}
	for i, lr := range rec.Layers {
		layer, err := factory(lr.NumQubits, lr.Instructions)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		terms := make([]per.Pauli, len(lr.Coeffs))
		coeffs := make([]float64, len(lr.Coeffs))
		for j, tr := range lr.Coeffs {
			if terms[j], err = per.ParsePauli(tr.Pauli); err != nil {
				return nil, fmt.Errorf("layer %d term %d: %w", i, j, err)
			}
			coeffs[j] = tr.Value
		}
		m, err := per.NewNoiseModel(layer, terms, coeffs)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if lr.Key != "" && lr.Key != m.Key() {
			return nil, fmt.Errorf("layer %d: stored key %q does not match instructions %q", i, lr.Key, m.Key())
		}
		f.models[m.Key()] = m
	}
	for j, tr := range rec.SPAM {
		p, err := per.ParsePauli(tr.Pauli)
		if err != nil {
			return nil, fmt.Errorf("spam entry %d: %w", j, err)
		}
		f.spam[p] = tr.Value
	}
	return f, nil
}
