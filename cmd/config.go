package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/qasm"
	"github.com/pauli-lindblad/plper/per/statevec"
	"github.com/pauli-lindblad/plper/per/tomography"
)

// DeviceConfig describes the processor the experiment runs on.
type DeviceConfig struct {
	Name        string   `yaml:"name"`
	CouplingMap [][2]int `yaml:"coupling_map"`
}

// CircuitConfig is one input circuit as a gate list on the virtual qubits.
type CircuitConfig struct {
	Name  string      `yaml:"name"`
	Gates []qasm.Gate `yaml:"gates"`
}

// LearningConfig sizes the noise tomography.
type LearningConfig struct {
	Samples       int   `yaml:"samples"`
	SingleSamples int   `yaml:"single_samples"`
	Depths        []int `yaml:"depths"`
}

// MitigationConfig sizes the PER run.
type MitigationConfig struct {
	Samples     int       `yaml:"samples"`
	Strengths   []float64 `yaml:"strengths"`
	Observables []string  `yaml:"observables"`
}

// ExperimentConfig is the full config file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ExperimentConfig struct {
	Seed       int64            `yaml:"seed"`
	Device     DeviceConfig     `yaml:"device"`
	QubitMap   []int            `yaml:"qubit_map"`
	Circuits   []CircuitConfig  `yaml:"circuits"`
	Learning   LearningConfig   `yaml:"learning"`
	Mitigation MitigationConfig `yaml:"mitigation"`
	Simulator  statevec.Config  `yaml:"simulator"`
}

// LoadExperimentConfig reads and validates a config file.
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseExperimentConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseExperimentConfig decodes YAML with strict field checking (typos must
// cause errors), fills defaults and validates.
func ParseExperimentConfig(r io.Reader) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ExperimentConfig) applyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "device"
	}
	if c.Learning.Samples == 0 {
		c.Learning.Samples = 16
	}
	if c.Learning.SingleSamples == 0 {
		c.Learning.SingleSamples = c.Learning.Samples
	}
	if len(c.Learning.Depths) == 0 {
		c.Learning.Depths = []int{2, 4, 8, 16}
	}
	if c.Mitigation.Samples == 0 {
		c.Mitigation.Samples = 64
	}
	if len(c.Mitigation.Strengths) == 0 {
		c.Mitigation.Strengths = []float64{0, 0.5, 1}
	}
	def := statevec.DefaultConfig()
	if c.Simulator.Shots == 0 {
		c.Simulator.Shots = def.Shots
	}
	if c.Simulator.Trajectories == 0 {
		c.Simulator.Trajectories = def.Trajectories
	}
}

// Validate checks every section; errors name the offending field.
func (c *ExperimentConfig) Validate() error {
	if len(c.Device.CouplingMap) == 0 {
		return fmt.Errorf("device.coupling_map: at least one edge is required")
	}
	if len(c.QubitMap) == 0 {
		return fmt.Errorf("qubit_map: at least one qubit is required")
	}
	for i, cc := range c.Circuits {
		if len(cc.Gates) == 0 {
			return fmt.Errorf("circuits[%d].gates: circuit %q is empty", i, cc.Name)
		}
	}
	if c.Learning.Samples < 1 {
		return fmt.Errorf("learning.samples must be positive, got %d", c.Learning.Samples)
	}
	if c.Learning.SingleSamples < 1 {
		return fmt.Errorf("learning.single_samples must be positive, got %d", c.Learning.SingleSamples)
	}
	if len(c.Learning.Depths) < 2 {
		return fmt.Errorf("learning.depths: %w, got %v", tomography.ErrTooFewDepths, c.Learning.Depths)
	}
	for _, d := range c.Learning.Depths {
		if d < 0 {
			return fmt.Errorf("learning.depths: negative depth %d", d)
		}
	}
	if c.Mitigation.Samples < 1 {
		return fmt.Errorf("mitigation.samples must be positive, got %d", c.Mitigation.Samples)
	}
	if len(c.Mitigation.Strengths) < 2 {
		return fmt.Errorf("mitigation.strengths: need at least 2 noise strengths, got %v", c.Mitigation.Strengths)
	}
	for _, s := range c.Mitigation.Strengths {
		if s < 0 {
			return fmt.Errorf("mitigation.strengths: negative strength %g", s)
		}
	}
	if _, err := c.ObservablePaulis(); err != nil {
		return err
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	return nil
}

// BuildDevice returns the configured processor.
func (c *ExperimentConfig) BuildDevice() (*qasm.Device, error) {
	dev, err := qasm.NewDevice(c.Device.Name, c.Device.CouplingMap)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	return dev, nil
}

// BuildCircuits turns the gate lists into circuits on len(qubit_map) qubits.
func (c *ExperimentConfig) BuildCircuits() ([]per.Circuit, error) {
	if len(c.Circuits) == 0 {
		return nil, fmt.Errorf("circuits: at least one circuit is required")
	}
	out := make([]per.Circuit, len(c.Circuits))
	for i, cc := range c.Circuits {
		circ, err := qasm.FromGates(len(c.QubitMap), cc.Gates)
		if err != nil {
			return nil, fmt.Errorf("circuits[%d] (%s): %w", i, cc.Name, err)
		}
		out[i] = circ
	}
	return out, nil
}

// ObservablePaulis parses mitigation.observables.
func (c *ExperimentConfig) ObservablePaulis() ([]per.Pauli, error) {
	out := make([]per.Pauli, 0, len(c.Mitigation.Observables))
	for i, label := range c.Mitigation.Observables {
		p, err := per.ParsePauli(label)
		if err != nil {
			return nil, fmt.Errorf("mitigation.observables[%d]: %w", i, err)
		}
		if p.Len() != len(c.QubitMap) {
			return nil, fmt.Errorf("mitigation.observables[%d]: %s does not act on %d qubits", i, p, len(c.QubitMap))
		}
		out = append(out, p)
	}
	return out, nil
}

// qasmFactory rebuilds stored layers as qasm circuits.
func qasmFactory(n int, insts []tomography.InstructionRecord) (per.Circuit, error) {
	gates := make([]qasm.Gate, len(insts))
	for i, r := range insts {
		gates[i] = qasm.Gate{Op: r.Name, Qubits: r.Qubits}
	}
	return qasm.FromGates(n, gates)
}
