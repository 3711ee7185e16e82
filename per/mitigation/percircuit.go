// Package mitigation runs probabilistic error reduction (PER) with noise
// models learned by package tomography.
//
// A PERCircuit splits a circuit into layers and attaches a noise model to
// each. Every PERInstance is one randomized rendition of the circuit in
// which each layer gets a fresh twirl and a correction sampled from its
// noise model at the target strength; the instance remembers the product of
// the sampled signs and overheads. PERRun groups the instances of one
// circuit and fits the mitigated expectations across strengths (PERData) to
// extrapolate to zero noise.
package mitigation

import (
	"errors"
	"fmt"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/tomography"
)

// ErrMissingNoiseModel is returned when a layer of a circuit was never
// benchmarked.
var ErrMissingNoiseModel = errors.New("no noise model for layer")

// PERCircuit is a circuit parsed into layers with noise models attached.
type PERCircuit struct {
	circ   per.Circuit
	layers []*per.CircuitLayer
	spam   map[per.Pauli]float64
}

// NewPERCircuit partitions c into layers.
func NewPERCircuit(c per.Circuit) (*PERCircuit, error) {
	layers, err := per.Partition(c)
	if err != nil {
		return nil, err
	}
	return &PERCircuit{circ: c, layers: layers}, nil
}

// AttachNoiseModels looks up the model of every layer by its fingerprint
// and keeps the frame's SPAM coefficients.
func (pc *PERCircuit) AttachNoiseModels(frame *tomography.NoiseDataFrame) error {
	for i, l := range pc.layers {
		m, ok := frame.Model(l.Key())
		if !ok {
			return fmt.Errorf("%w: layer %d (%s)", ErrMissingNoiseModel, i, l.Key())
		}
		l.SetNoiseModel(m)
	}
	pc.spam = frame.SPAMCoeffs()
	return nil
}

// Circuit returns the source circuit.
func (pc *PERCircuit) Circuit() per.Circuit { return pc.circ }

// Layers returns the layers in circuit order.
func (pc *PERCircuit) Layers() []*per.CircuitLayer { return append([]*per.CircuitLayer(nil), pc.layers...) }

// NumQubits is the width of the circuit.
func (pc *PERCircuit) NumQubits() int { return pc.circ.NumQubits() }

// SPAM returns the coefficient of a term from the attached frame.
func (pc *PERCircuit) SPAM(term per.Pauli) (float64, bool) {
	v, ok := pc.spam[term]
	return v, ok
}

// Overhead is the sampling overhead of one PER instance at strength: the
// product of the layer overheads. Layers without a model count as 1.
func (pc *PERCircuit) Overhead(strength float64) float64 {
	overhead := 1.0
	for _, l := range pc.layers {
		if m := l.NoiseModel(); m != nil {
			overhead *= m.DeriveScaling(strength).Overhead
		}
	}
	return overhead
}
