package per

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedCircuit marks input that cannot be split into
// single-qubit + two-qubit Clifford layers.
var ErrUnsupportedCircuit = errors.New("unsupported circuit")

// Instruction is one operation of a circuit with an ordered qubit support.
type Instruction interface {
	Name() string
	Support() []int
	IsMeasurement() bool
	IsBarrier() bool
}

// Weight is the number of qubits an instruction acts on.
func Weight(inst Instruction) int { return len(inst.Support()) }

// InstructionKey renders name and ordered support, e.g. "cx(0,1)".
// Two instructions are the same operation iff their keys are equal.
func InstructionKey(inst Instruction) string {
	qs := make([]string, len(inst.Support()))
	for i, q := range inst.Support() {
		qs[i] = fmt.Sprint(q)
	}
	return inst.Name() + "(" + strings.Join(qs, ",") + ")"
}

// Circuit is the capability set the algorithms need from a native circuit
// representation. Implementations live in backend packages (see per/qasm).
type Circuit interface {
	// CopyEmpty returns a circuit on the same qubits with no instructions.
	CopyEmpty() Circuit
	AddInstruction(inst Instruction)
	// AddPauli appends the single-qubit factors of p.
	AddPauli(p Pauli)
	Barrier()
	MeasureAll()
	// Compose appends other in place, keeping qubit order.
	Compose(other Circuit)
	Inverse() Circuit
	NumQubits() int
	Qubits() []int
	// Native returns the backend's own circuit object for execution.
	Native() any
	// Conjugate maps p through the circuit, ignoring phase. Only defined
	// when every instruction is a Clifford gate.
	Conjugate(p Pauli) Pauli
	// BasisChange returns the gates rotating |0...0> into the +1 eigenstate
	// of p; its inverse maps the eigenbasis of p onto the computational basis.
	BasisChange(p Pauli) Circuit
	Instructions() []Instruction
}

// CircuitKey is the order-insensitive fingerprint of a circuit's instructions.
func CircuitKey(c Circuit) string {
	keys := make([]string, 0, len(c.Instructions()))
	for _, inst := range c.Instructions() {
		keys = append(keys, InstructionKey(inst))
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}

// Processor reports hardware topology and lowers circuits onto it.
type Processor interface {
	// SubMap returns the undirected coupling edges among the physical qubits
	// in qubitMap, expressed in positions of qubitMap.
	SubMap(qubitMap []int) ([][2]int, error)
	Transpile(c Circuit, qubitMap []int) (Circuit, error)
}

// Counts maps a measured bit string (character i = qubit i) to its frequency.
type Counts map[string]int

// Executor runs an ordered batch of native circuits and returns the results in
// the same order. Retries, timeouts and partial failures are the executor's
// responsibility; a nil error promises one Counts per circuit.
type Executor func(ctx context.Context, circuits []any) ([]Counts, error)
