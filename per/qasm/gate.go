package qasm

import "fmt"

// Gate is one instruction of a Circuit. It implements per.Instruction.
type Gate struct {
	Op     string    `yaml:"name"`
	Qubits []int     `yaml:"qubits"`
	Params []float64 `yaml:"params,omitempty"`
}

// gateArity lists the supported operations and their qubit counts.
// Zero means "any number" (barrier).
var gateArity = map[string]int{
	"id": 1, "x": 1, "y": 1, "z": 1, "h": 1,
	"s": 1, "sdg": 1, "sx": 1, "sxdg": 1, "t": 1, "tdg": 1,
	"rx": 1, "ry": 1, "rz": 1,
	"cx": 2, "cz": 2, "swap": 2,
	"measure": 1, "barrier": 0,
}

var gateParams = map[string]int{"rx": 1, "ry": 1, "rz": 1}

var inverseOp = map[string]string{
	"s": "sdg", "sdg": "s", "sx": "sxdg", "sxdg": "sx", "t": "tdg", "tdg": "t",
}

// selfInverse gates cancel when applied twice in a row.
var selfInverse = map[string]bool{
	"x": true, "y": true, "z": true, "h": true, "cx": true, "cz": true, "swap": true,
}

// IsValidGate returns true if name is a supported operation.
func IsValidGate(name string) bool {
	_, ok := gateArity[name]
	return ok
}

// Name implements per.Instruction.
func (g Gate) Name() string { return g.Op }

// Support implements per.Instruction.
func (g Gate) Support() []int { return g.Qubits }

// IsMeasurement implements per.Instruction.
func (g Gate) IsMeasurement() bool { return g.Op == "measure" }

// IsBarrier implements per.Instruction.
func (g Gate) IsBarrier() bool { return g.Op == "barrier" }

func (g Gate) validate(n int) error {
	arity, ok := gateArity[g.Op]
	if !ok {
		return fmt.Errorf("unknown gate %q", g.Op)
	}
	if arity > 0 && len(g.Qubits) != arity {
		return fmt.Errorf("gate %q takes %d qubits, got %d", g.Op, arity, len(g.Qubits))
	}
	if len(g.Params) != gateParams[g.Op] {
		return fmt.Errorf("gate %q takes %d parameters, got %d", g.Op, gateParams[g.Op], len(g.Params))
	}
	seen := make(map[int]bool, len(g.Qubits))
	for _, q := range g.Qubits {
		if q < 0 || q >= n {
			return fmt.Errorf("gate %q: qubit %d out of range [0,%d)", g.Op, q, n)
		}
		if seen[q] {
			return fmt.Errorf("gate %q: repeated qubit %d", g.Op, q)
		}
		seen[q] = true
	}
	return nil
}

func (g Gate) clone() Gate {
	return Gate{
		Op:     g.Op,
		Qubits: append([]int(nil), g.Qubits...),
		Params: append([]float64(nil), g.Params...),
	}
}

func (g Gate) inverse() Gate {
	inv := g.clone()
	if op, ok := inverseOp[g.Op]; ok {
		inv.Op = op
	}
	for i := range inv.Params {
		inv.Params[i] = -inv.Params[i]
	}
	return inv
}

// conjugate updates the symplectic bits of a Pauli in place as g P g†,
// ignoring phase. ok is false for gates outside the Clifford group.
func (g Gate) conjugate(x, z []bool) (ok bool) {
	q := g.Qubits
	switch g.Op {
	case "id", "x", "y", "z", "barrier":
	case "h":
		x[q[0]], z[q[0]] = z[q[0]], x[q[0]]
	case "s", "sdg":
		z[q[0]] = z[q[0]] != x[q[0]]
	case "sx", "sxdg":
		x[q[0]] = x[q[0]] != z[q[0]]
	case "cx":
		c, t := q[0], q[1]
		x[t] = x[t] != x[c]
		z[c] = z[c] != z[t]
	case "cz":
		a, b := q[0], q[1]
		za := z[a] != x[b]
		z[b] = z[b] != x[a]
		z[a] = za
	case "swap":
		a, b := q[0], q[1]
		x[a], x[b] = x[b], x[a]
		z[a], z[b] = z[b], z[a]
	default:
		return false
	}
	return true
}
