package qasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pauli-lindblad/plper/per"
)

// Circuit is a gate-list circuit on n virtual qubits. After transpilation it
// also carries a layout mapping each virtual qubit to a physical one.
type Circuit struct {
	n      int
	layout []int
	gates  []Gate
}

var _ per.Circuit = (*Circuit)(nil)

// New creates an empty circuit on n qubits.
func New(n int) *Circuit {
	return &Circuit{n: n}
}

// FromGates builds a circuit from a validated gate list.
func FromGates(n int, gates []Gate) (*Circuit, error) {
	if n <= 0 {
		return nil, fmt.Errorf("circuit needs at least one qubit, got %d", n)
	}
	c := New(n)
	for i, g := range gates {
		if err := g.validate(n); err != nil {
			return nil, fmt.Errorf("gate %d: %w", i, err)
		}
		c.gates = append(c.gates, g.clone())
	}
	return c, nil
}

// Append adds a parameterless gate and returns c for chaining. It panics on
// an invalid gate; use FromGates for untrusted input.
func (c *Circuit) Append(op string, qubits ...int) *Circuit {
	g := Gate{Op: op, Qubits: qubits}
	if err := g.validate(c.n); err != nil {
		panic(err)
	}
	c.gates = append(c.gates, g)
	return c
}

// Gates returns a copy of the gate list.
func (c *Circuit) Gates() []Gate {
	out := make([]Gate, len(c.gates))
	for i, g := range c.gates {
		out[i] = g.clone()
	}
	return out
}

// Layout returns the physical qubit of every virtual qubit, nil before
// transpilation.
func (c *Circuit) Layout() []int { return append([]int(nil), c.layout...) }

// CopyEmpty implements per.Circuit.
func (c *Circuit) CopyEmpty() per.Circuit {
	return &Circuit{n: c.n, layout: append([]int(nil), c.layout...)}
}

// AddInstruction implements per.Circuit.
func (c *Circuit) AddInstruction(inst per.Instruction) {
	if g, ok := inst.(Gate); ok {
		c.gates = append(c.gates, g.clone())
		return
	}
	c.gates = append(c.gates, Gate{Op: inst.Name(), Qubits: append([]int(nil), inst.Support()...)})
}

// AddPauli implements per.Circuit. Identity factors are not emitted.
func (c *Circuit) AddPauli(p per.Pauli) {
	for q := 0; q < p.Len(); q++ {
		if op := p.At(q); op != 'I' {
			c.gates = append(c.gates, Gate{Op: strings.ToLower(string(op)), Qubits: []int{q}})
		}
	}
}

// Barrier implements per.Circuit.
func (c *Circuit) Barrier() {
	c.gates = append(c.gates, Gate{Op: "barrier", Qubits: c.Qubits()})
}

// MeasureAll implements per.Circuit; qubit i is read into bit i.
func (c *Circuit) MeasureAll() {
	for q := 0; q < c.n; q++ {
		c.gates = append(c.gates, Gate{Op: "measure", Qubits: []int{q}})
	}
}

// Compose implements per.Circuit.
func (c *Circuit) Compose(other per.Circuit) {
	if o, ok := other.(*Circuit); ok {
		for _, g := range o.gates {
			c.gates = append(c.gates, g.clone())
		}
		return
	}
	for _, inst := range other.Instructions() {
		c.AddInstruction(inst)
	}
}

// Inverse implements per.Circuit. Measurements have no inverse and are
// dropped.
func (c *Circuit) Inverse() per.Circuit {
	inv := &Circuit{n: c.n, layout: append([]int(nil), c.layout...)}
	for i := len(c.gates) - 1; i >= 0; i-- {
		if c.gates[i].IsMeasurement() {
			continue
		}
		inv.gates = append(inv.gates, c.gates[i].inverse())
	}
	return inv
}

// NumQubits implements per.Circuit.
func (c *Circuit) NumQubits() int { return c.n }

// Qubits implements per.Circuit.
func (c *Circuit) Qubits() []int {
	qs := make([]int, c.n)
	for i := range qs {
		qs[i] = i
	}
	return qs
}

// Native implements per.Circuit. The native form is a detached copy.
func (c *Circuit) Native() any {
	return &Circuit{n: c.n, layout: c.Layout(), gates: c.Gates()}
}

// Conjugate implements per.Circuit: it returns U p U† for the circuit
// unitary U, dropping the phase. Panics on non-Clifford gates.
func (c *Circuit) Conjugate(p per.Pauli) per.Pauli {
	if p.Len() != c.n {
		logrus.Panicf("conjugate: pauli %s on %d qubits, circuit has %d", p, p.Len(), c.n)
	}
	x := make([]bool, c.n)
	z := make([]bool, c.n)
	for q := 0; q < c.n; q++ {
		switch p.At(q) {
		case 'X':
			x[q] = true
		case 'Y':
			x[q], z[q] = true, true
		case 'Z':
			z[q] = true
		}
	}
	for _, g := range c.gates {
		if !g.conjugate(x, z) {
			logrus.Panicf("conjugate: gate %s is not a Clifford gate", per.InstructionKey(g))
		}
	}
	b := make([]byte, c.n)
	for q := range b {
		switch {
		case x[q] && z[q]:
			b[q] = 'Y'
		case x[q]:
			b[q] = 'X'
		case z[q]:
			b[q] = 'Z'
		default:
			b[q] = 'I'
		}
	}
	return per.Pauli(b)
}

// BasisChange implements per.Circuit: H for X, H·S for Y, nothing for Z/I.
func (c *Circuit) BasisChange(p per.Pauli) per.Circuit {
	bc := &Circuit{n: c.n, layout: append([]int(nil), c.layout...)}
	for q := 0; q < p.Len() && q < c.n; q++ {
		switch p.At(q) {
		case 'X':
			bc.gates = append(bc.gates, Gate{Op: "h", Qubits: []int{q}})
		case 'Y':
			bc.gates = append(bc.gates, Gate{Op: "h", Qubits: []int{q}}, Gate{Op: "s", Qubits: []int{q}})
		}
	}
	return bc
}

// Instructions implements per.Circuit.
func (c *Circuit) Instructions() []per.Instruction {
	out := make([]per.Instruction, len(c.gates))
	for i, g := range c.gates {
		out[i] = g
	}
	return out
}

func (c *Circuit) physical(q int) int {
	if c.layout == nil {
		return q
	}
	return c.layout[q]
}

// QASM renders the circuit as OpenQASM 2.0 on physical qubits.
func (c *Circuit) QASM() string {
	width := c.n
	for _, p := range c.layout {
		width = max(width, p+1)
	}

	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", width)
	fmt.Fprintf(&b, "creg c[%d];\n", c.n)
	for _, g := range c.gates {
		args := make([]string, len(g.Qubits))
		for i, q := range g.Qubits {
			args[i] = fmt.Sprintf("q[%d]", c.physical(q))
		}
		switch {
		case g.IsMeasurement():
			fmt.Fprintf(&b, "measure %s -> c[%d];\n", args[0], g.Qubits[0])
		case len(g.Params) > 0:
			ps := make([]string, len(g.Params))
			for i, v := range g.Params {
				ps[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			fmt.Fprintf(&b, "%s(%s) %s;\n", g.Op, strings.Join(ps, ","), strings.Join(args, ","))
		default:
			fmt.Fprintf(&b, "%s %s;\n", g.Op, strings.Join(args, ","))
		}
	}
	return b.String()
}

// String lists the gates, for logging.
func (c *Circuit) String() string {
	keys := make([]string, len(c.gates))
	for i, g := range c.gates {
		keys[i] = per.InstructionKey(g)
	}
	return "[" + strings.Join(keys, " ") + "]"
}
