package qasm

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/pauli-lindblad/plper/per"
)

// Device is a processor with a fixed undirected coupling map. It implements
// per.Processor.
type Device struct {
	name  string
	graph *simple.UndirectedGraph
}

var _ per.Processor = (*Device)(nil)

// NewDevice builds a device from its coupling edges between physical qubits.
func NewDevice(name string, couplingMap [][2]int) (*Device, error) {
	g := simple.NewUndirectedGraph()
	for _, e := range couplingMap {
		if e[0] < 0 || e[1] < 0 {
			return nil, fmt.Errorf("device %s: negative qubit in edge %v", name, e)
		}
		if e[0] == e[1] {
			return nil, fmt.Errorf("device %s: self-loop on qubit %d", name, e[0])
		}
		g.SetEdge(g.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}
	return &Device{name: name, graph: g}, nil
}

// Name identifies the device in logs.
func (d *Device) Name() string { return d.name }

// NumQubits is the number of physical qubits that appear in the coupling map.
func (d *Device) NumQubits() int { return d.graph.Nodes().Len() }

// Coupled reports whether physical qubits a and b share an edge.
func (d *Device) Coupled(a, b int) bool {
	return d.graph.HasEdgeBetween(int64(a), int64(b))
}

// SubMap implements per.Processor.
func (d *Device) SubMap(qubitMap []int) ([][2]int, error) {
	seen := make(map[int]bool, len(qubitMap))
	for _, p := range qubitMap {
		if d.graph.Node(int64(p)) == nil {
			return nil, fmt.Errorf("device %s has no qubit %d", d.name, p)
		}
		if seen[p] {
			return nil, fmt.Errorf("qubit map %v repeats physical qubit %d", qubitMap, p)
		}
		seen[p] = true
	}
	var edges [][2]int
	for i := range qubitMap {
		for j := i + 1; j < len(qubitMap); j++ {
			if d.Coupled(qubitMap[i], qubitMap[j]) {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a][0] != edges[b][0] {
			return edges[a][0] < edges[b][0]
		}
		return edges[a][1] < edges[b][1]
	})
	return edges, nil
}

// Transpile implements per.Processor. It places virtual qubit i on physical
// qubit qubitMap[i], rejects two-qubit gates between uncoupled qubits, and
// removes identity gates and adjacent pairs of identical self-inverse gates.
// Barriers stop cancellation.
func (d *Device) Transpile(c per.Circuit, qubitMap []int) (per.Circuit, error) {
	src, ok := c.(*Circuit)
	if !ok {
		return nil, fmt.Errorf("%w: device %s cannot transpile %T", per.ErrUnsupportedCircuit, d.name, c)
	}
	if len(qubitMap) != src.n {
		return nil, fmt.Errorf("qubit map has %d entries for a %d-qubit circuit", len(qubitMap), src.n)
	}
	if _, err := d.SubMap(qubitMap); err != nil {
		return nil, err
	}

	out := &Circuit{n: src.n, layout: append([]int(nil), qubitMap...)}
	removed := make([]bool, 0, len(src.gates))
	stacks := make([][]int, src.n) // per qubit: indices into out.gates still live
	cancelled := 0

	for _, g := range src.gates {
		if g.Op == "id" {
			cancelled++
			continue
		}
		if len(g.Qubits) == 2 && !d.Coupled(qubitMap[g.Qubits[0]], qubitMap[g.Qubits[1]]) {
			return nil, fmt.Errorf("gate %s: physical qubits %d and %d are not coupled on %s",
				per.InstructionKey(g), qubitMap[g.Qubits[0]], qubitMap[g.Qubits[1]], d.name)
		}
		if selfInverse[g.Op] {
			if prev, ok := lastOnAll(stacks, g.Qubits); ok && sameGate(out.gates[prev], g) {
				removed[prev] = true
				for _, q := range g.Qubits {
					stacks[q] = stacks[q][:len(stacks[q])-1]
				}
				cancelled += 2
				continue
			}
		}
		idx := len(out.gates)
		out.gates = append(out.gates, g.clone())
		removed = append(removed, false)
		for _, q := range g.Qubits {
			stacks[q] = append(stacks[q], idx)
		}
	}

	kept := out.gates[:0]
	for i, g := range out.gates {
		if !removed[i] {
			kept = append(kept, g)
		}
	}
	out.gates = kept
	logrus.Debugf("transpile on %s: layout %v, %d gates removed", d.name, qubitMap, cancelled)
	return out, nil
}

// lastOnAll returns the index of the most recent live gate if it is the last
// gate on every one of qubits.
func lastOnAll(stacks [][]int, qubits []int) (int, bool) {
	last := -1
	for _, q := range qubits {
		s := stacks[q]
		if len(s) == 0 {
			return 0, false
		}
		if last >= 0 && s[len(s)-1] != last {
			return 0, false
		}
		last = s[len(s)-1]
	}
	return last, last >= 0
}

func sameGate(a, b Gate) bool {
	if a.Op != b.Op || len(a.Qubits) != len(b.Qubits) {
		return false
	}
	for i := range a.Qubits {
		if a.Qubits[i] != b.Qubits[i] {
			return false
		}
	}
	return true
}
