// Package tomography learns a sparse Pauli-Lindblad noise model for every
// distinct Clifford layer of a set of circuits.
//
// The flow is: ProcessorSpec picks measurement bases and model terms from the
// hardware connectivity; LayerLearning generates BenchmarkInstances for each
// layer; after execution LayerNoiseData fits the per-term decays (TermData)
// and reconstructs the generator with NNLS; Experiment wires the steps and
// produces a NoiseDataFrame.
package tomography

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/pauli-lindblad/plper/per"
)

// NumBases is the number of measurement bases that cover every weight-two
// Pauli on every edge of a supported topology.
const NumBases = 9

// ErrUnsupportedTopology is returned when no basis assignment is known for
// the connectivity graph.
var ErrUnsupportedTopology = errors.New("unsupported topology")

// compatibleOrderings maps the label sequence of a vertex's second
// predecessor (after its first predecessor was sorted into XXXYYYZZZ) to a
// sequence for the new vertex that completes all nine pairs on both edges.
var compatibleOrderings = map[string]string{
	"XXXYYYZZZ": "XYZXYZXYZ",
	"XXXYYZZZY": "XYZXYZXYZ",
	"XXYYYZZZX": "XYZXYZXYZ",
	"XXZYYZXYZ": "XYZXZYZYX",
	"XYZXYZXYZ": "XYZZXYYZX",
}

// alphabetPermutations lists the six orderings of "XYZ".
var alphabetPermutations = []string{"XYZ", "XZY", "YXZ", "YZX", "ZXY", "ZYX"}

// ProcessorSpec holds what tomography needs to know about the processor:
// the addressed qubits, their connectivity, the measurement bases and the
// model terms.
type ProcessorSpec struct {
	qubitMap   []int
	processor  per.Processor
	graph      *simple.UndirectedGraph
	edges      [][2]int
	measBases  []per.Pauli
	modelTerms []per.Pauli
	termSet    map[per.Pauli]bool
}

// NewProcessorSpec queries the processor topology for qubitMap and derives
// the measurement bases and model terms.
func NewProcessorSpec(qubitMap []int, processor per.Processor) (*ProcessorSpec, error) {
	if len(qubitMap) == 0 {
		return nil, fmt.Errorf("processor spec: empty qubit map")
	}
	edges, err := processor.SubMap(qubitMap)
	if err != nil {
		return nil, fmt.Errorf("processor spec: %w", err)
	}
	g := simple.NewUndirectedGraph()
	for i := range qubitMap {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		g.SetEdge(g.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}

	s := &ProcessorSpec{
		qubitMap:  append([]int(nil), qubitMap...),
		processor: processor,
		graph:     g,
		edges:     edges,
	}
	if s.measBases, err = measBases(len(qubitMap), g); err != nil {
		return nil, err
	}
	s.modelTerms = modelTerms(len(qubitMap), edges)
	s.termSet = make(map[per.Pauli]bool, len(s.modelTerms))
	for _, t := range s.modelTerms {
		s.termSet[t] = true
	}
	logrus.Infof("Created %d pauli bases: %v", len(s.measBases), s.measBases)
	logrus.Infof("Created model with %d terms", len(s.modelTerms))
	logrus.Debugf("Model terms: %v", s.modelTerms)
	return s, nil
}

// NumQubits is the number of addressed qubits.
func (s *ProcessorSpec) NumQubits() int { return len(s.qubitMap) }

// QubitMap returns the physical qubit of every virtual qubit.
func (s *ProcessorSpec) QubitMap() []int { return append([]int(nil), s.qubitMap...) }

// Edges returns the coupling edges in virtual indices.
func (s *ProcessorSpec) Edges() [][2]int { return append([][2]int(nil), s.edges...) }

// MeasBases returns the nine measurement bases.
func (s *ProcessorSpec) MeasBases() []per.Pauli { return append([]per.Pauli(nil), s.measBases...) }

// ModelTerms returns the model terms in label order.
func (s *ProcessorSpec) ModelTerms() []per.Pauli { return append([]per.Pauli(nil), s.modelTerms...) }

// IsModelTerm reports whether p is one of the model terms.
func (s *ProcessorSpec) IsModelTerm(p per.Pauli) bool { return s.termSet[p] }

// Transpile lowers c onto the processor with the spec's qubit map.
func (s *ProcessorSpec) Transpile(c per.Circuit) (per.Circuit, error) {
	return s.processor.Transpile(c, s.qubitMap)
}

// predecessors returns the neighbours of v with a smaller index, ascending.
func predecessors(g graph.Undirected, v int) []int {
	var preds []int
	for _, n := range graph.NodesOf(g.From(int64(v))) {
		if id := int(n.ID()); id < v {
			preds = append(preds, id)
		}
	}
	sort.Ints(preds)
	return preds
}

// measBases assigns a label to every vertex in every basis, vertex by
// vertex, so that both endpoints of each edge see all nine label pairs.
func measBases(n int, g graph.Undirected) ([]per.Pauli, error) {
	bases := make([][]byte, NumBases)
	for i := range bases {
		bases[i] = []byte(per.Identity(n))
	}

	for v := 0; v < n; v++ {
		preds := predecessors(g, v)
		switch len(preds) {
		case 0:
			assignCyclic(bases, v)
		case 1:
			sortByLabel(bases, preds[0])
			assignCyclic(bases, v)
		case 2:
			sortByLabel(bases, preds[0])
			seq := make([]byte, NumBases)
			for i, b := range bases {
				seq[i] = b[preds[1]]
			}
			target, ok := matchOrdering(seq)
			if !ok {
				return nil, fmt.Errorf("%w: no basis ordering for qubit %d with predecessors %v (sequence %s)",
					ErrUnsupportedTopology, v, preds, seq)
			}
			for i := range bases {
				bases[i][v] = target[i]
			}
		default:
			return nil, fmt.Errorf("%w: qubit %d has %d predecessors %v, at most 2 are supported",
				ErrUnsupportedTopology, v, len(preds), preds)
		}
	}

	out := make([]per.Pauli, NumBases)
	for i, b := range bases {
		out[i] = per.Pauli(b)
	}
	return out, nil
}

func assignCyclic(bases [][]byte, v int) {
	for i := range bases {
		bases[i][v] = "XYZ"[i%3]
	}
}

// sortByLabel orders the bases by their label on qubit pred, breaking ties
// by the whole basis.
func sortByLabel(bases [][]byte, pred int) {
	sort.SliceStable(bases, func(i, j int) bool {
		if bases[i][pred] != bases[j][pred] {
			return bases[i][pred] < bases[j][pred]
		}
		return string(bases[i]) < string(bases[j])
	})
}

// matchOrdering tries every relabelling of the alphabet on seq against the
// compatible orderings table.
func matchOrdering(seq []byte) (string, bool) {
	for _, perm := range alphabetPermutations {
		relabeled := make([]byte, len(seq))
		for i, c := range seq {
			relabeled[i] = "XYZ"[indexOf(perm, c)]
		}
		if target, ok := compatibleOrderings[string(relabeled)]; ok {
			return target, true
		}
	}
	return "", false
}

func indexOf(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return 0
}

// modelTerms returns every non-identity Pauli with support inside one edge.
func modelTerms(n int, edges [][2]int) []per.Pauli {
	set := make(map[per.Pauli]bool)
	id := per.Identity(n)
	for _, e := range edges {
		for _, p1 := range []byte("IXYZ") {
			for _, p2 := range []byte("IXYZ") {
				term := id.With(e[0], p1).With(e[1], p2)
				if !term.IsIdentity() {
					set[term] = true
				}
			}
		}
	}
	terms := make([]per.Pauli, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })
	return terms
}
