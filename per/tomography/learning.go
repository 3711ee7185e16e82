package tomography

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pauli-lindblad/plper/per"
)

// ErrTooFewDepths is returned when fewer than two depths are requested; the
// exponential fit needs at least two points.
var ErrTooFewDepths = errors.New("exponential fit needs at least 2 depths")

// LayerLearning generates the benchmark instances for one Clifford layer.
type LayerLearning struct {
	layer       per.Circuit
	key         string
	spec        *ProcessorSpec
	pairs       map[per.Pauli]per.Pauli
	singlePairs [][2]per.Pauli
	singleBases []per.Pauli
}

// NewLayerLearning computes the conjugate pair of every model term under
// layer and packs the degeneracy-lifting measurements into single bases.
func NewLayerLearning(layer per.Circuit, spec *ProcessorSpec) *LayerLearning {
	l := &LayerLearning{
		layer: layer,
		key:   per.CircuitKey(layer),
		spec:  spec,
		pairs: make(map[per.Pauli]per.Pauli),
	}
	for _, p := range spec.ModelTerms() {
		l.pairs[p] = layer.Conjugate(p)
	}
	l.chooseSingleBases()
	return l
}

// Pair returns the conjugate of a model term under the layer.
func (l *LayerLearning) Pair(p per.Pauli) per.Pauli { return l.pairs[p] }

// IsSingle reports whether p is conjugate to a different model term, so
// depth sweeps only see the product of both fidelities.
func (l *LayerLearning) IsSingle(p per.Pauli) bool {
	pair, ok := l.pairs[p]
	return ok && pair != p && l.spec.IsModelTerm(pair)
}

// SinglePairs returns the unordered degenerate pairs, smaller label first.
func (l *LayerLearning) SinglePairs() [][2]per.Pauli {
	return append([][2]per.Pauli(nil), l.singlePairs...)
}

// SingleBases returns the composite bases for the degeneracy-lifting
// measurements.
func (l *LayerLearning) SingleBases() []per.Pauli {
	return append([]per.Pauli(nil), l.singleBases...)
}

// chooseSingleBases packs the degenerate pairs first-fit: (p1, p2) joins a
// basis when the basis is disjoint from p1 and its conjugate is disjoint from
// p2; otherwise p2 starts a new basis.
func (l *LayerLearning) chooseSingleBases() {
	seen := make(map[[2]per.Pauli]bool)
	for _, p := range l.spec.ModelTerms() {
		if !l.IsSingle(p) {
			continue
		}
		pair := [2]per.Pauli{p, l.pairs[p]}
		if pair[1] < pair[0] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if !seen[pair] {
			seen[pair] = true
			l.singlePairs = append(l.singlePairs, pair)
		}
	}
	sort.Slice(l.singlePairs, func(i, j int) bool {
		if l.singlePairs[i][0] != l.singlePairs[j][0] {
			return l.singlePairs[i][0] < l.singlePairs[j][0]
		}
		return l.singlePairs[i][1] < l.singlePairs[j][1]
	})

	for _, pair := range l.singlePairs {
		p1, p2 := pair[0], pair[1]
		placed := false
		for i, basis := range l.singleBases {
			if basis.Separate(p1) && l.layer.Conjugate(basis).Separate(p2) {
				l.singleBases[i] = basis.Mul(p2)
				placed = true
				break
			}
		}
		if !placed {
			l.singleBases = append(l.singleBases, p2)
		}
	}
	logrus.Infof("Chose %d single bases for layer %s: %v", len(l.singleBases), l.key, l.singleBases)
}

// recipe is the deterministic description of one instance; the random parts
// are drawn when the instance is built.
type recipe struct {
	prep, meas per.Pauli
	depth      int
	kind       InstanceKind
}

// Procedure generates one pair instance per (basis, depth, sample) and one
// single instance of depth 1 per (single basis, sample). Instances are built
// concurrently; each draws from its own stream derived from rng, so the
// result does not depend on scheduling.
func (l *LayerLearning) Procedure(
	ctx context.Context,
	samples, singleSamples int,
	depths []int,
	rng *per.PartitionedRNG,
) ([]*BenchmarkInstance, error) {
	if len(depths) < 2 {
		return nil, fmt.Errorf("%w: got %v", ErrTooFewDepths, depths)
	}
	if samples < 1 || singleSamples < 0 {
		return nil, fmt.Errorf("invalid sample counts: samples=%d single_samples=%d", samples, singleSamples)
	}
	for _, d := range depths {
		if d < 0 {
			return nil, fmt.Errorf("negative depth %d", d)
		}
	}

	var recipes []recipe
	for _, basis := range l.spec.MeasBases() {
		for _, d := range depths {
			for s := 0; s < samples; s++ {
				recipes = append(recipes, recipe{prep: basis, meas: basis, depth: d, kind: KindPair})
			}
		}
	}
	for _, basis := range l.singleBases {
		for s := 0; s < singleSamples; s++ {
			recipes = append(recipes, recipe{prep: l.layer.Conjugate(basis), meas: basis, depth: 1, kind: KindSingle})
		}
	}

	instances := make([]*BenchmarkInstance, len(recipes))
	scope := per.SubsystemTomography + "/" + l.key
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range recipes {
		i, r := i, r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inst, err := NewBenchmarkInstance(r.prep, r.meas, r.depth, l.spec, l.layer, r.kind,
				rng.Derive(per.SubsystemInstance(scope, i)))
			if err != nil {
				return err
			}
			instances[i] = inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logrus.Infof("Created experiment for layer %s consisting of %d instances", l.key, len(instances))
	return instances, nil
}
