package mitigation

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pauli-lindblad/plper/per"
)

// PERRun holds the instances of one circuit for every (basis, strength,
// sample) and, after Analyze, the fitted data per observable.
type PERRun struct {
	pc          *PERCircuit
	strengths   []float64
	samples     int
	bases       []per.Pauli
	observables []per.Pauli
	instances   []*PERInstance
	data        map[per.Pauli]*PERData
}

type perRecipe struct {
	basis    per.Pauli
	strength float64
}

// newPERRun generates the instances in parallel. Instance i draws from the
// stream scope/instance_i of rng.
func newPERRun(
	ctx context.Context,
	processor per.Processor,
	qubitMap []int,
	pc *PERCircuit,
	samples int,
	strengths []float64,
	bases, observables []per.Pauli,
	rng *per.PartitionedRNG,
	scope string,
) (*PERRun, error) {
	r := &PERRun{
		pc:          pc,
		strengths:   append([]float64(nil), strengths...),
		samples:     samples,
		bases:       append([]per.Pauli(nil), bases...),
		observables: append([]per.Pauli(nil), observables...),
	}

	var recipes []perRecipe
	for _, b := range bases {
		for _, s := range strengths {
			for k := 0; k < samples; k++ {
				recipes = append(recipes, perRecipe{b, s})
			}
		}
	}

	r.instances = make([]*PERInstance, len(recipes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rc := range recipes {
		i, rc := i, rc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inst, err := NewPERInstance(processor, qubitMap, pc, rc.basis, rc.strength,
				rng.Derive(per.SubsystemInstance(scope, i)))
			if err != nil {
				return err
			}
			r.instances[i] = inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// Instances returns the generated instances in execution order.
func (r *PERRun) Instances() []*PERInstance { return append([]*PERInstance(nil), r.instances...) }

// Circuit returns the circuit the run mitigates.
func (r *PERRun) Circuit() *PERCircuit { return r.pc }

// spamFor is the product of the SPAM coefficients of the single-qubit
// factors of p. A factor without a coefficient, or with one that is not
// positive, counts as 1.
func (r *PERRun) spamFor(p per.Pauli) float64 {
	n := p.Len()
	spam := 1.0
	for _, q := range p.Support() {
		factor := per.Identity(n).With(q, p.At(q))
		v, ok := r.pc.SPAM(factor)
		switch {
		case !ok:
			logrus.Warnf("No SPAM coefficient for %s, using 1", factor)
			continue
		case !(v > 0):
			logrus.Warnf("SPAM coefficient %v for %s cannot correct readout, using 1", v, factor)
			continue
		}
		spam *= v
	}
	return spam
}

// Analyze attaches every instance to the observables its basis measures
// and fits each observable.
func (r *PERRun) Analyze() error {
	r.data = make(map[per.Pauli]*PERData, len(r.observables))
	measured := make(map[per.Pauli][]per.Pauli)
	for _, inst := range r.instances {
		basis := inst.MeasBasis()
		obs, ok := measured[basis]
		if !ok {
			for _, p := range r.observables {
				if basis.Simultaneous(p) {
					obs = append(obs, p)
				}
			}
			measured[basis] = obs
		}
		for _, p := range obs {
			d, ok := r.data[p]
			if !ok {
				d = NewPERData(p, r.spamFor(p))
				r.data[p] = d
			}
			d.AddData(inst)
		}
	}
	for _, p := range r.observables {
		d, ok := r.data[p]
		if !ok {
			return fmt.Errorf("observable %s is not measured by any basis", p)
		}
		if _, err := d.Fit(); err != nil {
			return err
		}
		logrus.Infof("Observable %s: zero-noise estimate %.6f", p, d.Expectation())
	}
	return nil
}

// Result returns the data of one observable by label.
func (r *PERRun) Result(label string) (*PERData, error) {
	p, err := per.ParsePauli(label)
	if err != nil {
		return nil, err
	}
	d, ok := r.data[p]
	if !ok {
		return nil, fmt.Errorf("no PER data for %s", label)
	}
	return d, nil
}
