package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/mitigation"
	"github.com/pauli-lindblad/plper/per/statevec"
	"github.com/pauli-lindblad/plper/per/tomography"
)

var mitigateCmd = &cobra.Command{
	Use:   "mitigate",
	Short: "Run probabilistic error reduction with a learned noise data frame",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		noise, err := os.ReadFile(noisePath)
		if err != nil {
			logrus.Fatalf("Reading %s: %v", noisePath, err)
		}
		if _, err := runMitigate(cmd.Context(), cfg, bytes.NewReader(noise), cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("mitigate: %v", err)
		}
	},
}

// runMitigate loads the frame from noise, mitigates every configured
// observable and prints the fits to w.
func runMitigate(ctx context.Context, cfg *ExperimentConfig, noise io.Reader, w io.Writer) ([]*mitigation.PERRun, error) {
	frame, err := tomography.LoadDataFrame(noise, qasmFactory)
	if err != nil {
		return nil, err
	}
	dev, err := cfg.BuildDevice()
	if err != nil {
		return nil, err
	}
	circuits, err := cfg.BuildCircuits()
	if err != nil {
		return nil, err
	}
	observables, err := cfg.ObservablePaulis()
	if err != nil {
		return nil, err
	}
	if len(observables) == 0 {
		return nil, fmt.Errorf("mitigation.observables: at least one observable is required")
	}

	// The learning run used the plain key; offset it so PER instances and
	// simulator shots do not replay the tomography streams.
	key := per.NewExperimentKey(cfg.Seed + 1)
	exp, err := mitigation.NewExperiment(circuits, cfg.QubitMap, frame, dev, per.NewPartitionedRNG(key))
	if err != nil {
		return nil, err
	}
	logrus.Infof("Mitigating with noise frame %s", frame.RunID)
	if err := exp.Generate(ctx, observables, cfg.Mitigation.Samples, cfg.Mitigation.Strengths); err != nil {
		return nil, err
	}
	sim, err := statevec.NewSimulator(cfg.Simulator, key)
	if err != nil {
		return nil, err
	}
	if err := exp.Run(ctx, sim.Executor()); err != nil {
		return nil, err
	}
	runs, err := exp.Analyze()
	if err != nil {
		return nil, err
	}

	for i, r := range runs {
		overhead, err := exp.Overhead(i, 0)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "Circuit %s (overhead at strength 0: %.4f)\n", cfg.Circuits[i].Name, overhead)
		for _, p := range observables {
			d, err := r.Result(p.Label())
			if err != nil {
				return nil, err
			}
			params, _ := d.Params()
			fmt.Fprintf(w, "  %s  mitigated %.4f  (a=%.4f b=%.4f)  strengths %v  expectations %.4f\n",
				p, d.Expectation(), params.A, params.B, d.Strengths(), d.Expectations())
		}
	}
	return runs, nil
}
