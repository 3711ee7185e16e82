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
	"github.com/pauli-lindblad/plper/per/statevec"
	"github.com/pauli-lindblad/plper/per/tomography"
)

var noisePath string // Noise data frame file

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Learn a noise model for every layer profile against the simulator",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if err := learnToFile(cmd.Context(), cfg, noisePath, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("learn: %v", err)
		}
		logrus.Infof("Noise data frame written to %s", noisePath)
	},
}

// learnToFile runs tomography and writes the frame to path only once it
// has succeeded, so a failed run leaves any existing file untouched.
func learnToFile(ctx context.Context, cfg *ExperimentConfig, path string, w io.Writer) error {
	var buf bytes.Buffer
	if _, err := runLearn(ctx, cfg, &buf, w); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// runLearn runs tomography for cfg, writes the frame to out and a summary
// to w.
func runLearn(ctx context.Context, cfg *ExperimentConfig, out, w io.Writer) (*tomography.NoiseDataFrame, error) {
	dev, err := cfg.BuildDevice()
	if err != nil {
		return nil, err
	}
	circuits, err := cfg.BuildCircuits()
	if err != nil {
		return nil, err
	}
	key := per.NewExperimentKey(cfg.Seed)
	exp, err := tomography.NewExperiment(circuits, cfg.QubitMap, dev, per.NewPartitionedRNG(key))
	if err != nil {
		return nil, err
	}
	if err := exp.Generate(ctx, cfg.Learning.Samples, cfg.Learning.SingleSamples, cfg.Learning.Depths); err != nil {
		return nil, err
	}
	sim, err := statevec.NewSimulator(cfg.Simulator, key)
	if err != nil {
		return nil, err
	}
	if err := exp.Run(ctx, sim.Executor()); err != nil {
		return nil, err
	}
	frame, err := exp.Analyze()
	if err != nil {
		return nil, err
	}
	if err := tomography.SaveDataFrame(out, frame); err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "Run %s: %d layer profiles from %d instances\n", frame.RunID, len(frame.Models()), len(exp.Instances()))
	for _, m := range frame.Models() {
		fmt.Fprintf(w, "Layer %s\n", m.Key())
		coeffs := m.Coeffs()
		for i, t := range m.Terms() {
			fmt.Fprintf(w, "  %s  %.6f\n", t, coeffs[i])
		}
	}
	fmt.Fprintf(w, "Overhead at strength 0: %.4f\n", frame.Overhead(0))
	return frame, nil
}
