package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pauli-lindblad/plper/per"
	"github.com/pauli-lindblad/plper/per/tomography"
)

var basesCmd = &cobra.Command{
	Use:   "bases",
	Short: "Print the measurement bases, model terms and layer profiles of a config",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if err := runBases(cfg, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("bases: %v", err)
		}
	},
}

func runBases(cfg *ExperimentConfig, w io.Writer) error {
	dev, err := cfg.BuildDevice()
	if err != nil {
		return err
	}
	spec, err := tomography.NewProcessorSpec(cfg.QubitMap, dev)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Qubit map %v on %s, edges %v\n", spec.QubitMap(), dev.Name(), spec.Edges())
	fmt.Fprintf(w, "%d measurement bases:\n", len(spec.MeasBases()))
	for _, b := range spec.MeasBases() {
		fmt.Fprintf(w, "  %s\n", b)
	}
	fmt.Fprintf(w, "%d model terms:\n", len(spec.ModelTerms()))
	for _, p := range spec.ModelTerms() {
		fmt.Fprintf(w, "  %s\n", p)
	}

	if len(cfg.Circuits) == 0 {
		return nil
	}
	circuits, err := cfg.BuildCircuits()
	if err != nil {
		return err
	}
	profiles := make(map[string]bool)
	var keys []string
	for i, c := range circuits {
		layers, err := per.Partition(c)
		if err != nil {
			return fmt.Errorf("circuits[%d]: %w", i, err)
		}
		fmt.Fprintf(w, "Circuit %s: %d layers\n", cfg.Circuits[i].Name, len(layers))
		for _, l := range layers {
			if !profiles[l.Key()] {
				profiles[l.Key()] = true
				keys = append(keys, l.Key())
			}
		}
	}
	fmt.Fprintf(w, "%d layer profiles:\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}
