package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/abl/pkg/abl/data"
)

var abduceFlags struct {
	input  string
	output string
}

var abduceCmd = &cobra.Command{
	Use:   "abduce",
	Short: "Abduce consistent labels for a JSON-lines batch of samples",
	RunE:  runAbduce,
}

func init() {
	f := abduceCmd.Flags()
	f.StringVar(&abduceFlags.input, "input", "", "JSON-lines samples (required)")
	f.StringVarP(&abduceFlags.output, "output", "o", "", "Write abduced samples here instead of stdout")
	_ = abduceCmd.MarkFlagRequired("input")
}

func runAbduce(cmd *cobra.Command, _ []string) error {
	in, err := os.Open(abduceFlags.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	samples, err := data.ReadJSONLines(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", abduceFlags.input, err)
	}

	eng, log, done, err := openEngine(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	b := data.NewBatch(samples...)
	abduced, err := eng.AbduceBatch(cmd.Context(), b)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if abduceFlags.output != "" {
		f, err := os.Create(abduceFlags.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := data.WriteJSONLines(w, b.Samples); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	revised, unresolved := 0, 0
	for i, a := range abduced {
		switch {
		case a == nil:
			unresolved++
		case !a.Equal(b.At(i).Pred):
			revised++
		}
	}
	log.Info("abduce finished",
		zap.String("batch", b.ID),
		zap.Int("samples", len(abduced)),
		zap.Int("revised", revised),
		zap.Int("unresolved", unresolved),
	)
	return nil
}
