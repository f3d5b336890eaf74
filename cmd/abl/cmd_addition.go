package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cognicore/abl/pkg/abl/data"
)

var additionFlags struct {
	index string
}

var additionCmd = &cobra.Command{
	Use:   "addition",
	Short: "Parse an addition-task index file and summarize it",
	RunE:  runAddition,
}

func init() {
	f := additionCmd.Flags()
	f.StringVar(&additionFlags.index, "index", "", "Index file with one \"i j sum\" line per sample (required)")
	_ = additionCmd.MarkFlagRequired("index")
}

func runAddition(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(additionFlags.index)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := data.ReadAdditionTask(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", additionFlags.index, err)
	}

	hist := make(map[int]int)
	for _, s := range samples {
		hist[int(s.Y)]++
	}
	sums := make([]int, 0, len(hist))
	for sum := range hist {
		sums = append(sums, sum)
	}
	sort.Ints(sums)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Samples: %d\n", len(samples))
	for _, sum := range sums {
		fmt.Fprintf(out, "  sum %2d: %d\n", sum, hist[sum])
	}
	return nil
}
