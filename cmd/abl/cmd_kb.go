package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Build or query the configured knowledge base",
}

var kbBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge base and persist a snapshot",
	RunE:  runKBBuild,
}

var kbQueryFlags struct {
	key     float64
	lengths []int
}

var kbQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List stored sequences matching a value",
	RunE:  runKBQuery,
}

func init() {
	f := kbQueryCmd.Flags()
	f.Float64Var(&kbQueryFlags.key, "key", 0, "Value to match (required)")
	f.IntSliceVar(&kbQueryFlags.lengths, "length", nil, "Restrict to these sequence lengths")
	_ = kbQueryCmd.MarkFlagRequired("key")

	kbCmd.AddCommand(kbBuildCmd)
	kbCmd.AddCommand(kbQueryCmd)
}

func runKBBuild(cmd *cobra.Command, _ []string) error {
	eng, _, done, err := openEngine(cmd, true)
	if err != nil {
		return err
	}
	defer done()

	n := eng.KB().Len()
	out := cmd.OutOrStdout()
	if n == 0 {
		fmt.Fprintln(out, "Knowledge base is lazy (kb.max_len 0); nothing persisted")
		return nil
	}
	fmt.Fprintf(out, "Built knowledge base: %d entries\n", n)
	return nil
}

func runKBQuery(cmd *cobra.Command, _ []string) error {
	eng, _, done, err := openEngine(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	cands, err := eng.Query(kbQueryFlags.key, kbQueryFlags.lengths...)
	if err != nil {
		return fmt.Errorf("%w (set kb.max_len to materialize it)", err)
	}
	out := cmd.OutOrStdout()
	for _, c := range cands {
		fmt.Fprintln(out, formatSeq(c))
	}
	fmt.Fprintf(out, "%d candidates\n", len(cands))
	return nil
}
