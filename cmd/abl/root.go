// abl is the command-line front end: build and query knowledge bases,
// abduce batches of predictions, and inspect addition-task datasets.
//
// Usage:
//
//	abl kb build [--config abl.yaml]
//	abl kb query --key 18 [--length 2]
//	abl abduce --input samples.jsonl [--output abduced.jsonl]
//	abl addition --index train_data.txt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

var rootCmd = &cobra.Command{
	Use:   "abl",
	Short: "Abductive learning over a logical knowledge base",
	Long: "abl reconciles a perception model's predicted labels with a knowledge base\n" +
		"by revising the fewest symbols needed to reach a consistent sequence.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVar(&rootFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(abduceCmd)
	rootCmd.AddCommand(additionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
