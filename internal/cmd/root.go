package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Devliang24/casecraft/internal/log"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "casecraft",
	Short: "Generate API test cases from OpenAPI documents with LLM providers",
	Long: `casecraft ingests an OpenAPI 3.0 or Swagger 2.0 document, selects
endpoints through filters, and generates structured test cases per endpoint
by dispatching prompts across multiple LLM providers with per-provider
concurrency limits, fallback chains, and incremental regeneration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := log.DefaultConfig()
		if verbose {
			cfg = log.VerboseConfig()
		}
		cfg.Format = log.ParseFormat(logFormat)
		log.SetGlobal(log.New(cfg))
	},
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "casecraft.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
}
