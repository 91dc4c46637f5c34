package cmd

import (
	"context"
	"os"

	"github.com/aidarkhanov/nanoid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/translator"
	tcmd "github.com/couchbaselabs/cbci-tools/pkg/translator/cmd"
)

var logger = tcmd.NewLogger(nanoid.New())

var rootCmd = &cobra.Command{
	Use:   "cbci",
	Short: "CI helpers for the Python SDK packaging workflows",
	Long: `This command bundles the helpers the packaging workflows call: translating the
build config into env assignments and job matrices, validating workflow inputs,
tagging releases and building the source distribution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.Load()
		if err != nil {
			return err
		}

		level := env.Level()
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}
		if verbose {
			level = zerolog.DebugLevel
		}

		logger = logger.Level(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug output")
	rootCmd.AddCommand(tcmd.RootCmd)
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	ctx := translator.WithLogger(context.Background(), &logger)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("cbci failed")
		os.Exit(1)
	}
}
