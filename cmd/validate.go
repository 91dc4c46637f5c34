package cmd

import (
	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/release"
	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

// workflowInputs merges the flags of cmd over the values from the CI environment.
func workflowInputs(cmd *cobra.Command, env config.Environment) (release.Inputs, error) {
	in := release.Inputs{
		SHA:       env.SHA,
		Version:   env.Version,
		IsRelease: env.IsRelease,
	}

	flags := cmd.Flags()
	if flags.Changed("sha") {
		value, err := flags.GetString("sha")
		if err != nil {
			return in, err
		}
		in.SHA = value
	}

	if flags.Changed("version") {
		value, err := flags.GetString("version")
		if err != nil {
			return in, err
		}
		in.Version = value
	}

	if flags.Changed("release") {
		value, err := flags.GetBool("release")
		if err != nil {
			return in, err
		}
		in.IsRelease = value
	}

	return in, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate <build_wheels|tests>",
	Short: "Validates the inputs a workflow was dispatched with",
	Long: `Checks the commit SHA, version and release flag (from CBCI_SHA, CBCI_VERSION and
CBCI_IS_RELEASE or the matching flags) against the requirements of the workflow type.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow, err := release.ParseWorkflowType(args[0])
		if err != nil {
			return err
		}

		env, err := config.Load()
		if err != nil {
			return err
		}

		in, err := workflowInputs(cmd, env)
		if err != nil {
			return err
		}

		if err := release.ValidateInputs(workflow, in); err != nil {
			return err
		}

		translator.Logger(cmd.Context()).Info().Msgf("Inputs for %s are valid", workflow)
		return nil
	},
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("sha", "", "commit SHA (defaults to $CBCI_SHA)")
	cmd.Flags().String("version", "", "release version (defaults to $CBCI_VERSION)")
	cmd.Flags().Bool("release", false, "whether this is a release build (defaults to $CBCI_IS_RELEASE)")
}

func init() {
	addInputFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}
