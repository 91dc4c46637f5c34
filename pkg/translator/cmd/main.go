// Package cmd implements the config subcommands for the translator package
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/release"
	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

var RootCmd = &cobra.Command{
	Use:   "config",
	Short: "Translates the workflow build config",
	Long: `These commands read the build config from the environment variable named by
their first argument (or from --raw) and print what the workflow scripts need:
KEY=value assignments for a build step or the job matrices for each stage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ReadRawConfig returns the value of --raw if set, otherwise the value of the environment variable
// named by the first argument. An unset variable yields an empty config.
func ReadRawConfig(cmd *cobra.Command, args []string) (string, error) {
	raw, err := cmd.Flags().GetString("raw")
	if err != nil {
		return "", err
	}

	if raw != "" {
		return raw, nil
	}

	if len(args) < 1 {
		return "", eris.New("expected the name of the environment variable holding the config")
	}

	value, ok := os.LookupEnv(args[0])
	if !ok {
		translator.Logger(cmd.Context()).Warn().Msgf("Environment variable %s not set.", args[0])
	}

	return value, nil
}

func writeOutput(cmd *cobra.Command, content string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	if output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	handle, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", output)
	}
	defer handle.Close()

	_, err = handle.WriteString(content)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", output)
	}

	return nil
}

func newEnvCmd(use, short string, stage translator.BuildStage) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [CONFIG_VAR]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := config.Load()
			if err != nil {
				return err
			}

			raw, err := ReadRawConfig(cmd, args)
			if err != nil {
				return err
			}

			cfg, err := translator.ParseBuildConfig(ctx, raw)
			if err != nil {
				return err
			}

			vars, err := cfg.EnvVars(ctx, stage, env)
			if err != nil {
				return err
			}

			inline, err := cmd.Flags().GetBool("inline")
			if err != nil {
				return err
			}

			sep := "\n"
			if inline {
				sep = " "
			}

			translator.Logger(ctx).Debug().Str("stage", stage.String()).Msgf("Emitting %d variables for %s", len(vars), cfg.Project)
			return writeOutput(cmd, translator.FormatEnv(vars, sep))
		},
	}

	cmd.Flags().String("raw", "", "config string to use instead of reading it from the environment")
	cmd.Flags().Bool("inline", false, "print all assignments on a single line separated by spaces")
	cmd.Flags().StringP("output", "o", "", "append the assignments to this file (i.e. $GITHUB_ENV) instead of printing them")
	return cmd
}

var matricesCmd = &cobra.Command{
	Use:   "matrices [CONFIG_VAR]",
	Short: "Prints the job matrix of every stage as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := config.Load()
		if err != nil {
			return err
		}

		raw, err := ReadRawConfig(cmd, args)
		if err != nil {
			return err
		}

		matrices, err := translator.GetStageMatrices(ctx, raw, env)
		if err != nil {
			return err
		}

		stage, err := cmd.Flags().GetString("stage")
		if err != nil {
			return err
		}

		var output interface{} = matrices
		if stage != "" {
			rows, ok := matrices[stage]
			if !ok {
				return eris.Errorf("stage %s is not declared", stage)
			}

			output = map[string]interface{}{"include": rows}
		}

		data, err := json.Marshal(output)
		if err != nil {
			return eris.Wrap(err, "failed to encode matrices")
		}

		return writeOutput(cmd, string(data)+"\n")
	},
}

var wheelNameCmd = &cobra.Command{
	Use:   "wheel-name <wheel file> <project name>",
	Short: "Prints the <name>-<version> part of a wheel filename",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := release.ParseWheelName(args[0], args[1])
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
		return err
	},
}

func init() {
	matricesCmd.Flags().String("raw", "", "config string to use instead of reading it from the environment")
	matricesCmd.Flags().String("stage", "", "only print this stage, wrapped as {\"include\": [...]}")
	matricesCmd.Flags().StringP("output", "o", "", "append the JSON to this file instead of printing it")

	RootCmd.AddCommand(newEnvCmd("parse-sdist", "Prints the env assignments for the sdist build", translator.BuildSdist))
	RootCmd.AddCommand(newEnvCmd("parse-wheel", "Prints the env assignments for the wheel build", translator.BuildWheel))
	RootCmd.AddCommand(matricesCmd)
	RootCmd.AddCommand(wheelNameCmd)
}
