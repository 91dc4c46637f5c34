package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

var envPrefixes = []string{"CBCI_", "PYCBC_", "PYCBCC_", "PREFER_", "CCACHE_", "GITHUB_REF", "GITHUB_SHA", "RUNNER_OS", "RUNNER_ARCH"}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Prints the CI related environment for diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.Load()
		if err != nil {
			return err
		}

		lines := make([]string, 0)
		for _, item := range os.Environ() {
			for _, prefix := range envPrefixes {
				if strings.HasPrefix(item, prefix) {
					lines = append(lines, item)
					break
				}
			}
		}
		sort.Strings(lines)

		out := cmd.OutOrStdout()
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}

		if env.ProjectType != "" {
			project, err := translator.ParseProjectPrefix(env.ProjectType)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "# project: %s (prefix %s, version file %s)\n", project, project.EnvPrefix(), project.VersionFile())
		}

		fmt.Fprintf(out, "# supported python versions: %s\n", strings.Join(env.PythonVersions(), " "))
		for _, arch := range []string{"x86_64", "arm64"} {
			fmt.Fprintf(out, "# supported %s platforms: %s\n", arch, strings.Join(env.Platforms(arch), " "))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
