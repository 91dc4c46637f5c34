package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg"
	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/release"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Creates the annotated release tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.Load()
		if err != nil {
			return err
		}

		in, err := workflowInputs(cmd, env)
		if err != nil {
			return err
		}

		if _, err := release.ParseVersion(in.Version); err != nil {
			return err
		}

		if in.SHA != "" {
			if err := release.ValidateSHA(in.SHA); err != nil {
				return err
			}
		}

		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}

		tagger := release.NewGitTagger(dir)
		tagger.Push, err = cmd.Flags().GetBool("push")
		if err != nil {
			return err
		}

		tagger.Remote, err = cmd.Flags().GetString("remote")
		if err != nil {
			return err
		}

		pkg.PrintTask("Tagging " + in.Version)
		return tagRelease(cmd, tagger, in)
	},
}

func tagRelease(cmd *cobra.Command, tagger release.ReleaseTagger, in release.Inputs) error {
	if err := tagger.Tag(cmd.Context(), in.Version, in.SHA); err != nil {
		pkg.PrintError("Tagging failed")
		return eris.Wrapf(err, "failed to tag release %s", in.Version)
	}

	pkg.PrintSubtask("Done")
	return nil
}

func init() {
	addInputFlags(tagCmd)
	tagCmd.Flags().String("dir", ".", "repository to tag")
	tagCmd.Flags().Bool("push", false, "push the tag after creating it")
	tagCmd.Flags().String("remote", "origin", "remote to push the tag to")
	rootCmd.AddCommand(tagCmd)
}
