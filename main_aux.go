//go:build aux

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/pybuild/pymatrix/pkg/cliutil"
)

// The aux build adds the release-engineering conveniences that the normal
// binary doesn't carry: shell completion, and CLI reference generation.
func init() {
	argparser.CompletionOptions.DisableDefaultCmd = false
	argparser.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		completionCmd, _, _ := cmd.Root().Find([]string{"completion"})
		completionCmd.Hidden = true
	}

	var format string
	cmd := &cobra.Command{
		Hidden: true,
		Use:    "docs OUT_DIRECTORY",
		Short:  "Generate CLI reference documentation",
		Args:   cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o777); err != nil {
				return err
			}
			root := cmd.Root()
			root.DisableAutoGenTag = true
			switch format {
			case "man":
				return doc.GenManTree(root, &doc.GenManHeader{
					Source: "pymatrix",
					Manual: root.Name(),
				}, dir)
			case "markdown":
				return doc.GenMarkdownTree(root, dir)
			default:
				return fmt.Errorf("invalid --format %q (want man or markdown)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "man",
		"Write the reference as `FORMAT` (man or markdown)")
	argparser.AddCommand(cmd)
}
