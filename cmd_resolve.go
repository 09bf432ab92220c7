package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pybuild/pymatrix/pkg/cliutil"
	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/python/pep440"
	"github.com/pybuild/pymatrix/pkg/python/pep503"
)

func init() {
	var (
		indexServer string
		python      string
		pre         bool
		all         bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [flags] REQUIREMENT",
		Short: "Resolve a requirement against the package index",
		Long: "Given a channel-style requirement string (\"chainer<3\", \"chainer\"), " +
			"query the package index the way an installer would and report which " +
			"concrete version it selects: the highest release satisfying the range, " +
			"excluding pre-releases unless --pre opts in or the requirement itself " +
			"pins one, and excluding files whose Requires-Python the --python " +
			"interpreter does not satisfy.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()

			ch, err := matrix.ParseChannel(args[0])
			if err != nil {
				return err
			}
			con := pep503.Constraint{
				Specifier: ch.Specifier,
				AllowPre:  pre || ch.Pre,
			}
			if python != "" {
				pyVer, err := pep440.ParseVersion(python)
				if err != nil {
					return err
				}
				con.Python = pyVer
			}

			client := pep503.Client{BaseURL: indexServer}
			out := flags.OutOrStdout()
			if all {
				candidates, err := client.Candidates(ctx, ch.Project, con)
				if err != nil {
					return err
				}
				for _, cand := range candidates {
					fmt.Fprintf(out, "%s==%s\t%s\n", ch.Project, cand.Version, cand.Filename)
				}
				return nil
			}
			cand, err := client.Resolve(ctx, ch.Project, con)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s==%s\n", ch.Project, cand.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&indexServer, "index-server", pep503.PyPIBaseURL,
		"Package index to resolve against")
	cmd.Flags().StringVar(&python, "python", "",
		"Only consider files installable on interpreter `VERSION`")
	cmd.Flags().BoolVar(&pre, "pre", false,
		"Consider pre-release and development versions")
	cmd.Flags().BoolVar(&all, "all", false,
		"List every satisfying version instead of just the selected one")
	argparser.AddCommand(cmd)
}
