package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/pybuild/pymatrix/pkg/cliutil"
	"github.com/pybuild/pymatrix/pkg/matrix"
)

func init() {
	var (
		manifestFile string
		output       string
	)
	cmd := &cobra.Command{
		Use:   "cells [flags]",
		Short: "List the cells the matrix enumerates to",
		Long: "Print the full cross-product of the manifest's axes, one cell per " +
			"line, without running anything.  An outer CI host can use this to " +
			"shard the matrix across its own jobs (each shard then being a " +
			"'pymatrix run' filtered down to one cell's manifest).",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(flags *cobra.Command, _ []string) error {
			man, err := matrix.ParseFile(manifestFile)
			if err != nil {
				return err
			}
			cells, err := man.Cells()
			if err != nil {
				return err
			}

			out := flags.OutOrStdout()
			switch output {
			case "plain":
				for _, cell := range cells {
					fmt.Fprintf(out, "%-40s python=%s channel=%q\n",
						cell.ID(), cell.Python, cell.Channel.Raw)
				}
			case "yaml":
				type cellInfo struct {
					ID          string
					Python      string
					Channel     string
					Requirement string
					Pre         bool `yaml:",omitempty"`
				}
				infos := make([]cellInfo, 0, len(cells))
				for _, cell := range cells {
					infos = append(infos, cellInfo{
						ID:          cell.ID(),
						Python:      cell.Python,
						Channel:     cell.Channel.Raw,
						Requirement: cell.Channel.Requirement(),
						Pre:         cell.Channel.Pre,
					})
				}
				yamlBytes, err := yaml.Marshal(infos)
				if err != nil {
					return err
				}
				if _, err := out.Write(yamlBytes); err != nil {
					return err
				}
			default:
				return fmt.Errorf("invalid --output %q (want one of plain, yaml)", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestFile, "file", "f", "pymatrix.yaml",
		"Read the matrix from `MANIFEST_FILE`")
	cmd.Flags().StringVarP(&output, "output", "o", "plain",
		"Write the cell list as `FORMAT` (plain or yaml)")
	argparser.AddCommand(cmd)
}
