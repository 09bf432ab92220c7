// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Command pymatrix runs a Python package's CI build matrix: interpreter
// versions crossed with dependency channels, each cell in its own
// ephemeral environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pybuild/pymatrix/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "pymatrix {[flags]|SUBCOMMAND...}",
	Short: "Run a Python package's build matrix",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
