// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package cliutil rounds off cobra's sharp edges: better bad-usage
// reporting, and a help template that wraps to the terminal.
package cliutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OnlySubcommands is a cobra.PositionalArgs like cobra.NoArgs, but with an
// error message that names the bogus argument and suggests corrections.
func OnlySubcommands(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		err := fmt.Errorf("invalid subcommand %q", args[0])

		if cmd.SuggestionsMinimumDistance <= 0 {
			cmd.SuggestionsMinimumDistance = 2
		}
		if suggestions := cmd.SuggestionsFor(args[0]); len(suggestions) > 0 {
			err = fmt.Errorf("%w\nDid you mean one of these?\n\t%s", err, strings.Join(suggestions, "\n\t"))
		}

		return cmd.FlagErrorFunc()(cmd, err)
	}
	return nil
}

// WrapPositionalArgs wraps a cobra.PositionalArgs so that its errors go
// through FlagErrorFunc, for consistent bad-usage reporting.
func WrapPositionalArgs(inner cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return FlagErrorFunc(cmd, inner(cmd, args))
	}
}

// RunSubcommands is for use as the RunE of commands that only exist to
// hold subcommands.  It must be set even though there is nothing to run:
// otherwise cobra treats a typoed subcommand as success.
func RunSubcommands(cmd *cobra.Command, args []string) error {
	cmd.SetOutput(cmd.ErrOrStderr())
	cmd.HelpFunc()(cmd, args)
	os.Exit(2)
	return nil
}

// FlagErrorFunc is for (*cobra.Command).SetFlagErrorFunc, and establishes
// GNU-ish behavior for invalid usage: print the error plus a "See --help"
// pointer, and exit 2.
//
// If there is an error, FlagErrorFunc calls os.Exit; it does NOT return.
// That means every error that does come back from
// (*cobra.Command).Execute is an execution error, not a usage error.
func FlagErrorFunc(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}

	// If the error is multiple lines, include an extra blank line
	// before the "See --help" line.
	errStr := strings.TrimRight(err.Error(), "\n")
	if strings.Contains(errStr, "\n") {
		errStr += "\n"
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\nSee '%s --help' for more information.\n",
		cmd.CommandPath(), errStr, cmd.CommandPath())
	os.Exit(2)
	return nil
}
