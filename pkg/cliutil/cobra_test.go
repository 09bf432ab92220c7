// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package cliutil_test

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pybuild/pymatrix/pkg/cliutil"
)

func TestOnlySubcommandsOK(t *testing.T) {
	t.Parallel()
	cmd := &cobra.Command{Use: "pymatrix"}
	assert.NoError(t, cliutil.OnlySubcommands(cmd, nil))
	assert.NoError(t, cliutil.FlagErrorFunc(cmd, nil))
}

func TestHelpTemplate(t *testing.T) {
	t.Setenv("COLUMNS", "80")

	rootCmd := &cobra.Command{
		Use:   "pymatrix",
		Short: "Run build matrices for Python packages",
		Long: "Pymatrix enumerates the cross-product of a manifest's interpreter versions " +
			"and dependency channels, provisions an isolated environment per cell, and runs " +
			"each cell's install-and-test pipeline to completion.",
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Execute every cell of the matrix and report per-cell results",
		RunE:  func(*cobra.Command, []string) error { return nil },
	})
	rootCmd.SetHelpTemplate(cliutil.HelpTemplate)

	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())

	help := out.String()
	assert.Contains(t, help, "Usage: pymatrix")
	assert.Contains(t, help, "Available Commands:")
	assert.Contains(t, help, "run")
	for _, line := range strings.Split(help, "\n") {
		assert.LessOrEqual(t, len(line), 80, "line %q", line)
	}
}
