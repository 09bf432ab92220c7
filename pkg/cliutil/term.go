// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package cliutil

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// GetTerminalWidth returns the width that help text should be wrapped to.
func GetTerminalWidth() int {
	// Obey COLUMNS if the shell or the user sets it.
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil {
		return cols
	}

	// Otherwise detect the size of the stdout file descriptor.
	if cols, _, err := term.GetSize(1); err == nil {
		return cols
	}

	// Stdout is a terminal but we couldn't get its size; assume 80.
	if term.IsTerminal(1) {
		return 80
	}

	// Stdout isn't a terminal; 0 means "don't wrap".
	return 0
}
