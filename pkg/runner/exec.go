// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dexec"
)

// Execer runs one step command to completion.  It exists as an interface
// so that the pipeline's sequencing can be tested without a Python
// toolchain on the machine.
type Execer interface {
	Run(ctx context.Context, dir string, extraEnv []string, argv []string) error
}

// CmdExecer is the real Execer: it runs commands with dexec, so each
// subprocess's output lands in the structured log of the cell that ran it.
type CmdExecer struct{}

func (CmdExecer) Run(ctx context.Context, dir string, extraEnv []string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty argv")
	}
	cmd := dexec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	return cmd.Run()
}
