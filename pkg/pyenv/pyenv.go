// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package pyenv provisions ephemeral, isolated Python environments for
// matrix cells.  An environment lives in its own prefix directory, is never
// shared between cells, and is destroyed when its cell finishes.
package pyenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datawire/dlib/dexec"
)

// Environment is a provisioned interpreter prefix that commands can be
// rewritten to run inside of.
type Environment interface {
	// Prefix is the environment's root directory.
	Prefix() string
	// Argv rewrites a command to run inside the environment.
	Argv(argv ...string) []string
	// NativeInstallArgv is the command that installs a native-binding
	// requirement from a distribution channel, for environment kinds
	// that support one.
	NativeInstallArgv(channel, requirement string) ([]string, error)
	// Destroy removes the environment.
	Destroy(ctx context.Context) error
}

// Provisioner creates a fresh Environment for an interpreter version.
type Provisioner interface {
	Provision(ctx context.Context, prefix, python string) (Environment, error)
}

// Conda provisions environments with the conda package manager; this is
// the kind to use when a cell needs native-binding packages that pip can't
// provide (rdkit and friends).
type Conda struct {
	// Exe is the conda executable; defaults to "conda" from $PATH.
	Exe string
}

func (p Conda) exe() string {
	if p.Exe != "" {
		return p.Exe
	}
	return "conda"
}

func (p Conda) Provision(ctx context.Context, prefix, python string) (Environment, error) {
	cmd := dexec.CommandContext(ctx, p.exe(),
		"create", "--yes", "--quiet",
		"--prefix", prefix,
		"python="+python)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("conda create python=%s: %w", python, err)
	}
	return &condaEnv{prefix: prefix, exe: p.exe()}, nil
}

type condaEnv struct {
	prefix string
	exe    string
}

func (e *condaEnv) Prefix() string { return e.prefix }

func (e *condaEnv) Argv(argv ...string) []string {
	return append([]string{e.exe, "run", "--prefix", e.prefix}, argv...)
}

func (e *condaEnv) NativeInstallArgv(channel, requirement string) ([]string, error) {
	argv := []string{e.exe, "install", "--yes", "--quiet", "--prefix", e.prefix}
	if channel != "" {
		argv = append(argv, "--channel", channel)
	}
	return append(argv, requirement), nil
}

func (e *condaEnv) Destroy(ctx context.Context) error {
	return os.RemoveAll(e.prefix)
}

// Venv provisions environments with the interpreter's own venv module.  It
// requires a "pythonX.Y" binary for the requested version on $PATH, and
// can't install native-binding channel packages.
type Venv struct{}

func (p Venv) Provision(ctx context.Context, prefix, python string) (Environment, error) {
	interp := "python" + python
	cmd := dexec.CommandContext(ctx, interp, "-m", "venv", prefix)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s -m venv: %w", interp, err)
	}
	return &venvEnv{prefix: prefix}, nil
}

type venvEnv struct {
	prefix string
}

func (e *venvEnv) Prefix() string { return e.prefix }

func (e *venvEnv) Argv(argv ...string) []string {
	ret := append([]string(nil), argv...)
	ret[0] = filepath.Join(e.prefix, "bin", argv[0])
	return ret
}

func (e *venvEnv) NativeInstallArgv(channel, requirement string) ([]string, error) {
	return nil, fmt.Errorf("venv environments cannot install channel packages (want %q from %q)",
		requirement, channel)
}

func (e *venvEnv) Destroy(ctx context.Context) error {
	return os.RemoveAll(e.prefix)
}
