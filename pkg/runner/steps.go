// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/pyenv"
)

// Step is one shell command of a cell's pipeline.  Steps run strictly in
// order, and the first failure aborts the rest of the cell.
type Step struct {
	Name string
	Argv []string
	// Raw steps run on the host as-is instead of being rewritten into
	// the cell's environment (the conda channel install addresses the
	// environment by prefix itself).
	Raw bool
}

// BuildSteps lays out the install-and-test pipeline for one cell:
// baseline tools, the native-binding dependency, the channel-resolved
// variable dependency, the package under test in editable mode, and
// finally the filtered, coverage-instrumented test run.
func BuildSteps(man *matrix.Manifest, cell matrix.Cell, env pyenv.Environment, coveragePath string) ([]Step, error) {
	var steps []Step

	steps = append(steps, Step{
		Name: "install-baseline",
		Argv: append([]string{"pip", "install"}, man.Baseline...),
	})

	if man.Native != nil {
		argv, err := env.NativeInstallArgv(man.Native.CondaChannel, man.Native.Requirement)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{
			Name: "install-native",
			Argv: argv,
			Raw:  true,
		})
	}

	steps = append(steps, Step{
		Name: "install-dependency",
		Argv: append([]string{"pip", "install"}, cell.Channel.PipArgs()...),
	})

	// Steps run with the package directory as their working directory,
	// so the editable install always targets ".".
	steps = append(steps, Step{
		Name: "install-package",
		Argv: []string{"pip", "install", "-e", "."},
	})

	testArgv := []string{
		"pytest", man.Tests.Dir,
		"-m", man.Tests.Markers,
		"--cov=" + man.Tests.CoverageTarget,
	}
	if coveragePath != "" {
		testArgv = append(testArgv, "--cov-report=xml:"+coveragePath)
	}
	steps = append(steps, Step{
		Name: "test",
		Argv: testArgv,
	})

	return steps, nil
}
