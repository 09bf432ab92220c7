// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package matrix describes a build matrix: the manifest that declares the
// axes, and the cells that their cross-product enumerates.
package matrix

import (
	"fmt"
	"io/fs"
	"os"

	"sigs.k8s.io/yaml"
)

// Manifest is the on-disk description of a build matrix (conventionally
// "pymatrix.yaml").
type Manifest struct {
	// Package identifies the package under test.
	Package Package

	// Python is the interpreter-version axis; each entry spawns one
	// column of cells.
	Python []string

	// Channels is the dependency-channel axis: one requirement string
	// per channel ("chainer<3", "chainer", "chainer --pre").
	Channels []string

	// EnvVar, if set, names an environment variable to export into
	// each cell's step processes carrying the cell's raw channel
	// string, mirroring what a hosted-CI matrix would do.
	EnvVar string

	// Baseline is the fixed tool set installed into every cell before
	// anything else.  Defaults to the coverage reporter, the test
	// runner, and its coverage plugin.
	Baseline []string

	// Native is an optional native-binding dependency that pip cannot
	// provide and must come from a conda channel.
	Native *NativeDep

	// Tests configures the test invocation.
	Tests TestSuite

	// Coverage configures the coverage upload.  Nil disables it.
	Coverage *Coverage
}

type Package struct {
	// Name as the index knows it.
	Name string
	// Path to the source tree, installed in editable mode.  Defaults
	// to ".".
	Path string
}

type NativeDep struct {
	// Requirement in conda syntax, e.g. "rdkit==2017.09.3.0".
	Requirement string
	// CondaChannel to install from, e.g. "conda-forge".
	CondaChannel string
}

type TestSuite struct {
	// Dir holding the test suite.  Defaults to "tests".
	Dir string
	// Markers is the marker-expression filter.  Defaults to
	// "not gpu and not slow".
	Markers string
	// CoverageTarget is what to instrument.  Defaults to ".".
	CoverageTarget string
}

type Coverage struct {
	// URL of the reporting service.
	URL string
	// TokenEnv names the environment variable holding the upload
	// token; the token itself does not belong in the manifest.
	TokenEnv string
	// Flags to tag the upload with.
	Flags []string
}

// DefaultBaseline is installed when the manifest doesn't say otherwise.
var DefaultBaseline = []string{"codecov", "pytest", "pytest-cov"}

// Parse parses manifest YAML, applies defaults, and validates.  Unknown
// fields are an error, to catch typos.
func Parse(yamlBytes []byte) (*Manifest, error) {
	var man Manifest
	if err := yaml.Unmarshal(yamlBytes, &man, yaml.DisallowUnknownFields); err != nil {
		return nil, err
	}
	man.fillDefaults()
	if err := man.validate(); err != nil {
		return nil, err
	}
	return &man, nil
}

// ParseFile reads and parses a manifest file.
func ParseFile(filename string) (*Manifest, error) {
	yamlBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	man, err := Parse(yamlBytes)
	if err != nil {
		return nil, &fs.PathError{
			Op:   "parse manifest",
			Path: filename,
			Err:  err,
		}
	}
	return man, nil
}

func (man *Manifest) fillDefaults() {
	if man.Package.Path == "" {
		man.Package.Path = "."
	}
	if man.Baseline == nil {
		man.Baseline = append([]string(nil), DefaultBaseline...)
	}
	if man.Tests.Dir == "" {
		man.Tests.Dir = "tests"
	}
	if man.Tests.Markers == "" {
		man.Tests.Markers = "not gpu and not slow"
	}
	if man.Tests.CoverageTarget == "" {
		man.Tests.CoverageTarget = "."
	}
}

func (man *Manifest) validate() error {
	if man.Package.Name == "" {
		return fmt.Errorf("manifest: Package.Name is required")
	}
	if len(man.Python) == 0 {
		return fmt.Errorf("manifest: at least one Python version is required")
	}
	pySeen := make(map[string]bool, len(man.Python))
	for _, py := range man.Python {
		if pySeen[py] {
			return fmt.Errorf("manifest: duplicate Python version %q", py)
		}
		pySeen[py] = true
	}
	if len(man.Channels) == 0 {
		return fmt.Errorf("manifest: at least one channel is required")
	}
	// Channel slugs become cell IDs, and cell IDs become environment
	// prefixes and coverage filenames; a collision would have two cells
	// sharing an environment.
	slugSeen := make(map[string]string, len(man.Channels))
	for _, chStr := range man.Channels {
		ch, err := ParseChannel(chStr)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if prev, ok := slugSeen[ch.Slug()]; ok {
			return fmt.Errorf("manifest: channels %q and %q are indistinguishable (both abbreviate to %q)",
				prev, chStr, ch.Slug())
		}
		slugSeen[ch.Slug()] = chStr
	}
	if man.Native != nil && man.Native.Requirement == "" {
		return fmt.Errorf("manifest: Native.Requirement is required when Native is set")
	}
	if man.Coverage != nil && man.Coverage.URL == "" {
		return fmt.Errorf("manifest: Coverage.URL is required when Coverage is set")
	}
	return nil
}
