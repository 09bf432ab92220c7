// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package pep440_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pybuild/pymatrix/pkg/python/pep440"
)

func intPtr(x int) *int {
	return &x
}

func mustParseVersion(t *testing.T, str string) pep440.Version {
	t.Helper()
	ver, err := pep440.ParseVersion(str)
	require.NoError(t, err)
	require.NotNil(t, ver)
	return *ver
}

func mustParseSpecifier(t *testing.T, str string) pep440.Specifier {
	t.Helper()
	spec, err := pep440.ParseSpecifier(str)
	require.NoError(t, err)
	return spec
}
