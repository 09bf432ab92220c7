// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package pep503_test

import (
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pybuild/pymatrix/pkg/python/pep440"
	"github.com/pybuild/pymatrix/pkg/python/pep503"
)

func TestParseFileVersion(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		InProject  string
		InFilename string
		OutVersion string // "" means expect an error
	}{
		"wheel":        {"chainer-chemistry", "chainer_chemistry-0.5.0-py3-none-any.whl", "0.5.0"},
		"sdist":        {"chainer", "chainer-4.0.0b2.tar.gz", "4.0.0b2"},
		"sdist-dashes": {"Zope-Interface", "zope.interface-5.4.0.tar.gz", "5.4.0"},
		"tarbz2":       {"chainer", "chainer-1.0.tar.bz2", "1.0"},
		"zip":          {"chainer", "chainer-1.0.zip", "1.0"},
		"badext":       {"chainer", "chainer-0.0.1.egg", ""},
		"otherproject": {"chainer", "cupy-4.0.0.tar.gz", ""},
		"noversion":    {"chainer", "chainer.tar.gz", ""},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			ver, err := pep503.ParseFileVersion(tc.InProject, tc.InFilename)
			if tc.OutVersion == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.OutVersion, ver.String())
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	py35, err := pep440.ParseVersion("3.5.6")
	require.NoError(t, err)
	testcases := map[string]struct {
		InConstraint pep503.Constraint
		OutVersion   string // "" means expect ErrNoCandidates
	}{
		"latest":        {pep503.Constraint{}, "3.0.0"},
		"upper-bound":   {pep503.Constraint{Specifier: mustParseSpecifier(t, "<3")}, "2.1.0"},
		"allow-pre":     {pep503.Constraint{AllowPre: true}, "3.1.0rc1"},
		"pinned-pre":    {pep503.Constraint{Specifier: mustParseSpecifier(t, "==3.1.0rc1")}, "3.1.0rc1"},
		"requires-py":   {pep503.Constraint{Python: py35}, "2.1.0"},
		"unsatisfiable": {pep503.Constraint{Specifier: mustParseSpecifier(t, ">=4")}, ""},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			ctx := dlog.NewTestContext(t, false)
			srv := newIndexServer(t)
			client := pep503.Client{BaseURL: srv.URL + "/simple/"}

			cand, err := client.Resolve(ctx, "chainer", tc.InConstraint)
			if tc.OutVersion == "" {
				assert.ErrorIs(t, err, pep503.ErrNoCandidates)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.OutVersion, cand.Version.String())
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	srv := newIndexServer(t)
	client := pep503.Client{BaseURL: srv.URL + "/simple/"}

	cands, err := client.Candidates(ctx, "chainer", pep503.Constraint{})
	require.NoError(t, err)
	// ascending, duplicate versions collapsed, pre-releases excluded
	versions := make([]string, 0, len(cands))
	for _, cand := range cands {
		versions = append(versions, cand.Version.String())
	}
	assert.Equal(t, []string{"1.0.0", "2.1.0", "3.0.0"}, versions)
}

func mustParseSpecifier(t *testing.T, str string) pep440.Specifier {
	t.Helper()
	spec, err := pep440.ParseSpecifier(str)
	require.NoError(t, err)
	return spec
}
