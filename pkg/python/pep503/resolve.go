// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package pep503

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pybuild/pymatrix/pkg/python/pep440"
)

// Candidate is one installable version of a project, as advertised by the
// index.
type Candidate struct {
	Version  pep440.Version
	Filename string
	Link     FileLink
}

// ErrNoCandidates is returned by Resolve when no advertised version
// satisfies the constraints.
var ErrNoCandidates = errors.New("no candidate versions")

// ParseFileVersion extracts the version from a released-file name: either a
// wheel ("{dist}-{version}(-{build})?-{python}-{abi}-{platform}.whl") or an
// sdist ("{dist}-{version}.tar.gz" and friends).  Filenames for other
// projects, or with unrecognized extensions, return an error.
func ParseFileVersion(project, filename string) (*pep440.Version, error) {
	base := filename
	switch {
	case strings.HasSuffix(base, ".whl"):
		base = strings.TrimSuffix(base, ".whl")
	case strings.HasSuffix(base, ".tar.gz"):
		base = strings.TrimSuffix(base, ".tar.gz")
	case strings.HasSuffix(base, ".tar.bz2"):
		base = strings.TrimSuffix(base, ".tar.bz2")
	case strings.HasSuffix(base, ".zip"):
		base = strings.TrimSuffix(base, ".zip")
	default:
		return nil, fmt.Errorf("unrecognized distribution filename: %q", filename)
	}

	fields := strings.Split(base, "-")
	// The distribution part may itself contain dashes (sdists don't
	// escape them); scan for the longest prefix that normalizes to the
	// project name.
	verIdx := -1
	for i := 1; i < len(fields); i++ {
		if NormalizeName(strings.Join(fields[:i], "-")) == NormalizeName(project) {
			verIdx = i
		}
	}
	if verIdx < 0 || verIdx >= len(fields) {
		return nil, fmt.Errorf("filename %q does not belong to project %q", filename, project)
	}
	ver, err := pep440.ParseVersion(fields[verIdx])
	if err != nil {
		return nil, fmt.Errorf("filename %q: %w", filename, err)
	}
	return ver, nil
}

// Constraint is the version-resolution policy for one requirement.
type Constraint struct {
	// Specifier restricts candidate versions; empty means "any".
	Specifier pep440.Specifier
	// AllowPre opts in to pre-release and development versions.  A
	// specifier that pins a pre-release opts in implicitly.
	AllowPre bool
	// Python, if set, excludes files whose data-requires-python the
	// interpreter does not satisfy.
	Python *pep440.Version
}

// Resolve lists the project's files and picks the preferred (highest)
// version satisfying the constraint, the way an installer would.
func (c Client) Resolve(ctx context.Context, project string, con Constraint) (*Candidate, error) {
	links, err := c.ListProjectFiles(ctx, project)
	if err != nil {
		return nil, err
	}
	candidates, err := filterCandidates(project, links, con)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", project, ErrNoCandidates)
	}
	best := candidates[len(candidates)-1]
	return &best, nil
}

// Candidates is like Resolve but returns every satisfying version, sorted
// ascending.
func (c Client) Candidates(ctx context.Context, project string, con Constraint) ([]Candidate, error) {
	links, err := c.ListProjectFiles(ctx, project)
	if err != nil {
		return nil, err
	}
	return filterCandidates(project, links, con)
}

func filterCandidates(project string, links []FileLink, con Constraint) ([]Candidate, error) {
	allowPre := con.AllowPre || con.Specifier.AllowsPreReleases()
	var ret []Candidate
	for _, link := range links {
		ver, err := ParseFileVersion(project, link.Text)
		if err != nil {
			// Not every file on an index page is installable
			// (yanked uploads, eggs, junk); skip quietly.
			continue
		}
		if !allowPre && ver.IsPreRelease() {
			continue
		}
		if !con.Specifier.Match(*ver) {
			continue
		}
		if con.Python != nil {
			if reqPy := link.DataAttrs["data-requires-python"]; reqPy != "" {
				spec, err := pep440.ParseSpecifier(reqPy)
				if err == nil && !spec.Match(*con.Python) {
					continue
				}
			}
		}
		ret = append(ret, Candidate{
			Version:  *ver,
			Filename: link.Text,
			Link:     link,
		})
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Version.Cmp(ret[j].Version) < 0
	})
	// Collapse duplicate versions (a release usually has several files).
	out := ret[:0]
	for _, cand := range ret {
		if len(out) > 0 && out[len(out)-1].Version.Cmp(cand.Version) == 0 {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}
