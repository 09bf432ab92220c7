// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package pep440 implements the PEP 440 version scheme: parsing, ordering,
// and version specifiers.
//
// https://www.python.org/dev/peps/pep-0440/
//
// This is the subset that a package-index consumer needs: public version
// identifiers (epoch, release, pre/post/dev segments) plus local version
// labels as they appear in distribution filenames.  Arbitrary-equality
// ("===") specifiers and direct URL references are not implemented.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// Version is a parsed PEP 440 version identifier.
//
// The zero value is not a valid version; a release segment is required.
type Version struct {
	// Epoch segment: "N!"
	Epoch int
	// Release segment: "N(.N)*"
	Release []int
	// Pre-release segment: "{a|b|rc}N"
	Pre *PreRelease
	// Post-release segment: ".postN"
	Post *int
	// Development release segment: ".devN"
	Dev *int
	// Local version label: "+foo.N", ordered per-segment with numeric
	// segments comparing greater than lexicographic ones.
	Local []intstr.IntOrString
}

type PreRelease struct {
	L string // "a", "b", or "rc" (normalized)
	N int
}

// The "permissive" expression from PEP 440 Appendix B, anchored, with the
// epoch/release/pre/post/dev/local pieces captured.
var versionRe = regexp.MustCompile(`(?i)^v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<preL>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<preN>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<postN1>[0-9]+))|(?:[-_.]?(?:post|rev|r)[-_.]?(?P<postN2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<devN>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`$`)

// ParseVersion parses a version string, performing the normalizations that
// PEP 440 requires of installation tools ("alpha" => "a", "c" => "rc",
// "rev" => "post", case folding, and so on).
func ParseVersion(str string) (*Version, error) {
	match := versionRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(str)))
	if match == nil {
		return nil, fmt.Errorf("pep440.ParseVersion: invalid version: %q", str)
	}
	group := func(name string) string {
		return match[versionRe.SubexpIndex(name)]
	}

	var ret Version
	if epoch := group("epoch"); epoch != "" {
		ret.Epoch, _ = strconv.Atoi(epoch)
	}
	for _, segStr := range strings.Split(group("release"), ".") {
		seg, err := strconv.Atoi(segStr)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseVersion: %q: %w", str, err)
		}
		ret.Release = append(ret.Release, seg)
	}
	if group("pre") != "" {
		l := group("preL")
		switch l {
		case "alpha":
			l = "a"
		case "beta":
			l = "b"
		case "c", "pre", "preview":
			l = "rc"
		}
		n, _ := strconv.Atoi(group("preN")) // absent => 0
		ret.Pre = &PreRelease{L: l, N: n}
	}
	if group("post") != "" {
		n, _ := strconv.Atoi(group("postN1") + group("postN2")) // absent => 0
		ret.Post = &n
	}
	if group("dev") != "" {
		n, _ := strconv.Atoi(group("devN"))
		ret.Dev = &n
	}
	if local := group("local"); local != "" {
		for _, segStr := range strings.FieldsFunc(local, func(r rune) bool {
			return r == '-' || r == '_' || r == '.'
		}) {
			ret.Local = append(ret.Local, intstr.Parse(segStr))
		}
	}
	return &ret, nil
}

// String renders the version in canonical form.
func (ver Version) String() string {
	var ret strings.Builder
	if ver.Epoch > 0 {
		fmt.Fprintf(&ret, "%d!", ver.Epoch)
	}
	for i, seg := range ver.Release {
		if i > 0 {
			ret.WriteByte('.')
		}
		fmt.Fprintf(&ret, "%d", seg)
	}
	if ver.Pre != nil {
		fmt.Fprintf(&ret, "%s%d", ver.Pre.L, ver.Pre.N)
	}
	if ver.Post != nil {
		fmt.Fprintf(&ret, ".post%d", *ver.Post)
	}
	if ver.Dev != nil {
		fmt.Fprintf(&ret, ".dev%d", *ver.Dev)
	}
	sep := "+"
	for _, seg := range ver.Local {
		ret.WriteString(sep)
		ret.WriteString(seg.String())
		sep = "."
	}
	return ret.String()
}

// IsPreRelease reports whether the version is a pre-release as PEP 440
// defines the term for specifier handling: either a pre-release segment or
// a development release makes a version "unstable".
func (ver Version) IsPreRelease() bool {
	return ver.Pre != nil || ver.Dev != nil
}

// IsFinal reports whether the version is a final release.
func (ver Version) IsFinal() bool {
	return ver.Pre == nil && ver.Post == nil && ver.Dev == nil && len(ver.Local) == 0
}

// Major, Minor, and Micro return the leading release segments, defaulting
// to zero; "X.Y" and "X.Y.0" are not distinct release numbers.
func (ver Version) Major() int { return ver.releaseSegment(0) }
func (ver Version) Minor() int { return ver.releaseSegment(1) }
func (ver Version) Micro() int { return ver.releaseSegment(2) }

func (ver Version) releaseSegment(n int) int {
	if n < len(ver.Release) {
		return ver.Release[n]
	}
	return 0
}

// When comparing release segments with different numbers of components,
// PEP 440 pads the shorter segment with zeros.
func cmpRelease(a, b Version) int {
	for i := 0; i < len(a.Release) || i < len(b.Release); i++ {
		if d := a.releaseSegment(i) - b.releaseSegment(i); d != 0 {
			return d
		}
	}
	return 0
}

// Ordering within a release: dev releases sort before pre-releases, which
// sort before the final release, which sorts before post-releases.  These
// ranks encode that; see the "Summary of permitted suffixes and relative
// ordering" section of the PEP.
const (
	rankDevOnly = -1 // "1.0.dev1": no pre, no post, only dev
	rankPre     = 0
	rankFinal   = 1
)

func (ver Version) preKey() (rank int, l string, n int) {
	switch {
	case ver.Pre != nil:
		return rankPre, ver.Pre.L, ver.Pre.N
	case ver.Post == nil && ver.Dev != nil:
		return rankDevOnly, "", 0
	default:
		return rankFinal, "", 0
	}
}

func cmpSuffix(a, b Version) int {
	aRank, aL, aN := a.preKey()
	bRank, bL, bN := b.preKey()
	if d := aRank - bRank; d != 0 {
		return d
	}
	if d := strings.Compare(aL, bL); d != 0 {
		return d
	}
	if d := aN - bN; d != 0 {
		return d
	}
	// post: absent sorts first
	if d := cmpOptInt(a.Post, b.Post); d != 0 {
		return d
	}
	// dev: absent sorts last ("1.0.post1.dev1" < "1.0.post1")
	if (a.Dev == nil) != (b.Dev == nil) {
		if a.Dev == nil {
			return 1
		}
		return -1
	}
	if a.Dev != nil {
		return *a.Dev - *b.Dev
	}
	return 0
}

func cmpOptInt(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return *a - *b
	}
}

func cmpLocalSegment(a, b intstr.IntOrString) int {
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		return int(a.IntVal - b.IntVal)
	case a.Type == intstr.String && b.Type == intstr.String:
		return strings.Compare(a.StrVal, b.StrVal)
	case a.Type == intstr.Int:
		// numeric segments compare greater than lexicographic ones
		return 1
	default:
		return -1
	}
}

func cmpLocal(a, b Version) int {
	for i := 0; i < len(a.Local) && i < len(b.Local); i++ {
		if d := cmpLocalSegment(a.Local[i], b.Local[i]); d != 0 {
			return d
		}
	}
	return len(a.Local) - len(b.Local)
}

// Cmp returns a number < 0 if version 'a' orders before version 'b', > 0 if
// 'a' orders after 'b', or 0 if they are equal; like the C-language strcmp.
func (a Version) Cmp(b Version) int {
	if d := a.Epoch - b.Epoch; d != 0 {
		return d
	}
	if d := cmpRelease(a, b); d != 0 {
		return d
	}
	if d := cmpSuffix(a, b); d != 0 {
		return d
	}
	return cmpLocal(a, b)
}
