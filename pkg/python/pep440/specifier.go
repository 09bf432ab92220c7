// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package pep440

import (
	"fmt"
	"strings"
)

// Specifier is a PEP 440 version specifier: a comma-separated series of
// clauses that a candidate version must all satisfy, as in
//
//	~= 0.9, >= 1.0, != 1.3.4.*, < 2.0
type Specifier []SpecifierClause

// ParseSpecifier parses a version specifier.  The empty string parses to an
// empty Specifier, which matches every version.
func ParseSpecifier(str string) (Specifier, error) {
	clauseStrs := strings.FieldsFunc(str, func(r rune) bool { return r == ',' })
	ret := make(Specifier, 0, len(clauseStrs))
	for _, clauseStr := range clauseStrs {
		clauseStr = strings.TrimSpace(clauseStr)
		if clauseStr == "" {
			continue
		}
		clause, err := parseSpecifierClause(clauseStr)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseSpecifier: %w", err)
		}
		ret = append(ret, clause)
	}
	return ret, nil
}

func (spec Specifier) String() string {
	clauses := make([]string, 0, len(spec))
	for _, clause := range spec {
		clauses = append(clauses, clause.String())
	}
	return strings.Join(clauses, ",")
}

// Match reports whether the candidate version satisfies every clause.
func (spec Specifier) Match(ver Version) bool {
	for _, clause := range spec {
		if !clause.Match(ver) {
			return false
		}
	}
	return true
}

// AllowsPreReleases reports whether the specifier itself opts in to
// pre-releases by pinning one ("==1.0rc1" should be able to match 1.0rc1
// even without an explicit pre-release opt-in from the user).
func (spec Specifier) AllowsPreReleases() bool {
	for _, clause := range spec {
		if clause.Version.IsPreRelease() {
			return true
		}
	}
	return false
}

type CmpOp int

const (
	CmpOpCompatible CmpOp = iota // "~=": compatible release
	CmpOpStrictMatch
	CmpOpPrefixMatch // "==N.N.*"
	CmpOpStrictExclude
	CmpOpPrefixExclude // "!=N.N.*"
	CmpOpLE
	CmpOpGE
	CmpOpLT
	CmpOpGT
)

func (op CmpOp) String() string {
	switch op {
	case CmpOpCompatible:
		return "~="
	case CmpOpStrictMatch, CmpOpPrefixMatch:
		return "=="
	case CmpOpStrictExclude, CmpOpPrefixExclude:
		return "!="
	case CmpOpLE:
		return "<="
	case CmpOpGE:
		return ">="
	case CmpOpLT:
		return "<"
	case CmpOpGT:
		return ">"
	default:
		panic(fmt.Errorf("invalid CmpOp: %d", int(op)))
	}
}

type SpecifierClause struct {
	CmpOp   CmpOp
	Version Version
}

func parseSpecifierClause(str string) (SpecifierClause, error) {
	var ret SpecifierClause
	str = strings.TrimSpace(str)
	minSegments := 1
	prefixOK := true
	switch {
	case strings.HasPrefix(str, "~="):
		ret.CmpOp = CmpOpCompatible
		str = str[2:]
		minSegments = 2
		prefixOK = false
	case strings.HasPrefix(str, "=="):
		ret.CmpOp = CmpOpStrictMatch
		str = str[2:]
	case strings.HasPrefix(str, "!="):
		ret.CmpOp = CmpOpStrictExclude
		str = str[2:]
	case strings.HasPrefix(str, "<="):
		ret.CmpOp = CmpOpLE
		str = str[2:]
		prefixOK = false
	case strings.HasPrefix(str, ">="):
		ret.CmpOp = CmpOpGE
		str = str[2:]
		prefixOK = false
	case strings.HasPrefix(str, "<"):
		ret.CmpOp = CmpOpLT
		str = str[1:]
		prefixOK = false
	case strings.HasPrefix(str, ">"):
		ret.CmpOp = CmpOpGT
		str = str[1:]
		prefixOK = false
	default:
		return ret, fmt.Errorf("invalid comparison operator: %q", str)
	}
	if strings.HasSuffix(strings.TrimSpace(str), ".*") {
		if !prefixOK {
			return ret, fmt.Errorf("prefix-match not permitted in %q specifier clauses", ret.CmpOp)
		}
		switch ret.CmpOp {
		case CmpOpStrictMatch:
			ret.CmpOp = CmpOpPrefixMatch
		case CmpOpStrictExclude:
			ret.CmpOp = CmpOpPrefixExclude
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), ".*")
	}
	ver, err := ParseVersion(str)
	if err != nil {
		return ret, err
	}
	if len(ver.Release) < minSegments {
		return ret, fmt.Errorf("at least %d release segments required in %q specifier clauses",
			minSegments, ret.CmpOp)
	}
	if ret.CmpOp == CmpOpPrefixMatch || ret.CmpOp == CmpOpPrefixExclude {
		if ver.Dev != nil || len(ver.Local) > 0 {
			return ret, fmt.Errorf("dev and local parts not permitted in prefix specifier clauses")
		}
	}
	ret.Version = *ver
	return ret, nil
}

func (clause SpecifierClause) String() string {
	str := clause.CmpOp.String() + clause.Version.String()
	if clause.CmpOp == CmpOpPrefixMatch || clause.CmpOp == CmpOpPrefixExclude {
		str += ".*"
	}
	return str
}

// Match reports whether the candidate version satisfies the clause.  Local
// version labels on the candidate are ignored except by a strict match that
// itself carries one.
func (clause SpecifierClause) Match(ver Version) bool {
	spec := clause.Version
	switch clause.CmpOp {
	case CmpOpCompatible:
		// "~= X.Y.Z" is ">= X.Y.Z, == X.Y.*"
		ge := SpecifierClause{CmpOp: CmpOpGE, Version: spec}
		prefix := spec
		prefix.Release = prefix.Release[:len(prefix.Release)-1]
		prefix.Pre, prefix.Post, prefix.Dev, prefix.Local = nil, nil, nil, nil
		eq := SpecifierClause{CmpOp: CmpOpPrefixMatch, Version: prefix}
		return ge.Match(ver) && eq.Match(ver)
	case CmpOpStrictMatch:
		if len(spec.Local) == 0 {
			ver.Local = nil
		}
		return ver.Cmp(spec) == 0
	case CmpOpPrefixMatch:
		return matchPrefix(spec, ver)
	case CmpOpStrictExclude:
		clause.CmpOp = CmpOpStrictMatch
		return !clause.Match(ver)
	case CmpOpPrefixExclude:
		return !matchPrefix(spec, ver)
	case CmpOpLE:
		ver.Local = nil
		return ver.Cmp(spec) <= 0
	case CmpOpGE:
		ver.Local = nil
		return ver.Cmp(spec) >= 0
	case CmpOpLT:
		ver.Local = nil
		if ver.Cmp(spec) >= 0 {
			return false
		}
		// "<V" must not match a pre-release of V unless V itself is one.
		if !spec.IsPreRelease() && ver.IsPreRelease() &&
			ver.Epoch == spec.Epoch && cmpRelease(ver, spec) == 0 {
			return false
		}
		return true
	case CmpOpGT:
		ver.Local = nil
		if ver.Cmp(spec) <= 0 {
			return false
		}
		// ">V" must not match a post-release of V unless V itself is one.
		if spec.Post == nil && ver.Post != nil &&
			ver.Epoch == spec.Epoch && cmpRelease(ver, spec) == 0 {
			return false
		}
		return true
	default:
		panic(fmt.Errorf("invalid CmpOp: %d", int(clause.CmpOp)))
	}
}

// matchPrefix implements "==V.*": the epoch must match exactly, and the
// release segment of the candidate (zero-padded as needed) must start with
// the specified prefix.  Pre, post, and dev suffixes of matching releases
// are included.
func matchPrefix(spec, ver Version) bool {
	if ver.Epoch != spec.Epoch {
		return false
	}
	for i := range spec.Release {
		if ver.releaseSegment(i) != spec.Release[i] {
			return false
		}
	}
	if spec.Pre != nil {
		if ver.Pre == nil || *ver.Pre != *spec.Pre {
			return false
		}
	}
	if spec.Post != nil {
		if ver.Post == nil || *ver.Post != *spec.Post {
			return false
		}
	}
	return true
}
