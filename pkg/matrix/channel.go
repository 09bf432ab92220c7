// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pybuild/pymatrix/pkg/python/pep440"
)

// Channel selects a version-resolution policy for the variable dependency.
// It is spelled the way a CI matrix variable would spell it: a pip
// requirement string, optionally followed by a "--pre" opt-in token, as in
//
//	chainer<3
//	chainer
//	chainer --pre
type Channel struct {
	// Raw is the channel exactly as the manifest spelled it.
	Raw string
	// Project is the dependency's name on the index.
	Project string
	// Specifier is the version range; empty means "latest stable".
	Specifier pep440.Specifier
	// Pre opts in to pre-release builds.
	Pre bool
}

// ParseChannel parses a channel selector string.
func ParseChannel(str string) (Channel, error) {
	ch := Channel{Raw: str}
	fields := strings.Fields(str)
	if len(fields) == 0 {
		return ch, fmt.Errorf("parse channel: empty selector")
	}
	for _, flag := range fields[1:] {
		if flag != "--pre" {
			return ch, fmt.Errorf("parse channel %q: unsupported token %q", str, flag)
		}
		ch.Pre = true
	}

	requirement := fields[0]
	if strings.HasPrefix(requirement, "-") {
		return ch, fmt.Errorf("parse channel %q: missing project name", str)
	}
	if idx := strings.IndexAny(requirement, "<>=!~"); idx >= 0 {
		ch.Project = requirement[:idx]
		spec, err := pep440.ParseSpecifier(requirement[idx:])
		if err != nil {
			return ch, fmt.Errorf("parse channel %q: %w", str, err)
		}
		ch.Specifier = spec
	} else {
		ch.Project = requirement
	}
	if ch.Project == "" {
		return ch, fmt.Errorf("parse channel %q: missing project name", str)
	}
	return ch, nil
}

// Latest reports whether the channel just wants the newest stable release.
func (ch Channel) Latest() bool {
	return len(ch.Specifier) == 0 && !ch.Pre
}

// Requirement is the pip requirement string, without any flag tokens.
func (ch Channel) Requirement() string {
	return ch.Project + ch.Specifier.String()
}

// PipArgs are the arguments to append to "pip install" for this channel.
// Branching per the matrix contract: a pre-release channel asks pip for the
// latest unstable build, anything else installs the literal range string.
func (ch Channel) PipArgs() []string {
	if ch.Pre {
		return []string{"--pre", ch.Requirement()}
	}
	return []string{ch.Requirement()}
}

var slugRe = regexp.MustCompile(`[^a-z0-9._]+`)

// Slug is a filesystem- and log-friendly name for the channel.
func (ch Channel) Slug() string {
	slug := slugRe.ReplaceAllLiteralString(strings.ToLower(ch.Raw), "-")
	return strings.Trim(slug, "-")
}

func (ch Channel) String() string { return ch.Raw }
