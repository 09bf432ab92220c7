// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package cliutil

import (
	"strings"
)

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// WrapIndent wraps the string `s` to a maximum width `w` with leading indent `i`.  The first line
// is not indented (that is assumed to be done by the caller).  Pass `w` == 0 to do no wrapping.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

func wrap(indent, width int, s string) string {
	if width <= 0 {
		return s
	}
	budget := (width - 5) - indent
	if budget < 10 {
		return s
	}

	var outLines []string
	for _, line := range strings.Split(s, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			outLines = append(outLines, "")
			continue
		}
		cur := words[0]
		for _, word := range words[1:] {
			if len(cur)+1+len(word) > budget {
				outLines = append(outLines, cur)
				cur = word
				continue
			}
			cur += " " + word
		}
		outLines = append(outLines, cur)
	}
	return strings.Join(outLines, "\n"+strings.Repeat(" ", indent))
}
