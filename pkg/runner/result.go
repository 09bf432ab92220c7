// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"time"

	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/python/pep440"
)

// Result is the outcome of one cell.
type Result struct {
	// RunID uniquely identifies this execution of the cell.
	RunID string
	Cell  matrix.Cell

	// Resolved is the dependency version the cell's channel selected,
	// when pre-flight resolution is enabled.
	Resolved *pep440.Version

	// Steps that completed, in order.
	Steps []string
	// FailedStep names the step that aborted the cell, if any.
	FailedStep string
	// Err is the cell's fatal error, if any.
	Err error

	// Uploaded reports whether the coverage upload succeeded.  An
	// upload failure is recorded in UploadErr but does not re-fail a
	// green cell.
	Uploaded  bool
	UploadErr error

	Duration time.Duration
}

// Passed reports whether the cell is green.
func (r Result) Passed() bool {
	return r.Err == nil
}

// CountFailed returns how many results are red.
func CountFailed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed() {
			n++
		}
	}
	return n
}
