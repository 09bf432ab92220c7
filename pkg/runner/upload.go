// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"

	"github.com/pybuild/pymatrix/pkg/codecov"
	"github.com/pybuild/pymatrix/pkg/matrix"
)

// Uploader reports a green cell's coverage to an external service.
type Uploader interface {
	Upload(ctx context.Context, cell matrix.Cell, coverage []byte) error
}

// CodecovUploader uploads to a Codecov-compatible service, tagging each
// upload with the manifest's flags plus the cell's ID so the service can
// tell the matrix cells apart.
type CodecovUploader struct {
	Client codecov.Client
	Commit string
	Branch string
	Flags  []string
}

func (u CodecovUploader) Upload(ctx context.Context, cell matrix.Cell, coverage []byte) error {
	flags := make([]string, 0, len(u.Flags)+1)
	flags = append(flags, u.Flags...)
	flags = append(flags, cell.ID())
	_, err := u.Client.Upload(ctx, codecov.Report{
		Commit:  u.Commit,
		Branch:  u.Branch,
		Flags:   flags,
		Content: coverage,
	})
	return err
}
