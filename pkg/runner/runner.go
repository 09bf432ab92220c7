// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package runner drives a build matrix: it enumerates the manifest's
// cells and runs each one's install-and-test pipeline in an isolated,
// ephemeral environment.  Cells are independent; the host may run them in
// parallel, and one cell's failure never touches another.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/pyenv"
	"github.com/pybuild/pymatrix/pkg/python/pep440"
	"github.com/pybuild/pymatrix/pkg/python/pep503"
)

// Runner executes a manifest's build matrix.
type Runner struct {
	Manifest    *matrix.Manifest
	Provisioner pyenv.Provisioner

	// Execer runs step commands; defaults to CmdExecer.
	Execer Execer
	// Uploader receives coverage from green cells; nil disables the
	// upload step.
	Uploader Uploader
	// Index enables a pre-flight resolution of each cell's channel
	// against the package index; nil skips it.
	Index *pep503.Client

	// WorkDir is where cell environments and coverage files live; an
	// empty value means a fresh temp dir.
	WorkDir string
	// KeepEnv leaves cell environments behind for debugging.
	KeepEnv bool
	// Jobs bounds how many cells run concurrently.  Defaults to 1.
	Jobs int
}

// Run executes every cell of the matrix and returns one Result per cell,
// in enumeration order.  Run itself only fails on setup problems; cell
// failures are reported in the results.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	cells, err := r.Manifest.Cells()
	if err != nil {
		return nil, err
	}

	workDir := r.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "pymatrix.")
		if err != nil {
			return nil, err
		}
		if !r.KeepEnv {
			defer func() {
				_ = os.RemoveAll(workDir)
			}()
		}
	} else if err := os.MkdirAll(workDir, 0o777); err != nil {
		return nil, err
	}

	pkgDir, err := filepath.Abs(r.Manifest.Package.Path)
	if err != nil {
		return nil, err
	}

	jobs := r.Jobs
	if jobs < 1 {
		jobs = 1
	}
	dlog.Infof(ctx, "running %d cells (%d at a time)", len(cells), jobs)

	sem := semaphore.NewWeighted(int64(jobs))
	var wg sync.WaitGroup
	results := make([]Result, len(cells))
	for i := range cells {
		i := i
		cell := cells[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{
					RunID: uuid.New().String(),
					Cell:  cell,
					Err:   err,
				}
				return
			}
			defer sem.Release(1)
			results[i] = r.runCell(ctx, cell, workDir, pkgDir)
		}()
	}
	wg.Wait()

	return results, nil
}

func (r *Runner) runCell(ctx context.Context, cell matrix.Cell, workDir, pkgDir string) Result {
	start := time.Now()
	res := Result{
		RunID: uuid.New().String(),
		Cell:  cell,
	}
	defer func() {
		res.Duration = time.Since(start)
	}()
	ctx = dlog.WithField(ctx, "cell", cell.ID())
	dlog.Infof(ctx, "starting (run %s)", res.RunID)

	fail := func(step string, err error) Result {
		res.FailedStep = step
		res.Err = fmt.Errorf("step %q: %w", step, err)
		dlog.Errorf(ctx, "%v", res.Err)
		return res
	}

	if r.Index != nil {
		ver, err := r.resolveChannel(ctx, cell)
		if err != nil {
			return fail("resolve", err)
		}
		res.Resolved = ver
		dlog.Infof(ctx, "channel %q resolves to %s==%s",
			cell.Channel.Raw, cell.Channel.Project, ver)
	}

	env, err := r.Provisioner.Provision(ctx, filepath.Join(workDir, cell.ID()), cell.Python)
	if err != nil {
		return fail("provision", err)
	}
	if !r.KeepEnv {
		defer func() {
			if err := env.Destroy(ctx); err != nil {
				dlog.Warnf(ctx, "destroying environment: %v", err)
			}
		}()
	}

	coveragePath := filepath.Join(workDir, cell.ID()+".coverage.xml")
	steps, err := BuildSteps(r.Manifest, cell, env, coveragePath)
	if err != nil {
		return fail("plan", err)
	}

	execer := r.Execer
	if execer == nil {
		execer = CmdExecer{}
	}
	cellEnv := cell.Environ(r.Manifest)
	for _, step := range steps {
		argv := step.Argv
		if !step.Raw {
			argv = env.Argv(argv...)
		}
		dlog.Infof(ctx, "step %s: %q", step.Name, argv)
		if err := execer.Run(ctx, pkgDir, cellEnv, argv); err != nil {
			return fail(step.Name, err)
		}
		res.Steps = append(res.Steps, step.Name)
	}

	// The cell is green; anything past this point is best-effort and
	// must not turn it red.
	if r.Uploader != nil {
		if err := r.uploadCoverage(ctx, cell, coveragePath); err != nil {
			res.UploadErr = err
			dlog.Warnf(ctx, "coverage upload failed: %v", err)
		} else {
			res.Uploaded = true
		}
	}

	dlog.Infof(ctx, "passed in %v", time.Since(start))
	return res
}

func (r *Runner) resolveChannel(ctx context.Context, cell matrix.Cell) (*pep440.Version, error) {
	con := pep503.Constraint{
		Specifier: cell.Channel.Specifier,
		AllowPre:  cell.Channel.Pre,
	}
	if pyVer, err := pep440.ParseVersion(cell.Python); err == nil {
		con.Python = pyVer
	}
	cand, err := r.Index.Resolve(ctx, cell.Channel.Project, con)
	if err != nil {
		return nil, err
	}
	return &cand.Version, nil
}

func (r *Runner) uploadCoverage(ctx context.Context, cell matrix.Cell, coveragePath string) error {
	content, err := os.ReadFile(coveragePath)
	if err != nil {
		return err
	}
	return r.Uploader.Upload(ctx, cell, content)
}
