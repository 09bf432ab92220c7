// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package runner_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/pyenv"
	"github.com/pybuild/pymatrix/pkg/python/pep503"
	"github.com/pybuild/pymatrix/pkg/runner"
)

// fakeEnv wraps step commands in an "in-env" argv[0] so tests can tell
// wrapped steps from raw ones.
type fakeEnv struct {
	prefix      string
	provisioner *fakeProvisioner
}

func (e fakeEnv) Prefix() string { return e.prefix }

func (e fakeEnv) Argv(argv ...string) []string {
	return append([]string{"in-env"}, argv...)
}

func (e fakeEnv) NativeInstallArgv(channel, requirement string) ([]string, error) {
	return []string{"conda", "install", "--channel", channel, requirement}, nil
}

func (e fakeEnv) Destroy(_ context.Context) error {
	e.provisioner.mu.Lock()
	defer e.provisioner.mu.Unlock()
	e.provisioner.destroyed = append(e.provisioner.destroyed, e.prefix)
	return nil
}

type fakeProvisioner struct {
	failPython string // provisioning this interpreter version fails

	mu          sync.Mutex
	provisioned []string
	destroyed   []string
}

func (p *fakeProvisioner) Provision(_ context.Context, prefix, python string) (pyenv.Environment, error) {
	if python == p.failPython {
		return nil, fmt.Errorf("no interpreter for %q", python)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisioned = append(p.provisioned, prefix)
	return fakeEnv{prefix: prefix, provisioner: p}, nil
}

// fakeExecer records every command.  When it sees the test step's
// "--cov-report=xml:PATH" argument it writes a coverage file there, like
// pytest-cov would.
type fakeExecer struct {
	failOn string // fail any argv whose joined form contains this

	mu    sync.Mutex
	calls [][]string
	dirs  []string
}

func (x *fakeExecer) Run(_ context.Context, dir string, _ []string, argv []string) error {
	x.mu.Lock()
	x.calls = append(x.calls, argv)
	x.dirs = append(x.dirs, dir)
	x.mu.Unlock()
	if x.failOn != "" && strings.Contains(strings.Join(argv, " "), x.failOn) {
		return errors.New("exit status 1")
	}
	for _, arg := range argv {
		if strings.HasPrefix(arg, "--cov-report=xml:") {
			path := strings.TrimPrefix(arg, "--cov-report=xml:")
			if err := os.WriteFile(path, []byte("<coverage/>"), 0o666); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *fakeExecer) callNames() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	names := make([]string, 0, len(x.calls))
	for _, argv := range x.calls {
		names = append(names, strings.Join(argv, " "))
	}
	return names
}

type fakeUploader struct {
	err error

	mu      sync.Mutex
	uploads map[string][]byte // cell ID => coverage content
}

func (u *fakeUploader) Upload(_ context.Context, cell matrix.Cell, coverage []byte) error {
	if u.err != nil {
		return u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploads == nil {
		u.uploads = make(map[string][]byte)
	}
	u.uploads[cell.ID()] = coverage
	return nil
}

func parseManifest(t *testing.T, yamlStr string) *matrix.Manifest {
	t.Helper()
	man, err := matrix.Parse([]byte(yamlStr))
	require.NoError(t, err)
	return man
}

func TestBuildSteps(t *testing.T) {
	t.Parallel()
	man := parseManifest(t, `
package: {name: chainer-chemistry, path: sub}
python: ["3.6"]
channels: ["chainer --pre"]
native:
  requirement: "rdkit==2017.09.3.0"
  condaChannel: conda-forge
tests: {coverageTarget: chainer_chemistry}
`)
	cells, err := man.Cells()
	require.NoError(t, err)

	steps, err := runner.BuildSteps(man, cells[0], fakeEnv{}, "/tmp/cov.xml")
	require.NoError(t, err)
	require.Len(t, steps, 5)

	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{
		"install-baseline",
		"install-native",
		"install-dependency",
		"install-package",
		"test",
	}, names)

	assert.Equal(t, []string{"pip", "install", "codecov", "pytest", "pytest-cov"}, steps[0].Argv)
	assert.False(t, steps[0].Raw)

	assert.Equal(t, []string{"conda", "install", "--channel", "conda-forge", "rdkit==2017.09.3.0"}, steps[1].Argv)
	assert.True(t, steps[1].Raw)

	assert.Equal(t, []string{"pip", "install", "--pre", "chainer"}, steps[2].Argv)
	// the execer's working directory already is the package directory
	assert.Equal(t, []string{"pip", "install", "-e", "."}, steps[3].Argv)
	assert.Equal(t, []string{
		"pytest", "tests",
		"-m", "not gpu and not slow",
		"--cov=chainer_chemistry",
		"--cov-report=xml:/tmp/cov.xml",
	}, steps[4].Argv)
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer<3"]
`)
	prov := &fakeProvisioner{}
	execer := &fakeExecer{}
	uploader := &fakeUploader{}
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: prov,
		Execer:      execer,
		Uploader:    uploader,
		WorkDir:     t.TempDir(),
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.True(t, res.Passed())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{
		"install-baseline",
		"install-dependency",
		"install-package",
		"test",
	}, res.Steps)

	// every step ran inside the cell's environment
	calls := execer.callNames()
	require.Len(t, calls, 4)
	for _, call := range calls {
		assert.True(t, strings.HasPrefix(call, "in-env "), "call %q not wrapped", call)
	}
	assert.Contains(t, calls[3], "-m not gpu and not slow")

	// exactly one upload, carrying the coverage the test step wrote
	assert.True(t, res.Uploaded)
	assert.NoError(t, res.UploadErr)
	require.Len(t, uploader.uploads, 1)
	assert.Equal(t, "<coverage/>", string(uploader.uploads[res.Cell.ID()]))

	// the ephemeral environment did not outlive the cell
	assert.Equal(t, prov.provisioned, prov.destroyed)
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer"]
`)
	prov := &fakeProvisioner{}
	execer := &fakeExecer{failOn: "pip install -e"}
	uploader := &fakeUploader{}
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: prov,
		Execer:      execer,
		Uploader:    uploader,
		WorkDir:     t.TempDir(),
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Passed())
	assert.Equal(t, "install-package", res.FailedStep)
	assert.Equal(t, []string{"install-baseline", "install-dependency"}, res.Steps)

	// the failure aborted the cell before the test step
	for _, call := range execer.callNames() {
		assert.NotContains(t, call, "pytest")
	}
	// a red cell uploads nothing
	assert.False(t, res.Uploaded)
	assert.Len(t, uploader.uploads, 0)
	// but its environment is still torn down
	assert.Equal(t, prov.provisioned, prov.destroyed)
}

func TestRunCellIndependence(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6", "9.9"]
channels: ["chainer<3", "chainer"]
`)
	prov := &fakeProvisioner{failPython: "9.9"}
	execer := &fakeExecer{}
	uploader := &fakeUploader{}
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: prov,
		Execer:      execer,
		Uploader:    uploader,
		WorkDir:     t.TempDir(),
		Jobs:        2,
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 2, runner.CountFailed(results))

	for _, res := range results {
		switch res.Cell.Python {
		case "3.6":
			assert.True(t, res.Passed(), "cell %s", res.Cell.ID())
			assert.True(t, res.Uploaded, "cell %s", res.Cell.ID())
		case "9.9":
			assert.False(t, res.Passed(), "cell %s", res.Cell.ID())
			assert.Equal(t, "provision", res.FailedStep)
		}
	}
	assert.Len(t, uploader.uploads, 2)
}

func TestRunUploadBestEffort(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer"]
`)
	uploader := &fakeUploader{err: errors.New("service unavailable")}
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: &fakeProvisioner{},
		Execer:      &fakeExecer{},
		Uploader:    uploader,
		WorkDir:     t.TempDir(),
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// the upload failure is recorded but does not re-fail the green cell
	res := results[0]
	assert.True(t, res.Passed())
	assert.False(t, res.Uploaded)
	assert.EqualError(t, res.UploadErr, "service unavailable")
}

func TestRunResolvePreflight(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	mux := http.NewServeMux()
	mux.HandleFunc("/simple/chainer/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><body>
<a href="/files/chainer-2.1.0.tar.gz">chainer-2.1.0.tar.gz</a>
<a href="/files/chainer-4.0.0.tar.gz">chainer-4.0.0.tar.gz</a>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer<3", "chainer>=5"]
`)
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: &fakeProvisioner{},
		Execer:      &fakeExecer{},
		Index:       &pep503.Client{BaseURL: srv.URL + "/simple/"},
		WorkDir:     t.TempDir(),
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.True(t, results[0].Passed())
	require.NotNil(t, results[0].Resolved)
	assert.Equal(t, "2.1.0", results[0].Resolved.String())

	// an unsatisfiable channel is fatal before anything is provisioned
	assert.False(t, results[1].Passed())
	assert.Equal(t, "resolve", results[1].FailedStep)
	assert.ErrorIs(t, results[1].Err, pep503.ErrNoCandidates)
}

// A manifest whose package lives in a subdirectory must have its steps run
// there, with the editable install targeting "." rather than re-applying
// the path relative to itself.
func TestRunPackageDir(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	pkgDir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.MkdirAll(pkgDir, 0o777))

	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer"]
`)
	man.Package.Path = pkgDir

	execer := &fakeExecer{}
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: &fakeProvisioner{},
		Execer:      execer,
		WorkDir:     t.TempDir(),
	}
	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Passed())

	for i, dir := range execer.dirs {
		assert.Equal(t, pkgDir, dir, "call %d", i)
	}
	calls := execer.callNames()
	assert.Contains(t, calls, "in-env pip install -e .")
}

func TestRunCreatesWorkDir(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	man := parseManifest(t, `
package: {name: chainer-chemistry}
python: ["3.6"]
channels: ["chainer"]
`)
	workDir := filepath.Join(t.TempDir(), "nested", "work")
	r := &runner.Runner{
		Manifest:    man,
		Provisioner: &fakeProvisioner{},
		Execer:      &fakeExecer{},
		WorkDir:     workDir,
	}

	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed())

	info, err := os.Stat(workDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
