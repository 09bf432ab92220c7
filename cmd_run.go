package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/datawire/dlib/dexec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pybuild/pymatrix/pkg/cliutil"
	"github.com/pybuild/pymatrix/pkg/codecov"
	"github.com/pybuild/pymatrix/pkg/matrix"
	"github.com/pybuild/pymatrix/pkg/pyenv"
	"github.com/pybuild/pymatrix/pkg/python/pep503"
	"github.com/pybuild/pymatrix/pkg/runner"
)

// envKindFlag is the --environment flag: which kind of environment to
// provision cells with.
type envKindFlag string

var _ pflag.Value = (*envKindFlag)(nil)

func (f *envKindFlag) String() string { return string(*f) }
func (f *envKindFlag) Type() string   { return "KIND" }
func (f *envKindFlag) Set(val string) error {
	switch val {
	case "auto", "conda", "venv":
		*f = envKindFlag(val)
		return nil
	default:
		return fmt.Errorf("invalid environment kind %q (want one of auto, conda, venv)", val)
	}
}

func init() {
	var (
		manifestFile string
		envKind      envKindFlag = "auto"
		workDir      string
		jobs         int
		keepEnv      bool
		noResolve    bool
		noUpload     bool
		indexServer  string
		commit       string
		branch       string
	)
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Run every cell of the build matrix",
		Long: "Enumerate the cross-product of the manifest's interpreter-version and " +
			"dependency-channel axes, and run each cell: provision an isolated " +
			"environment for the cell's interpreter, install the baseline tool set " +
			"and the channel's version of the variable dependency, install the " +
			"package under test in editable mode, and run the marker-filtered test " +
			"suite with coverage instrumentation." +
			"\n\n" +
			"Cells are independent: they share no state, may run in parallel " +
			"(--jobs), and a red cell does not stop the others.  Any install step " +
			"failing aborts its cell before the tests run.  Coverage from a green " +
			"cell is uploaded to the manifest's reporting service in exactly one " +
			"best-effort attempt; an upload failure is a warning, not a build " +
			"failure." +
			"\n\n" +
			"The exit status is nonzero if any cell failed.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(flags *cobra.Command, _ []string) error {
			ctx := flags.Context()

			man, err := matrix.ParseFile(manifestFile)
			if err != nil {
				return err
			}

			var prov pyenv.Provisioner
			switch envKind {
			case "conda":
				prov = pyenv.Conda{}
			case "venv":
				prov = pyenv.Venv{}
			default: // auto: native channel packages require conda
				if man.Native != nil {
					prov = pyenv.Conda{}
				} else {
					prov = pyenv.Venv{}
				}
			}

			r := &runner.Runner{
				Manifest:    man,
				Provisioner: prov,
				WorkDir:     workDir,
				KeepEnv:     keepEnv,
				Jobs:        jobs,
			}
			if !noResolve {
				r.Index = &pep503.Client{BaseURL: indexServer}
			}
			if man.Coverage != nil && !noUpload {
				if commit == "" {
					commit, branch, err = gitHead(ctx)
					if err != nil {
						return fmt.Errorf("cannot determine commit for coverage upload "+
							"(pass --commit, or --no-upload): %w", err)
					}
				}
				r.Uploader = runner.CodecovUploader{
					Client: codecov.Client{
						BaseURL: man.Coverage.URL,
						Token:   os.Getenv(man.Coverage.TokenEnv),
					},
					Commit: commit,
					Branch: branch,
					Flags:  man.Coverage.Flags,
				}
			}

			results, err := r.Run(ctx)
			if err != nil {
				return err
			}

			out := flags.OutOrStdout()
			for _, res := range results {
				status := "ok"
				switch {
				case !res.Passed():
					status = fmt.Sprintf("FAIL (%s)", res.FailedStep)
				case res.UploadErr != nil:
					status = "ok (coverage upload failed)"
				}
				fmt.Fprintf(out, "%-40s %s\n", res.Cell.ID(), status)
			}
			if n := runner.CountFailed(results); n > 0 {
				return fmt.Errorf("%d of %d cells failed", n, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestFile, "file", "f", "pymatrix.yaml",
		"Read the matrix from `MANIFEST_FILE`")
	cmd.Flags().Var(&envKind, "environment",
		"Provision cell environments with `KIND` (auto, conda, or venv)")
	cmd.Flags().StringVar(&workDir, "work-dir", "",
		"Create cell environments under `DIR` instead of a temp dir")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1,
		"Run up to `N` cells concurrently")
	cmd.Flags().BoolVar(&keepEnv, "keep-env", false,
		"Leave cell environments behind for debugging")
	cmd.Flags().BoolVar(&noResolve, "no-resolve", false,
		"Skip the pre-flight channel resolution against the package index")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false,
		"Skip the coverage upload even if the manifest configures one")
	cmd.Flags().StringVar(&indexServer, "index-server", pep503.PyPIBaseURL,
		"Package index to resolve channels against")
	cmd.Flags().StringVar(&commit, "commit", "",
		"Report coverage against `COMMIT` (default: git HEAD)")
	cmd.Flags().StringVar(&branch, "branch", "",
		"Report coverage on `BRANCH`")
	argparser.AddCommand(cmd)
}

// gitHead asks git for the working tree's HEAD commit and branch.
func gitHead(ctx context.Context) (commit, branch string, err error) {
	commitBytes, err := dexec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "", "", err
	}
	branchBytes, err := dexec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(string(commitBytes)), strings.TrimSpace(string(branchBytes)), nil
}
