package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcqa/hcqa/internal/platform/db"
)

// Invocation is one command the runner asks an Executor to run.
type Invocation struct {
	Suite  string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (inv Invocation) String() string {
	return strings.Join(inv.Args, " ")
}

// Executor runs an invocation; a non-nil error means the suite failed.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) error
}

// GoExecutor runs invocations as child processes. Args[0] is the binary.
type GoExecutor struct{}

func (GoExecutor) Execute(ctx context.Context, inv Invocation) error {
	if len(inv.Args) == 0 {
		return errors.New("empty invocation")
	}
	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("exit code %d", exitErr.ExitCode())
		}
		return err
	}
	return nil
}

// Options control how suites are invoked.
type Options struct {
	Environment string
	Browser     string
	Headless    bool
	Parallel    bool
	Coverage    bool
	Tags        []string

	// Root is the project directory suites run in. Defaults to ".".
	Root string
	// EnvDir holds <environment>.env files. Defaults to
	// config/environments under Root.
	EnvDir string
	// ResultsDir receives coverage profiles. Defaults to "reports" under
	// Root.
	ResultsDir string
	// GoBin defaults to "go".
	GoBin string

	Output io.Writer
	Logger zerolog.Logger
	Now    func() time.Time
}

// Runner runs suites through an Executor and records the results.
type Runner struct {
	opts    Options
	exec    Executor
	history *History
}

// New returns a Runner. history may be nil, in which case runs are not
// recorded.
func New(opts Options, executor Executor, history *History) *Runner {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.EnvDir == "" {
		opts.EnvDir = filepath.Join(opts.Root, "config", "environments")
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = filepath.Join(opts.Root, "reports")
	}
	if opts.GoBin == "" {
		opts.GoBin = "go"
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if executor == nil {
		executor = GoExecutor{}
	}
	return &Runner{opts: opts, exec: executor, history: history}
}

// Args builds the go test command line for s.
func (r *Runner) Args(s Suite) []string {
	args := []string{r.opts.GoBin, "test", "-v", "-count=1"}
	if len(s.Tags) > 0 {
		args = append(args, "-tags", strings.Join(s.Tags, ","))
	}
	if run := tagFilter(s.Run, r.opts.Tags); run != "" {
		args = append(args, "-run", run)
	}
	if r.opts.Parallel {
		args = append(args, "-p", "4", "-parallel", "4")
	}
	if r.opts.Coverage {
		args = append(args, "-coverprofile", filepath.Join(r.opts.ResultsDir, "coverage-"+s.Name+".out"))
	}
	return append(args, s.Packages...)
}

// Run executes every suite of kind, prints a summary and records the run.
// The returned record's Passed is false when any suite failed; skipped
// suites do not fail a run.
func (r *Runner) Run(ctx context.Context, kind string) (*RunRecord, error) {
	suites, err := SuitesFor(kind)
	if err != nil {
		return nil, err
	}

	fileVars, err := loadEnvFile(r.opts.EnvDir, r.opts.Environment)
	if err != nil {
		return nil, err
	}
	if fileVars == nil {
		r.opts.Logger.Warn().Str("file", EnvFile(r.opts.EnvDir, r.opts.Environment)).Msg("environment file not found, using process environment")
	}
	env := childEnv(os.Environ(), fileVars, r.opts)

	if r.opts.Coverage {
		if err := os.MkdirAll(r.opts.ResultsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}

	rec := &RunRecord{
		ID:          uuid.NewString(),
		Kind:        kind,
		Environment: r.opts.Environment,
		Browser:     r.opts.Browser,
		StartedAt:   r.opts.Now(),
		Passed:      true,
	}

	for _, s := range suites {
		res := r.runSuite(ctx, s, env)
		if res.Status == StatusFailed {
			rec.Passed = false
		}
		rec.Suites = append(rec.Suites, res)
	}
	rec.Duration = r.opts.Now().Sub(rec.StartedAt)

	r.printSummary(rec)
	if r.history != nil {
		if err := r.history.Record(*rec); err != nil {
			r.opts.Logger.Error().Err(err).Msg("failed to record run history")
		}
	}
	return rec, nil
}

func (r *Runner) runSuite(ctx context.Context, s Suite, env []string) SuiteResult {
	res := SuiteResult{Name: s.Name}
	if s.Dir != "" && !dirExists(filepath.Join(r.opts.Root, s.Dir)) {
		r.opts.Logger.Warn().Str("suite", s.Name).Str("dir", s.Dir).Msg("suite directory not found, skipping")
		res.Status = StatusSkipped
		res.Error = "directory " + s.Dir + " not found"
		return res
	}

	inv := Invocation{
		Suite:  s.Name,
		Args:   r.Args(s),
		Env:    env,
		Dir:    r.opts.Root,
		Stdout: r.opts.Output,
		Stderr: r.opts.Output,
	}
	res.Command = inv.String()
	r.opts.Logger.Info().Str("suite", s.Name).Str("command", res.Command).Msg("running suite")

	start := r.opts.Now()
	err := r.exec.Execute(ctx, inv)
	res.Duration = r.opts.Now().Sub(start)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		r.opts.Logger.Error().Str("suite", s.Name).Err(err).Msg("suite failed")
		return res
	}
	res.Status = StatusPassed
	return res
}

func (r *Runner) printSummary(rec *RunRecord) {
	w := tabwriter.NewWriter(r.opts.Output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\nTest run %s (%s, environment %s)\n", rec.ID, rec.Kind, rec.Environment)
	fmt.Fprintln(w, "SUITE\tSTATUS\tDURATION")
	for _, s := range rec.Suites {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, strings.ToUpper(string(s.Status)), s.Duration.Round(time.Millisecond))
	}
	overall := "PASSED"
	if !rec.Passed {
		overall = "FAILED"
	}
	fmt.Fprintf(w, "OVERALL\t%s\t%s\n", overall, rec.Duration.Round(time.Millisecond))
	w.Flush()
}

// Cleaner finds and removes test patients. *db.Manager implements it.
type Cleaner interface {
	TestPatientIDs(ctx context.Context, alias string, prefixes ...string) ([]string, error)
	CleanupTestData(ctx context.Context, alias string, patientIDs []string) (*db.CleanupReport, error)
}

// Cleanup removes every patient whose id carries a test prefix, together
// with its dependent rows.
func Cleanup(ctx context.Context, c Cleaner, alias string, logger zerolog.Logger) (*db.CleanupReport, error) {
	ids, err := c.TestPatientIDs(ctx, alias, db.TestIDPrefixes...)
	if err != nil {
		return nil, fmt.Errorf("find test patients: %w", err)
	}
	report, err := c.CleanupTestData(ctx, alias, ids)
	if err != nil {
		return nil, fmt.Errorf("cleanup test data: %w", err)
	}
	logger.Info().Int("patients", len(ids)).Bool("clean", report.Clean()).Msg("test data cleanup finished")
	return report, nil
}
