// Package testrunner forwards "vserve test" to the project's test runner.
package testrunner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/errors"
)

// ConfigEnv carries the absolute test config path to the child process.
const ConfigEnv = "VSERVE_TEST_CONFIG"

// Runner runs the test program with the project's test configuration.
type Runner struct {
	// Program is the executable, resolved through PATH.
	Program string

	// BaseArgs precede the forwarded arguments.
	BaseArgs []string

	// ConfigPath is the test configuration file.
	ConfigPath string

	// ConfigFlag, when set, is appended followed by the absolute config path.
	ConfigFlag string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env is the child environment before ConfigEnv is added. Nil means
	// os.Environ().
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Runner for cfg with the standard streams.
func New(cfg config.TestConfig) *Runner {
	return &Runner{
		Program:    cfg.Program,
		BaseArgs:   cfg.BaseArgs,
		ConfigPath: cfg.ConfigPath,
		ConfigFlag: cfg.ConfigFlag,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// Args returns the full argument list passed to the program.
func (r *Runner) Args(args []string) ([]string, error) {
	out := make([]string, 0, len(r.BaseArgs)+len(args)+2)
	out = append(out, r.BaseArgs...)
	out = append(out, args...)
	if r.ConfigFlag != "" {
		abs, err := r.absConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, r.ConfigFlag, abs)
	}
	return out, nil
}

func (r *Runner) absConfig() (string, error) {
	p := r.ConfigPath
	if p == "" {
		p = config.DefaultTestConfig
	}
	if !filepath.IsAbs(p) && r.Dir != "" {
		p = filepath.Join(r.Dir, p)
	}
	return filepath.Abs(p)
}

// Command builds the child command.
func (r *Runner) Command(ctx context.Context, args []string) (*exec.Cmd, error) {
	argv, err := r.Args(args)
	if err != nil {
		return nil, err
	}
	abs, err := r.absConfig()
	if err != nil {
		return nil, err
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(append([]string(nil), env...), ConfigEnv+"="+abs)

	cmd := exec.CommandContext(ctx, r.Program, argv...)
	cmd.Dir = r.Dir
	cmd.Env = env
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd, nil
}

// Run runs the program with args appended to the base arguments. A non-zero
// child exit is returned as E150 carrying the child's exit code.
func (r *Runner) Run(ctx context.Context, args []string) error {
	cmd, err := r.Command(ctx, args)
	if err != nil {
		return errors.New("E150").WithDetail("could not resolve the test config path").Wrap(err)
	}

	err = cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return errors.New("E150").
			WithDetail(fmt.Sprintf("%s exited with code %d", r.display(), exitErr.ExitCode())).
			WithExitCode(exitErr.ExitCode()).
			Wrap(err)
	}
	return errors.New("E150").
		WithDetail("could not run " + r.display()).
		WithSuggestion(fmt.Sprintf("Make sure %q is installed and on PATH", r.Program)).
		Wrap(err)
}

func (r *Runner) display() string {
	return strings.Join(append([]string{r.Program}, r.BaseArgs...), " ")
}
