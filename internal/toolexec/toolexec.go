// Package toolexec runs external command-line tools and reports their output
// on failure.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/logging"
)

// ErrToolMissing indicates an executable that is not on PATH.
var ErrToolMissing = errors.New("required executable not found on PATH")

// Runner executes tools. Exec is the real implementation; tests substitute
// fakes.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) error
}

// CommandError is a tool that ran and exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s (exit %d)\nstdout:\n%s\nstderr:\n%s", e.Command, e.ExitCode, e.Stdout, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

type Exec struct {
	Log *log.Logger
}

func (e Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (e Exec) Run(ctx context.Context, dir, name string, args ...string) error {
	logger := logging.OrDiscard(e.Log)
	line := strings.Join(append([]string{name}, args...), " ")
	logger.Info("running", "cmd", line, "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return &CommandError{
			Command:  line,
			ExitCode: exitCodeFromErr(err),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	logger.Debug("command done", "cmd", name, "duration", time.Since(start).String())
	return nil
}

func exitCodeFromErr(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// Ensure checks that every named tool resolves, before any work starts.
func Ensure(r Runner, hint string, names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := r.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if hint != "" {
		return fmt.Errorf("%w: %s (%s)", ErrToolMissing, strings.Join(missing, ", "), hint)
	}
	return fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
}
