// Package process runs external conversion tools with bounded time and output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Sentinel errors for subprocess execution.
var (
	ErrTimeout  = errors.New("process timed out")
	ErrExit     = errors.New("process exited with error")
	ErrStart    = errors.New("process failed to start")
	ErrCanceled = errors.New("process canceled")
)

// Output limits.
const (
	// DefaultMaxOutput caps captured stdout and stderr each.
	DefaultMaxOutput = 1 << 20

	// DefaultWaitDelay bounds how long Wait blocks on pipes after a kill.
	DefaultWaitDelay = 5 * time.Second

	// stderrTailBytes is how much stderr ends up in error messages.
	stderrTailBytes = 512
)

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished subprocess left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner abstracts command execution to enable testing without real subprocesses.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Compile-time interface check.
var _ Runner = (*ExecRunner)(nil)

// ExecRunner implements Runner using os/exec. The context deadline is the
// invocation timeout; on expiry the whole process group is killed.
type ExecRunner struct {
	MaxOutput int           // 0 = DefaultMaxOutput
	WaitDelay time.Duration // 0 = DefaultWaitDelay
}

// NewExecRunner creates an ExecRunner with default limits.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the command and waits for it to exit or for ctx to end.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCanceled, c.Name, err)
	}

	maxOut := r.MaxOutput
	if maxOut <= 0 {
		maxOut = DefaultMaxOutput
	}
	waitDelay := r.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...) // #nosec G204 -- tool paths come from the backend probe
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			KillProcessGroup(cmd.Process.Pid)
		}
		return nil
	}
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: maxOut}
	stderr := &cappedBuffer{limit: maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		return res, nil
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return res, fmt.Errorf("%w: %s after %s", ErrTimeout, c.Name, res.Duration.Round(time.Millisecond))
	case ctxErr != nil:
		return res, fmt.Errorf("%w: %s: %v", ErrCanceled, c.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%w: %s exited with code %d: %s", ErrExit, c.Name, res.ExitCode, Tail(res.Stderr, stderrTailBytes))
	}
	return res, fmt.Errorf("%w: %s: %v", ErrStart, c.Name, err)
}

// Tail returns at most n trailing bytes of b as trimmed text.
func Tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// cappedBuffer keeps the first limit bytes written and discards the rest,
// while still reporting full writes so the child never blocks on a pipe.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
