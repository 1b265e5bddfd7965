// Package execx provides command execution abstractions for the launcher.
//
// Every invocation is audit-logged as a copy-pasteable shell line. A
// non-zero exit becomes a typed *ExitError carrying the subcommand's exit
// code, so the process boundary can terminate with exactly that code.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/kballard/go-shellquote"
)

// Command is an immutable argv-style command line. The first element is
// the executable name; it is never passed through a shell.
type Command struct {
	argv []string
}

// New builds a Command from an executable name and its arguments.
func New(name string, args ...string) Command {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, name)
	argv = append(argv, args...)
	return Command{argv: argv}
}

// Name returns the executable name.
func (c Command) Name() string {
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

// Argv returns a copy of the full argument vector.
func (c Command) Argv() []string {
	argv := make([]string, len(c.argv))
	copy(argv, c.argv)
	return argv
}

// String renders the command as a single shell-quoted line suitable for
// audit logs and copy-paste reproduction.
func (c Command) String() string {
	return shellquote.Join(c.argv...)
}

// Result is the outcome of one synchronous invocation.
type Result struct {
	// Code is the command's exit code; zero on success.
	Code int
	// Stdout is the captured standard output, trimmed of surrounding
	// whitespace. Empty unless CaptureOutput was set.
	Stdout string
	// Stderr is the captured standard error, untrimmed. Empty unless
	// CaptureOutput was set.
	Stderr string
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.Code == 0
}

// Handle identifies a detached process. The launcher keeps no other
// reference to it: the process is never waited on and its exit status is
// never observed.
type Handle struct {
	PID int
}

// ExitError reports a subcommand that started successfully and exited
// non-zero. Code is the subcommand's own exit code.
type ExitError struct {
	Command Command
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("`%s` errored (%d)", e.Command, e.Code)
}

// ExitCode returns the subcommand's exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

type options struct {
	capture    bool
	logCommand bool
	failFast   bool
	onError    func()
	stdout     io.Writer
	stderr     io.Writer
}

// Option adjusts how a single command is run.
type Option func(*options)

func defaultOptions() options {
	return options{logCommand: true, failFast: true}
}

// CaptureOutput pipes stdout and stderr into the Result instead of the
// launcher's streams. Overrides WithStdout and WithStderr.
func CaptureOutput() Option {
	return func(o *options) { o.capture = true }
}

// Quiet suppresses the audit log line for this command.
func Quiet() Option {
	return func(o *options) { o.logCommand = false }
}

// AllowFailure makes a non-zero exit return a populated Result with a nil
// error instead of an *ExitError; the caller inspects Result.Code itself.
func AllowFailure() Option {
	return func(o *options) { o.failFast = false }
}

// OnError registers a callback invoked after a non-zero exit has been
// logged and before the failure propagates.
func OnError(fn func()) Option {
	return func(o *options) { o.onError = fn }
}

// WithStdout directs the command's stdout to w. Ignored under CaptureOutput.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr directs the command's stderr to w. Ignored under CaptureOutput.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// Runner abstracts command execution for dependency injection.
type Runner interface {
	Run(ctx context.Context, cmd Command, opts ...Option) (Result, error)
	Detach(cmd Command, opts ...Option) (Handle, error)
}

// ExecRunner executes real commands using os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a new ExecRunner for production use. If logger is
// nil, slog.Default() is used.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes cmd and blocks until it exits.
//
// By default the child inherits the launcher's standard streams and a
// non-zero exit comes back as an *ExitError alongside the populated
// Result. A command that cannot be started at all (missing binary, bad
// permissions) returns an ordinary error regardless of AllowFailure;
// there is no exit code to report in that case.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, opts ...Option) (Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	argv := cmd.Argv()
	if len(argv) == 0 || argv[0] == "" {
		return Result{}, errors.New("execx: empty command")
	}

	if o.logCommand {
		r.logger.Info("exec", "cmd", cmd.String())
	}

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = os.Stdin

	var outBuf, errBuf bytes.Buffer
	if o.capture {
		c.Stdout = &outBuf
		c.Stderr = &errBuf
	} else {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if o.stdout != nil {
			c.Stdout = o.stdout
		}
		if o.stderr != nil {
			c.Stderr = o.stderr
		}
	}

	runErr := c.Run()

	res := Result{
		Stdout: strings.TrimSpace(outBuf.String()),
		Stderr: errBuf.String(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("start `%s`: %w", cmd, runErr)
		}
		res.Code = exitErr.ExitCode()
	}

	if res.Code != 0 {
		attrs := []any{
			slog.String("cmd", cmd.String()),
			slog.Int("exit_code", res.Code),
		}
		if s := strings.TrimSpace(res.Stderr); s != "" {
			attrs = append(attrs, slog.String("stderr", s))
		}
		r.logger.Error("command errored", attrs...)
		if o.onError != nil {
			o.onError()
		}
		if o.failFast {
			return res, &ExitError{Command: cmd, Code: res.Code, Stderr: res.Stderr}
		}
	}

	return res, nil
}

// Detach launches cmd fully disconnected from the launcher: no inherited
// standard streams, its own session, and no wait. The returned Handle is
// informational only.
//
// Only Quiet applies; capture and failure-policy options have no meaning
// without a result to populate.
func (r *ExecRunner) Detach(cmd Command, opts ...Option) (Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	argv := cmd.Argv()
	if len(argv) == 0 || argv[0] == "" {
		return Handle{}, errors.New("execx: empty command")
	}

	if o.logCommand {
		r.logger.Info("exec detached", "cmd", cmd.String())
	}

	c := exec.Command(argv[0], argv[1:]...)

	// Detach from terminal
	c.Stdin = nil
	c.Stdout = nil
	c.Stderr = nil

	// Create a new session (setsid equivalent)
	c.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := c.Start(); err != nil {
		return Handle{}, fmt.Errorf("start detached `%s`: %w", cmd, err)
	}

	pid := c.Process.Pid
	_ = c.Process.Release()

	return Handle{PID: pid}, nil
}
