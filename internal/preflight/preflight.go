// Package preflight verifies ambient host dependencies before an
// operation is allowed to run.
package preflight

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Requirements declares what an operation needs from the host: executables
// resolvable on the search path and environment variables set to non-empty
// values.
type Requirements struct {
	Binaries []string
	EnvVars  []string
}

// Result lists every unmet requirement. Evaluation never short-circuits,
// so a single check reports the complete picture.
type Result struct {
	MissingBinaries []string
	MissingEnvVars  []string
}

// Satisfied reports whether every requirement was met.
func (r Result) Satisfied() bool {
	return len(r.MissingBinaries) == 0 && len(r.MissingEnvVars) == 0
}

// lookPath is a variable to allow testing.
var lookPath = exec.LookPath

// Check evaluates req against the current process environment and search
// path. An environment variable set to the empty string counts as missing.
func Check(req Requirements) Result {
	var res Result
	for _, bin := range req.Binaries {
		if _, err := lookPath(bin); err != nil {
			res.MissingBinaries = append(res.MissingBinaries, bin)
		}
	}
	for _, name := range req.EnvVars {
		if os.Getenv(name) == "" {
			res.MissingEnvVars = append(res.MissingEnvVars, name)
		}
	}
	return res
}

// MissingError reports that an operation was blocked by unmet host
// requirements. It maps to process exit code 1 at the top level.
type MissingError struct {
	Op      string
	Missing Result
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing dependencies for %q: binaries %v, env vars %v",
		e.Op, e.Missing.MissingBinaries, e.Missing.MissingEnvVars)
}

// ExitCode returns the dependency-gate exit code.
func (e *MissingError) ExitCode() int {
	return 1
}

// Require checks req and blocks the operation named op when anything is
// missing: the complete missing sets are logged and a *MissingError is
// returned. A nil return means the operation may proceed. If logger is
// nil, slog.Default() is used.
func Require(logger *slog.Logger, op string, req Requirements) error {
	if logger == nil {
		logger = slog.Default()
	}
	res := Check(req)
	if res.Satisfied() {
		return nil
	}
	logger.Error("exiting due to missing dependencies",
		"op", op,
		"missing_binaries", res.MissingBinaries,
		"missing_env_vars", res.MissingEnvVars,
	)
	return &MissingError{Op: op, Missing: res}
}
