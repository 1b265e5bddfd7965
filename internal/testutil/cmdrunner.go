// Package testutil provides test infrastructure for unit and integration
// testing. It includes mocks, fixtures, and helpers that other packages
// use for testing.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mbenchaliah/gdw-jobs/internal/execx"
)

// RunnerCall records a command invocation for assertion purposes.
type RunnerCall struct {
	Command  execx.Command
	Detached bool
}

// DynamicResultFunc is called to generate dynamic results for commands.
// If handled is false, the normal result lookup is used.
type DynamicResultFunc func(ctx context.Context, cmd execx.Command) (execx.Result, error, bool)

// MockRunner returns canned results based on command patterns.
// It records all calls for later assertion.
type MockRunner struct {
	mu            sync.Mutex
	Results       map[string]execx.Result
	Errors        map[string]error
	Calls         []RunnerCall
	DynamicResult DynamicResultFunc

	// DetachErr, when set, is returned by every Detach call.
	DetachErr error
	nextPID   int
}

// NewMockRunner creates a MockRunner with initialized maps.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Results: make(map[string]execx.Result),
		Errors:  make(map[string]error),
		nextPID: 40000,
	}
}

// Run returns the canned result for cmd, recording the call.
// The key format is "name arg1 arg2 ...".
func (m *MockRunner) Run(ctx context.Context, cmd execx.Command, opts ...execx.Option) (execx.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, RunnerCall{Command: cmd})

	// Check dynamic result first
	if m.DynamicResult != nil {
		if res, err, handled := m.DynamicResult(ctx, cmd); handled {
			return res, err
		}
	}

	key := strings.Join(cmd.Argv(), " ")

	// Check for exact match first
	if err, ok := m.Errors[key]; ok {
		return execx.Result{}, err
	}
	if res, ok := m.Results[key]; ok {
		return res, nil
	}

	// Check for prefix matches (for commands with variable args)
	for k, err := range m.Errors {
		if strings.HasPrefix(key, k) {
			return execx.Result{}, err
		}
	}
	for k, res := range m.Results {
		if strings.HasPrefix(key, k) {
			return res, nil
		}
	}

	return execx.Result{}, fmt.Errorf("unexpected command: %s", key)
}

// Detach records the call and returns a synthetic Handle with a unique PID.
func (m *MockRunner) Detach(cmd execx.Command, opts ...execx.Option) (execx.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, RunnerCall{Command: cmd, Detached: true})

	if m.DetachErr != nil {
		return execx.Handle{}, m.DetachErr
	}

	m.nextPID++
	return execx.Handle{PID: m.nextPID}, nil
}

// SetResult configures a canned result for a command.
func (m *MockRunner) SetResult(name string, args []string, res execx.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[makeKey(name, args)] = res
}

// SetError configures an error result for a command.
func (m *MockRunner) SetError(name string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[makeKey(name, args)] = err
}

// GetCalls returns a copy of all recorded calls.
func (m *MockRunner) GetCalls() []RunnerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RunnerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// makeKey constructs the lookup key from command name and args.
func makeKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
