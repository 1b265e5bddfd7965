package preflight

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// binDir creates a directory holding executable stubs for the given names
// and points PATH at it exclusively.
func binDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", dir)
	return dir
}

func TestCheck_AllSatisfied(t *testing.T) {
	binDir(t, "pip", "python")
	t.Setenv("CLUSTER_NAME", "test-cluster")

	res := Check(Requirements{
		Binaries: []string{"pip", "python"},
		EnvVars:  []string{"CLUSTER_NAME"},
	})

	if !res.Satisfied() {
		t.Errorf("Satisfied() = false, missing binaries %v, env vars %v",
			res.MissingBinaries, res.MissingEnvVars)
	}
}

func TestCheck_ReportsEveryMissingItem(t *testing.T) {
	binDir(t, "python")
	t.Setenv("PRESENT_VAR", "x")
	t.Setenv("EMPTY_VAR", "")

	res := Check(Requirements{
		Binaries: []string{"python", "pip", "gcloud"},
		EnvVars:  []string{"PRESENT_VAR", "EMPTY_VAR", "UNSET_VAR_2A6F"},
	})

	if res.Satisfied() {
		t.Fatal("Satisfied() = true with missing requirements")
	}

	wantBins := []string{"pip", "gcloud"}
	if len(res.MissingBinaries) != len(wantBins) {
		t.Fatalf("MissingBinaries = %v, want %v", res.MissingBinaries, wantBins)
	}
	for i, bin := range wantBins {
		if res.MissingBinaries[i] != bin {
			t.Errorf("MissingBinaries[%d] = %q, want %q", i, res.MissingBinaries[i], bin)
		}
	}

	// The empty-string variable counts as missing alongside the unset one.
	wantVars := []string{"EMPTY_VAR", "UNSET_VAR_2A6F"}
	if len(res.MissingEnvVars) != len(wantVars) {
		t.Fatalf("MissingEnvVars = %v, want %v", res.MissingEnvVars, wantVars)
	}
	for i, v := range wantVars {
		if res.MissingEnvVars[i] != v {
			t.Errorf("MissingEnvVars[%d] = %q, want %q", i, res.MissingEnvVars[i], v)
		}
	}
}

func TestCheck_EmptyRequirements(t *testing.T) {
	res := Check(Requirements{})
	if !res.Satisfied() {
		t.Error("empty requirements should always be satisfied")
	}
}

func TestRequire_Satisfied(t *testing.T) {
	binDir(t, "pip")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	if err := Require(logger, "configure_cluster", Requirements{
		Binaries: []string{"pip"},
	}); err != nil {
		t.Fatalf("Require() error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output when satisfied, got: %s", buf.String())
	}
}

func TestRequire_Missing(t *testing.T) {
	binDir(t) // empty PATH dir

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := Require(logger, "configure_cluster", Requirements{
		Binaries: []string{"pip"},
		EnvVars:  []string{"UNSET_VAR_2A6F"},
	})
	if err == nil {
		t.Fatal("Require() = nil with missing requirements")
	}

	var missingErr *MissingError
	if !errors.As(err, &missingErr) {
		t.Fatalf("error = %T, want *MissingError", err)
	}
	if missingErr.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", missingErr.ExitCode())
	}
	if missingErr.Op != "configure_cluster" {
		t.Errorf("Op = %q, want %q", missingErr.Op, "configure_cluster")
	}

	// One log event names the operation and the full missing sets.
	out := buf.String()
	for _, want := range []string{"missing dependencies", "configure_cluster", "pip", "UNSET_VAR_2A6F"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q, got: %s", want, out)
		}
	}
}

func TestRequire_GuardsEachCallIndependently(t *testing.T) {
	dir := binDir(t)

	req := Requirements{Binaries: []string{"ingestor"}}

	if err := Require(slog.New(slog.NewTextHandler(io.Discard, nil)), "ingest", req); err == nil {
		t.Fatal("expected failure before the binary exists")
	}

	// Once the binary appears the same requirements pass: the check runs
	// fresh on every call instead of caching its first answer.
	stub := filepath.Join(dir, "ingestor")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if err := Require(slog.New(slog.NewTextHandler(io.Discard, nil)), "ingest", req); err != nil {
		t.Errorf("Require() error after binary appeared: %v", err)
	}
}

func TestMissingError_Error(t *testing.T) {
	err := &MissingError{
		Op: "ingest",
		Missing: Result{
			MissingBinaries: []string{"ingestor"},
			MissingEnvVars:  []string{"CLUSTER"},
		},
	}
	msg := err.Error()
	for _, want := range []string{"ingest", "ingestor", "CLUSTER"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want to contain %q", msg, want)
		}
	}
}
