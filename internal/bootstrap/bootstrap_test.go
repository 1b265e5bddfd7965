package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mbenchaliah/gdw-jobs/internal/config"
	"github.com/mbenchaliah/gdw-jobs/internal/execx"
	"github.com/mbenchaliah/gdw-jobs/internal/preflight"
	"github.com/mbenchaliah/gdw-jobs/internal/testutil"
)

func testConfig(artifactDir string) config.BootstrapConfig {
	cfg := config.Default().Bootstrap
	cfg.ArtifactDir = artifactDir
	return cfg
}

// hostWith puts stubs for the given binaries on an otherwise empty PATH.
func hostWith(t *testing.T, names ...string) {
	t.Helper()
	testutil.StubPath(t, testutil.BinDir(t, names...))
}

func stubVersionCommands(mock *testutil.MockRunner) {
	mock.SetResult("python", []string{"-V"}, execx.Result{Stdout: "Python 3.11.2"})
	mock.SetResult("pip", []string{"-V"}, execx.Result{Stdout: "pip 24.0"})
	mock.SetResult("pip", []string{"install"}, execx.Result{})
}

func callKeys(calls []testutil.RunnerCall) []string {
	keys := make([]string, len(calls))
	for i, call := range calls {
		keys[i] = strings.Join(call.Command.Argv(), " ")
	}
	return keys
}

func TestConfigureCluster_RunsStepsInOrder(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "jobs-1.0.whl", "w")
	testutil.WriteFile(t, dir, "jobs-2.0.whl", "w")
	testutil.WriteFile(t, dir, "README.md", "not an artifact")

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(testConfig(dir), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := b.ConfigureCluster(context.Background()); err != nil {
		t.Fatalf("ConfigureCluster() error: %v", err)
	}

	want := []string{
		"python -V",
		"pip -V",
		"pip install -r requirements/requirements.txt",
		"pip install " + dir + "/jobs-2.0.whl --upgrade",
	}
	got := callKeys(mock.GetCalls())
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfigureCluster_GateBlocksEverything(t *testing.T) {
	hostWith(t) // no binaries at all

	mock := testutil.NewMockRunner()
	b := New(testConfig(t.TempDir()), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := b.ConfigureCluster(context.Background())
	if err == nil {
		t.Fatal("expected dependency gate failure")
	}

	var missingErr *preflight.MissingError
	if !errors.As(err, &missingErr) {
		t.Fatalf("error = %T, want *preflight.MissingError", err)
	}
	if missingErr.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", missingErr.ExitCode())
	}

	if calls := mock.GetCalls(); len(calls) != 0 {
		t.Errorf("commands ran despite failed gate: %v", callKeys(calls))
	}
}

func TestConfigureCluster_ExtraRequirements(t *testing.T) {
	hostWith(t, "pip", "python")
	t.Setenv("CLUSTER_REGION", "")

	cfg := testConfig(t.TempDir())
	cfg.RequiredBinaries = []string{"gcloud"}
	cfg.RequiredEnvVars = []string{"CLUSTER_REGION"}

	mock := testutil.NewMockRunner()
	err := New(cfg, mock, slog.New(slog.NewTextHandler(io.Discard, nil))).ConfigureCluster(context.Background())

	var missingErr *preflight.MissingError
	if !errors.As(err, &missingErr) {
		t.Fatalf("error = %T, want *preflight.MissingError", err)
	}
	if len(missingErr.Missing.MissingBinaries) != 1 || missingErr.Missing.MissingBinaries[0] != "gcloud" {
		t.Errorf("MissingBinaries = %v, want [gcloud]", missingErr.Missing.MissingBinaries)
	}
	if len(missingErr.Missing.MissingEnvVars) != 1 || missingErr.Missing.MissingEnvVars[0] != "CLUSTER_REGION" {
		t.Errorf("MissingEnvVars = %v, want [CLUSTER_REGION]", missingErr.Missing.MissingEnvVars)
	}
}

func TestConfigureCluster_NoArtifacts(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	mock := testutil.NewMockRunner()
	b := New(testConfig(t.TempDir()), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := b.ConfigureCluster(context.Background())
	if err == nil {
		t.Fatal("expected error for empty artifact dir")
	}
	if !strings.Contains(err.Error(), ".whl") {
		t.Errorf("error = %v, want mention of the artifact suffix", err)
	}

	if calls := mock.GetCalls(); len(calls) != 0 {
		t.Errorf("commands ran before failing: %v", callKeys(calls))
	}
}

func TestConfigureCluster_InstallFailureAborts(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "jobs-1.0.whl", "w")

	mock := testutil.NewMockRunner()
	mock.SetResult("python", []string{"-V"}, execx.Result{Stdout: "Python 3.11.2"})
	mock.SetResult("pip", []string{"-V"}, execx.Result{Stdout: "pip 24.0"})
	installCmd := execx.New("pip", "install", "-r", "requirements/requirements.txt")
	mock.SetError("pip", []string{"install", "-r", "requirements/requirements.txt"},
		&execx.ExitError{Command: installCmd, Code: 1})

	b := New(testConfig(dir), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := b.ConfigureCluster(context.Background())
	if err == nil {
		t.Fatal("expected install failure to propagate")
	}

	var coder interface{ ExitCode() int }
	if !errors.As(err, &coder) {
		t.Fatalf("error %v does not carry an exit code", err)
	}
	if coder.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", coder.ExitCode())
	}

	// The artifact install must not have been attempted.
	for _, key := range callKeys(mock.GetCalls()) {
		if strings.Contains(key, "--upgrade") {
			t.Errorf("artifact install ran after failed requirements install: %s", key)
		}
	}
}

func TestConfigureCluster_LexicalSelection(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "pkg-10.0.whl", "w")
	testutil.WriteFile(t, dir, "pkg-9.0.whl", "w")

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(testConfig(dir), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := b.ConfigureCluster(context.Background()); err != nil {
		t.Fatalf("ConfigureCluster() error: %v", err)
	}

	// Lexical order installs pkg-9.0.whl even though 10.0 is numerically
	// newer. That is the documented default.
	testutil.AssertCalled(t, mock, "pip", "install", dir+"/pkg-9.0.whl", "--upgrade")
}

func TestConfigureCluster_VersionSelection(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "pkg-10.0.whl", "w")
	testutil.WriteFile(t, dir, "pkg-9.0.whl", "w")

	cfg := testConfig(dir)
	cfg.Selection = "version"

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(cfg, mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := b.ConfigureCluster(context.Background()); err != nil {
		t.Fatalf("ConfigureCluster() error: %v", err)
	}

	testutil.AssertCalled(t, mock, "pip", "install", dir+"/pkg-10.0.whl", "--upgrade")
}

func TestConfigureCluster_WarnsOnPolicyDivergence(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "pkg-10.0.whl", "w")
	testutil.WriteFile(t, dir, "pkg-9.0.whl", "w")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(testConfig(dir), mock, logger)
	if err := b.ConfigureCluster(context.Background()); err != nil {
		t.Fatalf("ConfigureCluster() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "diverges") {
		t.Errorf("expected divergence warning, got: %s", out)
	}
	if !strings.Contains(out, "pkg-9.0.whl") || !strings.Contains(out, "pkg-10.0.whl") {
		t.Errorf("warning should name both candidates, got: %s", out)
	}
}

func TestConfigureCluster_NoWarningWhenOrdersAgree(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "pkg-1.0.whl", "w")
	testutil.WriteFile(t, dir, "pkg-2.0.whl", "w")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(testConfig(dir), mock, logger)
	if err := b.ConfigureCluster(context.Background()); err != nil {
		t.Fatalf("ConfigureCluster() error: %v", err)
	}

	if strings.Contains(buf.String(), "diverges") {
		t.Errorf("unexpected divergence warning: %s", buf.String())
	}
}

func TestConfigureCluster_UnknownPolicy(t *testing.T) {
	hostWith(t, "pip", "python", "ingestor")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "pkg-1.0.whl", "w")

	cfg := testConfig(dir)
	cfg.Selection = "newest"

	mock := testutil.NewMockRunner()
	err := New(cfg, mock, slog.New(slog.NewTextHandler(io.Discard, nil))).ConfigureCluster(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown selection policy")
	}
	if !strings.Contains(err.Error(), "newest") {
		t.Errorf("error = %v, want mention of the bad policy", err)
	}
	if calls := mock.GetCalls(); len(calls) != 0 {
		t.Errorf("commands ran despite bad policy: %v", callKeys(calls))
	}
}

func TestConfigureCluster_EntrypointRefreshFailure(t *testing.T) {
	// pip and python are present, but the install does not put the
	// ingestor entrypoint on PATH.
	hostWith(t, "pip", "python")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "jobs-1.0.whl", "w")

	mock := testutil.NewMockRunner()
	stubVersionCommands(mock)

	b := New(testConfig(dir), mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := b.ConfigureCluster(context.Background())
	if err == nil {
		t.Fatal("expected entrypoint refresh failure")
	}
	if !strings.Contains(err.Error(), "ingestor") {
		t.Errorf("error = %v, want mention of the entrypoint", err)
	}

	// Refresh failures are environmental, not subcommand exits: no exit
	// code rides along.
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		t.Errorf("refresh failure unexpectedly carries exit code %d", coder.ExitCode())
	}
}
