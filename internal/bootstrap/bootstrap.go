// Package bootstrap installs the ingestion stack on a cluster worker node:
// the baseline dependency manifest first, then the packaged ingestion
// artifact, then a check that the ingestion entrypoints actually resolve.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/mbenchaliah/gdw-jobs/internal/artifact"
	"github.com/mbenchaliah/gdw-jobs/internal/config"
	"github.com/mbenchaliah/gdw-jobs/internal/execx"
	"github.com/mbenchaliah/gdw-jobs/internal/preflight"
)

// lookPath is a variable to allow testing.
var lookPath = exec.LookPath

// Bootstrapper configures the current node for ingestion work.
type Bootstrapper struct {
	cfg    config.BootstrapConfig
	runner execx.Runner
	logger *slog.Logger
}

// New creates a Bootstrapper. If logger is nil, slog.Default() is used.
func New(cfg config.BootstrapConfig, runner execx.Runner, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{cfg: cfg, runner: runner, logger: logger}
}

// requirements declares what cluster configuration needs from the host.
// The installer is always required; additional binaries and env vars come
// from configuration.
func (b *Bootstrapper) requirements() preflight.Requirements {
	bins := append([]string{b.cfg.InstallerBin}, b.cfg.RequiredBinaries...)
	return preflight.Requirements{
		Binaries: bins,
		EnvVars:  b.cfg.RequiredEnvVars,
	}
}

// ConfigureCluster runs the bootstrap sequence on this node. The first
// failing step aborts the rest; there are no retries and no rollback of
// completed installs.
func (b *Bootstrapper) ConfigureCluster(ctx context.Context) error {
	if err := preflight.Require(b.logger, "configure_cluster", b.requirements()); err != nil {
		return err
	}

	b.logger.Debug("cluster configuration started")

	names, err := artifact.List(b.cfg.ArtifactDir, b.cfg.ArtifactSuffix)
	if err != nil {
		return err
	}
	b.logger.Debug("scanned artifact dir",
		"dir", b.cfg.ArtifactDir, "suffix", b.cfg.ArtifactSuffix, "matches", names)
	if len(names) == 0 {
		return fmt.Errorf("no %s artifact found in %s", b.cfg.ArtifactSuffix, b.cfg.ArtifactDir)
	}

	policy, err := artifact.ParsePolicy(b.cfg.Selection)
	if err != nil {
		return err
	}
	selected, err := artifact.Select(names, policy)
	if err != nil {
		return err
	}
	b.warnOnPolicyDivergence(policy, names, selected)

	// Runtime and installer versions go to the audit log before anything
	// is modified.
	if _, err := b.runner.Run(ctx, execx.New(b.cfg.PythonBin, "-V")); err != nil {
		return err
	}
	if _, err := b.runner.Run(ctx, execx.New(b.cfg.InstallerBin, "-V")); err != nil {
		return err
	}

	if _, err := b.runner.Run(ctx, execx.New(b.cfg.InstallerBin, "install", "-r", b.cfg.RequirementsFile)); err != nil {
		return err
	}

	b.logger.Debug("installing artifact", "artifact", selected)
	if _, err := b.runner.Run(ctx, execx.New(b.cfg.InstallerBin, "install", filepath.Join(b.cfg.ArtifactDir, selected), "--upgrade")); err != nil {
		return err
	}

	if err := b.refreshEntrypoints(); err != nil {
		return err
	}

	b.logger.Info("cluster initialized successfully")
	return nil
}

// warnOnPolicyDivergence flags listings where the default lexical order
// would install a different artifact than version order would, which
// happens once version segments grow a digit ("pkg-9.0" vs "pkg-10.0").
func (b *Bootstrapper) warnOnPolicyDivergence(policy artifact.Policy, names []string, selected string) {
	if policy != artifact.PolicyLexical {
		return
	}
	if v, ok := artifact.VersionCandidate(names); ok && v != selected {
		b.logger.Warn("lexical artifact order diverges from version order",
			"selected", selected, "version_order", v)
	}
}

// refreshEntrypoints re-resolves the configured console entrypoints so a
// broken install surfaces here instead of on the first forwarded task.
func (b *Bootstrapper) refreshEntrypoints() error {
	for _, name := range b.cfg.Entrypoints {
		if _, err := lookPath(name); err != nil {
			return fmt.Errorf("refresh entrypoint %s: %w", name, err)
		}
	}
	return nil
}
