package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mbenchaliah/gdw-jobs/internal/bootstrap"
	"github.com/mbenchaliah/gdw-jobs/internal/config"
	"github.com/mbenchaliah/gdw-jobs/internal/execx"
	"github.com/mbenchaliah/gdw-jobs/internal/ingest"
	"github.com/mbenchaliah/gdw-jobs/internal/version"
)

// exitCode maps err to the launcher's process exit status. Errors that carry
// their own exit code (subprocess failures, dependency gates) keep it;
// everything else exits 1.
func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// setupLogging switches launcher logs to the configured rotating file. With
// no file configured, base keeps writing to stderr and cleanup is a no-op.
func setupLogging(base *slog.Logger, level slog.Leveler, cfg *config.Config) (*slog.Logger, func()) {
	if cfg.Paths.Log == "" {
		return base, func() {}
	}
	result := SetupFileLogger(cfg.Paths.Log, level, cfg.LogRotation)
	slog.SetDefault(result.Logger)
	return result.Logger, func() { _ = result.Close() }
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := NewLogger(os.Stderr, logLevel)

	viper.SetEnvPrefix("GDW_JOBS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// The root command forwards unrecognized invocations verbatim to the
	// ingestor binary, so it must not parse flags itself: DisableFlagParsing
	// keeps argument lists like ["--help"] or ["load", "--dry-run"] intact,
	// and ArbitraryArgs stops cobra from rejecting unknown first tokens.
	rootCmd := &cobra.Command{
		Use:   "gdw-jobs [task arguments...]",
		Short: version.Description,
		Long: `gdw-jobs launches compute cluster tasks.

The first argument selects the task. "configure" bootstraps the cluster by
installing the newest job artifact and its dependencies; any other argument
list is handed to the ingestor binary unchanged, flags included.

Launcher settings come from config files (.gdw-jobs/config.yaml) and
GDW_JOBS_* environment variables. Launcher flags are only parsed after the
"configure" and "version" commands; everything else belongs to the task.`,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return fmt.Errorf("no task specified")
			}

			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, cleanup := setupLogging(logger, logLevel, cfg)
			defer cleanup()

			runner := execx.NewExecRunner(log)
			return ingest.NewForwarder(cfg.Ingest, runner, log).Forward(cmd.Context(), args)
		},
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.NewInfo()
			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal version info: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Print(info.String())
			return nil
		},
	}
	versionCmd.Flags().Bool(FlagJSON, false, "Output version info as JSON")
	_ = viper.BindPFlag(FlagJSON, versionCmd.Flags().Lookup(FlagJSON))

	// Configure command
	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Bootstrap the cluster with the newest job artifact",
		Long: `Bootstrap the cluster for job execution.

Verifies required binaries and environment variables, installs pinned Python
requirements, then installs the newest job artifact from the artifact
directory and refreshes its entrypoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}

			// Load config from files with defaults
			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Apply CLI flag overrides (only if explicitly set)
			if cmd.Flags().Changed(FlagLogFile) {
				cfg.Paths.Log = viper.GetString(FlagLogFile)
			}
			if cmd.Flags().Changed(FlagArtifactDir) {
				cfg.Bootstrap.ArtifactDir = viper.GetString(FlagArtifactDir)
			}
			if cmd.Flags().Changed(FlagSelection) {
				cfg.Bootstrap.Selection = viper.GetString(FlagSelection)
			}
			if cmd.Flags().Changed(FlagRequirements) {
				cfg.Bootstrap.RequirementsFile = viper.GetString(FlagRequirements)
			}

			log, cleanup := setupLogging(logger, logLevel, cfg)
			defer cleanup()

			log.Info("configuring cluster",
				"version", version.Version,
				"artifact_dir", cfg.Bootstrap.ArtifactDir,
				"selection", cfg.Bootstrap.Selection)

			runner := execx.NewExecRunner(log)
			return bootstrap.New(cfg.Bootstrap, runner, log).ConfigureCluster(cmd.Context())
		},
	}

	// Configure command specific flags
	configureCmd.Flags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	configureCmd.Flags().String(FlagConfig, "", "Config file path (default: .gdw-jobs/config.yaml)")
	configureCmd.Flags().String(FlagLogFile, "", "Log file path")
	configureCmd.Flags().String(FlagArtifactDir, "", "Directory scanned for job artifacts")
	configureCmd.Flags().String(FlagSelection, "", "Artifact selection policy (lexical or version)")
	configureCmd.Flags().String(FlagRequirements, "", "Requirements file installed before the artifact")

	configureCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Register all commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configureCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var coder interface{ ExitCode() int }
		if !errors.As(err, &coder) {
			// Exit-coded failures already logged at the point of failure.
			logger.Error("task failed", "error", err)
		}
		os.Exit(exitCode(err))
	}
}
