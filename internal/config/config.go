// Package config provides configuration types and defaults for gdw-jobs.
package config

// Config holds all configuration for the launcher.
type Config struct {
	Bootstrap   BootstrapConfig   `yaml:"bootstrap" mapstructure:"bootstrap"`
	Ingest      IngestConfig      `yaml:"ingest" mapstructure:"ingest"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// BootstrapConfig holds cluster bootstrap settings.
type BootstrapConfig struct {
	ArtifactDir      string   `yaml:"artifact_dir" mapstructure:"artifact_dir"`           // Directory scanned for installable artifacts
	ArtifactSuffix   string   `yaml:"artifact_suffix" mapstructure:"artifact_suffix"`     // Filename suffix identifying artifacts
	Selection        string   `yaml:"selection" mapstructure:"selection"`                 // Artifact ordering: "lexical" or "version"
	RequirementsFile string   `yaml:"requirements_file" mapstructure:"requirements_file"` // Baseline dependency manifest
	PythonBin        string   `yaml:"python_bin" mapstructure:"python_bin"`
	InstallerBin     string   `yaml:"installer_bin" mapstructure:"installer_bin"`
	Entrypoints      []string `yaml:"entrypoints" mapstructure:"entrypoints"`             // Console entrypoints verified after install
	RequiredBinaries []string `yaml:"required_binaries" mapstructure:"required_binaries"` // Extra host binaries checked before bootstrap
	RequiredEnvVars  []string `yaml:"required_env_vars" mapstructure:"required_env_vars"` // Host env vars checked before bootstrap
}

// IngestConfig holds settings for forwarding tasks to the ingestor.
type IngestConfig struct {
	Binary    string   `yaml:"binary" mapstructure:"binary"`
	Detach    bool     `yaml:"detach" mapstructure:"detach"`         // Launch fire-and-forget instead of waiting
	PairFlags []string `yaml:"pair_flags" mapstructure:"pair_flags"` // Flags whose values must parse as pair lists
}

// PathsConfig holds file paths for launcher logs.
type PathsConfig struct {
	Log string `yaml:"log" mapstructure:"log"` // Empty = log to stderr only
}

// LogRotationConfig holds settings for log file rotation
// (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config matching the historical launcher behavior.
func Default() *Config {
	return &Config{
		Bootstrap: BootstrapConfig{
			ArtifactDir:      ".",
			ArtifactSuffix:   ".whl",
			Selection:        "lexical",
			RequirementsFile: "requirements/requirements.txt",
			PythonBin:        "python",
			InstallerBin:     "pip",
			Entrypoints:      []string{"ingestor"},
			RequiredBinaries: []string{},
			RequiredEnvVars:  []string{},
		},
		Ingest: IngestConfig{
			Binary:    "ingestor",
			Detach:    false,
			PairFlags: []string{"--join-columns", "--mapping-columns"},
		},
		Paths: PathsConfig{
			Log: "",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
