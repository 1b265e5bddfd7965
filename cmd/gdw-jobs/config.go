package main

// Flag names for Viper binding
const (
	// Configure command flags
	FlagVerbose      = "verbose"
	FlagConfig       = "config"
	FlagLogFile      = "log-file"
	FlagArtifactDir  = "artifact-dir"
	FlagSelection    = "selection"
	FlagRequirements = "requirements"

	// Output format flags
	FlagJSON = "json"
)
