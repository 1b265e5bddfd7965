// Package version records build metadata for the launcher.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/mbenchaliah/gdw-jobs/internal/version.Version=1.2.0
//	-X github.com/mbenchaliah/gdw-jobs/internal/version.GitCommit=$(git rev-parse HEAD)
//	-X github.com/mbenchaliah/gdw-jobs/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	// Version is the semantic version of the launcher.
	Version = "1.0.0-dev"

	// GitCommit is the git commit hash the binary was built from.
	GitCommit = "unknown"

	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)

const (
	// Name is the distribution name of the launcher.
	Name = "gdw-jobs"

	// Description is a one-line summary of what the binary does.
	Description = "cluster bootstrap and ingestion task launcher"
)

// Info contains version and build information.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	GitCommit   string `json:"commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go"`
}

// NewInfo assembles the launcher's build information.
func NewInfo() Info {
	return Info{
		Name:        Name,
		Description: Description,
		Version:     Version,
		GitCommit:   GitCommit,
		BuildDate:   BuildDate,
		GoVersion:   fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the multi-line human-readable version block.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s\n", i.Name, i.Version)
	fmt.Fprintf(&b, "  commit:     %s\n", i.GitCommit)
	fmt.Fprintf(&b, "  build date: %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  go:         %s\n", i.GoVersion)
	return b.String()
}
