// Package ingest forwards task invocations to the external ingestor
// executable.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mbenchaliah/gdw-jobs/internal/config"
	"github.com/mbenchaliah/gdw-jobs/internal/execx"
	"github.com/mbenchaliah/gdw-jobs/internal/pairlist"
	"github.com/mbenchaliah/gdw-jobs/internal/preflight"
)

// Forwarder hands complete task argument lists to the ingestor binary.
// Arguments are never reordered, rewritten, or partially consumed.
type Forwarder struct {
	bin       string
	detach    bool
	pairFlags []string
	runner    execx.Runner
	logger    *slog.Logger
}

// NewForwarder creates a Forwarder. If logger is nil, slog.Default() is used.
func NewForwarder(cfg config.IngestConfig, runner execx.Runner, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		bin:       cfg.Binary,
		detach:    cfg.Detach,
		pairFlags: cfg.PairFlags,
		runner:    runner,
		logger:    logger,
	}
}

// Forward runs the ingestor with args exactly as received. The child
// shares the launcher's standard streams and its exit code propagates
// unchanged. In detach mode the launch is fire-and-forget: the call
// returns as soon as the child has started and nothing further is
// observed.
func (f *Forwarder) Forward(ctx context.Context, args []string) error {
	if err := preflight.Require(f.logger, "ingest", preflight.Requirements{
		Binaries: []string{f.bin},
	}); err != nil {
		return err
	}
	if err := f.checkPairFlags(args); err != nil {
		return err
	}

	cmd := execx.New(f.bin, args...)

	if f.detach {
		h, err := f.runner.Detach(cmd)
		if err != nil {
			return fmt.Errorf("detach ingestor: %w", err)
		}
		f.logger.Info("ingestor launched detached", "pid", h.PID)
		return nil
	}

	_, err := f.runner.Run(ctx, cmd)
	return err
}

// checkPairFlags validates the syntax of configured pair-list flag values
// before launch. Values are forwarded byte for byte; this only rejects
// input the ingestion tooling would choke on after the task is already
// running remotely. Both "--flag value" and "--flag=value" spellings are
// recognized.
func (f *Forwarder) checkPairFlags(args []string) error {
	for i, arg := range args {
		for _, flag := range f.pairFlags {
			var value string
			switch {
			case arg == flag:
				if i+1 >= len(args) {
					return fmt.Errorf("%s: missing value", flag)
				}
				value = args[i+1]
			case strings.HasPrefix(arg, flag+"="):
				value = strings.TrimPrefix(arg, flag+"=")
			default:
				continue
			}
			if _, err := pairlist.Parse(value); err != nil {
				return fmt.Errorf("%s: %w", flag, err)
			}
		}
	}
	return nil
}
