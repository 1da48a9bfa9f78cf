package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Sanitize sweeps an existing output tree with the configured allow-list.
func (r *Runner) Sanitize(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	root := cmd.String("output")
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, root)
	}

	report := sanitizer.New(sanitizer.OptionsFromConfig(config.Sanitize), r.logger).Sweep(root)

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlain("✓ Sanitized %s\n", root)
	r.writePlain("  Files removed:       %d\n", report.FilesRemoved)
	r.writePlain("  Directories removed: %d\n", report.DirsRemoved)
	if report.Failures > 0 {
		r.writePlain("  Failures:            %d (see log)\n", report.Failures)
	}
	return nil
}
