package tasks

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/desertthunder/nifx/internal/volume"
)

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	Layout  shared.LayoutConfig
	Decoder volume.Decoder // defaults to [volume.DICOMDecoder]
	Encoder volume.Encoder // defaults to [volume.NIfTIEncoder]
	Logger  *log.Logger
	Timeout time.Duration // per-unit deadline; zero disables it
}

// Pipeline runs the five stages for one unit at a time. It holds no per-unit state,
// so one Pipeline can be shared by every worker.
type Pipeline struct {
	layout  shared.LayoutConfig
	decoder volume.Decoder
	encoder volume.Encoder
	logger  *log.Logger
	timeout time.Duration
	remove  func(string) error
}

// NewPipeline creates a Pipeline, filling unset collaborators with the DICOM decoder and NIfTI encoder.
func NewPipeline(opts PipelineOpts) *Pipeline {
	if opts.Decoder == nil {
		opts.Decoder = volume.NewDICOMDecoder()
	}
	if opts.Encoder == nil {
		opts.Encoder = volume.NewNIfTIEncoder()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Pipeline{
		layout:  opts.Layout,
		decoder: opts.Decoder,
		encoder: opts.Encoder,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		remove:  os.Remove,
	}
}

// Process runs materialize, extract, validate, convert and finalize for u and returns exactly one outcome.
//
// Failures in extract, validate and convert remove the staging directory. Finalize is best effort:
// its failures become warnings on a Completed outcome. Cancelling ctx does not interrupt a unit
// that has started; only the per-unit timeout does.
func (p *Pipeline) Process(ctx context.Context, u models.Unit) (out models.Outcome) {
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	ctx = context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger := shared.WithLogger(p.logger, "unit", u.Key())
	staging := u.StagingDir()

	// Nothing has been written yet, so an expired deadline leaves any existing staging dir alone.
	if err := ctx.Err(); err != nil {
		return models.NewTimeout(u, models.StageMaterialize, timeoutErr(models.StageMaterialize, err))
	}

	logger.Debug("materializing", "stage", models.StageMaterialize)
	archiveCopy, err := p.materialize(u, staging)
	if err != nil {
		return models.NewCopyFailure(u, models.StageMaterialize, err)
	}

	if o, expired := p.checkDeadline(ctx, logger, u, models.StageExtract, staging); expired {
		return o
	}
	logger.Debug("extracting", "stage", models.StageExtract)
	extractErr, removeErr := expand(archiveCopy, staging)
	if extractErr != nil {
		p.teardown(logger, staging)
		return models.NewCorruptArchive(u, extractErr)
	}
	if removeErr != nil {
		p.teardown(logger, staging)
		return models.NewCopyFailure(u, models.StageExtract, fmt.Errorf("%w: remove archive copy: %v", shared.ErrCopy, removeErr))
	}

	if o, expired := p.checkDeadline(ctx, logger, u, models.StageValidate, staging); expired {
		return o
	}
	logger.Debug("validating", "stage", models.StageValidate)
	frames, err := collectFrames(staging, p.layout.FrameExt)
	if err != nil {
		p.teardown(logger, staging)
		return models.NewNoDecodable(u, fmt.Errorf("%w: %v", shared.ErrNoDecodable, err))
	}
	if len(frames) == 0 {
		p.teardown(logger, staging)
		return models.NewNoDecodable(u, fmt.Errorf("%w: no %s files", shared.ErrNoDecodable, p.layout.FrameExt))
	}

	if o, expired := p.checkDeadline(ctx, logger, u, models.StageConvert, staging); expired {
		return o
	}
	logger.Debug("converting", "stage", models.StageConvert, "frames", len(frames))
	if err := p.convert(ctx, u, staging, frames); err != nil {
		p.teardown(logger, staging)
		if errors.Is(err, context.DeadlineExceeded) {
			return models.NewTimeout(u, models.StageConvert, timeoutErr(models.StageConvert, err))
		}
		return models.NewConversionFailure(u, err)
	}

	logger.Debug("finalizing", "stage", models.StageFinalize)
	return models.NewCompleted(u, p.finalize(logger, u, staging, frames))
}

// materialize creates the staging directory and copies the archive into it.
func (p *Pipeline) materialize(u models.Unit, staging string) (string, error) {
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("%w: create staging directory: %v", shared.ErrCopy, err)
	}
	dst := filepath.Join(staging, u.UnitID+p.layout.ArchiveExt)
	if err := shared.CopyFile(u.ArchivePath(p.layout.ArchiveExt), dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *Pipeline) convert(ctx context.Context, u models.Unit, staging string, frames []string) error {
	vol, err := p.decoder.Decode(ctx, frames)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrConversion, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(staging, u.UnitID+p.layout.VolumeExt)
	if err := p.encoder.Encode(vol, dst); err != nil {
		os.Remove(dst)
		return fmt.Errorf("%w: %w", shared.ErrConversion, err)
	}
	return nil
}

// finalize deletes the raw frames and copies the sidecar. Failures are collected, never returned.
func (p *Pipeline) finalize(logger *log.Logger, u models.Unit, staging string, frames []string) []string {
	var warnings []string
	for _, f := range frames {
		if err := p.remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to delete frame", "stage", models.StageFinalize, "path", f, "error", err)
			warnings = append(warnings, fmt.Sprintf("delete %s: %v", f, err))
		}
	}

	src := u.SidecarPath(p.layout.SidecarExt)
	dst := filepath.Join(staging, u.UnitID+p.layout.SidecarExt)
	if err := shared.CopyFile(src, dst); err != nil {
		logger.Warn("failed to copy sidecar", "stage", models.StageFinalize, "error", err)
		warnings = append(warnings, err.Error())
	}
	return warnings
}

// checkDeadline tears down staging and builds a timeout outcome once the unit deadline has passed.
func (p *Pipeline) checkDeadline(ctx context.Context, logger *log.Logger, u models.Unit, next models.Stage, staging string) (models.Outcome, bool) {
	err := ctx.Err()
	if err == nil {
		return models.Outcome{}, false
	}
	p.teardown(logger, staging)
	return models.NewTimeout(u, next, timeoutErr(next, err)), true
}

func (p *Pipeline) teardown(logger *log.Logger, staging string) {
	if err := os.RemoveAll(staging); err != nil {
		logger.Warn("failed to remove staging directory", "path", staging, "error", err)
	}
}

func timeoutErr(stage models.Stage, err error) error {
	return fmt.Errorf("%w: before %s: %v", shared.ErrUnitTimeout, stage, err)
}

// expand extracts archive into dir. The archive is removed on every return path;
// a failure to remove it is reported separately from the extraction result.
func expand(archive, dir string) (extractErr, removeErr error) {
	defer func() {
		if err := os.Remove(archive); err != nil && !errors.Is(err, fs.ErrNotExist) {
			removeErr = err
		}
	}()
	return extractZip(archive, dir), nil
}

func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCorruptArchive, err)
	}
	defer zr.Close()

	root := filepath.Clean(dir)
	for _, f := range zr.File {
		if err := extractEntry(f, root); err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrCorruptArchive, f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, root string) error {
	target := filepath.Join(root, f.Name)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("entry escapes the staging directory")
	}

	mode := f.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, 0755)
	case !mode.IsRegular():
		// Links and devices are never deliverables.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// collectFrames returns every regular file under dir whose name ends with ext, ignoring case, in lexical order.
func collectFrames(dir, ext string) ([]string, error) {
	var frames []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && shared.HasSuffixFold(d.Name(), ext) {
			frames = append(frames, path)
		}
		return nil
	})
	return frames, err
}
