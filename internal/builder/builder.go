package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/toastate/homeservice/internal/tlogger"
)

// Build cleans the build directory and runs every step of the plan. The first
// failing step aborts the build and its error is returned as is.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()

	if err := b.clean(ctx); err != nil {
		return nil, err
	}

	tlogger.Info("msg", "Building started", "profile", b.plan.Profile, "path", b.buildDir)

	res := &Result{}

	bundle, err := b.bundle(ctx)
	if err != nil {
		return nil, err
	}
	res.Hash = bundle.hash
	res.Chunks = bundle.chunks
	res.Assets = bundle.assets

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := b.copyPatterns(); err != nil {
		return nil, err
	}

	pages, err := b.buildPages(ctx, bundle)
	if err != nil {
		return nil, err
	}
	res.Pages = pages

	res.Duration = time.Since(start)
	tlogger.Info("msg", "Building finished", "path", b.buildDir, "hash", res.Hash, "pages", len(res.Pages), "size", humanize.Bytes(dirSize(b.buildDir)), "duration", res.Duration)
	return res, nil
}

// clean removes everything a previous run left in the build directory
func (b *Builder) clean(ctx context.Context) error {
	if err := b.checkBuildDir(); err != nil {
		return err
	}

	// removal races with editors and the dev server holding files open
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, os.RemoveAll(b.buildDir)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(20*time.Millisecond)), backoff.WithMaxTries(3))
	if err != nil {
		tlogger.Error("msg", "Failed to remove build folder", "path", b.buildDir, "err", err)
		return err
	}

	err = os.MkdirAll(b.buildDir, 0755)
	if err != nil {
		tlogger.Error("msg", "Failed to create build folder", "path", b.buildDir, "err", err)
		return err
	}
	return nil
}

func (b *Builder) checkBuildDir() error {
	out, err := filepath.Abs(b.buildDir)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(b.rootFolder)
	if err != nil {
		return err
	}
	if out == root || strings.HasPrefix(root, out+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s contains the project", ErrUnsafeOutput, b.buildDir)
	}
	if b.plan.SourceDir != "" {
		src, err := filepath.Abs(b.path(b.plan.SourceDir))
		if err != nil {
			return err
		}
		if out == src || strings.HasPrefix(src, out+string(filepath.Separator)) || strings.HasPrefix(out, src+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s overlaps the source directory", ErrUnsafeOutput, b.buildDir)
		}
	}
	return nil
}

// dirSize sums the regular files below dir, errors count as zero
func dirSize(dir string) uint64 {
	var total uint64
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
