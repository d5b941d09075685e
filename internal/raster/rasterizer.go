package raster

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/command"
	"github.com/wasilisafish/proposal-builder/internal/domain"
)

const pagePrefix = "page"

// Options tunes rasterization output.
type Options struct {
	MaxDimension int
	MaxPages     int
	Timeout      time.Duration
	WorkDir      string
}

// Rasterizer renders PDF pages to PNG images through an external tool.
// Each invocation works in its own temporary directory, removed on every path.
type Rasterizer struct {
	tool      *command.Tool
	runner    command.Runner
	inspector Inspector
	opts      Options
	logger    *slog.Logger
}

// NewRasterizer creates a Rasterizer. A nil tool means the rendering binary was
// not found at startup; every call then fails with a ConversionError.
func NewRasterizer(tool *command.Tool, runner command.Runner, inspector Inspector, opts Options, logger *slog.Logger) *Rasterizer {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 2048
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Rasterizer{
		tool:      tool,
		runner:    runner,
		inspector: inspector,
		opts:      opts,
		logger:    logger,
	}
}

// Available reports whether the rendering tool was resolved.
func (r *Rasterizer) Available() bool {
	return r.tool != nil
}

// Rasterize renders every page and returns them in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]domain.PageImage, error) {
	var pages []domain.PageImage
	for page, err := range r.Pages(ctx, pdf) {
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// Pages renders the PDF and yields one image per page in page order. Images are
// read from disk as the sequence is consumed. The sequence is single-use; the
// working directory is removed when iteration ends, including on early break.
func (r *Rasterizer) Pages(ctx context.Context, pdf []byte) iter.Seq2[domain.PageImage, error] {
	return func(yield func(domain.PageImage, error) bool) {
		if r.tool == nil {
			yield(domain.PageImage{}, &domain.ConversionError{Stage: "rasterize", Cause: domain.ErrToolNotFound})
			return
		}

		count, err := r.inspector.PageCount(pdf)
		if err != nil {
			yield(domain.PageImage{}, &domain.ConversionError{Stage: "inspect", Cause: err})
			return
		}
		last := count
		if r.opts.MaxPages > 0 && count > r.opts.MaxPages {
			r.logger.Warn("raster.Pages: truncating long document",
				"pages", count,
				"max_pages", r.opts.MaxPages,
			)
			last = r.opts.MaxPages
		}

		dir, err := os.MkdirTemp(r.opts.WorkDir, "raster-*")
		if err != nil {
			yield(domain.PageImage{}, &domain.ConversionError{Stage: "rasterize", Cause: err})
			return
		}
		defer func() {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				r.logger.Warn("raster.Pages: failed to remove work dir", "dir", dir, "error", rmErr)
			}
		}()

		files, err := r.render(ctx, dir, pdf, last)
		if err != nil {
			yield(domain.PageImage{}, &domain.ConversionError{Stage: "rasterize", Cause: err})
			return
		}

		for _, f := range files {
			data, err := os.ReadFile(f.path)
			if err != nil {
				yield(domain.PageImage{}, &domain.ConversionError{Stage: "rasterize", Cause: err})
				return
			}
			page := domain.PageImage{Number: f.number, ContentType: domain.ContentTypePNG, Data: data}
			if !yield(page, nil) {
				return
			}
		}
	}
}

type pageFile struct {
	number int
	path   string
}

func (r *Rasterizer) render(ctx context.Context, dir string, pdf []byte, last int) ([]pageFile, error) {
	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(dir, pagePrefix)

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	// pdftoppm -png -scale-to <px> -f 1 -l <last> <in.pdf> <dir/page>
	_, stderr, err := r.runner.Run(runCtx, r.tool.Path,
		"-png",
		"-scale-to", strconv.Itoa(r.opts.MaxDimension),
		"-f", "1",
		"-l", strconv.Itoa(last),
		in, prefix,
	)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s", r.tool.Name, r.opts.Timeout)
		}
		msg := strings.TrimSpace(string(stderr))
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", r.tool.Name, err, truncate(msg, 500))
		}
		return nil, fmt.Errorf("%s: %w", r.tool.Name, err)
	}

	files, err := collectPages(prefix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s produced no images", r.tool.Name)
	}
	return files, nil
}

// collectPages finds prefix-N.png outputs and orders them by N. The tool
// zero-pads N depending on the page count, so lexical order is not relied on.
func collectPages(prefix string) ([]pageFile, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	files := make([]pageFile, 0, len(matches))
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(m, prefix+"-"), ".png")
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		files = append(files, pageFile{number: n, path: m})
	}
	slices.SortFunc(files, func(a, b pageFile) int { return a.number - b.number })
	return files, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
