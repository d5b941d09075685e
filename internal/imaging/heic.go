package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/command"
)

// HEICConverter converts HEIC images to PNG with magick, heif-convert or sips.
type HEICConverter struct {
	tool    *command.Tool
	runner  command.Runner
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewHEICConverter validates that tool is a supported converter.
func NewHEICConverter(tool *command.Tool, runner command.Runner, workDir string, timeout time.Duration, logger *slog.Logger) (*HEICConverter, error) {
	switch filepath.Base(tool.Name) {
	case "magick", "heif-convert", "sips":
	default:
		return nil, fmt.Errorf("unsupported HEIC converter %q: use one of magick | heif-convert | sips", tool.Name)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HEICConverter{tool: tool, runner: runner, workDir: workDir, timeout: timeout, logger: logger}, nil
}

func (c *HEICConverter) Convert(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(c.workDir, "heic-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			c.logger.Warn("imaging.Convert: failed to remove work dir", "dir", dir, "error", rmErr)
		}
	}()

	in := filepath.Join(dir, "input.heic")
	out := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var args []string
	switch filepath.Base(c.tool.Name) {
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		args = []string{in, out}
	}
	if _, stderr, err := c.runner.Run(runCtx, c.tool.Path, args...); err != nil {
		return nil, fmt.Errorf("%s convert failed: %w: %s", c.tool.Name, err, truncate(string(stderr), 500))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	return png, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
