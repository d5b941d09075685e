package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

const maxStderrLog = 8 << 10

// Runner executes an external program. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs programs with os/exec and logs their outcome.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err = cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("command.Run: exec failed",
			"cmd", name,
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), maxStderrLog),
		)
	} else {
		r.logger.Debug("command.Run: exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
			"stderr_bytes", errb.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// Tool is an external binary located once at process start.
type Tool struct {
	Name string
	Path string
}

// Resolve locates name on PATH (or verifies it when name is a path).
// It returns an error wrapping domain.ErrToolNotFound when the binary is absent.
func Resolve(name string) (*Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("empty tool name: %w", domain.ErrToolNotFound)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, exec.ErrDot) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrToolNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %v", name, domain.ErrToolNotFound, err)
	}
	return &Tool{Name: name, Path: path}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
