package command_test

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/command"
	"github.com/wasilisafish/proposal-builder/internal/domain"
)

func TestResolve_Missing(t *testing.T) {
	tool, err := command.Resolve("definitely-not-a-real-binary-7c1f")

	assert.Nil(t, tool)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestResolve_Empty(t *testing.T) {
	_, err := command.Resolve("")

	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestResolve_Found(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX shell")
	}

	tool, err := command.Resolve("sh")

	require.NoError(t, err)
	assert.Equal(t, "sh", tool.Name)
	assert.NotEmpty(t, tool.Path)
}

func TestExecRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX shell")
	}
	r := command.NewExecRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))

	out, errb, err := r.Run(context.Background(), "sh", "-c", "printf hello; printf oops >&2")

	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, "oops", string(errb))
}

func TestExecRunner_Run_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX shell")
	}
	r := command.NewExecRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, errb, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")

	require.Error(t, err)
	assert.Contains(t, string(errb), "broken")
}
