package raster_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/command"
	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/raster"
)

type stubInspector struct {
	pages int
	err   error
}

func (s stubInspector) PageCount([]byte) (int, error) { return s.pages, s.err }

// pageRunner mimics pdftoppm: it writes prefix-N.png files containing a page marker.
type pageRunner struct {
	pages  int
	pad    int
	err    error
	stderr string
	calls  [][]string
}

func (r *pageRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, args)
	if r.err != nil {
		return nil, []byte(r.stderr), r.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= r.pages; i++ {
		name := fmt.Sprintf("%s-%0*d.png", prefix, r.pad, i)
		if err := os.WriteFile(name, []byte(fmt.Sprintf("PAGE-%d", i)), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func newTestRasterizer(t *testing.T, runner command.Runner, insp raster.Inspector, opts raster.Options) (*raster.Rasterizer, string) {
	t.Helper()
	dir := t.TempDir()
	opts.WorkDir = dir
	tool := &command.Tool{Name: "pdftoppm", Path: "/usr/bin/pdftoppm"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return raster.NewRasterizer(tool, runner, insp, opts, logger), dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "work dir should be cleaned up")
}

func TestRasterizer_Rasterize_PreservesPageOrder(t *testing.T) {
	runner := &pageRunner{pages: 3}
	r, dir := newTestRasterizer(t, runner, stubInspector{pages: 3}, raster.Options{MaxDimension: 2048})

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.7"))

	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, domain.ContentTypePNG, p.ContentType)
		assert.Equal(t, fmt.Sprintf("PAGE-%d", i+1), string(p.Data))
	}
	assertEmptyDir(t, dir)
}

func TestRasterizer_Rasterize_NumericOrderWithPadding(t *testing.T) {
	runner := &pageRunner{pages: 12, pad: 2}
	r, _ := newTestRasterizer(t, runner, stubInspector{pages: 12}, raster.Options{})

	pages, err := r.Rasterize(context.Background(), []byte("%PDF"))

	require.NoError(t, err)
	require.Len(t, pages, 12)
	assert.Equal(t, "PAGE-10", string(pages[9].Data))
	assert.Equal(t, "PAGE-12", string(pages[11].Data))
}

func TestRasterizer_Rasterize_CommandArgs(t *testing.T) {
	runner := &pageRunner{pages: 1}
	r, _ := newTestRasterizer(t, runner, stubInspector{pages: 30}, raster.Options{MaxDimension: 1600, MaxPages: 20})

	_, err := r.Rasterize(context.Background(), []byte("%PDF"))

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	args := runner.calls[0]
	assert.Equal(t, []string{"-png", "-scale-to", "1600", "-f", "1", "-l", "20"}, args[:7])
	assert.Equal(t, "input.pdf", filepath.Base(args[7]))
}

func TestRasterizer_Pages_EarlyBreakCleansUp(t *testing.T) {
	runner := &pageRunner{pages: 3}
	r, dir := newTestRasterizer(t, runner, stubInspector{pages: 3}, raster.Options{})

	var seen int
	for page, err := range r.Pages(context.Background(), []byte("%PDF")) {
		require.NoError(t, err)
		assert.Equal(t, 1, page.Number)
		seen++
		break
	}

	assert.Equal(t, 1, seen)
	assertEmptyDir(t, dir)
}

func TestRasterizer_Rasterize_MissingTool(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &pageRunner{pages: 1}
	r := raster.NewRasterizer(nil, runner, stubInspector{pages: 1}, raster.Options{}, logger)

	_, err := r.Rasterize(context.Background(), []byte("%PDF"))

	assert.False(t, r.Available())
	assert.ErrorIs(t, err, domain.ErrConversion)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Empty(t, runner.calls)
}

func TestRasterizer_Rasterize_MalformedPDF(t *testing.T) {
	runner := &pageRunner{pages: 1}
	r, dir := newTestRasterizer(t, runner, stubInspector{err: errors.New("xref table corrupt")}, raster.Options{})

	_, err := r.Rasterize(context.Background(), []byte("garbage"))

	var ce *domain.ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "inspect", ce.Stage)
	assert.Contains(t, err.Error(), "xref table corrupt")
	assert.Empty(t, runner.calls)
	assertEmptyDir(t, dir)
}

func TestRasterizer_Rasterize_ToolFailure(t *testing.T) {
	runner := &pageRunner{err: errors.New("exit status 1"), stderr: "Syntax Error: Couldn't read xref table"}
	r, dir := newTestRasterizer(t, runner, stubInspector{pages: 2}, raster.Options{})

	_, err := r.Rasterize(context.Background(), []byte("%PDF"))

	assert.ErrorIs(t, err, domain.ErrConversion)
	assert.Contains(t, err.Error(), "Couldn't read xref table")
	assertEmptyDir(t, dir)
}

func TestRasterizer_Rasterize_NoOutput(t *testing.T) {
	runner := &pageRunner{pages: 0}
	r, dir := newTestRasterizer(t, runner, stubInspector{pages: 2}, raster.Options{})

	_, err := r.Rasterize(context.Background(), []byte("%PDF"))

	assert.ErrorIs(t, err, domain.ErrConversion)
	assert.Contains(t, err.Error(), "produced no images")
	assertEmptyDir(t, dir)
}

type slowRunner struct{}

func (slowRunner) Run(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func TestRasterizer_Rasterize_Timeout(t *testing.T) {
	r, dir := newTestRasterizer(t, slowRunner{}, stubInspector{pages: 1}, raster.Options{Timeout: 20 * time.Millisecond})

	_, err := r.Rasterize(context.Background(), []byte("%PDF"))

	assert.ErrorIs(t, err, domain.ErrConversion)
	assert.Contains(t, err.Error(), "timed out")
	assertEmptyDir(t, dir)
}

func TestPDFCPUInspector_RejectsMalformed(t *testing.T) {
	insp := raster.NewPDFCPUInspector()

	_, err := insp.PageCount([]byte("this is not a pdf"))
	assert.Error(t, err)

	_, err = insp.PageCount(nil)
	assert.Error(t, err)
}
