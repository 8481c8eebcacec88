package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sfomuseum/go-geotiff-merge/operations/gather"
	"github.com/sfomuseum/go-geotiff-merge/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {

	indices, ok := ParseSelection("1,3,5", 5, nil)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2, 4}, indices)

	indices, ok = ParseSelection("1-3", 5, nil)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, indices)

	indices, ok = ParseSelection("2, 4-5", 5, nil)
	require.True(t, ok)
	assert.Equal(t, []int{1, 3, 4}, indices)

	// duplicates are permitted and order is preserved
	indices, ok = ParseSelection("3,1,3", 5, nil)
	require.True(t, ok)
	assert.Equal(t, []int{2, 0, 2}, indices)
}

func TestParseSelectionOutOfRange(t *testing.T) {

	warnings := make([]string, 0)

	warn := func(msg string) {
		warnings = append(warnings, msg)
	}

	// a single out-of-range index is dropped with a warning, and the now
	// empty selection reports not-ok so the caller falls back to all files
	indices, ok := ParseSelection("9", 5, warn)
	assert.False(t, ok)
	assert.Nil(t, indices)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "#9")

	// in-range survivors keep the selection valid
	indices, ok = ParseSelection("2,9", 5, warn)
	require.True(t, ok)
	assert.Equal(t, []int{1}, indices)
	assert.Len(t, warnings, 2)
}

func TestParseSelectionMalformed(t *testing.T) {

	for _, expr := range []string{"abc", "1,x", "-3", "2-a", ""} {
		_, ok := ParseSelection(expr, 5, nil)
		assert.False(t, ok, "expected %q to be rejected", expr)
	}
}

func listing(names ...string) []*gather.GatherRastersResponse {

	rasters := make([]*gather.GatherRastersResponse, len(names))

	for i, name := range names {
		rasters[i] = &gather.GatherRastersResponse{
			Path: name,
			Size: 1024,
		}
	}

	return rasters
}

func TestSelectFilesAll(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("a\n"), &out)

	rasters := listing("a.tif", "b.tif", "c.tif")

	selected, cancelled, err := p.SelectFiles(ctx, rasters, nil)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, rasters, selected)
}

func TestSelectFilesQuit(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("Q\n"), &out)

	selected, cancelled, err := p.SelectFiles(ctx, listing("a.tif"), nil)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Nil(t, selected)
}

func TestSelectFilesExpression(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("1,3\n"), &out)

	rasters := listing("a.tif", "b.tif", "c.tif")

	selected, cancelled, err := p.SelectFiles(ctx, rasters, nil)
	require.NoError(t, err)
	assert.False(t, cancelled)
	require.Len(t, selected, 2)
	assert.Equal(t, "a.tif", selected[0].Path)
	assert.Equal(t, "c.tif", selected[1].Path)
}

func TestSelectFilesMalformedFallsBackToAll(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("abc\n"), &out)

	warnings := make([]string, 0)

	warn := func(msg string) {
		warnings = append(warnings, msg)
	}

	rasters := listing("a.tif", "b.tif", "c.tif")

	selected, cancelled, err := p.SelectFiles(ctx, rasters, warn)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, rasters, selected)

	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "using ALL files")
}

func TestSelectFilesListingDegradesGracefully(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("A\n"), &out)

	rasters := listing("ok.tif", "broken.tif")

	rasters[0].Info = &raster.Info{
		Width:  512,
		Height: 256,
		CRS:    "EPSG:4326",
	}

	_, _, err := p.SelectFiles(ctx, rasters, nil)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "512")
	assert.Contains(t, out.String(), "(Cannot read)")
}

func TestSelectFilesTruncatesNamesByRune(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("A\n"), &out)

	// rune 40 is multibyte, so a byte-level truncation at 40 would cut it
	// mid-sequence
	long := strings.Repeat("a", 39) + "日本語の地図.tif"

	_, _, err := p.SelectFiles(ctx, listing(long), nil)
	require.NoError(t, err)

	printed := out.String()

	assert.True(t, utf8.ValidString(printed))
	assert.Contains(t, printed, strings.Repeat("a", 39)+"日")
	assert.NotContains(t, printed, "日本")
}

func TestSelectFilesCancelledMidPrompt(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a pipe with nothing written models a user who never answers
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	p := NewPrompter(pr, &out)

	done_ch := make(chan error)

	go func() {
		_, _, err := p.SelectFiles(ctx, listing("a.tif"), nil)
		done_ch <- err
	}()

	cancel()

	select {
	case err := <-done_ch:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("SelectFiles still blocked after cancellation")
	}
}

func TestProcessingModeRepromptsUntilValid(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("7\nx\n3\n"), &out)

	mode, err := p.ProcessingMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, mode)
	assert.Contains(t, out.String(), "Please enter 1, 2, 3, or 4")
}

func TestTargetCRSMenu(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer

	p := NewPrompter(strings.NewReader("1\n"), &out)
	target, err := p.TargetCRS(ctx)
	require.NoError(t, err)
	assert.Equal(t, raster.WGS84, target)

	p = NewPrompter(strings.NewReader("2\n"), &out)
	target, err = p.TargetCRS(ctx)
	require.NoError(t, err)
	assert.Equal(t, raster.TargetAutoUTM, target.Kind)

	p = NewPrompter(strings.NewReader("3\n3857\n"), &out)
	target, err = p.TargetCRS(ctx)
	require.NoError(t, err)
	assert.Equal(t, raster.TargetCustom, target.Kind)
	assert.Equal(t, "EPSG:3857", target.Code)

	p = NewPrompter(strings.NewReader("4\n"), &out)
	target, err = p.TargetCRS(ctx)
	require.NoError(t, err)
	assert.Equal(t, raster.TargetKeepOriginal, target.Kind)
}

func TestOutputNameDefault(t *testing.T) {

	ctx := context.Background()

	var out bytes.Buffer

	p := NewPrompter(strings.NewReader("\n"), &out)
	name, err := p.OutputName(ctx, "merged_result.tif")
	require.NoError(t, err)
	assert.Equal(t, "merged_result.tif", name)

	p = NewPrompter(strings.NewReader("custom.tif\n"), &out)
	name, err = p.OutputName(ctx, "merged_result.tif")
	require.NoError(t, err)
	assert.Equal(t, "custom.tif", name)
}
