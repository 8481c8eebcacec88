package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sfomuseum/go-geotiff-merge/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"
)

type fakeDataset struct {
	info raster.Info
}

func (d *fakeDataset) Info() raster.Info {
	return d.info
}

func (d *fakeDataset) Sample(band int, max_w int, max_h int) (float64, float64, error) {
	return 0.0, 255.0, nil
}

func (d *fakeDataset) Close() error {
	return nil
}

type fakeMosaic struct{}

func (m *fakeMosaic) Transform() [6]float64 {
	return [6]float64{0, 1, 0, 0, 0, -1}
}

func (m *fakeMosaic) Size() (int, int, int) {
	return 200, 100, 3
}

func (m *fakeMosaic) Write(ctx context.Context, path string) error {
	return os.WriteFile(path, []byte("pretend compressed geotiff"), 0644)
}

func (m *fakeMosaic) Reproject(ctx context.Context, path string, target_crs string, progress raster.ProgressFunc) error {
	return os.WriteFile(path, []byte("pretend warped geotiff"), 0644)
}

func (m *fakeMosaic) Close() error {
	return nil
}

type fakeLibrary struct{}

func (l *fakeLibrary) Open(path string) (raster.Dataset, error) {

	info := raster.Info{
		Path:     path,
		Width:    100,
		Height:   100,
		Count:    3,
		DataType: "Byte",
		CRS:      "EPSG:32633",
		Bounds:   raster.Bounds{Left: 8.0, Bottom: 45.0, Right: 12.0, Top: 47.0},
	}

	return &fakeDataset{info: info}, nil
}

func (l *fakeLibrary) Merge(datasets []raster.Dataset) (raster.Mosaic, error) {

	if len(datasets) == 0 {
		return nil, fmt.Errorf("Nothing to merge")
	}

	return &fakeMosaic{}, nil
}

func (l *fakeLibrary) Reproject(ctx context.Context, ds raster.Dataset, path string, target_crs string, progress raster.ProgressFunc) error {
	return os.WriteFile(path, []byte("pretend warped geotiff"), 0644)
}

func (l *fakeLibrary) SameCRS(a string, b string) bool {
	return a == b
}

// lockedBuffer keeps the race detector happy while the live log sink and the
// main flow both print to the same place.
type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func runScripted(t *testing.T, dir string, script string) string {

	ctx := context.Background()

	out := new(lockedBuffer)

	opts := &RunOptions{
		SourceURI: dir,
		Library:   &fakeLibrary{},
		In:        strings.NewReader(script),
		Out:       out,
	}

	err := Run(ctx, opts)
	require.NoError(t, err)

	return out.String()
}

func seedRasters(t *testing.T) string {

	dir := t.TempDir()

	for _, name := range []string{"tile_01.tif", "tile_02.tif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake tile"), 0644))
	}

	return dir
}

func TestRunMergeOnly(t *testing.T) {

	dir := seedRasters(t)

	// select all, merge only, default output name, press enter to exit
	printed := runScripted(t, dir, "A\n1\n\n\n")

	assert.Contains(t, printed, "tile_01.tif")
	assert.Contains(t, printed, "Merging files...")
	assert.Contains(t, printed, "PROCESSING COMPLETE!")
	assert.Contains(t, printed, "merged_result.tif")

	body, err := os.ReadFile(filepath.Join(dir, "merged_result.tif"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pretend compressed geotiff"), body)
}

func TestRunMergeAndReprojectAutoUTM(t *testing.T) {

	dir := seedRasters(t)

	// select all, both, custom output name, auto-UTM, press enter
	printed := runScripted(t, dir, "A\n3\nmy_mosaic.tif\n2\n\n")

	assert.Contains(t, printed, "STARTING PROCESSING...")

	// the sources claim EPSG:32633 but the centroid resolves to zone 32,
	// so the mosaic goes through reprojection

	body, err := os.ReadFile(filepath.Join(dir, "my_mosaic.tif"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pretend warped geotiff"), body)
}

func TestRunQuitAtSelection(t *testing.T) {

	dir := seedRasters(t)

	printed := runScripted(t, dir, "Q\n")

	assert.Contains(t, printed, "Operation cancelled by user")
	assert.NoFileExists(t, filepath.Join(dir, "merged_result.tif"))
}

func TestRunNothingToProcess(t *testing.T) {

	dir := t.TempDir()

	printed := runScripted(t, dir, "\n")

	assert.Contains(t, printed, "No GeoTIFF files found")
}

func TestRunInterruptAtSelectionPrompt(t *testing.T) {

	dir := seedRasters(t)

	// a pipe with nothing written models a user who never answers
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := new(lockedBuffer)

	opts := &RunOptions{
		SourceURI: dir,
		Library:   &fakeLibrary{},
		In:        pr,
		Out:       out,
	}

	done_ch := make(chan error)

	go func() {
		done_ch <- Run(ctx, opts)
	}()

	// wait for the run to block at the selection prompt before interrupting
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Your choice")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done_ch:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run still blocked after cancellation")
	}

	assert.NoFileExists(t, filepath.Join(dir, "merged_result.tif"))
}

func TestRunRefusedOverwrite(t *testing.T) {

	dir := seedRasters(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "merged_result.tif"), []byte("precious"), 0644))

	printed := runScripted(t, dir, "A\n1\n\nn\n")

	assert.Contains(t, printed, "Overwrite?")
	assert.Contains(t, printed, "Operation cancelled - file exists")

	body, err := os.ReadFile(filepath.Join(dir, "merged_result.tif"))
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), body)
}
