// Package process drives the raster library through the three processing
// call sequences: merge-only, reproject-only and merge-then-reproject. Each
// operation logs its milestones through the live log sink, returns an error
// on failure rather than panicking past this boundary, and closes every
// dataset it opens on both success and failure paths.
package process

import (
	"context"
	"fmt"

	"github.com/sfomuseum/go-geotiff-merge/livelog"
	"github.com/sfomuseum/go-geotiff-merge/raster"
	"gocloud.dev/blob"
)

// ProcessOptions is a struct containing the collaborators shared by the
// processing operations.
type ProcessOptions struct {
	// The raster library doing the actual merging and reprojection.
	Library raster.Library
	// The bucket holding source files and receiving the output.
	Bucket *blob.Bucket
	// The live log sink progress is reported to.
	Logs *livelog.Sink
	// Resolve maps a bucket key to a path the raster library can open.
	Resolve func(string) string
}

// Merge mosaics the selected files in to a single compressed GeoTIFF at
// output. The first file takes precedence where sources overlap.
func Merge(ctx context.Context, opts *ProcessOptions, files []string, output string) error {

	opts.Logs.Log("Starting MERGE ONLY: %d files -> %s", len(files), output)

	mosaic, datasets, err := openAndMerge(ctx, opts, files)

	if err != nil {
		opts.Logs.Error("Merge failed: %s", err)
		return err
	}

	defer closeAll(datasets)
	defer mosaic.Close()

	opts.Logs.Log("Saving to %s...", output)

	err = mosaic.Write(ctx, opts.Resolve(output))

	if err != nil {
		opts.Logs.Error("Merge failed: %s", err)
		return err
	}

	return nil
}

// Reproject warps a single file in to target and writes a compressed GeoTIFF
// at output. When target resolves to the source's own CRS the file is copied
// byte-for-byte instead; reprojecting a raster already in the target CRS is
// wasted work and risks resampling artifacts. This operation takes exactly
// one input file. Extra files are ignored with a warning, not merged.
func Reproject(ctx context.Context, opts *ProcessOptions, files []string, output string, target raster.TargetCRS) error {

	if len(files) == 0 {
		err := fmt.Errorf("Nothing to reproject")
		opts.Logs.Error("Reproject failed: %s", err)
		return err
	}

	if len(files) > 1 {
		opts.Logs.Warn("Reproject only works with ONE file. Using first file.")
	}

	input := files[0]

	opts.Logs.Log("Starting REPROJECT ONLY: %s -> %s", input, target)

	ds, err := opts.Library.Open(opts.Resolve(input))

	if err != nil {
		opts.Logs.Error("Reproject failed: %s", err)
		return err
	}

	defer ds.Close()

	info := ds.Info()

	opts.Logs.Log("Source: %d×%d, CRS: %s", info.Width, info.Height, raster.CRSDisplay(info.CRS))

	// "keep original" short-circuits before resolution so a source without
	// any CRS can still be copied through.

	if target.Kind == raster.TargetKeepOriginal {
		return copyThrough(ctx, opts, input, output)
	}

	resolved, err := raster.ResolveTargetCRS(target, info)

	if err != nil {
		opts.Logs.Error("Reproject failed: %s", err)
		return err
	}

	if opts.Library.SameCRS(resolved, info.CRS) {
		return copyThrough(ctx, opts, input, output)
	}

	opts.Logs.Log("Calculating transform...")
	opts.Logs.Log("Reprojecting bands...")

	err = opts.Library.Reproject(ctx, ds, opts.Resolve(output), resolved, bandProgress(opts.Logs))

	if err != nil {
		opts.Logs.Error("Reproject failed: %s", err)
		return err
	}

	return nil
}

// MergeReproject mosaics the selected files and then warps the mosaic in to
// the resolved target CRS. The first file supplies the reference CRS and
// bounds; when the directive resolves to that CRS the mosaic is written
// directly with the merge-produced transform and no reprojection happens.
func MergeReproject(ctx context.Context, opts *ProcessOptions, files []string, output string, target raster.TargetCRS) error {

	opts.Logs.Log("Starting MERGE & REPROJECT: %d files -> %s", len(files), target)

	mosaic, datasets, err := openAndMerge(ctx, opts, files)

	if err != nil {
		opts.Logs.Error("Processing failed: %s", err)
		return err
	}

	defer closeAll(datasets)
	defer mosaic.Close()

	first := datasets[0].Info()

	resolved, err := raster.ResolveTargetCRS(target, first)

	if err != nil {
		opts.Logs.Error("Processing failed: %s", err)
		return err
	}

	switch target.Kind {
	case raster.TargetAutoUTM:
		opts.Logs.Log("Auto-selected: %s", resolved)
	case raster.TargetKeepOriginal:
		opts.Logs.Log("Keeping original: %s", raster.CRSDisplay(resolved))
	default:
		// pass
	}

	if !opts.Library.SameCRS(resolved, first.CRS) {

		opts.Logs.Log("Reprojecting to %s...", resolved)
		opts.Logs.Log("Reprojecting bands...")

		err := mosaic.Reproject(ctx, opts.Resolve(output), resolved, bandProgress(opts.Logs))

		if err != nil {
			opts.Logs.Error("Processing failed: %s", err)
			return err
		}

		return nil
	}

	opts.Logs.Log("No reprojection needed - saving merged file")

	err = mosaic.Write(ctx, opts.Resolve(output))

	if err != nil {
		opts.Logs.Error("Processing failed: %s", err)
		return err
	}

	return nil
}

// copyThrough is the no-reprojection path: the output becomes a byte-level
// copy of the input.
func copyThrough(ctx context.Context, opts *ProcessOptions, input string, output string) error {

	opts.Logs.Log("No reprojection needed - copying file")

	err := opts.Bucket.Copy(ctx, output, input, nil)

	if err != nil {
		opts.Logs.Error("Reproject failed: %s", err)
		return fmt.Errorf("Failed to copy %s to %s, %w", input, output, err)
	}

	return nil
}

// openAndMerge opens every file and mosaics them, logging per-file progress.
// On failure every dataset opened so far is closed before returning; on
// success the caller owns both the mosaic and the open datasets.
func openAndMerge(ctx context.Context, opts *ProcessOptions, files []string) (raster.Mosaic, []raster.Dataset, error) {

	if len(files) == 0 {
		return nil, nil, fmt.Errorf("Nothing to merge")
	}

	datasets := make([]raster.Dataset, 0, len(files))

	for i, f := range files {

		select {
		case <-ctx.Done():
			closeAll(datasets)
			return nil, nil, ctx.Err()
		default:
			// pass
		}

		opts.Logs.Log("Opening file %d/%d: %s", i+1, len(files), f)

		ds, err := opts.Library.Open(opts.Resolve(f))

		if err != nil {
			closeAll(datasets)
			return nil, nil, err
		}

		datasets = append(datasets, ds)
	}

	opts.Logs.Log("Merging files...")

	mosaic, err := opts.Library.Merge(datasets)

	if err != nil {
		closeAll(datasets)
		return nil, nil, err
	}

	w, h, count := mosaic.Size()
	opts.Logs.Log("Mosaic created: %d×%d, %d bands", w, h, count)

	return mosaic, datasets, nil
}

func closeAll(datasets []raster.Dataset) {

	for _, ds := range datasets {
		ds.Close()
	}
}

func bandProgress(logs *livelog.Sink) raster.ProgressFunc {

	return func(band int, total int) {
		logs.Log("  Band %d/%d", band, total)
	}
}
