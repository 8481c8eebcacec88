package raster

import (
	"context"
)

// Bounds stores the georeferenced extent of a raster in its own CRS units.
type Bounds struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

// Info stores the metadata of an opened raster.
type Info struct {
	// The path the raster was opened from.
	Path string
	// Pixel width of the raster.
	Width int
	// Pixel height of the raster.
	Height int
	// Number of bands in the raster.
	Count int
	// String label for the pixel data type.
	DataType string
	// String label for the coordinate reference system ("EPSG:4326" where an
	// authority code is known, otherwise a truncated WKT string).
	CRS string
	// The 6-parameter affine transform mapping pixel to CRS coordinates.
	Transform [6]float64
	// Georeferenced extent in CRS units.
	Bounds Bounds
	// Nodata value for band 1, if set.
	NoData *float64
}

// ProgressFunc is invoked once per band while bands are being written or
// reprojected.
type ProgressFunc func(band int, total int)

// Dataset is a single open raster owned by whoever opened it. Close releases
// the underlying handle and must be called on both success and failure paths.
type Dataset interface {
	Info() Info
	// Sample reads at most max_w by max_h pixels from the top-left corner of
	// band and returns the minimum and maximum values in that window.
	Sample(band int, max_w int, max_h int) (float64, float64, error)
	Close() error
}

// Mosaic is the in-memory result of merging one or more datasets. It is not
// materialized on disk until Write or Reproject is called.
type Mosaic interface {
	// Transform returns the affine transform produced by the merge.
	Transform() [6]float64
	// Size returns the pixel width, height and band count of the mosaic.
	Size() (int, int, int)
	// Write materializes the mosaic as a compressed GeoTIFF at path.
	Write(ctx context.Context, path string) error
	// Reproject warps each mosaic band into target_crs and writes the result
	// as a compressed GeoTIFF at path, calling progress per band.
	Reproject(ctx context.Context, path string, target_crs string, progress ProgressFunc) error
	Close() error
}

// Library is the boundary to the external raster-processing engine. The
// resampling, CRS math and TIFF encoding all happen on the far side of this
// interface.
type Library interface {
	Open(path string) (Dataset, error)
	// Merge mosaics the datasets. The first dataset takes precedence where
	// sources overlap and supplies the reference metadata.
	Merge(datasets []Dataset) (Mosaic, error)
	// Reproject warps ds into target_crs and writes a compressed GeoTIFF at
	// path, resampling each band bilinearly and calling progress per band.
	Reproject(ctx context.Context, ds Dataset, path string, target_crs string, progress ProgressFunc) error
	// SameCRS reports whether two CRS labels describe the same reference
	// system.
	SameCRS(a string, b string) bool
}
