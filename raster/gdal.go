package raster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aaronland/go-string/random"
	"github.com/airbusgeo/godal"
)

var register_gdal sync.Once

// GDALLibrary implements Library on top of the GDAL bindings. It is safe for
// use from a single goroutine, which is the only way the tool drives it.
type GDALLibrary struct{}

var _ Library = (*GDALLibrary)(nil)

// NewGDALLibrary returns a Library backed by GDAL, registering the GDAL
// drivers on first use.
func NewGDALLibrary() Library {

	register_gdal.Do(func() {
		godal.RegisterAll()
	})

	return &GDALLibrary{}
}

type gdalDataset struct {
	ds   *godal.Dataset
	info Info
}

func (l *GDALLibrary) Open(path string) (Dataset, error) {

	ds, err := godal.Open(path)

	if err != nil {
		return nil, fmt.Errorf("Failed to open %s, %w", path, err)
	}

	st := ds.Structure()

	info := Info{
		Path:     path,
		Width:    st.SizeX,
		Height:   st.SizeY,
		Count:    st.NBands,
		DataType: st.DataType.String(),
		CRS:      ds.Projection(),
	}

	gt, err := ds.GeoTransform()

	if err == nil {
		info.Transform = gt
	}

	bounds, err := ds.Bounds()

	if err == nil {

		info.Bounds = Bounds{
			Left:   bounds[0],
			Bottom: bounds[1],
			Right:  bounds[2],
			Top:    bounds[3],
		}
	}

	bands := ds.Bands()

	if len(bands) > 0 {

		nodata, ok := bands[0].NoData()

		if ok {
			info.NoData = &nodata
		}
	}

	return &gdalDataset{ds: ds, info: info}, nil
}

func (d *gdalDataset) Info() Info {
	return d.info
}

func (d *gdalDataset) Sample(band int, max_w int, max_h int) (float64, float64, error) {

	bands := d.ds.Bands()

	if band < 1 || band > len(bands) {
		return 0, 0, fmt.Errorf("Invalid band %d for %s", band, d.info.Path)
	}

	w := min(max_w, d.info.Width)
	h := min(max_h, d.info.Height)

	buf := make([]float64, w*h)

	err := bands[band-1].Read(0, 0, buf, w, h)

	if err != nil {
		return 0, 0, fmt.Errorf("Failed to read sample window from %s, %w", d.info.Path, err)
	}

	sample_min := buf[0]
	sample_max := buf[0]

	for _, v := range buf {

		if v < sample_min {
			sample_min = v
		}

		if v > sample_max {
			sample_max = v
		}
	}

	return sample_min, sample_max, nil
}

func (d *gdalDataset) Close() error {
	return d.ds.Close()
}

type gdalMosaic struct {
	vrt       *godal.Dataset
	transform [6]float64
	width     int
	height    int
	count     int
}

func (l *GDALLibrary) Merge(datasets []Dataset) (Mosaic, error) {

	if len(datasets) == 0 {
		return nil, fmt.Errorf("Nothing to merge")
	}

	count := len(datasets)
	paths := make([]string, count)

	// A mosaic VRT paints its sources in order with the last one on top, so
	// the list is reversed to give the first selected file precedence where
	// sources overlap.

	for i, ds := range datasets {
		paths[count-1-i] = ds.Info().Path
	}

	vrt_path, err := vsimemPath("mosaic", ".vrt")

	if err != nil {
		return nil, err
	}

	vrt, err := godal.BuildVRT(vrt_path, paths, nil)

	if err != nil {
		return nil, fmt.Errorf("Failed to build mosaic from %d sources, %w", count, err)
	}

	st := vrt.Structure()

	gt, err := vrt.GeoTransform()

	if err != nil {
		vrt.Close()
		return nil, fmt.Errorf("Failed to derive mosaic transform, %w", err)
	}

	m := &gdalMosaic{
		vrt:       vrt,
		transform: gt,
		width:     st.SizeX,
		height:    st.SizeY,
		count:     st.NBands,
	}

	return m, nil
}

func (m *gdalMosaic) Transform() [6]float64 {
	return m.transform
}

func (m *gdalMosaic) Size() (int, int, int) {
	return m.width, m.height, m.count
}

func (m *gdalMosaic) Write(ctx context.Context, path string) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// pass
	}

	switches := []string{
		"-of", "GTiff",
		"-co", "COMPRESS=DEFLATE",
		"-co", "TILED=YES",
	}

	out, err := m.vrt.Translate(path, switches)

	if err != nil {
		return fmt.Errorf("Failed to write mosaic to %s, %w", path, err)
	}

	return out.Close()
}

func (m *gdalMosaic) Reproject(ctx context.Context, path string, target_crs string, progress ProgressFunc) error {
	return warpTo(ctx, m.vrt, path, target_crs, progress)
}

func (m *gdalMosaic) Close() error {
	return m.vrt.Close()
}

func (l *GDALLibrary) Reproject(ctx context.Context, ds Dataset, path string, target_crs string, progress ProgressFunc) error {

	gd, ok := ds.(*gdalDataset)

	if !ok {
		return fmt.Errorf("Dataset for %s was not opened by this library", ds.Info().Path)
	}

	return warpTo(ctx, gd.ds, path, target_crs, progress)
}

func (l *GDALLibrary) SameCRS(a string, b string) bool {

	if a == b {
		return true
	}

	sr_a, err := parseSpatialRef(a)

	if err != nil {
		return false
	}

	defer sr_a.Close()

	sr_b, err := parseSpatialRef(b)

	if err != nil {
		return false
	}

	defer sr_b.Close()

	return sr_a.IsSame(sr_b)
}

// warpTo reprojects src in to target_crs at path. The warped VRT carries the
// output geometry (the library's equivalent of a default-transform
// calculation) but no pixels; reading a band from it performs the actual
// bilinear warp for that band only.
func warpTo(ctx context.Context, src *godal.Dataset, path string, target_crs string, progress ProgressFunc) error {

	warp_path, err := vsimemPath("warp", ".vrt")

	if err != nil {
		return err
	}

	switches := []string{
		"-of", "VRT",
		"-t_srs", target_crs,
		"-r", "bilinear",
	}

	wvrt, err := src.Warp(warp_path, switches)

	if err != nil {
		return fmt.Errorf("Failed to calculate warp to %s, %w", target_crs, err)
	}

	defer wvrt.Close()

	st := wvrt.Structure()

	out, err := godal.Create(godal.GTiff, path, st.NBands, st.DataType, st.SizeX, st.SizeY,
		godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))

	if err != nil {
		return fmt.Errorf("Failed to create %s, %w", path, err)
	}

	gt, err := wvrt.GeoTransform()

	if err != nil {
		out.Close()
		return fmt.Errorf("Failed to derive warped transform for %s, %w", path, err)
	}

	err = out.SetGeoTransform(gt)

	if err != nil {
		out.Close()
		return fmt.Errorf("Failed to set transform on %s, %w", path, err)
	}

	err = out.SetProjection(wvrt.Projection())

	if err != nil {
		out.Close()
		return fmt.Errorf("Failed to set projection on %s, %w", path, err)
	}

	src_bands := wvrt.Bands()
	out_bands := out.Bands()

	for i, band := range src_bands {

		select {
		case <-ctx.Done():
			out.Close()
			return ctx.Err()
		default:
			// pass
		}

		buf := make([]float64, st.SizeX*st.SizeY)

		err := band.Read(0, 0, buf, st.SizeX, st.SizeY)

		if err != nil {
			out.Close()
			return fmt.Errorf("Failed to reproject band %d/%d, %w", i+1, st.NBands, err)
		}

		err = out_bands[i].Write(0, 0, buf, st.SizeX, st.SizeY)

		if err != nil {
			out.Close()
			return fmt.Errorf("Failed to write band %d/%d to %s, %w", i+1, st.NBands, path, err)
		}

		if progress != nil {
			progress(i+1, st.NBands)
		}
	}

	return out.Close()
}

func parseSpatialRef(s string) (*godal.SpatialRef, error) {

	code, ok := epsgCode(s)

	if ok {
		return godal.NewSpatialRefFromEPSG(code)
	}

	return godal.NewSpatialRefFromWKT(s)
}

func epsgCode(s string) (int, bool) {

	if !strings.HasPrefix(strings.ToUpper(s), "EPSG:") {
		return 0, false
	}

	code, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(s), "EPSG:"))

	if err != nil {
		return 0, false
	}

	return code, true
}

// vsimemPath generates a unique name on the library's in-memory filesystem
// for mosaic and warp intermediates.
func vsimemPath(label string, ext string) (string, error) {

	rand_opts := random.DefaultOptions()
	rand_opts.AlphaNumeric = true

	s, err := random.String(rand_opts)

	if err != nil {
		return "", fmt.Errorf("Failed to generate scratch name, %w", err)
	}

	return fmt.Sprintf("/vsimem/%s-%s%s", label, s, ext), nil
}
