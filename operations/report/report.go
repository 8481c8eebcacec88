// Package report reads back the metadata of a finished output raster for
// the end-of-run summary, and optionally publishes that summary as a JSON
// run report next to the output. Reporting is purely informational; nothing
// here affects the success or failure of the processing step itself.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sfomuseum/go-geotiff-merge/common"
	"github.com/sfomuseum/go-geotiff-merge/raster"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/whosonfirst/go-ioutil"
	"gocloud.dev/blob"
)

// sample window edge for the cheap min/max statistic
const sample_window = 100

// ReportOptions is a struct containing the collaborators used to generate
// and publish run reports.
type ReportOptions struct {
	// The bucket the output was written to.
	Bucket *blob.Bucket
	// The raster library used to read back output metadata.
	Library raster.Library
	// Resolve maps a bucket key to a path the raster library can open.
	Resolve func(string) string
	// Optional whosonfirst/go-writer URI the JSON run report is published
	// through. Empty disables publishing.
	WriterURI string
}

// Generate builds a JSON document describing the output at key. Every field
// beyond existence and size is best-effort: a raster that cannot be read
// back still yields a report.
func Generate(ctx context.Context, opts *ReportOptions, key string) ([]byte, error) {

	body := []byte(`{}`)

	var err error

	body, err = sjson.SetBytes(body, "name", key)

	if err != nil {
		return nil, fmt.Errorf("Failed to assign name property, %w", err)
	}

	exists, err := opts.Bucket.Exists(ctx, key)

	if err != nil || !exists {

		body, err = sjson.SetBytes(body, "created", false)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign created property, %w", err)
		}

		return body, nil
	}

	attrs, err := opts.Bucket.Attributes(ctx, key)

	if err != nil {
		return nil, fmt.Errorf("Failed to read attributes for %s, %w", key, err)
	}

	updates := map[string]interface{}{
		"created":  true,
		"size":     attrs.Size,
		"location": opts.Resolve(key),
	}

	for path, value := range updates {

		body, err = sjson.SetBytes(body, path, value)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign %s property, %w", path, err)
		}
	}

	fingerprint, err := common.FingerprintFile(ctx, opts.Bucket, key)

	if err == nil {

		body, err = sjson.SetBytes(body, "fingerprint", fingerprint)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign fingerprint property, %w", err)
		}
	}

	ds, err := opts.Library.Open(opts.Resolve(key))

	if err != nil {
		// Not readable as a raster; existence and size still get reported.
		return body, nil
	}

	defer ds.Close()

	info := ds.Info()

	updates = map[string]interface{}{
		"width":    info.Width,
		"height":   info.Height,
		"bands":    info.Count,
		"crs":      raster.CRSDisplay(info.CRS),
		"datatype": info.DataType,
	}

	for path, value := range updates {

		body, err = sjson.SetBytes(body, path, value)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign %s property, %w", path, err)
		}
	}

	sample_min, sample_max, err := ds.Sample(1, sample_window, sample_window)

	if err == nil {

		body, err = sjson.SetBytes(body, "sample.min", sample_min)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign sample.min property, %w", err)
		}

		body, err = sjson.SetBytes(body, "sample.max", sample_max)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign sample.max property, %w", err)
		}
	}

	return body, nil
}

// Print renders a report generated by Generate as the end-of-run summary.
func Print(w io.Writer, body []byte) {

	if !gjson.GetBytes(body, "created").Bool() {
		fmt.Fprintln(w, "\nOutput file was not created!")
		return
	}

	size_mb := float64(gjson.GetBytes(body, "size").Int()) / 1024.0 / 1024.0

	fmt.Fprintln(w, "\nPROCESSING COMPLETE!")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "OUTPUT FILE INFO:")
	fmt.Fprintf(w, "   Name: %s\n", gjson.GetBytes(body, "name").String())
	fmt.Fprintf(w, "   Size: %.1f MB\n", size_mb)

	if gjson.GetBytes(body, "width").Exists() {
		fmt.Fprintf(w, "   Dimensions: %d × %d pixels\n",
			gjson.GetBytes(body, "width").Int(), gjson.GetBytes(body, "height").Int())
		fmt.Fprintf(w, "   Bands: %d\n", gjson.GetBytes(body, "bands").Int())
		fmt.Fprintf(w, "   CRS: %s\n", gjson.GetBytes(body, "crs").String())
		fmt.Fprintf(w, "   Data type: %s\n", gjson.GetBytes(body, "datatype").String())
	}

	fmt.Fprintf(w, "   Location: %s\n", gjson.GetBytes(body, "location").String())

	if gjson.GetBytes(body, "sample").Exists() {
		fmt.Fprintf(w, "   Sample min/max: %.1f / %.1f\n",
			gjson.GetBytes(body, "sample.min").Float(), gjson.GetBytes(body, "sample.max").Float())
	}

	if gjson.GetBytes(body, "fingerprint").Exists() {
		fmt.Fprintf(w, "   Fingerprint: %s\n", gjson.GetBytes(body, "fingerprint").String())
	}
}

// Publish writes the report for key through the configured writer URI as
// "<key>.json". A report without a writer URI is a no-op.
func Publish(ctx context.Context, opts *ReportOptions, key string, body []byte) error {

	if opts.WriterURI == "" {
		return nil
	}

	wr, err := common.NewWriter(ctx, opts.WriterURI)

	if err != nil {
		return fmt.Errorf("Failed to create writer for run report, %w", err)
	}

	br := bytes.NewReader(body)
	fh, err := ioutil.NewReadSeekCloser(br)

	if err != nil {
		return fmt.Errorf("Failed to create ReadSeekCloser for run report, %w", err)
	}

	report_key := fmt.Sprintf("%s.json", key)

	_, err = wr.Write(ctx, report_key, fh)

	if err != nil {
		return fmt.Errorf("Failed to write run report to %s, %w", report_key, err)
	}

	return nil
}
