// Package app wires the interactive flow together: discovery, selection,
// mode and CRS menus, processing and the final report. The flow is
// sequential and blocks on user input at each prompt; the only concurrent
// piece is the live log sink draining in the background.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sfomuseum/go-geotiff-merge/common"
	"github.com/sfomuseum/go-geotiff-merge/livelog"
	"github.com/sfomuseum/go-geotiff-merge/operations/gather"
	"github.com/sfomuseum/go-geotiff-merge/operations/process"
	"github.com/sfomuseum/go-geotiff-merge/operations/report"
	"github.com/sfomuseum/go-geotiff-merge/prompt"
	"github.com/sfomuseum/go-geotiff-merge/raster"
)

// Default output names, overridable at the filename prompt.
const DefaultMergedName = "merged_result.tif"
const DefaultReprojectedName = "reprojected.tif"

// RunOptions is a struct containing application-specific options for one
// interactive run.
type RunOptions struct {
	// Bucket URI (or bare directory path) holding the source rasters. The
	// output is written to the same bucket.
	SourceURI string
	// Optional whosonfirst/go-writer URI the JSON run report is published
	// through.
	ReportWriterURI string
	// The raster library doing the actual work.
	Library raster.Library
	// Where prompts read answers from.
	In io.Reader
	// Where prompts, logs and the summary are printed.
	Out io.Writer
}

// Run drives a single interactive invocation end to end. User-facing
// failures (nothing found, processing errors) are reported on Out and do not
// surface as errors; only input/setup breakage does. Cancelling ctx unblocks
// whichever prompt is waiting, stops the log sink and returns the context's
// error.
func Run(ctx context.Context, opts *RunOptions) error {

	source_uri, err := common.NormalizeBucketURI(opts.SourceURI)

	if err != nil {
		return err
	}

	bucket, err := common.OpenBucket(ctx, source_uri)

	if err != nil {
		return err
	}

	defer bucket.Close()

	resolve, err := raster.PathResolver(source_uri)

	if err != nil {
		return err
	}

	p := prompt.NewPrompter(opts.In, opts.Out)

	printHeader(opts.Out)

	logs := livelog.NewSink(opts.Out)
	defer logs.Stop()

	gather_opts := &gather.GatherRastersOptions{
		Library: opts.Library,
		Resolve: resolve,
	}

	rasters, err := gather.GatherRasters(ctx, bucket, gather_opts)

	if err != nil {
		return fmt.Errorf("Failed to gather rasters from %s, %w", source_uri, err)
	}

	if len(rasters) == 0 {
		fmt.Fprintln(opts.Out, "\nNo GeoTIFF files found in current folder!")
		fmt.Fprintln(opts.Out, "Place your .tif files here and run again.")
		p.Pause(ctx)
		return nil
	}

	warn := func(msg string) {
		logs.Warn("%s", msg)
	}

	selected, cancelled, err := p.SelectFiles(ctx, rasters, warn)

	if err != nil {
		return err
	}

	if cancelled {
		logs.Log("Operation cancelled by user")
		return nil
	}

	mode, err := p.ProcessingMode(ctx)

	if err != nil {
		return err
	}

	if mode == prompt.ModeCancel {
		logs.Log("Operation cancelled")
		return nil
	}

	printHeader(opts.Out)

	default_name := DefaultMergedName

	if mode == prompt.ModeReproject {
		default_name = DefaultReprojectedName
	}

	output, err := p.OutputName(ctx, default_name)

	if err != nil {
		return err
	}

	exists, err := bucket.Exists(ctx, output)

	if err != nil {
		return fmt.Errorf("Failed to determine if %s exists, %w", output, err)
	}

	if exists {

		overwrite, err := p.Confirm(ctx, fmt.Sprintf("File '%s' exists. Overwrite? (y/n): ", output))

		if err != nil {
			return err
		}

		if !overwrite {
			logs.Log("Operation cancelled - file exists")
			return nil
		}
	}

	var target raster.TargetCRS

	if mode == prompt.ModeReproject || mode == prompt.ModeBoth {

		target, err = p.TargetCRS(ctx)

		if err != nil {
			return err
		}
	}

	printHeader(opts.Out)

	fmt.Fprintln(opts.Out, "\nSTARTING PROCESSING...")
	fmt.Fprintln(opts.Out, strings.Repeat("=", 60))
	fmt.Fprintln(opts.Out, "Live log will appear below:")
	fmt.Fprintln(opts.Out, strings.Repeat("-", 60))

	start := time.Now()

	process_opts := &process.ProcessOptions{
		Library: opts.Library,
		Bucket:  bucket,
		Logs:    logs,
		Resolve: resolve,
	}

	files := make([]string, len(selected))

	for i, rsp := range selected {
		files[i] = rsp.Path
	}

	var process_err error

	switch mode {
	case prompt.ModeMerge:
		process_err = process.Merge(ctx, process_opts, files, output)
	case prompt.ModeReproject:
		process_err = process.Reproject(ctx, process_opts, files, output, target)
	case prompt.ModeBoth:
		process_err = process.MergeReproject(ctx, process_opts, files, output, target)
	}

	elapsed := time.Since(start)

	// Flush everything the operations logged before printing the summary.
	logs.Stop()

	if process_err != nil {

		// an interrupt mid-processing exits rather than pausing at a
		// failure banner

		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Fprintln(opts.Out, "\n"+strings.Repeat("=", 60))
		fmt.Fprintln(opts.Out, "PROCESSING FAILED!")
		fmt.Fprintln(opts.Out, strings.Repeat("=", 60))
		fmt.Fprintln(opts.Out, "\nCheck the logs above for errors.")
		p.Pause(ctx)
		return nil
	}

	report_opts := &report.ReportOptions{
		Bucket:    bucket,
		Library:   opts.Library,
		Resolve:   resolve,
		WriterURI: opts.ReportWriterURI,
	}

	body, err := report.Generate(ctx, report_opts, output)

	if err != nil {
		slog.Error("Failed to generate run report", "error", err)
	} else {

		report.Print(opts.Out, body)

		err = report.Publish(ctx, report_opts, output, body)

		if err != nil {
			slog.Error("Failed to publish run report", "error", err)
		}
	}

	minutes := int(elapsed.Minutes())
	seconds := int(elapsed.Seconds()) % 60

	fmt.Fprintf(opts.Out, "\nProcessing time: %dm %ds\n", minutes, seconds)

	p.Pause(ctx)
	return nil
}

func printHeader(w io.Writer) {

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "           GEOTIFF PROCESSING TOOL")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "Live logging enabled - see progress below")
	fmt.Fprintln(w, strings.Repeat("-", 60))
}
