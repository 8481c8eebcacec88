package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/sfomuseum/go-geotiff-merge/app"
	"github.com/sfomuseum/go-geotiff-merge/raster"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

func main() {

	source_uri := flag.String("source-uri", ".", "A gocloud.dev bucket URI, or a local directory, containing the rasters to process. The output is written to the same place.")
	report_writer_uri := flag.String("report-writer-uri", "", "An optional whosonfirst/go-writer URI to publish a JSON run report through.")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := &app.RunOptions{
		SourceURI:       *source_uri,
		ReportWriterURI: *report_writer_uri,
		Library:         raster.NewGDALLibrary(),
		In:              os.Stdin,
		Out:             os.Stdout,
	}

	err := app.Run(ctx, opts)

	if ctx.Err() != nil {
		fmt.Println("\nOperation cancelled by user")
		return
	}

	if err != nil {
		log.Fatalf("Failed to run processing tool, %v", err)
	}
}
