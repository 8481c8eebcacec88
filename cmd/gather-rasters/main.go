package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/sfomuseum/go-geotiff-merge/common"
	"github.com/sfomuseum/go-geotiff-merge/operations/gather"
	"github.com/sfomuseum/go-geotiff-merge/raster"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

func main() {

	flag.Parse()

	ctx := context.Background()

	lib := raster.NewGDALLibrary()

	uris := flag.Args()

	if len(uris) == 0 {
		uris = []string{"."}
	}

	for _, uri := range uris {

		uri, err := common.NormalizeBucketURI(uri)

		if err != nil {
			log.Fatal(err)
		}

		bucket, err := common.OpenBucket(ctx, uri)

		if err != nil {
			log.Fatal(err)
		}

		resolve, err := raster.PathResolver(uri)

		if err != nil {
			bucket.Close()
			log.Fatal(err)
		}

		opts := &gather.GatherRastersOptions{
			Library: lib,
			Resolve: resolve,
		}

		rasters, err := gather.GatherRasters(ctx, bucket, opts)

		if err != nil {
			bucket.Close()
			log.Fatal(err)
		}

		for _, rsp := range rasters {

			enc, err := json.Marshal(rsp)

			if err != nil {
				bucket.Close()
				log.Fatal(err)
			}

			fmt.Println(string(enc))
		}

		bucket.Close()
	}
}
