package gather

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sfomuseum/go-geotiff-merge/raster"
	"gocloud.dev/blob"
)

// raster file extensions recognized by CrawlRasters, matched
// case-insensitively
var raster_extensions = []string{
	".tif",
	".tiff",
	".geotiff",
}

// GatherRastersResponse describes a single raster file found in a bucket.
type GatherRastersResponse struct {
	// The key of the file relative to the bucket it was found in.
	Path string
	// Size of the file in bytes.
	Size int64
	// Best-effort raster metadata. A nil Info means the file could not be
	// read as a raster; the listing degrades to "cannot read" for that row.
	Info *raster.Info
}

// GatherRastersOptions is a struct containing application-specific options
// used when gathering raster files.
type GatherRastersOptions struct {
	// The raster library used for best-effort metadata reads.
	Library raster.Library
	// Resolve maps a bucket key to a path the raster library can open.
	Resolve func(string) string
}

// GatherRasters crawls bucket for raster files and returns them sorted
// lexicographically by key, each with best-effort metadata.
func GatherRasters(ctx context.Context, bucket *blob.Bucket, opts *GatherRastersOptions) ([]*GatherRastersResponse, error) {

	gather_ch := make(chan *GatherRastersResponse)

	// buffered so the crawler can still finish after the caller returns on
	// err_ch
	done_ch := make(chan bool, 1)
	err_ch := make(chan error)

	go func() {

		err := CrawlRasters(ctx, bucket, gather_ch)

		if err != nil {
			err_ch <- err
		}

		done_ch <- true
	}()

	rasters := make([]*GatherRastersResponse, 0)

	mu := new(sync.Mutex)
	wg := new(sync.WaitGroup)

	gathering := true

	for {
		select {

		case <-done_ch:
			gathering = false
		case err := <-err_ch:
			return nil, err
		case rsp := <-gather_ch:

			wg.Add(1)

			go func(rsp *GatherRastersResponse) {

				defer wg.Done()

				if opts.Library != nil && opts.Resolve != nil {

					ds, err := opts.Library.Open(opts.Resolve(rsp.Path))

					if err == nil {
						info := ds.Info()
						rsp.Info = &info
						ds.Close()
					}
				}

				mu.Lock()
				rasters = append(rasters, rsp)
				mu.Unlock()

			}(rsp)
		}

		if !gathering {
			break
		}
	}

	wg.Wait()

	sort.Slice(rasters, func(i int, j int) bool {
		return rasters[i].Path < rasters[j].Path
	})

	return rasters, nil
}

// CrawlRasters iterates through the items stored in a blob.Bucket instance
// and dispatches a GatherRastersResponse for everything with a recognized
// raster extension to a user-defined channel.
func CrawlRasters(ctx context.Context, bucket *blob.Bucket, rsp_ch chan *GatherRastersResponse) error {

	iter := bucket.List(nil)

	for {

		select {
		case <-ctx.Done():
			return nil
		default:
			// pass
		}

		obj, err := iter.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		if obj.IsDir {
			continue
		}

		if !IsRasterPath(obj.Key) {
			continue
		}

		rsp_ch <- &GatherRastersResponse{
			Path: obj.Key,
			Size: obj.Size,
		}
	}

	return nil
}

// IsRasterPath reports whether path carries a recognized raster extension,
// matched case-insensitively.
func IsRasterPath(path string) bool {

	lower := strings.ToLower(path)

	for _, ext := range raster_extensions {

		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}
