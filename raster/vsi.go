package raster

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// PathResolver returns a function mapping keys in the bucket identified by
// bucket_uri to paths the raster library can open directly. Local (file://)
// buckets map to plain filesystem paths; remote buckets map to the library's
// virtual filesystem handlers, which stream ranges without downloading whole
// files.
func PathResolver(bucket_uri string) (func(string) string, error) {

	u, err := url.Parse(bucket_uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse bucket URI '%s', %w", bucket_uri, err)
	}

	switch u.Scheme {
	case "", "file":

		root := u.Path

		if u.Scheme == "" {
			root = bucket_uri
		}

		return func(key string) string {
			return filepath.Join(root, key)
		}, nil

	case "s3":

		prefix := strings.Trim(u.Path, "/")

		return func(key string) string {

			if prefix != "" {
				key = prefix + "/" + key
			}

			return fmt.Sprintf("/vsis3/%s/%s", u.Host, key)
		}, nil

	case "gs":

		prefix := strings.Trim(u.Path, "/")

		return func(key string) string {

			if prefix != "" {
				key = prefix + "/" + key
			}

			return fmt.Sprintf("/vsigs/%s/%s", u.Host, key)
		}, nil

	default:
		return nil, fmt.Errorf("Unsupported bucket scheme '%s'", u.Scheme)
	}
}
