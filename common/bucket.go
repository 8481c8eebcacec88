package common

/*

You might be thinking: I know, I'll open one bucket up front and share it with
all the codes! It's okay, I thought that too. The problem is that if you call
the bucket's Close() method in your code (and you should call it _somewhere_)
then it will stop working (as expected) for all the other code that currently
has an instance of it. So OpenBucket stays a one-off constructor and every
caller owns the bucket it opens.

*/

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
)

// OpenBucket opens a gocloud.dev bucket from uri. A bare filesystem path (no
// scheme) is normalized to an absolute file:// URI first so the tool can be
// pointed at "." or a relative directory.
func OpenBucket(ctx context.Context, uri string) (*blob.Bucket, error) {

	if !strings.Contains(uri, "://") {

		abs_path, err := filepath.Abs(uri)

		if err != nil {
			return nil, fmt.Errorf("Failed to derive absolute path for '%s', %w", uri, err)
		}

		uri = fmt.Sprintf("file://%s", abs_path)
	}

	bucket, err := blob.OpenBucket(ctx, uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to open bucket '%s', %w", uri, err)
	}

	return bucket, nil
}

// NormalizeBucketURI applies the same bare-path normalization OpenBucket
// does, for callers that need the URI itself (path resolution, messages).
func NormalizeBucketURI(uri string) (string, error) {

	if strings.Contains(uri, "://") {
		return uri, nil
	}

	abs_path, err := filepath.Abs(uri)

	if err != nil {
		return "", fmt.Errorf("Failed to derive absolute path for '%s', %w", uri, err)
	}

	return fmt.Sprintf("file://%s", abs_path), nil
}
