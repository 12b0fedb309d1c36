package destination

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/internal/config"
	"github.com/nguyengg/zipline/managerlogging"
)

// S3Location names an S3 object destination along with the per-bucket upload defaults.
type S3Location struct {
	Bucket              string
	Key                 string
	ExpectedBucketOwner *string
	StorageClass        types.StorageClass
}

// ParseS3URI parses an "s3://bucket/key" URI into an S3Location, applying bucket-specific defaults
// from the Loader's ".zipline" configuration.
func ParseS3URI(uri string, loader *config.Loader) (S3Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return S3Location{}, fmt.Errorf("not an s3:// uri: %q", uri)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return S3Location{}, fmt.Errorf("s3 uri %q is missing an object key", uri)
	}

	destCfg := loader.ForBucket(bucket)
	return S3Location{
		Bucket:              bucket,
		Key:                 key,
		ExpectedBucketOwner: destCfg.ExpectedBucketOwner,
		StorageClass:        destCfg.StorageClass,
	}, nil
}

// OpenS3 opens an Output Handle backed by an S3 multipart upload instead of a local file.
//
// Unlike the local Destination Openers, there is no way to read back an existing S3 object's
// central directory cheaply enough to support AppendOrFail/OptimisticallyAppend/AppendToNonZip —
// an S3 PutObject/multipart upload is write-only and sequential, so OpenS3 only ever behaves like
// AlwaysTruncate: every call starts a brand-new object. zip.Writer needs a push-style io.Writer,
// while manager.Uploader.Upload wants a pull-style io.Reader for its body, so the two are bridged
// with an io.Pipe and the upload runs on its own goroutine for the lifetime of the Handle.
func OpenS3(ctx context.Context, loc S3Location, loader *config.Loader, logger *log.Logger, pool *blockingpool.Pool) (*Handle, error) {
	client, err := loader.NewS3ClientForBucket(ctx, loc.Bucket)
	if err != nil {
		return nil, fmt.Errorf("create s3 client error: %w", err)
	}

	pr, pw := io.Pipe()

	uploader := manager.NewUploader(client)
	if logger != nil {
		managerlogging.LogSuccessfulUploadPart(logger)(uploader)
	}

	uploadDone := pool.Go(func() error {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:              &loc.Bucket,
			Key:                 &loc.Key,
			Body:                pr,
			ExpectedBucketOwner: loc.ExpectedBucketOwner,
			StorageClass:        loc.StorageClass,
		})
		_ = pr.CloseWithError(err)
		return err
	})

	return &Handle{writer: zip.NewWriter(pw), closer: &s3PipeCloser{pw: pw, done: uploadDone}}, nil
}

// s3PipeCloser closes the write end of the upload pipe, then waits for the background upload to
// finish and surfaces its error, acting as the Handle's io.Closer.
type s3PipeCloser struct {
	pw   *io.PipeWriter
	done <-chan error
}

func (c *s3PipeCloser) Close() error {
	if err := c.pw.Close(); err != nil {
		return err
	}
	return <-c.done
}
