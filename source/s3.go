package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	s3Scheme          = "s3://"
	defaultS3Endpoint = "s3.amazonaws.com"
)

// ObjectGetter opens objects in an S3-compatible store.  GetObject must fail
// if the object does not exist, rather than on the first read.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Options configure access to s3:// locations.
type S3Options struct {
	Endpoint string // host[:port], defaults to s3.amazonaws.com
	Region   string
	Insecure bool // use plain HTTP

	// Getter replaces the MinIO client built from the fields above.
	Getter ObjectGetter
}

// ParseS3Location splits s3://bucket/key into its bucket and key.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %q", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location must be s3://bucket/key, got %q", location)
	}
	return bucket, key, nil
}

func (r *Reader) openS3(location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	if r.s3 == nil {
		getter, err := NewMinioGetter(r.opts.S3)
		if err != nil {
			return nil, err
		}
		r.s3 = getter
	}
	return r.s3.GetObject(context.Background(), bucket, key)
}

// MinioGetter is the ObjectGetter used for s3:// locations by default.
type MinioGetter struct {
	client *minio.Client
}

var _ ObjectGetter = &MinioGetter{}

// NewMinioGetter creates a client for opts.Endpoint.  Credentials are taken
// from the AWS_* environment variables, then the MINIO_* ones, then the
// shared AWS credentials file.
func NewMinioGetter(opts S3Options) (*MinioGetter, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{},
	})
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !opts.Insecure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &MinioGetter{client: client}, nil
}

// GetObject stats the object so that a missing object is reported here, then
// returns a reader for its content.
func (g *MinioGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapS3Error(err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapS3Error(err)
	}
	return obj, nil
}

func mapS3Error(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w (%s)", os.ErrNotExist, err)
	case "AccessDenied":
		return fmt.Errorf("%w (%s)", os.ErrPermission, err)
	default:
		return err
	}
}
