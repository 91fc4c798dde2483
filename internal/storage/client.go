package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const URIScheme = "s3://"

var ErrInvalidURI = errors.New("invalid object uri")

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Region   string
	UseSSL   bool
}

// ObjectRef addresses one object as s3://bucket/key.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	return URIScheme + r.Bucket + "/" + r.Key
}

func IsObjectURI(location string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(location)), URIScheme)
}

func ParseObjectURI(uri string) (ObjectRef, error) {
	trimmed := strings.TrimSpace(uri)
	if !IsObjectURI(trimmed) {
		return ObjectRef{}, fmt.Errorf("%w: %q does not start with %s", ErrInvalidURI, uri, URIScheme)
	}

	rest := trimmed[len(URIScheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if !ok || bucket == "" || key == "" {
		return ObjectRef{}, fmt.Errorf("%w: expected %sbucket/key, got %q", ErrInvalidURI, URIScheme, uri)
	}
	return ObjectRef{Bucket: bucket, Key: key}, nil
}

type Client struct {
	minio *minio.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{minio: mc}, nil
}

func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.minio.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	return nil
}

func (c *Client) ReadObject(ctx context.Context, ref ObjectRef) ([]byte, error) {
	obj, err := c.minio.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", ref, err)
	}
	return data, nil
}

func (c *Client) WriteObject(ctx context.Context, ref ObjectRef, data []byte, contentType string) error {
	_, err := c.minio.PutObject(
		ctx,
		ref.Bucket,
		ref.Key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", ref, err)
	}
	return nil
}
