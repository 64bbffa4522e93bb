// Package objstore wraps the AWS SDK v2 S3 client for rendered-invoice
// artifacts. Deletions are the main operation here; uploads happen in the
// rendering pipeline outside this service.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Client struct {
	api     *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewClientFromEnv initialises a Client from environment variables.
//
// Required:
//   - S3_ENDPOINT: host:port or full URL of the S3-compatible endpoint.
//   - S3_ACCESS_KEY / S3_SECRET_KEY: static credentials.
//   - ARTIFACT_BUCKET: bucket holding rendered invoice PDFs.
//
// Optional:
//   - S3_REGION (default "us-east-1").
//   - S3_DISABLE_TLS (bool; default false).
//   - S3_FORCE_PATH_STYLE (bool; default true).
func NewClientFromEnv() (*Client, error) {
	endpoint := strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucket := strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET"))
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	if endpoint == "" {
		return nil, errors.New("S3_ENDPOINT is required")
	}
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	if bucket == "" {
		return nil, errors.New("ARTIFACT_BUCKET is required")
	}

	disableTLS, _ := strconv.ParseBool(os.Getenv("S3_DISABLE_TLS"))
	forcePathStyle := true
	if v := strings.TrimSpace(os.Getenv("S3_FORCE_PATH_STYLE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			forcePathStyle = parsed
		}
	}

	scheme := "https"
	if disableTLS {
		scheme = "http"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Client{
		api:     client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

// Delete removes the given keys. A single key uses DeleteObject, multiple
// keys one DeleteObjects batch. Callers treat this as best-effort.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c == nil {
		return errors.New("nil client")
	}
	switch len(keys) {
	case 0:
		return nil
	case 1:
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &c.bucket,
			Key:    &keys[0],
		})
		return err
	}

	objects := make([]s3types.ObjectIdentifier, 0, len(keys))
	for i := range keys {
		objects = append(objects, s3types.ObjectIdentifier{Key: &keys[i]})
	}
	_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: &c.bucket,
		Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	return err
}

// PresignGet generates a presigned GET URL for an artifact key.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("nil client")
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
