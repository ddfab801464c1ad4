// Package s3blob is the cold-storage tier: settled positions and old
// whale activity are written here as JSONL archives. It speaks to AWS S3
// or any S3-compatible endpoint (MinIO, R2, iDrive e2).
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds object-store connection parameters. Endpoint is only
// needed for non-AWS providers; ForcePathStyle is required by most of
// them.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool // scheme for a bare Endpoint host
	ForcePathStyle bool
}

// Client wraps the SDK client with the bucket everything in this package
// writes to.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds the S3 client. Credentials are static, from config, never
// from the instance role: the bot runs anywhere, not only on EC2.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	sdk := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{s3: sdk, bucket: cfg.Bucket}, nil
}

// Health verifies the bucket is reachable with the configured credentials.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close exists so the wiring can treat every backend uniformly; the SDK
// client has no teardown.
func (c *Client) Close() error { return nil }

// S3 exposes the SDK client to the writer.
func (c *Client) S3() *s3.Client { return c.s3 }

// Bucket returns the configured bucket.
func (c *Client) Bucket() string { return c.bucket }

// withScheme prepends http(s):// to a bare host endpoint.
func withScheme(endpoint string, ssl bool) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	if ssl {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
