// Package storage uploads processed files to S3 and resolves their public
// CDN URLs.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores a local file under a key and returns a publicly
// resolvable URL for it.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

type S3Uploader struct {
	client       *s3.Client
	bucket       string
	distribution string
}

func NewS3Uploader(client *s3.Client, bucket, distribution string) *S3Uploader {
	return &S3Uploader{
		client:       client,
		bucket:       bucket,
		distribution: distribution,
	}
}

// New builds an uploader with static credentials. Pass empty accessKey to
// fall back to the default AWS credential chain.
func New(ctx context.Context, accessKey, secretKey, region, bucket, distribution string) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, distribution), nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentTypeForFile(key)),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return ObjectURL(u.distribution, key), nil
}

func ObjectURL(distribution, key string) string {
	return fmt.Sprintf("https://%s/%s", distribution, key)
}

// ContentTypeForFile maps a file's extension to the content type sent to
// the object store. CDN and browser behavior depend on this table, so it is
// fixed rather than sniffed.
func ContentTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
