// Package storage keeps problem images in S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tohomc/internal/platform/config"
	"tohomc/internal/platform/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3ImageStore struct {
	bucket        string
	publicBaseURL string
	client        s3iface.S3API
	uploader      *s3manager.Uploader
}

// NewS3ImageStore builds a store from config. A custom endpoint switches to
// path-style addressing so S3-compatible servers work too.
func NewS3ImageStore(cfg *config.Config) (*S3ImageStore, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.S3Region)
	if cfg.S3Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.S3Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	client := s3.New(sess)
	return &S3ImageStore{
		bucket:        cfg.S3Bucket,
		publicBaseURL: cfg.S3PublicBaseURL,
		client:        client,
		uploader:      s3manager.NewUploaderWithClient(client),
	}, nil
}

// Upload stores body under key and returns the URL clients should use.
func (s *S3ImageStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.Error.Printf("[S3ImageStore.Upload] key=%s: %v", key, err)
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return PublicURL(s.publicBaseURL, key, out.Location), nil
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.Error.Printf("[S3ImageStore.Delete] key=%s: %v", key, err)
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// PublicURL prefers the configured base URL over the location reported by S3.
func PublicURL(baseURL, key, location string) string {
	if baseURL == "" {
		return location
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
