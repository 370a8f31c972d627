package s3archive

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	uploadPartSize    = 16 * 1024 * 1024
	uploadConcurrency = 4
)

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".opus": "audio/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Service mirrors finished downloads into an S3 bucket
type Service struct {
	bucket   string
	prefix   string
	uploader uploader
}

// NewService builds an archiver from the default AWS credential chain.
// An empty region defers to the environment and shared config.
func NewService(ctx context.Context, bucket, prefix, region string) (*Service, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode("adaptive"),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
		u.Concurrency = uploadConcurrency
	})
	return &Service{bucket: bucket, prefix: prefix, uploader: up}, nil
}

// Key returns the object key a file is stored under
func (s *Service) Key(name string) string {
	return path.Join(s.prefix, name)
}

// Archive streams body to the bucket under the prefixed name
func (s *Service) Archive(ctx context.Context, name string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        body,
		ContentType: aws.String(contentTypeOf(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s to s3://%s: %w", name, s.bucket, err)
	}
	return nil
}

func contentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
