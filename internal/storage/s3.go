package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/local/pdfquiz/internal/source"
	"github.com/rs/zerolog/log"
)

// Writer stores exported quizzes on the local filesystem or in S3.
type Writer struct {
	s3opts source.S3Options
	newS3  func(ctx context.Context, o source.S3Options) (*s3.Client, error)
}

func NewWriter(opts source.S3Options) *Writer {
	return &Writer{s3opts: opts, newS3: source.NewS3Client}
}

// Write puts data at ref, which is a filesystem path or s3://bucket/key.
func (w *Writer) Write(ctx context.Context, ref string, data []byte, contentType string) error {
	if !strings.HasPrefix(ref, "s3://") {
		p := strings.TrimPrefix(ref, "file://")
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		return nil
	}

	bucket, key, err := source.ParseS3Ref(ref)
	if err != nil {
		return err
	}
	cli, err := w.newS3(ctx, w.s3opts)
	if err != nil {
		return err
	}

	_, err = manager.NewUploader(cli).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int("size", len(data)).
		Msg("uploaded quiz to S3")
	return nil
}
