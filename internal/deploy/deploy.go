// Package deploy uploads a rendered site to an S3 bucket.
package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the part of the S3 client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
	log    *slog.Logger
}

func New(client putObjectAPI, bucket, prefix string, log *slog.Logger) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}
}

// NewS3Uploader uses the default AWS credential chain. An empty region
// falls back to the environment.
func NewS3Uploader(ctx context.Context, region, bucket, prefix string, log *slog.Logger) (*Uploader, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix, log), nil
}

// UploadDir puts every regular file below dir and returns how many were
// uploaded.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if err := u.uploadFile(ctx, p, u.key(rel)); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func (u *Uploader) key(rel string) string {
	return path.Join(u.prefix, filepath.ToSlash(rel))
}

func (u *Uploader) uploadFile(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(contentType(key)),
		CacheControl: aws.String(cacheControl(key)),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%v/%v: %w", u.bucket, key, err)
	}
	u.log.Debug("uploaded", "key", key)
	return nil
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Processed images carry a content hash in their name and never change.
func cacheControl(key string) string {
	if strings.Contains(key, "static/images/") {
		return "public, max-age=31536000, immutable"
	}
	return "public, max-age=300"
}
