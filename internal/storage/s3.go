// Package storage uploads media to S3 and hands back durable URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize caps a single upload at 10 MB.
const MaxFileSize = 10 << 20

// allowedImageTypes are the content types accepted for product images and
// avatars, keyed by detected MIME type.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Config holds the S3 connection settings.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BaseURL         string // optional override, e.g. a CDN domain
}

// api is the slice of the S3 client the store uses; tests substitute it.
type api interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads files to a single bucket.
type S3Store struct {
	client  api
	bucket  string
	baseURL string
}

// NewS3Store builds a store from static credentials.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: AWS credentials and bucket must be configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Store{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload stores one object and returns its durable URL.
func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// UploadImages validates and uploads a batch of image files under
// folder/ownerID/. Any failure aborts the whole batch; no URLs are
// returned for a partial upload.
func (s *S3Store) UploadImages(ctx context.Context, files []*multipart.FileHeader, folder string, ownerID uint) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := s.uploadImage(ctx, fh, folder, ownerID)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *S3Store) uploadImage(ctx context.Context, fh *multipart.FileHeader, folder string, ownerID uint) (string, error) {
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("storage: file %s exceeds maximum size of %d bytes", fh.Filename, MaxFileSize)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", fh.Filename, err)
	}

	mtype := mimetype.Detect(data)
	if !allowedImageTypes[mtype.String()] {
		return "", fmt.Errorf("storage: file %s must be a JPEG, PNG, or WebP image", fh.Filename)
	}

	key := objectKey(folder, ownerID, filepath.Ext(fh.Filename))
	return s.Upload(ctx, key, bytes.NewReader(data), mtype.String())
}

// objectKey builds folder/owner/timestamp_shortid.ext.
func objectKey(folder string, ownerID uint, ext string) string {
	ts := time.Now().Format("20060102_150405")
	short := uuid.New().String()[:8]
	return fmt.Sprintf("%s/%d/%s_%s%s", folder, ownerID, ts, short, ext)
}
