// Package blob stores rendered exports in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultLinkTTL = 15 * time.Minute

var ErrNotConfigured = errors.New("blob storage not configured")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region  string
	LinkTTL time.Duration
}

type Store struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

// Object describes an uploaded export.
type Object struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &Store{client: client, bucket: cfg.Bucket, linkTTL: ttl}, nil
}

// EnsureBucket creates the export bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads data and returns a presigned download link.
func (s *Store) Put(ctx context.Context, key, contentType, filename string, data []byte) (Object, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}

	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	}
	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, params)
	if err != nil {
		return Object{}, fmt.Errorf("presign object %s: %w", key, err)
	}
	return Object{
		Key:       key,
		URL:       link.String(),
		Size:      info.Size,
		ExpiresAt: time.Now().UTC().Add(s.linkTTL),
	}, nil
}

// ObjectKey builds the key an export is stored under:
// notes/<noteID>/<revision>/<filename>.
func ObjectKey(noteID, revision, filename string) string {
	parts := []string{"notes", clean(noteID), clean(revision), clean(filename)}
	return strings.Join(parts, "/")
}

func clean(part string) string {
	part = strings.TrimSpace(part)
	part = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(part)
	if part == "" {
		return "_"
	}
	return part
}
