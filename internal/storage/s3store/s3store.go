// Package s3store implements the document storage extension on S3-compatible
// object storage through presigned URLs.
package s3store

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
)

// StorageType is the location type written for objects kept here.
const StorageType = "S3"

// Store is an ecm.DocumentStorageExtension backed by a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	region string
	ttl    time.Duration
	now    func() time.Time
}

var _ ecm.DocumentStorageExtension = (*Store)(nil)

// New builds a store from cfg. The region is fixed so that presigning never
// needs a bucket-location round trip.
func New(cfg config.S3Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint: %w", errs.ErrConfiguration)
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 credentials: %w", errs.ErrConfiguration)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket: %w", errs.ErrConfiguration)
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("s3 endpoint %q: %w", cfg.Endpoint, err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, bucket: cfg.Bucket, region: cfg.Region, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Name() string { return "s3" }

// StorageType is the location type written by this store.
func (s *Store) StorageType() string { return StorageType }

// SupportsStorageType accepts S3 and MinIO locations.
func (s *Store) SupportsStorageType(storageType string) bool {
	return strings.EqualFold(storageType, StorageType) || strings.EqualFold(storageType, "MINIO")
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify(err)
	}
	if exists {
		return nil
	}
	return classify(s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}))
}

func (s *Store) GenerateUploadURL(ctx context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error) {
	if req.Path == "" {
		return ecm.UploadTicket{}, errs.Validation("empty object key")
	}
	u, err := s.client.PresignedPutObject(ctx, s.bucket, req.Path, s.ttl)
	if err != nil {
		return ecm.UploadTicket{}, classify(err)
	}
	t := ecm.UploadTicket{
		URL:       u.String(),
		Method:    "PUT",
		Location:  ecm.Location{StorageType: StorageType, Path: req.Path},
		ExpiresAt: s.now().Add(s.ttl),
	}
	if req.MimeType != "" {
		t.Headers = map[string]string{"Content-Type": req.MimeType}
	}
	return t, nil
}

func (s *Store) ConfirmUpload(ctx context.Context, loc ecm.Location) (ecm.UploadConfirmation, error) {
	info, err := s.client.StatObject(ctx, s.bucket, loc.Path, minio.StatObjectOptions{})
	if err != nil {
		return ecm.UploadConfirmation{}, classify(err)
	}
	return ecm.UploadConfirmation{
		Location:    ecm.Location{StorageType: StorageType, Path: loc.Path},
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}

// GenerateDownloadURL presigns a GET that makes browsers save the object as fileName.
func (s *Store) GenerateDownloadURL(ctx context.Context, loc ecm.Location, fileName string) (ecm.DownloadLink, error) {
	params := url.Values{}
	if fileName != "" {
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, loc.Path, s.ttl, params)
	if err != nil {
		return ecm.DownloadLink{}, classify(err)
	}
	return ecm.DownloadLink{URL: u.String(), ExpiresAt: s.now().Add(s.ttl)}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, loc ecm.Location) error {
	return classify(s.client.RemoveObject(ctx, s.bucket, loc.Path, minio.RemoveObjectOptions{}))
}

// classify maps missing keys and buckets to errs.ErrNotFound; other errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
	}
	return err
}
