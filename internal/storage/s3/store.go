package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stratacache/stratacache/internal/codec"
	cacheerr "github.com/stratacache/stratacache/pkg/errors"
	"github.com/stratacache/stratacache/pkg/types"
)

const expiresAtMetadataKey = "cache-expires-at"

// Client is the subset of the S3 API the store uses; narrowed so tests can
// fake it.
type Client interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
}

// Store is an object-storage backend for the high-capacity tier. Every
// payload goes through the always-compress codec before upload. S3 has no
// native per-object TTL, so the expiry instant travels as object metadata
// and an expired object is reported as not found on read.
type Store struct {
	client Client
	bucket string
	prefix string
	codec  *codec.Codec
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Store writing under prefix inside bucket.
func New(client Client, bucket, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  codec.NewAlwaysCompress(),
		logger: logger,
		now:    time.Now,
	}
}

// Get downloads and unpacks the object for key. An expired or missing
// object yields a not-found error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, s.notFound("get")
		}
		return nil, s.fault("get", err)
	}
	defer out.Body.Close()

	if s.expired(out.Metadata) {
		return nil, s.notFound("get")
	}

	stored, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.fault("get", err)
	}
	return s.codec.Unpack(stored)
}

// Set packs and uploads the value, recording the expiry instant as object
// metadata. A non-positive ttl stores the object without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	packed, ratio := s.codec.Pack(value)

	metadata := map[string]string{}
	if ttl > 0 {
		metadata[expiresAtMetadataKey] = s.now().UTC().Add(ttl).Format(time.RFC3339)
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.objectKey(key)),
		Body:     bytes.NewReader(packed),
		Metadata: metadata,
	})
	if err != nil {
		return s.fault("set", err)
	}

	s.logger.Debug("object stored",
		"key", key,
		"stored_bytes", len(packed),
		"compression_ratio", ratio,
	)
	return nil
}

// Delete removes the object for key. Returns true when the object existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	existed, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}

	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return false, s.fault("delete", err)
	}
	return existed, nil
}

// Exists reports whether a live (non-expired) object is stored for key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, s.fault("exists", err)
	}
	return !s.expired(out.Metadata), nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *Store) expired(metadata map[string]string) bool {
	raw, ok := metadata[expiresAtMetadataKey]
	if !ok {
		return false
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("unreadable expiry metadata, treating object as live", "value", raw)
		return false
	}
	return s.now().After(expiresAt)
}

func (s *Store) notFound(op string) error {
	return cacheerr.New(cacheerr.CodeNotFound, "key not found").
		WithComponent("s3_store").WithOperation(op)
}

func (s *Store) fault(op string, err error) error {
	return cacheerr.New(cacheerr.CodeConnectivity, "object store failure").
		WithComponent("s3_store").WithOperation(op).WithCause(err)
}

func isNoSuchKey(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

var _ types.RemoteCache = (*Store)(nil)
