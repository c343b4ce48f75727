// Package s3 implements file.Store on top of an S3 compatible bucket.
package s3

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/file"
)

// Config holds bucket settings.
type Config struct {
	Bucket    string        `default:"" usage:"bucket for uploaded images"`
	Region    string        `default:"us-east-1" usage:"bucket region"`
	Endpoint  string        `default:"" usage:"custom endpoint for S3 compatible storage"`
	PathStyle bool          `default:"false" usage:"use path-style addressing"`
	URLTTL    time.Duration `default:"1h" usage:"lifetime of presigned download URLs"`
}

// Client is the subset of the S3 API used by Store.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner signs download URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ file.Store = (*Store)(nil)

// Store keeps objects in a single bucket.
type Store struct {
	client    Client
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// New loads the default AWS credential chain and returns a Store for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewStore(client, s3.NewPresignClient(client), cfg.Bucket, cfg.URLTTL), nil
}

// NewStore wraps an existing client.
func NewStore(client Client, presigner Presigner, bucket string, ttl time.Duration) *Store {
	return &Store{client: client, presigner: presigner, bucket: bucket, ttl: ttl}
}

// Put uploads u under key.
func (s *Store) Put(ctx context.Context, key string, u file.Upload) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          u.Body,
		ContentLength: aws.Int64(u.Size),
		ContentType:   aws.String(u.ContentType),
	})
	if err != nil {
		return errors.Wrapf(err, "put object %q", key)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", errors.Wrapf(err, "presign object %q", key)
	}
	return req.URL, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "delete object %q", key)
	}
	return nil
}

// DeleteMany removes keys in one request. Per-key failures are logged.
func (s *Store) DeleteMany(ctx context.Context, keys []string, quiet bool) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(quiet)},
	})
	if err != nil {
		return errors.Wrapf(err, "delete %d objects", len(keys))
	}
	for _, e := range out.Errors {
		zctx.From(ctx).Warn("Object not deleted",
			zap.String("key", aws.ToString(e.Key)),
			zap.String("error", aws.ToString(e.Message)),
		)
	}
	return nil
}
