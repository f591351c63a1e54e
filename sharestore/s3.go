package sharestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/threshold-xks/interfaces"
)

// S3Config describes where a share document lives in S3 or an S3-compatible
// service.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string

	// AccessKey and SecretKey select static credentials. When empty the
	// default AWS credential chain is used, unless Anonymous is set.
	AccessKey string
	SecretKey string
	Anonymous bool
}

// S3Source reads a share document from an S3 object.
type S3Source struct {
	client *s3.S3
	bucket string
	key    string
	log    *slog.Logger
}

// NewS3Source creates an S3 share source.
func NewS3Source(cfg S3Config, log *slog.Logger) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 share source requires a bucket and an object key")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region:     aws.String(cfg.Region),
		MaxRetries: aws.Int(1),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	case cfg.Anonymous:
		awsCfg.Credentials = credentials.AnonymousCredentials
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Source{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		key:    strings.TrimPrefix(cfg.Key, "/"),
		log:    log,
	}, nil
}

// Fetch downloads the document object. Missing objects and access denials
// are permanent; other failures are reported as ErrSourceUnavailable.
func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		s.log.Error("Failed to get share document from S3",
			slog.String("bucket", s.bucket),
			slog.String("key", s.key),
			"err", err,
			slog.Duration("duration", time.Since(start)))

		var reqErr awserr.RequestFailure
		if errors.As(err, &reqErr) {
			switch reqErr.StatusCode() {
			case http.StatusNotFound, http.StatusForbidden:
				return nil, fmt.Errorf("s3 object %s/%s: %w", s.bucket, s.key, err)
			}
		}
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("s3 object %s/%s: %w", s.bucket, s.key, err)
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read object body: %v", interfaces.ErrSourceUnavailable, err)
	}

	s.log.Debug("Fetched share document from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Name returns a unique identifier for this source.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3-%s/%s", s.bucket, s.key)
}
