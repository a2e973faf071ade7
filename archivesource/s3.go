package archivesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Source reads the archive payload from Amazon S3 or a compatible object
// store. Without credentials it can still read publicly accessible objects.
type S3Source struct {
	client *s3.S3
	bucket string
	key    string
	log    *slog.Logger
}

// NewS3Source creates an S3 archive source. If accessKey and secretKey are
// empty, requests are unsigned.
func NewS3Source(bucket, key, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Source, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Source{
		client: s3.New(sess),
		bucket: bucket,
		key:    key,
		log:    log,
	}, nil
}

// Fetch downloads the payload object. Returns ErrArchiveNotFound for a
// missing key.
func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrArchiveNotFound
		}
		return nil, fmt.Errorf("failed to fetch archive from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	s.log.Debug("Fetched archive payload from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks bucket accessibility with a HEAD request.
func (s *S3Source) Available(ctx context.Context) bool {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return err == nil
}

// Name returns a unique identifier for this source.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3-%s-%s", s.bucket, s.key)
}
