package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/errs"
)

type ObjectInfo struct {
	Exists       bool
	Size         int64
	ContentType  string
	LastModified time.Time
}

type ObjectStorage interface {
	// Get reads at most limit+1 bytes so callers can detect oversize objects.
	Get(ctx context.Context, bucket, key string, limit int64) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Head(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
}

type s3Storage struct {
	client *s3.Client
}

func NewS3Storage(ctx context.Context, cfg config.S3Config) (ObjectStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &s3Storage{client: client}, nil
}

func (s *s3Storage) Get(ctx context.Context, bucket, key string, limit int64) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("get", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *s3Storage) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return mapS3Error("put", bucket, key, err)
	}
	return nil
}

func (s *s3Storage) Head(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapS3Error("head", bucket, key, err)
		if errors.Is(mapped, errs.ErrNotFound) {
			return &ObjectInfo{Exists: false}, nil
		}
		return nil, mapped
	}

	info := &ObjectInfo{
		Exists:      true,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

func (s *s3Storage) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapS3Error("delete", bucket, key, err)
	}
	return nil
}

func mapS3Error(op, bucket, key string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("s3 %s s3://%s/%s: %w", op, bucket, key, errs.ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("s3 %s s3://%s/%s: %w", op, bucket, key, errs.ErrNotFound)
		}
	}

	return fmt.Errorf("failed to %s s3://%s/%s: %w", op, bucket, key, err)
}

// BuildSubmissionKey returns the object key of a new submission upload.
func BuildSubmissionKey(evaluationID, groupID uuid.UUID) string {
	return fmt.Sprintf("evaluations/%s/groups/%s/%s.pdf", evaluationID, groupID, uuid.New())
}

// BuildRubricKey returns the object key of an uploaded rubric document.
func BuildRubricKey(evaluationID uuid.UUID) string {
	return fmt.Sprintf("evaluations/%s/rubrics/%s.pdf", evaluationID, uuid.New())
}
