package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PutObjectAPI is the subset of the S3 client used by S3Uploader.
// *s3.Client implements this interface.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads objects to an Amazon S3 bucket (or any S3 compatible
// endpoint selected through AWS_ENDPOINT_URL).
type S3Uploader struct {
	client S3PutObjectAPI
	bucket string
}

// NewS3Uploader creates an S3Uploader for the given bucket. Region and
// credentials are resolved from the environment using the default AWS
// provider chain; credentials are retrieved eagerly so that a missing
// identity is reported before any work is done. opts are passed through to
// the config loader.
func NewS3Uploader(ctx context.Context, bucket string, opts ...func(*config.LoadOptions) error) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS configuration: %w", ErrCredentials, err)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%w: no AWS credential provider configured", ErrCredentials)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentials, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Failures surface to the operator as-is.
		o.RetryMaxAttempts = 1
	})
	return &S3Uploader{client: client, bucket: bucket}, nil
}

// Upload writes content to S3 at objectName with a single PutObject call.
func (u *S3Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(req.ObjectName),
		Body:   req.Content,
	}
	if req.ContentLength >= 0 {
		input.ContentLength = aws.Int64(req.ContentLength)
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("storage: upload failed for s3://%s/%s: %w", u.bucket, req.ObjectName, err)
	}

	return &UploadResult{
		ObjectName: req.ObjectName,
		Location:   fmt.Sprintf("s3://%s/%s", u.bucket, req.ObjectName),
	}, nil
}
