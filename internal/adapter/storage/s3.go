package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	appconfig "github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

type S3Storage struct {
	client   *s3.Client
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3 builds the client once; endpoint and addressing style affect request
// signing, so they are fixed here rather than per call.
func NewS3(ctx context.Context, cfg *appconfig.S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, &domain.ConfigError{Field: "storage.s3.bucket", Reason: "is required"}
	}
	if cfg.Region == "" {
		return nil, &domain.ConfigError{Field: "storage.s3.region", Reason: "is required"}
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		o.Retryer = retry.AddWithMaxAttempts(retry.NewStandard(), maxAttempts)
		// S3-compatible stores often reject the newer default checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	partSize := cfg.PartSizeMB * 1024 * 1024
	if partSize < s3manager.MinUploadPartSize {
		partSize = s3manager.MinUploadPartSize
	}
	uploader := s3manager.NewUploader(client, func(u *s3manager.Uploader) {
		u.PartSize = partSize
		u.LeavePartsOnError = false
	})

	return &S3Storage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Storage) Name() string {
	return "s3://" + s.bucket
}

func (s *S3Storage) fullKey(remoteKey string) string {
	if s.prefix == "" {
		return remoteKey
	}
	return path.Join(s.prefix, remoteKey)
}

func (s *S3Storage) relativeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// Upload streams the file in parts; memory use does not depend on its size.
// A failed multipart upload is aborted, leaving no object behind.
func (s *S3Storage) Upload(ctx context.Context, localPath string, remoteKey string) error {
	key := s.fullKey(remoteKey)

	file, err := os.Open(localPath)
	if err != nil {
		return &domain.UploadError{Key: key, Err: fmt.Errorf("failed to open file: %w", err)}
	}
	defer file.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return &domain.UploadError{Key: key, Err: describeAPIError(err)}
	}

	return nil
}

func (s *S3Storage) objects(ctx context.Context) ([]s3Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var objects []s3Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", describeAPIError(err))
		}
		for _, obj := range page.Contents {
			name := s.relativeKey(aws.ToString(obj.Key))
			if name == "" {
				continue
			}
			objects = append(objects, s3Object{key: name, modified: aws.ToTime(obj.LastModified)})
		}
	}
	return objects, nil
}

type s3Object struct {
	key      string
	modified time.Time
}

func (s *S3Storage) List(ctx context.Context) ([]string, error) {
	objects, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(objects))
	for _, obj := range objects {
		files = append(files, obj.key)
	}
	return files, nil
}

func (s *S3Storage) Delete(ctx context.Context, remoteKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(remoteKey)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", describeAPIError(err))
	}
	return nil
}

func (s *S3Storage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	objects, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	var oldFiles []string
	for _, obj := range objects {
		if obj.modified.Before(cutoffTime) {
			oldFiles = append(oldFiles, obj.key)
		}
	}
	return oldFiles, nil
}

// describeAPIError keeps the service error code visible in logs.
func describeAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
