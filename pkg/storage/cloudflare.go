package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	internalConfig "github.com/sefazor/bnpl-checkout/internal/config"
)

// CloudflareStorage stores objects in an R2 bucket through the S3 API.
type CloudflareStorage struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

func NewCloudflareStorage(cfg internalConfig.R2Config, logger *zap.Logger) (*CloudflareStorage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	return newS3Storage(context.Background(), endpoint, cfg, false, logger)
}

func newS3Storage(ctx context.Context, endpoint string, cfg internalConfig.R2Config, pathStyle bool, logger *zap.Logger) (*CloudflareStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = pathStyle
	})

	return &CloudflareStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func (s *CloudflareStorage) Upload(ctx context.Context, key string, src io.Reader, contentType string) error {
	buf, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read object content: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(int64(len(buf))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("R2 upload failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to upload to R2: %w", err)
	}

	s.logger.Debug("R2 upload finished", zap.String("key", key), zap.Int("bytes", len(buf)))
	return nil
}
