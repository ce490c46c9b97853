package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"runway-live-backend/internal/models"
)

const imageURLTTL = 15 * time.Minute

// MediaService resolves stored image keys into presigned S3 GET URLs so
// look and product records can be served and broadcast with directly
// loadable image links.
type MediaService struct {
	presign *s3.PresignClient
	bucket  string
}

// NewMediaService creates a new media service. A custom endpoint supports
// S3-compatible storage providers.
func NewMediaService(region, bucket, accessKey, secretKey, endpoint string) (*MediaService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &MediaService{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

// ImageURL returns a presigned GET URL for a stored image key
func (s *MediaService) ImageURL(ctx context.Context, key string) (string, error) {
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = imageURLTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign image %s: %w", key, err)
	}
	return request.URL, nil
}

// ResolveProductImages fills ImageURLs for each product from its image keys
func (s *MediaService) ResolveProductImages(ctx context.Context, products ...*models.Product) error {
	for _, p := range products {
		if len(p.ImageKeys) == 0 {
			continue
		}
		urls := make([]string, 0, len(p.ImageKeys))
		for _, key := range p.ImageKeys {
			url, err := s.ImageURL(ctx, key)
			if err != nil {
				return err
			}
			urls = append(urls, url)
		}
		p.ImageURLs = urls
	}
	return nil
}
