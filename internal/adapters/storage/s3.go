package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jobrunner/tarantula/internal/ports/output"
)

// S3Storage implements ObjectStorage for an S3 bucket, or any S3
// compatible store when an endpoint is configured.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds S3 configuration.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Storage creates a new S3 storage adapter. Without static
// credentials the default AWS credential chain is used.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and other S3 compatible stores need path style addressing.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
	}, nil
}

// List pages through the objects below each district prefix.
func (s *S3Storage) List(ctx context.Context, districts []string) ([]output.StorageObject, error) {
	prefixes := []string{s.fullKey("")}
	if len(districts) > 0 {
		prefixes = prefixes[:0]
		for _, d := range districts {
			prefixes = append(prefixes, s.fullKey(d+"/"))
		}
	}

	var objects []output.StorageObject
	for _, prefix := range prefixes {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
			}

			for _, obj := range page.Contents {
				key := s.relKey(aws.ToString(obj.Key))
				if !inDistricts(key, districts) {
					continue
				}

				objects = append(objects, output.StorageObject{
					Key:          key,
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified).Unix(),
					ETag:         strings.Trim(aws.ToString(obj.ETag), "\""),
				})
			}
		}
	}

	return objects, nil
}

// Download fetches an object into dest.
func (s *S3Storage) Download(ctx context.Context, key string, dest string) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}
	defer func() { _ = resp.Body.Close() }()

	return writeFile(dest, resp.Body)
}

// fullKey returns the full S3 key including prefix.
func (s *S3Storage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// relKey strips the configured prefix from an S3 key.
func (s *S3Storage) relKey(key string) string {
	key = strings.TrimPrefix(key, s.prefix)
	return strings.TrimPrefix(key, "/")
}
