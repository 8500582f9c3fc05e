package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by the archive.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive stores reports as JSON objects in an S3 bucket.
type S3Archive struct {
	client S3API
	bucket string
}

// NewS3Archive loads AWS configuration and creates the S3 client.
func NewS3Archive(ctx context.Context, bucket, region, profile string) (*S3Archive, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewS3ArchiveWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3ArchiveWithClient wraps an existing client.
func NewS3ArchiveWithClient(client S3API, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

// SaveReport puts the report under reports/<tenant>/<campaign>.json.
func (s *S3Archive) SaveReport(ctx context.Context, r *Report) error {
	jsonData, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	key := ReportKey(r.Campaign.TenantID, r.Campaign.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object %s to S3: %w", key, err)
	}
	return nil
}

// LoadReport fetches a report from the bucket.
func (s *S3Archive) LoadReport(ctx context.Context, tenantID, campaignID string) (*Report, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ReportKey(tenantID, campaignID)),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return &r, nil
}
