// Package archive persists long-lived compliance artifacts — filed NFIU
// report bundles and Audit & Forensics export bundles — to S3, adapted
// from the teacher's S3 archive repository which archived raw audit
// event batches.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/ngbank/aml-compliance/internal/config"
)

type Repository struct {
	client *s3.Client
	bucket string
}

func New(ctx context.Context, cfg appconfig.S3Config) (*Repository, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &Repository{client: client, bucket: cfg.ArchiveBucket}, nil
}

// StoreReportBundle uploads a filed report's NFIU export envelope,
// keyed so the Reporting Service's file operation (§4.7) can retrieve it
// by report number for regulator re-delivery.
func (r *Repository) StoreReportBundle(ctx context.Context, reportNumber string, export any) error {
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshal report bundle: %w", err)
	}
	now := time.Now().UTC()
	key := fmt.Sprintf("reports/%d/%02d/%s.json", now.Year(), now.Month(), reportNumber)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload report bundle: %w", err)
	}
	return nil
}

// StoreForensicsExport uploads an Audit & Forensics export bundle (§4.8),
// keyed by the requesting export's own identifier.
func (r *Repository) StoreForensicsExport(ctx context.Context, exportID string, bundle any) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal forensics export: %w", err)
	}
	now := time.Now().UTC()
	key := fmt.Sprintf("forensics/%d/%02d/%02d/%s.json", now.Year(), now.Month(), now.Day(), exportID)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload forensics export: %w", err)
	}
	return nil
}
