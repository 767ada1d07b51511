package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType is the media type of exported payloads.
const ContentType = "application/x-ndjson"

// S3Destination uploads each export to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. key may contain "{job}",
// which is replaced by the exported job ID. A non-empty endpoint enables
// path-style addressing for MinIO and similar servers.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 destination: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Destination{client: s3.NewFromConfig(cfg, opts...), bucket: bucket, key: key}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// ObjectKey returns the key p is stored under.
func (d *S3Destination) ObjectKey(p Payload) string {
	job := p.JobID
	if job == "" {
		job = "none"
	}
	return strings.ReplaceAll(d.key, "{job}", job)
}

// Write uploads p.
func (d *S3Destination) Write(ctx context.Context, p Payload) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.ObjectKey(p)),
		Body:        bytes.NewReader(p.Data),
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"job-id": p.JobID,
			"digest": p.Digest,
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
