package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists encoded snapshots to S3 (or any S3-compatible service,
// such as MinIO). Grounded on the teacher's S3Client: same
// static-credentials + path-style-addressing configuration, same
// skip-bucket-verification escape hatch for local development.
type Store struct {
	client *s3.Client
	bucket string
}

// NewStore creates a Store configured for the given endpoint. For MinIO,
// set useSSL to false and pass the MinIO endpoint
// (e.g. "http://localhost:9002").
func NewStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL, skipBucketVerification bool) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("snapshot: bucket name is required")
	}

	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		if !useSSL {
			o.EndpointOptions.DisableHTTPS = true
		}
	})

	if !skipBucketVerification {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		if err != nil {
			_, createErr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
			if createErr != nil {
				return nil, fmt.Errorf("snapshot: bucket %q not accessible and could not create: %w (original: %v)", bucket, createErr, err)
			}
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// key returns the S3 object key for a snapshot id.
func (st *Store) key(id string) string {
	return path.Join("snapshots", id+".gob")
}

// Save encodes and uploads a snapshot, returning its object key.
func (st *Store) Save(ctx context.Context, s Snapshot) (string, error) {
	data, err := Encode(s)
	if err != nil {
		return "", err
	}
	key := st.key(s.ID)
	_, err = st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(st.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: upload %q: %w", key, err)
	}
	return key, nil
}

// Load downloads and decodes the snapshot with the given id.
func (st *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	output, err := st.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.key(id)),
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: download %q: %w", id, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read %q: %w", id, err)
	}
	return Decode(data)
}

// Delete removes a snapshot from the store.
func (st *Store) Delete(ctx context.Context, id string) error {
	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.key(id)),
	})
	if err != nil {
		return fmt.Errorf("snapshot: delete %q: %w", id, err)
	}
	return nil
}
