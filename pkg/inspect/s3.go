package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when an upload has no destination bucket.
var ErrNoBucket = errors.New("inspect: no bucket configured")

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores recorded traces in an S3 bucket.
//
// Example usage:
//
//	client := inspect.NewS3Client("eu-west-1", "")
//	up := inspect.NewS3Uploader(client, "my-bucket", "traces/")
//	key, err := up.Upload(ctx, "counter", recorder)
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Uploader creates an uploader writing objects under prefix in bucket.
func NewS3Uploader(client ObjectPutter, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// Upload writes the recorder's trace as JSON and returns the object key.
// Keys have the form <prefix><name>-<unix nanos>.json.
func (u *S3Uploader) Upload(ctx context.Context, name string, rec *Recorder) (string, error) {
	if u.bucket == "" {
		return "", ErrNoBucket
	}

	var buf bytes.Buffer
	if err := rec.WriteJSON(&buf); err != nil {
		return "", fmt.Errorf("inspect: encode trace: %w", err)
	}

	now := u.now().UTC()
	key := fmt.Sprintf("%s%s-%d.json", u.prefix, name, now.UnixNano())
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"scenario":    name,
			"records":     strconv.Itoa(len(rec.Records())),
			"dropped":     strconv.FormatUint(rec.Dropped(), 10),
			"upload-time": now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("inspect: s3 upload failed: %w", err)
	}
	return key, nil
}

// NewS3Client builds an S3 client for region using credentials from the
// standard AWS_* environment variables. A non-empty endpoint selects a
// custom S3-compatible service with path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("inspect: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return creds, nil
}
