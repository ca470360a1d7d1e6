package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/BradenHooton/mriscan/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PresignedUpload is a short-lived URL a client can PUT a scan file to.
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	Method    string    `json:"method"`
	Key       string    `json:"key"`
	ObjectURL string    `json:"originalUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// S3Uploader presigns scan uploads against an S3-compatible bucket.
type S3Uploader struct {
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
	expiry   time.Duration
	now      func() time.Time
}

func NewS3Uploader(ctx context.Context, cfg config.StorageConfig) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		expiry:   cfg.PresignExpiry,
		now:      time.Now,
	}, nil
}

// PresignUpload returns a presigned PUT for a new object under the user's prefix.
func (u *S3Uploader) PresignUpload(ctx context.Context, userID, filename, contentType string) (*PresignedUpload, error) {
	key := ObjectKey(userID, filename, u.now())

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := u.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		Method:    req.Method,
		Key:       key,
		ObjectURL: u.objectURL(key),
		ExpiresAt: u.now().Add(u.expiry),
	}, nil
}

func (u *S3Uploader) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if u.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, escaped)
}

// ObjectKey builds scans/<userID>/<yyyy>/<mm>/<dd>/<uuid>-<filename>.
func ObjectKey(userID, filename string, now time.Time) string {
	return fmt.Sprintf("scans/%s/%s/%s-%s",
		userID, now.UTC().Format("2006/01/02"), uuid.New().String(), SafeFilename(filename))
}

// SafeFilename strips directories and keeps only [A-Za-z0-9._-].
func SafeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	safe := strings.Trim(b.String(), ".")
	if safe == "" {
		return "scan"
	}
	return safe
}
