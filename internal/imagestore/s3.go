package imagestore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/patric-chuzhbe/profilesite/internal/models"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads images to a bucket with public-read visibility. The bytes are
// staged in a temporary file first and the file is removed afterwards.
type S3 struct {
	client   objectPutter
	bucket   string
	region   string
	endpoint string
	tempDir  string
}

// S3Options describes the bucket and credentials used by NewS3Client and NewS3.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	TempDir         string
}

// NewS3Client builds an S3 client for the region. Static credentials are
// used when given, otherwise the default AWS credential chain. A custom
// endpoint (MinIO and the like) switches to path-style addressing.
func NewS3Client(ctx context.Context, options S3Options) (*s3.Client, error) {
	loadOptions := []func(*config.LoadOptions) error{config.WithRegion(options.Region)}
	if options.AccessKeyID != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKeyID, options.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("in internal/imagestore/s3.go/NewS3Client(): error while `config.LoadDefaultConfig()` calling: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if options.Endpoint != "" {
			o.BaseEndpoint = aws.String(options.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3 returns an S3 store uploading through client.
func NewS3(client objectPutter, options S3Options) *S3 {
	return &S3{
		client:   client,
		bucket:   options.Bucket,
		region:   options.Region,
		endpoint: strings.TrimRight(options.Endpoint, "/"),
		tempDir:  options.TempDir,
	}
}

// Store uploads file under a fresh key and returns the object URL.
func (s *S3) Store(ctx context.Context, file io.Reader, originalFilename string) (string, error) {
	key, err := storageKey(originalFilename)
	if err != nil {
		return "", err
	}

	if err := writeFile(s.tempDir, key, file); err != nil {
		return "", err
	}
	tempPath := filepath.Join(s.tempDir, key)
	defer os.Remove(tempPath)

	staged, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("%w: in internal/imagestore/s3.go/Store(): error while `os.Open()` calling: %w", models.ErrStorageFailure, err)
	}
	defer staged.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   staged,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: in internal/imagestore/s3.go/Store(): error while `s.client.PutObject()` calling: %w", models.ErrStorageFailure, err)
	}

	return s.objectURL(key), nil
}

func (s *S3) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
