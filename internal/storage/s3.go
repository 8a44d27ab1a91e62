package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
)

// filenameMetaKey is the S3 user metadata key holding the original filename.
const filenameMetaKey = "filename"

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures an S3 store.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services. Path-style addressing is used when set.
	Endpoint string

	PublicBaseURL string
}

var _ contracts.FileStorage = (*S3)(nil)

// S3 stores files as objects in a bucket, with the filename kept in user metadata.
type S3 struct {
	client        S3API
	bucket        string
	prefix        string
	publicBaseURL string
}

// NewS3FromConfig creates an S3 store using the default AWS credential chain.
func NewS3FromConfig(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3(client, cfg)
}

// NewS3 creates an S3 store using the given client.
func NewS3(client S3API, cfg S3Config) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client cannot be nil")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket cannot be empty")
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        prefix,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

func (s *S3) Upload(ctx context.Context, r io.Reader, opts domain.UploadOptions) (domain.UploadResult, error) {
	filename := SanitizeFilename(opts.Filename)
	contentType := ResolveContentType(opts.ContentType, filename)
	key := NewKey(filename)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{filenameMetaKey: url.QueryEscape(filename)},
	}
	if opts.Size >= 0 {
		input.ContentLength = aws.Int64(opts.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: put %s: %w", errorsint.ErrStorage, key, err)
	}

	meta, err := s.Metadata(ctx, key)
	if err != nil {
		return domain.UploadResult{}, err
	}

	return domain.UploadResult{URL: s.PublicURL(key), Key: key, Metadata: meta}, nil
}

func (s *S3) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", errorsint.ErrFileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", errorsint.ErrStorage, key, err)
	}

	return out.Body, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *S3) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: delete %s: %w", errorsint.ErrStorage, key, err)
	}

	return nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}

	_, err := s.head(ctx, key)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: head %s: %w", errorsint.ErrStorage, key, err)
	}

	return true, nil
}

func (s *S3) Metadata(ctx context.Context, key string) (domain.FileMetadata, error) {
	if !ValidKey(key) {
		return domain.FileMetadata{}, fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	out, err := s.head(ctx, key)
	if isNotFound(err) {
		return domain.FileMetadata{}, fmt.Errorf("%w: %s", errorsint.ErrFileNotFound, key)
	}
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("%w: head %s: %w", errorsint.ErrStorage, key, err)
	}

	filename := key
	if v, ok := out.Metadata[filenameMetaKey]; ok {
		if decoded, err := url.QueryUnescape(v); err == nil && decoded != "" {
			filename = decoded
		}
	}

	meta := domain.FileMetadata{
		Filename:     filename,
		ContentType:  ResolveContentType(aws.ToString(out.ContentType), filename),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: out.LastModified,
	}

	return meta, nil
}

func (s *S3) PublicURL(key string) string {
	return PublicURL(s.publicBaseURL, key)
}

func (s *S3) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
}

func (s *S3) objectKey(key string) string {
	return s.prefix + key
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
