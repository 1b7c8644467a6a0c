package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/pkg/utils"
)

const (
	// FolderLogos is the S3 prefix for team logos.
	FolderLogos = "teams/logos"
	// FolderUsers is the S3 prefix for per-user objects.
	FolderUsers = "users"
)

// ErrUnsupportedType is returned for uploads that are not images.
var ErrUnsupportedType = errors.New("unsupported file type: only jpg, png, webp and gif images are allowed")

// AllowedImageTypes maps image MIME types to their canonical extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var allowedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ImageContentType returns the MIME type for an upload, preferring the declared content type
// and falling back to the filename extension.
func ImageContentType(contentType, filename string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := AllowedImageTypes[ct]; ok {
		return ct, nil
	}
	if ct, ok := allowedImageExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct, nil
	}
	return "", ErrUnsupportedType
}

// LogoKey returns the object key for a team logo: teams/logos/{unix_ms}_{rand}.{ext}.
func LogoKey(filename string, now time.Time) string {
	return path.Join(FolderLogos, objectName(filename, now))
}

// AvatarKey returns the object key for a user photo: users/{user_id}/avatar/{unix_ms}_{rand}.{ext}.
func AvatarKey(userID, filename string, now time.Time) string {
	return path.Join(FolderUsers, userID, "avatar", objectName(filename, now))
}

func objectName(filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" {
		ext = ".bin"
	}
	suffix, err := utils.RandomSuffix(9)
	if err != nil {
		suffix = "000000000"
	}
	return fmt.Sprintf("%d_%s%s", now.UnixMilli(), suffix, ext)
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MediaBucket     string
	// PublicBaseURL overrides the default https://{bucket}.s3.{region}.amazonaws.com (CDN in front of the bucket).
	PublicBaseURL string
}

// S3 stores uploaded images in a public-read bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the environment.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.MediaBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Upload stores body under key in the media bucket and returns its public URL.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.MediaBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("object uploaded", zap.String("key", key), zap.Int64("size", size))
	return s.PublicURL(key), nil
}

// PublicURL resolves a stored key to a retrievable URL.
func (s *S3) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.MediaBucket, s.cfg.Region, key)
}

// Delete removes an object from the media bucket.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.MediaBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// ErrUnavailable is returned by Unavailable for every call.
var ErrUnavailable = errors.New("media storage is not configured")

// Unavailable stands in for S3 when the client could not be created.
type Unavailable struct{}

func (Unavailable) Upload(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Delete(context.Context, string) error { return ErrUnavailable }

// Memory keeps objects in process. Used by in-memory deployments and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "memory://" + key, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Object returns a stored object.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
