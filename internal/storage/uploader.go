// Package storage keeps generated media in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Uploader struct {
	cfg    Config
	client objectAPI
}

func NewUploader(cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Uploader{cfg: cfg, client: s3.New(options)}, nil
}

// Upload stores data under objectPath and returns the URL it will be served
// from once MakePublic succeeds.
func (u *Uploader) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no data to upload")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := u.key(objectPath)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.PublicURL(objectPath), nil
}

func (u *Uploader) MakePublic(ctx context.Context, objectPath string) error {
	key := u.key(objectPath)
	_, err := u.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("make %s public: %w", key, err)
	}
	return nil
}

func (u *Uploader) Delete(ctx context.Context, objectPath string) error {
	key := u.key(objectPath)
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) PublicURL(objectPath string) string {
	return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + u.key(objectPath)
}

func (u *Uploader) key(objectPath string) string {
	return path.Join(strings.Trim(u.cfg.Prefix, "/"), strings.TrimLeft(objectPath, "/"))
}

// ExtensionFor maps a MIME type to the file extension used in object paths.
func ExtensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
