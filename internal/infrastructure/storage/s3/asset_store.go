package s3

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/videotube/account-service/internal/core/ports"
)

// Config captures the object-store settings. Endpoint is optional and allows
// pointing at an S3-compatible store (MinIO) in development.
type Config struct {
	Region        string
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// AssetStore persists user media in an S3 bucket and addresses it by public URL.
type AssetStore struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewAssetStore builds the S3 client and returns a store implementing
// ports.AssetStore.
func NewAssetStore(ctx context.Context, cfg Config) (*AssetStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &AssetStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the asset under a fresh key and returns its public URL.
func (a *AssetStore) Upload(ctx context.Context, asset ports.AssetUpload) (string, error) {
	key := a.objectKey(asset.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   asset.Reader,
	}
	if asset.ContentType != "" {
		input.ContentType = aws.String(asset.ContentType)
	}
	if asset.Size > 0 {
		input.ContentLength = aws.Int64(asset.Size)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}

// Remove deletes the object addressed by a URL previously returned by Upload.
// URLs outside this store's base are ignored.
func (a *AssetStore) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, a.baseURL+"/")
	if !ok || key == "" {
		return nil
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// objectKey generates a collision-free key, preserving the original extension
// so the served content type stays guessable.
func (a *AssetStore) objectKey(filename string) string {
	return fmt.Sprintf("assets/%s%s", uuid.New(), strings.ToLower(path.Ext(filename)))
}
