package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clipstream/internal/config"
)

// ObjectStore is the object storage surface stage executors depend on.
type ObjectStore interface {
	Download(ctx context.Context, key, localPath string) error
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	UploadDirectory(ctx context.Context, prefix, localDir string) error
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// Client talks to the S3-compatible store configured in [storage].
type Client struct {
	api    *minio.Client
	bucket string
}

// New builds a storage client and verifies the configured bucket exists,
// creating it when absent.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	api, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseTLS,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	client := &Client{api: api, bucket: cfg.Storage.Bucket}
	if err := client.ensureBucket(ctx, cfg.Storage.Region); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", c.bucket, err)
	}
	return nil
}

// Download copies an object to a local file, creating parent directories.
func (c *Client) Download(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if err := c.api.FGetObject(ctx, c.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// UploadFile stores a local file under the given object key.
func (c *Client) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	opts := minio.PutObjectOptions{}
	if contentType != "" {
		opts.ContentType = contentType
	}
	if _, err := c.api.FPutObject(ctx, c.bucket, key, localPath, opts); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// UploadDirectory mirrors a local directory tree under the given key prefix.
// Object keys always use forward slashes regardless of host separator.
func (c *Client) UploadDirectory(ctx context.Context, prefix, localDir string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		key := prefix + "/" + strings.ReplaceAll(rel, string(filepath.Separator), "/")
		if _, err := c.api.FPutObject(ctx, c.bucket, key, path, minio.PutObjectOptions{
			ContentType: contentTypeFor(path),
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		return nil
	})
}

// Exists reports whether an object is present under the given key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errResp := minio.ToErrorResponse(err); errResp.Code != "" {
		resp = errResp
	}
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Size returns the byte size of the object under the given key.
func (c *Client) Size(ctx context.Context, key string) (int64, error) {
	info, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return info.Size, nil
}

// ReadRange fetches length bytes of the object starting at offset. Short
// reads near the end of the object return the available bytes.
func (c *Client) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	obj, err := c.api.GetObject(ctx, c.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", key, err)
	}
	return data, nil
}

// PresignedGetURL returns a time-limited URL external tools can read the
// object through without holding storage credentials.
func (c *Client) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := c.api.PresignedGetObject(ctx, c.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes the object under the given key. Deleting a missing object
// is not an error.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.api.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	default:
		return ""
	}
}
