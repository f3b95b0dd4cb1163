package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/logger"
)

// ErrNotFound is returned by Open for keys that are not in the archive.
var ErrNotFound = errors.New("archived object not found")

const filenameMetaKey = "Filename"

// Archive stores produced MP3 files in a MinIO bucket under a key prefix.
type Archive struct {
	client *minio.Client
	bucket string
	region string
	prefix string
}

// Object is an archived file opened for reading.
type Object struct {
	io.ReadCloser
	Key          string
	Filename     string
	Size         int64
	LastModified time.Time
}

// NewArchive 创建 MinIO 客户端
func NewArchive(cfg config.MinioConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	logger.Info("MinIO client created",
		logger.String("endpoint", cfg.Endpoint),
		logger.String("bucket", cfg.Bucket),
		logger.Bool("ssl", cfg.UseSSL))

	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// EnsureBucket creates the bucket when it does not exist yet and reports
// whether it did.
func (a *Archive) EnsureBucket(ctx context.Context) (bool, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return false, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return false, fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("Bucket created", logger.String("bucket", a.bucket))
	return true, nil
}

// objectKey builds a unique key below the prefix:
// <prefix><yyyy>/<mm>/<uuid>.mp3
func (a *Archive) objectKey(now time.Time) string {
	return a.prefix + now.UTC().Format("2006/01") + "/" + uuid.NewString() + ".mp3"
}

// Owns reports whether key lies inside the archive prefix.
func (a *Archive) Owns(key string) bool {
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(path.Clean(key), a.prefix)
}

// Archive uploads data and returns its object key. The original download
// name is kept in the object metadata.
func (a *Archive) Archive(ctx context.Context, filename string, data io.Reader, size int64) (string, error) {
	key := a.objectKey(time.Now())
	_, err := a.client.PutObject(ctx, a.bucket, key, data, size, minio.PutObjectOptions{
		ContentType:        "audio/mpeg",
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
		UserMetadata:       map[string]string{filenameMetaKey: url.QueryEscape(filename)},
	})
	if err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}
	logger.Info("Result archived", logger.String("key", key), logger.Int64("bytes", size))
	return key, nil
}

// Open returns the archived object at key. Unknown keys and keys outside the
// prefix give ErrNotFound.
func (a *Archive) Open(ctx context.Context, key string) (*Object, error) {
	if !a.Owns(key) {
		return nil, ErrNotFound
	}
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	filename, err := url.QueryUnescape(info.UserMetadata[filenameMetaKey])
	if err != nil || filename == "" {
		filename = path.Base(key)
	}
	return &Object{
		ReadCloser:   obj,
		Key:          key,
		Filename:     filename,
		Size:         info.Size,
		LastModified: info.LastModified,
	}, nil
}
