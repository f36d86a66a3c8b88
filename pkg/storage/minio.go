package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO(S3兼容)存储实现
// 容器对应一个存储桶
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
	Region    string // 区域，可为空
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// 检查存储桶是否存在，不存在则创建
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Container 返回存储桶名称
func (s *MinioStorage) Container() string {
	return s.bucketName
}

func (s *MinioStorage) objectURL(name string) string {
	u := *s.client.EndpointURL()
	u.Path = "/" + s.bucketName + "/" + name
	u.RawPath = "/" + url.PathEscape(s.bucketName) + "/" + escapeObjectName(name)
	return u.String()
}

func escapeObjectName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (s *MinioStorage) info(name string, size int64, contentType string) BlobInfo {
	if contentType == "" {
		contentType = getMimeType(name)
	}
	return BlobInfo{
		Name:        name,
		Path:        FullPath(s.bucketName, name),
		Size:        size,
		ContentType: contentType,
		URL:         s.objectURL(name),
	}
}

// Upload 上传对象，同名对象会被覆盖
// size为-1时由客户端分片上传
func (s *MinioStorage) Upload(ctx context.Context, name string, r io.Reader, size int64) (BlobInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return BlobInfo{}, err
	}

	contentType := getMimeType(name)
	uploaded, err := s.client.PutObject(ctx, s.bucketName, name, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to upload object: %w", err)
	}
	return s.info(name, uploaded.Size, contentType), nil
}

// Open 打开对象
func (s *MinioStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(name, err)
	}
	// GetObject是惰性的，通过Stat确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.translate(name, err)
	}
	return obj, nil
}

// Stat 获取对象元数据
func (s *MinioStorage) Stat(ctx context.Context, name string) (BlobInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return BlobInfo{}, err
	}

	stat, err := s.client.StatObject(ctx, s.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		return BlobInfo{}, s.translate(name, err)
	}
	return s.info(name, stat.Size, stat.ContentType), nil
}

// List 按前缀列出对象，存储桶不存在时返回空列表
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return []BlobInfo{}, nil
	}

	var blobs []BlobInfo
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		blobs = append(blobs, s.info(object.Key, object.Size, object.ContentType))
	}
	return blobs, nil
}

// translate 将对象不存在的错误转换为ErrNotFound
func (s *MinioStorage) translate(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("failed to access object %s: %w", name, err)
}
