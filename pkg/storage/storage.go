package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("blob not found")

// BlobInfo 对象元数据
type BlobInfo struct {
	Name        string // 容器内的对象名
	Path        string // 带容器前缀的完整路径，如 "documents/report.pdf"
	Size        int64  // 对象大小(字节)
	ContentType string // MIME类型
	URL         string // 访问地址
}

// Storage 对象存储接口
// 所有对象都位于同一个容器(桶)中，可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Container 返回容器名称
	Container() string

	// Upload 上传对象，同名对象会被覆盖
	Upload(ctx context.Context, name string, r io.Reader, size int64) (BlobInfo, error)

	// Open 打开对象内容
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat 获取对象元数据
	Stat(ctx context.Context, name string) (BlobInfo, error)

	// List 按前缀列出对象，容器不存在时返回空列表
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// FullPath 拼接容器名和对象名
func FullPath(container, name string) string {
	return container + "/" + name
}

// SplitPath 将 "container/name" 形式的路径拆分为容器名和对象名
// 不含斜杠时容器名为空
func SplitPath(p string) (container, name string) {
	p = strings.TrimPrefix(p, "/")
	i := strings.Index(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// cleanName 规范化对象名，拒绝跳出容器的路径
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "" || name == "." {
		return "", errors.New("blob name is required")
	}
	return name, nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
