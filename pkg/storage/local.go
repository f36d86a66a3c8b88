package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage 本地文件存储实现
// 容器对应basePath下的一个子目录
type LocalStorage struct {
	basePath  string // 基础存储路径
	container string // 容器名称
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path      string // 本地存储路径
	Container string // 容器名称
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.Container == "" {
		return nil, errors.New("container name is required")
	}

	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Join(absPath, cfg.Container), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:  absPath,
		container: cfg.Container,
	}, nil
}

// Container 返回容器名称
func (s *LocalStorage) Container() string {
	return s.container
}

func (s *LocalStorage) containerDir() string {
	return filepath.Join(s.basePath, s.container)
}

func (s *LocalStorage) filePath(name string) string {
	return filepath.Join(s.containerDir(), filepath.FromSlash(name))
}

func (s *LocalStorage) info(name string, size int64) BlobInfo {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.filePath(name))}
	return BlobInfo{
		Name:        name,
		Path:        FullPath(s.container, name),
		Size:        size,
		ContentType: getMimeType(name),
		URL:         u.String(),
	}
}

// Upload 保存文件，同名文件会被覆盖
func (s *LocalStorage) Upload(ctx context.Context, name string, r io.Reader, size int64) (BlobInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return BlobInfo{}, err
	}

	p := s.filePath(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return BlobInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	// 先写临时文件再重命名，避免读到写了一半的文件
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return BlobInfo{}, fmt.Errorf("failed to store file: %w", err)
	}

	return s.info(name, written), nil
}

// Open 打开文件
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(s.filePath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Stat 获取文件元数据
func (s *LocalStorage) Stat(ctx context.Context, name string) (BlobInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return BlobInfo{}, err
	}

	fi, err := os.Stat(s.filePath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BlobInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return BlobInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if fi.IsDir() {
		return BlobInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.info(name, fi.Size()), nil
}

// List 按前缀列出文件，结果按名称排序
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var blobs []BlobInfo

	err := filepath.WalkDir(s.containerDir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		// 跳过目录和上传中的临时文件
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(s.containerDir(), p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, s.info(name, fi.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Name < blobs[j].Name })
	return blobs, nil
}
