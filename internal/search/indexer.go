package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultIndexName 默认索引名称
	DefaultIndexName = "rag-index"
	// DefaultAPIVersion 默认的Azure AI Search API版本
	DefaultAPIVersion = "2023-11-01"
	// ActionUpload 写入或覆盖文档
	ActionUpload = "upload"
)

// Indexer 向量检索服务的写入接口
type Indexer interface {
	// Index 将记录及其向量写入索引，会原地修改record
	Index(ctx context.Context, record *document.Record, embedding []float32) error
}

// Config 索引客户端配置
type Config struct {
	Endpoint   string // 服务地址，如 https://xxx.search.windows.net
	APIKey     string // 管理密钥
	IndexName  string // 索引名称
	APIVersion string // API版本
}

// Option 配置选项
type Option func(*AzureSearchIndexer)

// WithIndexName 设置索引名称
func WithIndexName(name string) Option {
	return func(i *AzureSearchIndexer) {
		if name != "" {
			i.cfg.IndexName = name
		}
	}
}

// WithAPIVersion 设置API版本
func WithAPIVersion(version string) Option {
	return func(i *AzureSearchIndexer) {
		if version != "" {
			i.cfg.APIVersion = version
		}
	}
}

// WithHTTPClient 设置HTTP客户端
func WithHTTPClient(client *http.Client) Option {
	return func(i *AzureSearchIndexer) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(i *AzureSearchIndexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// AzureSearchIndexer Azure AI Search 文档写入客户端
type AzureSearchIndexer struct {
	cfg        Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewAzureSearchIndexer 创建索引客户端
func NewAzureSearchIndexer(endpoint, apiKey string, opts ...Option) (*AzureSearchIndexer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("search api key is required")
	}

	i := &AzureSearchIndexer{
		cfg: Config{
			Endpoint:   strings.TrimRight(endpoint, "/"),
			APIKey:     apiKey,
			IndexName:  DefaultIndexName,
			APIVersion: DefaultAPIVersion,
		},
		httpClient: &http.Client{},
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IndexName 返回索引名称
func (i *AzureSearchIndexer) IndexName() string {
	return i.cfg.IndexName
}

// documentsURL 返回文档写入地址
func (i *AzureSearchIndexer) documentsURL() string {
	return fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s",
		i.cfg.Endpoint, url.PathEscape(i.cfg.IndexName), url.QueryEscape(i.cfg.APIVersion))
}

// Index 附加向量和上传标记，序列化结构化元数据后写入索引
// 非2xx响应返回IndexingError，不做重试
func (i *AzureSearchIndexer) Index(ctx context.Context, record *document.Record, embedding []float32) error {
	if err := PrepareRecord(record, embedding); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]interface{}{
		"value": []*document.Record{record},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.documentsURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", i.cfg.APIKey)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		i.logger.WithFields(logrus.Fields{
			"record_id":   record.ID,
			"status_code": resp.StatusCode,
			"body":        string(respBody),
		}).Error("Search index request failed")
		return &IndexingError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	i.logger.WithFields(logrus.Fields{
		"record_id":   record.ID,
		"status_code": resp.StatusCode,
	}).Debug("Record indexed")
	return nil
}

// PrepareRecord 将记录转换为索引所需的形式
// 结构化元数据序列化为JSON字符串，字符串元数据保持不变
func PrepareRecord(record *document.Record, embedding []float32) error {
	record.Embedding = embedding
	record.SearchAction = ActionUpload

	switch m := record.Metadata.(type) {
	case nil, string:
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}
		record.Metadata = string(data)
	}
	return nil
}
