package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultAzureDeployment 默认的Azure嵌入模型部署名
	DefaultAzureDeployment = "text-embedding-ada-002"
	// DefaultAzureAPIVersion 默认的Azure OpenAI API版本
	DefaultAzureAPIVersion = "2023-05-15"
	// DefaultOpenAIModel 直连OpenAI时的默认模型
	DefaultOpenAIModel = "text-embedding-ada-002"
)

// OpenAIClient OpenAI兼容的嵌入向量客户端
// Azure OpenAI和OpenAI共用同一实现，只是请求地址和鉴权头不同
type OpenAIClient struct {
	client *openai.Client // OpenAI API客户端
	config Config         // 客户端配置
}

// NewAzureClient 创建Azure OpenAI嵌入客户端
func NewAzureClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "azure openai api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "azure openai endpoint is required")
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Model
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: *cfg,
	}, nil
}

// NewOpenAIClient 创建OpenAI嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: *cfg,
	}, nil
}

// Embed 对单个文本生成嵌入向量
// 只发送一次请求，不做重试，返回结果中的第一个向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.config.Model),
	}
	// 只有text-embedding-3系列支持指定维度
	if c.config.Dimensions > 0 && strings.HasPrefix(c.config.Model, "text-embedding-3") {
		req.Dimensions = c.config.Dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, NewEmbeddingError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// classifyError 将SDK返回的错误转换为EmbeddingError
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return wrapError(ErrCodeTimeout, ErrMsgTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return wrapError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey, err)
	case status == http.StatusTooManyRequests:
		return wrapError(ErrCodeRateLimited, ErrMsgRateLimited, err)
	case status >= 500:
		return wrapError(ErrCodeServerError, ErrMsgServerError, err)
	case status >= 400:
		return wrapError(ErrCodeInvalidRequest, ErrMsgInvalidRequest, err)
	default:
		return wrapError(ErrCodeNetworkError, ErrMsgNetworkError, err)
	}
}

// 在包初始化时注册客户端
func init() {
	RegisterClient("azure", NewAzureClient)
	RegisterClient("openai", NewOpenAIClient)
}
