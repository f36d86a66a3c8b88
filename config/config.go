package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Search   SearchConfig   `mapstructure:"search"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Document DocumentConfig `mapstructure:"document"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`                                     // 服务器主机
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`                             // 读超时
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`                            // 写超时
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`        // 优雅关闭等待时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	Format     string `mapstructure:"format" validate:"oneof=json text"`            // 日志格式
	File       string `mapstructure:"file"`                                         // 日志文件，为空时只输出到标准输出
	MaxSize    int    `mapstructure:"max_size"`                                     // 单个文件最大大小(MB)
	MaxBackups int    `mapstructure:"max_backups"`                                  // 保留的旧文件数量
	MaxAge     int    `mapstructure:"max_age"`                                      // 旧文件保留天数
	Compress   bool   `mapstructure:"compress"`                                     // 是否压缩旧文件
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"`            // 存储类型：local 或 minio
	Path      string `mapstructure:"path" validate:"required_if=Type local"`       // 本地存储路径
	Container string `mapstructure:"container" validate:"required"`                // 容器(桶)名称
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`   // MinIO端点
	AccessKey string `mapstructure:"access_key" validate:"required_if=Type minio"` // 访问密钥
	SecretKey string `mapstructure:"secret_key" validate:"required_if=Type minio"` // 私有密钥
	Region    string `mapstructure:"region"`                                       // 区域
	UseSSL    bool   `mapstructure:"use_ssl"`                                      // 是否使用SSL
}

// SearchConfig 向量检索服务配置
type SearchConfig struct {
	Endpoint   string        `mapstructure:"endpoint" validate:"required,url"` // 服务地址
	APIKey     string        `mapstructure:"api_key" validate:"required"`      // 管理密钥
	IndexName  string        `mapstructure:"index_name" validate:"required"`   // 索引名称
	APIVersion string        `mapstructure:"api_version" validate:"required"`  // API版本
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`         // 单次写入的截止时间
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=azure openai"`         // 提供商
	Model      string        `mapstructure:"model" validate:"required"`                      // 模型或部署名称
	APIKey     string        `mapstructure:"api_key" validate:"required"`                    // API密钥
	Endpoint   string        `mapstructure:"endpoint" validate:"required_if=Provider azure"` // API端点
	APIVersion string        `mapstructure:"api_version"`                                    // Azure API版本
	Dimensions int           `mapstructure:"dimensions" validate:"min=0"`                    // 向量维度
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`                       // 单次调用的截止时间
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size" validate:"min=1"`                      // 分块大小(token)
	ChunkOverlap int    `mapstructure:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"` // 分块重叠大小(token)
	Encoding     string `mapstructure:"encoding" validate:"required"`                     // 分词器编码
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`                                        // 是否启用任务队列
	Type          string        `mapstructure:"type" validate:"oneof=redis"`                   // 队列类型
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Enable true"` // Redis地址
	RedisPassword string        `mapstructure:"redis_password"`                                // Redis密码
	RedisDB       int           `mapstructure:"redis_db"`                                      // Redis数据库编号
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1"`                  // 任务处理并发数
	RetryLimit    int           `mapstructure:"retry_limit" validate:"min=0"`                  // 任务最大重试次数
	RetryDelay    time.Duration `mapstructure:"retry_delay"`                                   // 重试延迟
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN  string `mapstructure:"dsn" validate:"required"`      // 数据源名称
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`                                      // 是否启用
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Enabled true"` // OTLP HTTP端点
	ServiceName string `mapstructure:"service_name"`                                 // 服务名称
	Insecure    bool   `mapstructure:"insecure"`                                     // 是否使用明文HTTP
}

// ConfigurationError 配置缺失或无效，服务无法就绪
type ConfigurationError struct {
	Missing []string // 缺失的配置项
	Invalid []string // 取值无效的配置项
}

// Error 实现error接口
func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Load 从.env、配置文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 支持环境变量覆盖，如 SEARCH_API_KEY 覆盖 search.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	expandEnvironmentVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// expandEnvironmentVariables 展开配置值中的 ${VAR} 引用
func expandEnvironmentVariables(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "${") {
			continue
		}
		v.Set(key, os.ExpandEnv(s))
	}
}

// Validate 检查服务就绪所需的配置，返回 *ConfigurationError
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	cfgErr := &ConfigurationError{}
	for _, fe := range verrs {
		// Namespace 形如 Config.search.endpoint
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		switch fe.Tag() {
		case "required", "required_if":
			cfgErr.Missing = append(cfgErr.Missing, key)
		default:
			cfgErr.Invalid = append(cfgErr.Invalid, key)
		}
	}
	return cfgErr
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.container", "documents")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)

	// 检索服务默认配置
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.index_name", "rag-index")
	v.SetDefault("search.api_version", "2023-11-01")
	v.SetDefault("search.timeout", "30s")

	// Embedding默认配置
	v.SetDefault("embed.provider", "azure")
	v.SetDefault("embed.model", "text-embedding-ada-002")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.endpoint", "")
	v.SetDefault("embed.api_version", "2023-05-15")
	v.SetDefault("embed.dimensions", 1536)
	v.SetDefault("embed.timeout", "30s")

	// 文档处理默认配置
	v.SetDefault("document.chunk_size", 500)
	v.SetDefault("document.chunk_overlap", 50)
	v.SetDefault("document.encoding", "r50k_base")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 0)
	v.SetDefault("queue.retry_delay", "60s")

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/runs.db")

	// 链路追踪默认配置
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "rag-indexer")
	v.SetDefault("tracing.insecure", true)
}
