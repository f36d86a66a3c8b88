package tracing

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName 本服务创建span时使用的名称
const InstrumentationName = "github.com/fyerfyer/rag-indexer"

// Config 链路追踪配置
type Config struct {
	Enabled     bool   // 是否启用，默认关闭
	Endpoint    string // OTLP HTTP地址，如 localhost:4318
	ServiceName string // 服务名
	Insecure    bool   // 使用HTTP而不是HTTPS
}

// ShutdownFunc 退出时刷新并关闭导出器
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init 初始化OpenTelemetry，未启用时返回空的关闭函数
// 导出器创建失败只记录警告，不影响服务启动
func Init(ctx context.Context, cfg Config, logger *logrus.Logger) ShutdownFunc {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry tracing is disabled")
		return noopShutdown
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "rag-indexer"
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		logger.WithError(err).Warn("Failed to create OTLP exporter, tracing disabled")
		return noopShutdown
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"service":  serviceName,
	}).Info("OpenTelemetry tracer initialized")

	return tp.Shutdown
}

// Tracer 返回全局TracerProvider上的tracer
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
