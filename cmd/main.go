package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/rag-indexer/api"
	"github.com/fyerfyer/rag-indexer/api/handler"
	"github.com/fyerfyer/rag-indexer/api/middleware"
	"github.com/fyerfyer/rag-indexer/config"
	"github.com/fyerfyer/rag-indexer/internal/database"
	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/fyerfyer/rag-indexer/internal/embedding"
	"github.com/fyerfyer/rag-indexer/internal/repository"
	"github.com/fyerfyer/rag-indexer/internal/search"
	"github.com/fyerfyer/rag-indexer/internal/services"
	"github.com/fyerfyer/rag-indexer/internal/tracing"
	"github.com/fyerfyer/rag-indexer/pkg/storage"
	"github.com/fyerfyer/rag-indexer/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 命令行参数，非零值覆盖配置文件
type flags struct {
	ConfigFile string // 配置文件路径
	Port       int    // 服务端口
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)

	// 初始化日志
	if err := middleware.Configure(middleware.LogConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	logger := middleware.GetLogger()
	logger.Info("Starting RAG indexer...")

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()
	shutdownTracing := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
	}, logger)

	// 初始化运行记录数据库
	db, err := database.Open(&database.Config{
		Type:         cfg.Database.Type,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	runs := repository.NewRunRepository(db)

	var (
		fileStorage storage.Storage
		trigger     *services.BlobTrigger
		queue       taskqueue.Queue
		worker      taskqueue.Worker
	)

	// 配置不完整时仍然启动，健康检查和对象接口返回503
	configErr := cfg.Validate()
	if configErr != nil {
		logger.WithError(configErr).Error("Service configuration is incomplete, running in not-ready mode")
	} else {
		fileStorage, err = setupStorage(ctx, cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}

		orchestrator, err := setupIndexing(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize indexing pipeline: %v", err)
		}
		trigger = services.NewBlobTrigger(fileStorage, orchestrator, runs, services.WithTriggerLogger(logger))

		if cfg.Queue.Enable {
			queue, worker, err = setupTaskQueue(cfg, trigger, logger)
			if err != nil {
				logger.Fatalf("Failed to initialize task queue: %v", err)
			}
			logger.Info("Task queue initialized successfully")
		}
	}

	readiness := func(ctx context.Context) (map[string]string, error) {
		components := map[string]string{
			"database": "ok",
			"storage":  "not_configured",
			"indexer":  "not_configured",
			"queue":    "disabled",
		}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			components["database"] = "unavailable"
		}
		if fileStorage != nil {
			components["storage"] = "ok"
		}
		if trigger != nil {
			components["indexer"] = "ok"
		}
		if queue != nil {
			components["queue"] = "ok"
		}
		return components, configErr
	}

	var blobIndexer handler.BlobIndexer
	if trigger != nil {
		blobIndexer = trigger
	}
	router := api.SetupRouter(
		handler.NewBlobHandler(fileStorage, queue, blobIndexer),
		handler.NewRunHandler(runs),
		handler.NewHealthHandler(readiness),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if worker != nil {
		worker.Stop()
	}
	if queue != nil {
		if err := queue.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close task queue")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to shutdown tracer")
	}
	if err := database.Close(db); err != nil {
		logger.WithError(err).Warn("Failed to close database")
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	var f flags
	flag.StringVar(&f.ConfigFile, "config", "config.yaml", "Config file path")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&f.Mode, "mode", "", "Run mode: debug, release or test (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	flag.Parse()
	return f
}

// applyFlags 用命令行参数覆盖配置
func applyFlags(cfg *config.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
}

// setupStorage 创建对象存储
func setupStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Container,
			Region:    cfg.Storage.Region,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			Path:      cfg.Storage.Path,
			Container: cfg.Storage.Container,
		})
	}
}

// setupIndexing 组装提取、分块、嵌入和索引组件
func setupIndexing(cfg *config.Config, logger *logrus.Logger) (*services.IndexingService, error) {
	tokenizer, err := document.NewTiktokenTokenizer(cfg.Document.Encoding)
	if err != nil {
		return nil, err
	}
	chunker, err := document.NewTokenChunker(tokenizer, document.ChunkerConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	processor := document.NewProcessor(document.NewRecordBuilder(chunker), document.WithLogger(logger))

	embedder, err := embedding.NewClient(cfg.Embed.Provider,
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithAPIVersion(cfg.Embed.APIVersion),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithTimeout(cfg.Embed.Timeout),
	)
	if err != nil {
		return nil, err
	}

	indexer, err := search.NewAzureSearchIndexer(cfg.Search.Endpoint, cfg.Search.APIKey,
		search.WithIndexName(cfg.Search.IndexName),
		search.WithAPIVersion(cfg.Search.APIVersion),
		search.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"embedder":      embedder.Name(),
		"index":         indexer.IndexName(),
		"chunk_size":    cfg.Document.ChunkSize,
		"chunk_overlap": cfg.Document.ChunkOverlap,
		"encoding":      tokenizer.Encoding(),
	}).Info("Indexing pipeline initialized")

	return services.NewIndexingService(processor, embedder, indexer,
		services.WithLogger(logger),
		services.WithEmbedTimeout(cfg.Embed.Timeout),
		services.WithIndexTimeout(cfg.Search.Timeout),
	), nil
}

// setupTaskQueue 创建任务队列并启动处理索引任务的工作者
func setupTaskQueue(cfg *config.Config, trigger *services.BlobTrigger, logger *logrus.Logger) (taskqueue.Queue, taskqueue.Worker, error) {
	queueCfg := &taskqueue.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    cfg.Queue.RetryDelay,
		Queues:        map[string]int{"default": 1},
	}

	queue, err := taskqueue.NewRedisQueue(queueCfg, taskqueue.WithQueueLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	worker := taskqueue.NewRedisWorker(queue, queueCfg)
	worker.RegisterHandler(taskqueue.TaskIndexBlob, trigger.TaskHandler())
	if err := worker.Start(); err != nil {
		queue.Close()
		return nil, nil, err
	}
	return queue, worker, nil
}
