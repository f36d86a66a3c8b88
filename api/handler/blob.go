package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fyerfyer/rag-indexer/api/middleware"
	"github.com/fyerfyer/rag-indexer/api/model"
	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/fyerfyer/rag-indexer/internal/models"
	"github.com/fyerfyer/rag-indexer/pkg/storage"
	"github.com/fyerfyer/rag-indexer/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BlobPathHeader 上传请求中指定对象路径的请求头
const BlobPathHeader = "x-blob-path"

// BlobIndexer 同步为对象建立索引
type BlobIndexer interface {
	HandleBlob(ctx context.Context, name string) (*models.IndexRun, error)
}

// BlobHandler 处理对象存储相关的API请求
type BlobHandler struct {
	storage storage.Storage // 对象存储，未配置时为nil
	queue   taskqueue.Queue // 任务队列，为nil时同步索引
	indexer BlobIndexer     // 同步索引触发器
	logger  *logrus.Logger  // 日志记录器
}

// NewBlobHandler 创建对象处理器
func NewBlobHandler(store storage.Storage, queue taskqueue.Queue, indexer BlobIndexer) *BlobHandler {
	return &BlobHandler{
		storage: store,
		queue:   queue,
		indexer: indexer,
		logger:  middleware.GetLogger(),
	}
}

// ListBlobs 列出容器中的对象
// GET /api/blobs?prefix=
func (h *BlobHandler) ListBlobs(c *gin.Context) {
	if h.storage == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("service not ready", "storage is not configured"))
		return
	}

	var req model.BlobListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid list request", err.Error()))
		return
	}

	blobs, err := h.storage.List(c.Request.Context(), req.Prefix)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"container": h.storage.Container(),
			"prefix":    req.Prefix,
			"error":     err.Error(),
		}).Error("Error listing blob names")
		middleware.HandleError(c, middleware.NewInternalError("failed to list blobs", err.Error()))
		return
	}

	resp := model.BlobListResponse{Blobs: make([]model.BlobItem, 0, len(blobs))}
	for _, b := range blobs {
		resp.Blobs = append(resp.Blobs, model.BlobItem{Name: b.Path})
	}
	c.JSON(http.StatusOK, resp)
}

// UploadBlob 上传对象，对象路径由x-blob-path请求头指定，请求体为原始内容
// POST /api/blobs
func (h *BlobHandler) UploadBlob(c *gin.Context) {
	if h.storage == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("service not ready", "storage is not configured"))
		return
	}

	name := h.blobName(c.GetHeader(BlobPathHeader))
	if name == "" {
		middleware.HandleError(c, middleware.NewValidationError("missing "+BlobPathHeader+" header"))
		return
	}

	fullPath := storage.FullPath(h.storage.Container(), name)
	info, err := h.storage.Upload(c.Request.Context(), name, c.Request.Body, c.Request.ContentLength)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"path":  fullPath,
			"error": err.Error(),
		}).Error("Failed to upload blob")

		c.JSON(http.StatusInternalServerError, model.BlobUploadResponse{
			Success: false,
			Path:    fullPath,
			Error:   err.Error(),
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"path": info.Path,
		"size": info.Size,
	}).Info("Uploaded blob")

	resp := model.BlobUploadResponse{
		Success: true,
		Path:    info.Path,
		URL:     info.URL,
	}
	if document.IsSupported(info.Name) {
		h.dispatch(c.Request.Context(), info, &resp)
	}
	c.JSON(http.StatusCreated, resp)
}

// blobName 解析请求头中的对象路径，去掉与当前容器同名的前缀
func (h *BlobHandler) blobName(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	container, name := storage.SplitPath(header)
	if container == h.storage.Container() {
		return name
	}
	return strings.TrimPrefix(header, "/")
}

// dispatch 为新上传的对象触发索引，失败不影响上传结果
func (h *BlobHandler) dispatch(ctx context.Context, info storage.BlobInfo, resp *model.BlobUploadResponse) {
	log := h.logger.WithField("document", info.Path)

	if h.queue != nil {
		taskID, err := h.queue.Enqueue(ctx, taskqueue.TaskIndexBlob, info.Path, taskqueue.IndexBlobPayload{
			Container: h.storage.Container(),
			Name:      info.Name,
			Size:      info.Size,
		})
		if err != nil {
			log.WithError(err).Error("Failed to enqueue index task")
			return
		}
		resp.TaskID = taskID
		log.WithField("task_id", taskID).Info("Index task enqueued")
		return
	}

	if h.indexer == nil {
		return
	}
	run, err := h.indexer.HandleBlob(ctx, info.Name)
	if run != nil {
		resp.RunID = run.ID
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error(fmt.Sprintf("Indexing failed for %s", info.Path))
	}
}
