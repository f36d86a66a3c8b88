package handler

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/rag-indexer/api/middleware"
	"github.com/fyerfyer/rag-indexer/api/model"
	"github.com/fyerfyer/rag-indexer/internal/models"
	"github.com/fyerfyer/rag-indexer/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunHandler 处理索引运行记录的查询请求
type RunHandler struct {
	runs   repository.RunRepository // 运行记录仓储
	logger *logrus.Logger           // 日志记录器
}

// NewRunHandler 创建运行记录处理器
func NewRunHandler(runs repository.RunRepository) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: middleware.GetLogger(),
	}
}

// ListRuns 分页列出运行记录
// GET /api/runs?document=&page=&page_size=
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req model.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid list request", err.Error()))
		return
	}

	runs, total, err := h.runs.List(c.Request.Context(), req.Document, req.Offset(), req.GetPageSize())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list index runs")
		middleware.HandleError(c, middleware.NewInternalError("failed to list runs", err.Error()))
		return
	}

	resp := model.RunListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Runs:     make([]model.RunInfo, 0, len(runs)),
	}
	for _, run := range runs {
		info := model.NewRunInfo(run)
		info.Records = nil
		resp.Runs = append(resp.Runs, info)
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetRun 获取单次运行的详情，包括每条记录的结果
// GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id", err.Error()))
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("run not found"))
			return
		}
		h.logger.WithError(err).WithField("run_id", req.ID).Error("Failed to get index run")
		middleware.HandleError(c, middleware.NewInternalError("failed to get run", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRunInfo(run)))
}
