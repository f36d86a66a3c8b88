package handler

import (
	"context"
	"net/http"

	"github.com/fyerfyer/rag-indexer/api/model"
	"github.com/gin-gonic/gin"
)

// ReadinessFunc 返回各组件状态，未就绪时返回错误
type ReadinessFunc func(ctx context.Context) (map[string]string, error)

// HealthHandler 健康检查
type HealthHandler struct {
	check ReadinessFunc
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(check ReadinessFunc) *HealthHandler {
	return &HealthHandler{check: check}
}

// Health 返回服务状态
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := model.HealthResponse{Status: "ok", Components: map[string]string{}}
	if h.check == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	components, err := h.check(c.Request.Context())
	if components != nil {
		resp.Components = components
	}
	if err != nil {
		resp.Status = "not_ready"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
