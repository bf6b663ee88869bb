package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/pkg/llm"
	"github.com/structgen/backend/internal/pkg/validation"
	"github.com/structgen/backend/internal/service/generation"
)

type GenerateHandler struct {
	service *generation.Service
}

// NewGenerateHandler 创建生成处理器，同时向 gin 注册自定义校验规则
func NewGenerateHandler(service *generation.Service) *GenerateHandler {
	if err := validation.RegisterGin(); err != nil {
		klog.Errorf("[Handler] 注册校验规则失败: %v", err)
	}
	return &GenerateHandler{service: service}
}

// Generate 根据提示词生成或编辑结构模型
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.FormatError(err).Error()})
		return
	}

	out, err := h.service.ProduceModel(c.Request.Context(), req)
	if err != nil {
		kind := llm.KindOf(err)
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind.String()})
		return
	}

	c.JSON(http.StatusOK, out)
}

// statusFor 重试耗尽的限流映射为 429，网络类映射为 503
func statusFor(kind llm.ErrorKind) int {
	switch kind {
	case llm.KindRateLimited:
		return http.StatusTooManyRequests
	case llm.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
