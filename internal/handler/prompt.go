package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/promptweaver/backend/internal/service"
)

// PromptHandler 提示词组合 Handler
type PromptHandler struct {
	composerService     service.ComposerService
	tenantConfigService service.TenantConfigService
}

// NewPromptHandler 创建 Handler
func NewPromptHandler(composerService service.ComposerService, tenantConfigService service.TenantConfigService) *PromptHandler {
	return &PromptHandler{
		composerService:     composerService,
		tenantConfigService: tenantConfigService,
	}
}

// Build 组合 (tenant, flow) 的最终提示词
// 空组合返回 422：配置问题，应去绑定或填充模板
func (h *PromptHandler) Build(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")

	prompt, err := h.composerService.BuildPrompt(c.Request.Context(), tenantID, flowKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotConfigured):
			c.JSON(http.StatusNotFound, gin.H{"error": "prompt not configured"})
		case errors.Is(err, service.ErrEmptyComposition):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "empty composition"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"prompt": prompt}})
}

// BuildRephrase 组合流程的改写变体，无变体时 prompt 为 null
func (h *PromptHandler) BuildRephrase(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")

	prompt, err := h.composerService.BuildRephrasePrompt(c.Request.Context(), tenantID, flowKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if prompt == "" {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"prompt": nil}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"prompt": prompt}})
}

// TenantConfig 获取租户合并配置视图
func (h *PromptHandler) TenantConfig(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}

	config, err := h.tenantConfigService.Get(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": config})
}
