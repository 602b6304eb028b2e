package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/promptweaver/backend/internal/service"
)

// OverrideHandler 租户覆盖 Handler
type OverrideHandler struct {
	overrideService service.OverrideService
}

// NewOverrideHandler 创建 Handler
func NewOverrideHandler(overrideService service.OverrideService) *OverrideHandler {
	return &OverrideHandler{overrideService: overrideService}
}

// Upsert 创建或覆盖
func (h *OverrideHandler) Upsert(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")

	var req service.UpsertOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	override, err := h.overrideService.Upsert(c.Request.Context(), tenantID, flowKey, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": override})
}

// List 获取 (tenant, flow) 的所有覆盖
func (h *OverrideHandler) List(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")

	overrides, err := h.overrideService.List(c.Request.Context(), tenantID, flowKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": overrides})
}

// Delete 删除覆盖
func (h *OverrideHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.overrideService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrOverrideNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "override not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// History 获取覆盖历史快照
func (h *OverrideHandler) History(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")
	sectionKey, ok := parseSectionKey(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	histories, err := h.overrideService.History(c.Request.Context(), tenantID, flowKey, sectionKey, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": histories})
}

// Revert 回退到最近一次历史快照
func (h *OverrideHandler) Revert(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")
	sectionKey, ok := parseSectionKey(c)
	if !ok {
		return
	}

	result, err := h.overrideService.Revert(c.Request.Context(), tenantID, flowKey, sectionKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOverrideNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "override not found"})
		case errors.Is(err, service.ErrNoOverrideHistory):
			c.JSON(http.StatusNotFound, gin.H{"error": "no history to revert"})
		case errors.Is(err, service.ErrOverrideNotModify):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// parseSectionKey 解析路径中的 sectionKey 参数，非法时直接响应 400
func parseSectionKey(c *gin.Context) (int, bool) {
	key, err := strconv.Atoi(c.Param("sectionKey"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section key"})
		return 0, false
	}
	return key, true
}
