package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/promptweaver/backend/internal/service"
)

// AssignmentHandler 模板绑定 Handler
type AssignmentHandler struct {
	assignmentService service.AssignmentService
}

// NewAssignmentHandler 创建 Handler
func NewAssignmentHandler(assignmentService service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// Upsert 创建或覆盖绑定
func (h *AssignmentHandler) Upsert(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}

	var req service.UpsertAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, err := h.assignmentService.Upsert(c.Request.Context(), tenantID, req)
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignment})
}

// List 获取租户的所有绑定
func (h *AssignmentHandler) List(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignments})
}

// ListByTemplate 获取引用某模板的所有绑定
func (h *AssignmentHandler) ListByTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListByTemplate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignments})
}

// Delete 删除绑定
func (h *AssignmentHandler) Delete(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	flowKey := c.Param("flowKey")

	if err := h.assignmentService.Delete(c.Request.Context(), tenantID, flowKey); err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// parseTenantID 解析路径中的 tenantId 参数，非法时直接响应 400
func parseTenantID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("tenantId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return 0, false
	}
	return uint(id), true
}
