package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promptweaver/backend/internal/model"
	"github.com/promptweaver/backend/internal/pkg/cache"
	"github.com/promptweaver/backend/internal/repository"
	"k8s.io/klog/v2"
)

var ErrAssignmentNotFound = errors.New("assignment not found")

// AssignmentDTO 模板绑定数据传输对象
type AssignmentDTO struct {
	ID         uint   `json:"id"`
	TenantID   uint   `json:"tenant_id"`
	FlowKey    string `json:"flow_key"`
	TemplateID uint   `json:"template_id"`
	UpdatedAt  string `json:"updated_at"`
}

// UpsertAssignmentRequest 创建或覆盖绑定请求
type UpsertAssignmentRequest struct {
	FlowKey    string `json:"flow_key" binding:"required,min=1,max=100"`
	TemplateID uint   `json:"template_id" binding:"required"`
}

// AssignmentService 模板绑定服务接口
type AssignmentService interface {
	Upsert(ctx context.Context, tenantID uint, req UpsertAssignmentRequest) (*AssignmentDTO, error)
	Get(ctx context.Context, tenantID uint, flowKey string) (*AssignmentDTO, error)
	ListByTenant(ctx context.Context, tenantID uint) ([]AssignmentDTO, error)
	ListByTemplate(ctx context.Context, templateID uint) ([]AssignmentDTO, error)
	Delete(ctx context.Context, tenantID uint, flowKey string) error
}

// assignmentService 实现
type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	templateRepo   repository.TemplateRepository
	cache          cache.Cache
}

// NewAssignmentService 创建服务实例
func NewAssignmentService(assignmentRepo repository.AssignmentRepository, templateRepo repository.TemplateRepository, c cache.Cache) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		templateRepo:   templateRepo,
		cache:          c,
	}
}

// Upsert 创建或覆盖绑定，模板必须存在
func (s *assignmentService) Upsert(ctx context.Context, tenantID uint, req UpsertAssignmentRequest) (*AssignmentDTO, error) {
	if _, err := s.templateRepo.GetByID(req.TemplateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	assignment, err := s.assignmentRepo.Upsert(tenantID, req.FlowKey, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert assignment: %w", err)
	}

	s.cache.Delete(ctx, cache.PromptKey(tenantID, req.FlowKey), cache.TenantConfigKey(tenantID))
	klog.V(6).Infof("绑定更新: tenant=%d flow=%s template=%d", tenantID, req.FlowKey, req.TemplateID)
	return toAssignmentDTO(assignment), nil
}

// Get 获取绑定
func (s *assignmentService) Get(ctx context.Context, tenantID uint, flowKey string) (*AssignmentDTO, error) {
	assignment, err := s.assignmentRepo.Get(tenantID, flowKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return toAssignmentDTO(assignment), nil
}

// ListByTenant 获取租户的所有绑定
func (s *assignmentService) ListByTenant(ctx context.Context, tenantID uint) ([]AssignmentDTO, error) {
	assignments, err := s.assignmentRepo.ListByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for i := range assignments {
		dtos = append(dtos, *toAssignmentDTO(&assignments[i]))
	}
	return dtos, nil
}

// ListByTemplate 获取引用某模板的所有绑定
func (s *assignmentService) ListByTemplate(ctx context.Context, templateID uint) ([]AssignmentDTO, error) {
	assignments, err := s.assignmentRepo.ListByTemplate(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for i := range assignments {
		dtos = append(dtos, *toAssignmentDTO(&assignments[i]))
	}
	return dtos, nil
}

// Delete 删除绑定
func (s *assignmentService) Delete(ctx context.Context, tenantID uint, flowKey string) error {
	if err := s.assignmentRepo.Delete(tenantID, flowKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("failed to delete assignment: %w", err)
	}

	s.cache.Delete(ctx, cache.PromptKey(tenantID, flowKey), cache.TenantConfigKey(tenantID))
	klog.V(6).Infof("绑定删除: tenant=%d flow=%s", tenantID, flowKey)
	return nil
}

// toAssignmentDTO 转换为 DTO
func toAssignmentDTO(a *model.Assignment) *AssignmentDTO {
	return &AssignmentDTO{
		ID:         a.ID,
		TenantID:   a.TenantID,
		FlowKey:    a.FlowKey,
		TemplateID: a.TemplateID,
		UpdatedAt:  a.UpdatedAt.Format(time.RFC3339),
	}
}
