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

var (
	ErrOverrideNotFound  = errors.New("override not found")
	ErrInvalidAction     = errors.New("invalid override action")
	ErrNoOverrideHistory = errors.New("no override history to revert")
	ErrOverrideNotModify = errors.New("only modify overrides can be reverted")
)

// OverrideDTO 覆盖数据传输对象
type OverrideDTO struct {
	ID         uint             `json:"id"`
	TenantID   uint             `json:"tenant_id"`
	FlowKey    string           `json:"flow_key"`
	SectionKey int              `json:"section_key"`
	Action     string           `json:"action"`
	Content    string           `json:"content"`
	Module     *model.ModuleRef `json:"module,omitempty"`
	ModifiedBy string           `json:"modified_by"`
	UpdatedAt  string           `json:"updated_at"`
}

// OverrideHistoryDTO 覆盖历史快照数据传输对象
type OverrideHistoryDTO struct {
	RevisionID string           `json:"revision_id"`
	SectionKey int              `json:"section_key"`
	Action     string           `json:"action"`
	Content    string           `json:"content"`
	Module     *model.ModuleRef `json:"module,omitempty"`
	SavedBy    string           `json:"saved_by"`
	SavedAt    string           `json:"saved_at"`
}

// ModuleRefInput 模块来源入参
type ModuleRefInput struct {
	ModuleID                 uint   `json:"module_id" binding:"required"`
	ModuleName               string `json:"module_name"`
	OriginalModuleSectionKey int    `json:"original_module_section_key"`
	ParentSectionKey         int    `json:"parent_section_key"`
}

// UpsertOverrideRequest 创建或覆盖请求
type UpsertOverrideRequest struct {
	SectionKey int             `json:"section_key"`
	Action     string          `json:"action" binding:"required"`
	Content    string          `json:"content"`
	Module     *ModuleRefInput `json:"module"`
	ModifiedBy string          `json:"modified_by"`
}

// RevertResult 回退结果：恢复后的内容与被消费快照的出处信息
type RevertResult struct {
	Override   *OverrideDTO `json:"override"`
	RevisionID string       `json:"revision_id"`
	SavedBy    string       `json:"saved_by"`
	SavedAt    string       `json:"saved_at"`
}

// OverrideService 覆盖服务接口
type OverrideService interface {
	Upsert(ctx context.Context, tenantID uint, flowKey string, req UpsertOverrideRequest) (*OverrideDTO, error)
	List(ctx context.Context, tenantID uint, flowKey string) ([]OverrideDTO, error)
	Delete(ctx context.Context, id uint) error
	History(ctx context.Context, tenantID uint, flowKey string, sectionKey, limit int) ([]OverrideHistoryDTO, error)
	Revert(ctx context.Context, tenantID uint, flowKey string, sectionKey int) (*RevertResult, error)
}

// overrideService 实现
type overrideService struct {
	overrideRepo repository.OverrideRepository
	cache        cache.Cache
}

// NewOverrideService 创建服务实例
func NewOverrideService(overrideRepo repository.OverrideRepository, c cache.Cache) OverrideService {
	return &overrideService{overrideRepo: overrideRepo, cache: c}
}

// Upsert 创建或覆盖 (tenant, flow, section) 的覆盖
// action 在访问存储前校验；现有 modify 记录被改写前会留下历史快照
func (s *overrideService) Upsert(ctx context.Context, tenantID uint, flowKey string, req UpsertOverrideRequest) (*OverrideDTO, error) {
	if !model.ValidAction(req.Action) {
		return nil, ErrInvalidAction
	}

	content := model.PlainText(req.Content)
	if req.Module != nil {
		content = model.ModuleText(req.Content, model.ModuleRef{
			ModuleID:                 req.Module.ModuleID,
			ModuleName:               req.Module.ModuleName,
			OriginalModuleSectionKey: req.Module.OriginalModuleSectionKey,
			ParentSectionKey:         req.Module.ParentSectionKey,
		})
	}

	override := &model.Override{
		TenantID:   tenantID,
		FlowKey:    flowKey,
		SectionKey: req.SectionKey,
		Action:     req.Action,
		Content:    content,
		ModifiedBy: req.ModifiedBy,
	}
	saved, err := s.overrideRepo.Upsert(override)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert override: %w", err)
	}

	s.cache.Delete(ctx, cache.PromptKey(tenantID, flowKey), cache.TenantConfigKey(tenantID))
	klog.V(6).Infof("覆盖更新: tenant=%d flow=%s section=%d action=%s", tenantID, flowKey, req.SectionKey, req.Action)
	return toOverrideDTO(saved), nil
}

// List 获取 (tenant, flow) 的所有覆盖
func (s *overrideService) List(ctx context.Context, tenantID uint, flowKey string) ([]OverrideDTO, error) {
	overrides, err := s.overrideRepo.ListByTenantFlow(tenantID, flowKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	dtos := make([]OverrideDTO, 0, len(overrides))
	for i := range overrides {
		dtos = append(dtos, *toOverrideDTO(&overrides[i]))
	}
	return dtos, nil
}

// Delete 删除覆盖
func (s *overrideService) Delete(ctx context.Context, id uint) error {
	override, err := s.overrideRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOverrideNotFound
		}
		return fmt.Errorf("failed to get override: %w", err)
	}

	if err := s.overrideRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}

	s.cache.Delete(ctx, cache.PromptKey(override.TenantID, override.FlowKey), cache.TenantConfigKey(override.TenantID))
	klog.V(6).Infof("覆盖删除: tenant=%d flow=%s section=%d", override.TenantID, override.FlowKey, override.SectionKey)
	return nil
}

// History 获取覆盖历史快照
func (s *overrideService) History(ctx context.Context, tenantID uint, flowKey string, sectionKey, limit int) ([]OverrideHistoryDTO, error) {
	histories, err := s.overrideRepo.History(tenantID, flowKey, sectionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list override history: %w", err)
	}
	dtos := make([]OverrideHistoryDTO, 0, len(histories))
	for _, h := range histories {
		dtos = append(dtos, OverrideHistoryDTO{
			RevisionID: h.RevisionID,
			SectionKey: h.SectionKey,
			Action:     h.Action,
			Content:    h.Content.Unwrap(),
			Module:     h.Content.Module,
			SavedBy:    h.SavedBy,
			SavedAt:    h.SavedAt.Format(time.RFC3339),
		})
	}
	return dtos, nil
}

// Revert 回退到最近一次历史快照
func (s *overrideService) Revert(ctx context.Context, tenantID uint, flowKey string, sectionKey int) (*RevertResult, error) {
	restored, consumed, err := s.overrideRepo.Revert(tenantID, flowKey, sectionKey)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrOverrideNotFound
		case errors.Is(err, repository.ErrNoHistory):
			return nil, ErrNoOverrideHistory
		case errors.Is(err, repository.ErrNotRevertable):
			return nil, ErrOverrideNotModify
		}
		return nil, fmt.Errorf("failed to revert override: %w", err)
	}

	s.cache.Delete(ctx, cache.PromptKey(tenantID, flowKey), cache.TenantConfigKey(tenantID))
	klog.V(6).Infof("覆盖回退: tenant=%d flow=%s section=%d revision=%s", tenantID, flowKey, sectionKey, consumed.RevisionID)
	return &RevertResult{
		Override:   toOverrideDTO(restored),
		RevisionID: consumed.RevisionID,
		SavedBy:    consumed.SavedBy,
		SavedAt:    consumed.SavedAt.Format(time.RFC3339),
	}, nil
}

// toOverrideDTO 转换为 DTO（内容剥离模块信封，出处单独下发）
func toOverrideDTO(o *model.Override) *OverrideDTO {
	return &OverrideDTO{
		ID:         o.ID,
		TenantID:   o.TenantID,
		FlowKey:    o.FlowKey,
		SectionKey: o.SectionKey,
		Action:     o.Action,
		Content:    o.Content.Unwrap(),
		Module:     o.Content.Module,
		ModifiedBy: o.ModifiedBy,
		UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
	}
}
