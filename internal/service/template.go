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
	ErrTemplateNotFound    = errors.New("template not found")
	ErrSectionNotFound     = errors.New("section not found")
	ErrInvalidTemplateKind = errors.New("invalid template kind")
	ErrDuplicateSectionKey = errors.New("duplicate section key")
	ErrSystemDefaultExists = errors.New("system default template already exists")
	ErrVersionConflict     = errors.New("template version conflict")
)

// TemplateDTO 模板数据传输对象
type TemplateDTO struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Sections    []model.Section `json:"sections"`
	Version     int             `json:"version"`
	Kind        string          `json:"kind"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// TemplateHistoryDTO 模板历史快照数据传输对象
type TemplateHistoryDTO struct {
	ID            uint            `json:"id"`
	TemplateID    uint            `json:"template_id"`
	Version       int             `json:"version"`
	Sections      []model.Section `json:"sections"`
	ModifiedBy    string          `json:"modified_by"`
	SnapshottedAt string          `json:"snapshotted_at"`
}

// SectionInput 分节入参
type SectionInput struct {
	Key     int    `json:"key"`
	Content string `json:"content"`
}

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	Name        string         `json:"name" binding:"required,min=1,max=255"`
	Description string         `json:"description" binding:"max=1000"`
	Kind        string         `json:"kind"`
	Sections    []SectionInput `json:"sections"`
	CreatedBy   string         `json:"created_by"`
}

// UpdateSectionsRequest 整体替换分节请求
// expected_version 非空时执行乐观并发校验，缺省保持后写覆盖语义
type UpdateSectionsRequest struct {
	Sections        []SectionInput `json:"sections" binding:"required"`
	ExpectedVersion *int           `json:"expected_version"`
	ModifiedBy      string         `json:"modified_by"`
}

// UpdateTemplateMetaRequest 更新模板名称与描述请求
type UpdateTemplateMetaRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=1000"`
}

// InsertSectionRequest 插入分节请求
type InsertSectionRequest struct {
	AfterKey   int    `json:"after_key"`
	Content    string `json:"content" binding:"required"`
	ModifiedBy string `json:"modified_by"`
}

// InsertSectionResult 插入分节结果
type InsertSectionResult struct {
	Template   *TemplateDTO `json:"template"`
	SectionKey int          `json:"section_key"`
}

// TemplateService 模板服务接口
type TemplateService interface {
	List(ctx context.Context) ([]TemplateDTO, error)
	GetByID(ctx context.Context, id uint) (*TemplateDTO, error)
	Modules(ctx context.Context) ([]TemplateDTO, error)
	Create(ctx context.Context, req CreateTemplateRequest) (*TemplateDTO, error)
	UpdateSections(ctx context.Context, id uint, req UpdateSectionsRequest) (*TemplateDTO, error)
	UpdateMeta(ctx context.Context, id uint, req UpdateTemplateMetaRequest) (*TemplateDTO, error)
	InsertSection(ctx context.Context, id uint, req InsertSectionRequest) (*InsertSectionResult, error)
	Delete(ctx context.Context, id uint) error
	History(ctx context.Context, id uint, limit int) ([]TemplateHistoryDTO, error)
}

// templateService 实现
type templateService struct {
	templateRepo   repository.TemplateRepository
	assignmentRepo repository.AssignmentRepository
	cache          cache.Cache
}

// NewTemplateService 创建服务实例
func NewTemplateService(templateRepo repository.TemplateRepository, assignmentRepo repository.AssignmentRepository, c cache.Cache) TemplateService {
	return &templateService{
		templateRepo:   templateRepo,
		assignmentRepo: assignmentRepo,
		cache:          c,
	}
}

// List 获取所有模板
func (s *templateService) List(ctx context.Context) ([]TemplateDTO, error) {
	templates, err := s.templateRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	dtos := make([]TemplateDTO, 0, len(templates))
	for i := range templates {
		dtos = append(dtos, *toTemplateDTO(&templates[i]))
	}
	return dtos, nil
}

// GetByID 获取模板详情
func (s *templateService) GetByID(ctx context.Context, id uint) (*TemplateDTO, error) {
	template, err := s.templateRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return toTemplateDTO(template), nil
}

// Modules 获取所有模块模板
func (s *templateService) Modules(ctx context.Context) ([]TemplateDTO, error) {
	templates, err := s.templateRepo.GetModules()
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	dtos := make([]TemplateDTO, 0, len(templates))
	for i := range templates {
		dtos = append(dtos, *toTemplateDTO(&templates[i]))
	}
	return dtos, nil
}

// Create 创建模板
func (s *templateService) Create(ctx context.Context, req CreateTemplateRequest) (*TemplateDTO, error) {
	kind := req.Kind
	if kind == "" {
		kind = model.TemplateKindStandard
	}
	switch kind {
	case model.TemplateKindStandard, model.TemplateKindModule, model.TemplateKindSystemDefault:
	default:
		return nil, ErrInvalidTemplateKind
	}

	sections, err := toSectionList(req.Sections)
	if err != nil {
		return nil, err
	}

	if kind == model.TemplateKindSystemDefault {
		if _, err := s.templateRepo.GetSystemDefault(); err == nil {
			return nil, ErrSystemDefaultExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to check system default: %w", err)
		}
	}

	template := &model.Template{
		Name:        req.Name,
		Description: req.Description,
		Sections:    sections,
		Version:     1,
		Kind:        kind,
		CreatedBy:   req.CreatedBy,
	}
	if err := s.templateRepo.Create(template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	klog.V(6).Infof("模板创建: id=%d name=%s kind=%s", template.ID, template.Name, template.Kind)
	return toTemplateDTO(template), nil
}

// UpdateSections 整体替换分节，写入历史快照并递增版本
func (s *templateService) UpdateSections(ctx context.Context, id uint, req UpdateSectionsRequest) (*TemplateDTO, error) {
	sections, err := toSectionList(req.Sections)
	if err != nil {
		return nil, err
	}

	template, err := s.templateRepo.UpdateSections(id, sections, req.ModifiedBy, req.ExpectedVersion)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrTemplateNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	s.invalidate(ctx, template)
	klog.V(6).Infof("模板更新: id=%d version=%d", template.ID, template.Version)
	return toTemplateDTO(template), nil
}

// UpdateMeta 更新模板名称与描述
func (s *templateService) UpdateMeta(ctx context.Context, id uint, req UpdateTemplateMetaRequest) (*TemplateDTO, error) {
	template, err := s.templateRepo.UpdateMeta(id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to update template meta: %w", err)
	}
	s.invalidate(ctx, template)
	return toTemplateDTO(template), nil
}

// InsertSection 插入分节并向既有绑定传播 remove 覆盖
func (s *templateService) InsertSection(ctx context.Context, id uint, req InsertSectionRequest) (*InsertSectionResult, error) {
	template, newKey, err := s.templateRepo.InsertSection(id, req.AfterKey, req.Content, req.ModifiedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 模板或 after_key 对应的分节不存在
			if _, getErr := s.templateRepo.GetByID(id); errors.Is(getErr, repository.ErrNotFound) {
				return nil, ErrTemplateNotFound
			}
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("failed to insert section: %w", err)
	}

	s.invalidate(ctx, template)
	klog.V(6).Infof("模板插入分节: id=%d key=%d version=%d", template.ID, newKey, template.Version)
	return &InsertSectionResult{Template: toTemplateDTO(template), SectionKey: newKey}, nil
}

// Delete 删除模板
func (s *templateService) Delete(ctx context.Context, id uint) error {
	template, err := s.templateRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("failed to get template: %w", err)
	}

	if err := s.templateRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.invalidate(ctx, template)
	klog.V(6).Infof("模板删除: id=%d", id)
	return nil
}

// History 获取模板历史快照
func (s *templateService) History(ctx context.Context, id uint, limit int) ([]TemplateHistoryDTO, error) {
	if _, err := s.templateRepo.GetByID(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	histories, err := s.templateRepo.History(id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list template history: %w", err)
	}
	dtos := make([]TemplateHistoryDTO, 0, len(histories))
	for _, h := range histories {
		dtos = append(dtos, TemplateHistoryDTO{
			ID:            h.ID,
			TemplateID:    h.TemplateID,
			Version:       h.Version,
			Sections:      h.Sections,
			ModifiedBy:    h.ModifiedBy,
			SnapshottedAt: h.SnapshottedAt.Format(time.RFC3339),
		})
	}
	return dtos, nil
}

// invalidate 模板变更后的缓存失效，属写路径的一部分
// 普通模板按绑定逐一失效；模块与系统默认模板可能被任意租户的提示词内联，
// 无法廉价定位受影响方，直接清空全部组合结果
func (s *templateService) invalidate(ctx context.Context, template *model.Template) {
	if template.Kind != model.TemplateKindStandard {
		s.cache.DeletePattern(ctx, "prompt:*")
		s.cache.DeletePattern(ctx, "config:*")
		return
	}

	assignments, err := s.assignmentRepo.ListByTemplate(template.ID)
	if err != nil {
		klog.Errorf("查询模板绑定失败，降级为全量缓存失效: %v", err)
		s.cache.DeletePattern(ctx, "prompt:*")
		s.cache.DeletePattern(ctx, "config:*")
		return
	}
	for _, a := range assignments {
		s.cache.Delete(ctx, cache.PromptKey(a.TenantID, a.FlowKey), cache.TenantConfigKey(a.TenantID))
	}
}

// toSectionList 转换并校验分节入参
func toSectionList(inputs []SectionInput) (model.SectionList, error) {
	sections := make(model.SectionList, 0, len(inputs))
	for _, in := range inputs {
		sections = append(sections, model.Section{Key: in.Key, Content: in.Content})
	}
	if _, dup := sections.DuplicateKey(); dup {
		return nil, ErrDuplicateSectionKey
	}
	return sections, nil
}

// toTemplateDTO 转换为 DTO
func toTemplateDTO(t *model.Template) *TemplateDTO {
	return &TemplateDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Sections:    t.Sections.Sorted(),
		Version:     t.Version,
		Kind:        t.Kind,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}
