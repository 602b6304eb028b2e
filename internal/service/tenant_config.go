package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/promptweaver/backend/internal/pkg/cache"
	"github.com/promptweaver/backend/internal/repository"
	"k8s.io/klog/v2"
)

// FlowConfigDTO 单个流程的生效配置
type FlowConfigDTO struct {
	FlowKey         string `json:"flow_key"`
	TemplateID      uint   `json:"template_id"`
	TemplateName    string `json:"template_name"`
	TemplateVersion int    `json:"template_version"`
	OverrideCount   int64  `json:"override_count"`
	UpdatedAt       string `json:"updated_at"`
}

// TenantConfigDTO 租户合并配置视图
type TenantConfigDTO struct {
	TenantID uint            `json:"tenant_id"`
	Flows    []FlowConfigDTO `json:"flows"`
}

// TenantConfigService 租户配置服务接口
type TenantConfigService interface {
	Get(ctx context.Context, tenantID uint) (*TenantConfigDTO, error)
}

// tenantConfigService 实现，结果缓存于 config:{tenantId}
type tenantConfigService struct {
	assignmentRepo repository.AssignmentRepository
	templateRepo   repository.TemplateRepository
	overrideRepo   repository.OverrideRepository
	cache          cache.Cache
}

// NewTenantConfigService 创建服务实例
func NewTenantConfigService(
	assignmentRepo repository.AssignmentRepository,
	templateRepo repository.TemplateRepository,
	overrideRepo repository.OverrideRepository,
	c cache.Cache,
) TenantConfigService {
	return &tenantConfigService{
		assignmentRepo: assignmentRepo,
		templateRepo:   templateRepo,
		overrideRepo:   overrideRepo,
		cache:          c,
	}
}

// Get 获取租户合并配置：各流程绑定的模板与覆盖数量
func (s *tenantConfigService) Get(ctx context.Context, tenantID uint) (*TenantConfigDTO, error) {
	key := cache.TenantConfigKey(tenantID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		var dto TenantConfigDTO
		if err := json.Unmarshal([]byte(cached), &dto); err == nil {
			return &dto, nil
		}
		// 缓存内容损坏时忽略并回源
		klog.Warningf("租户配置缓存解码失败: tenant=%d", tenantID)
	}

	assignments, err := s.assignmentRepo.ListByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	templateIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		templateIDs = append(templateIDs, a.TemplateID)
	}
	templates, err := s.templateRepo.GetByIDs(templateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}
	names := make(map[uint]string, len(templates))
	versions := make(map[uint]int, len(templates))
	for i := range templates {
		names[templates[i].ID] = templates[i].Name
		versions[templates[i].ID] = templates[i].Version
	}

	dto := &TenantConfigDTO{TenantID: tenantID, Flows: make([]FlowConfigDTO, 0, len(assignments))}
	for _, a := range assignments {
		count, err := s.overrideRepo.CountByTenantFlow(tenantID, a.FlowKey)
		if err != nil {
			return nil, fmt.Errorf("failed to count overrides: %w", err)
		}
		dto.Flows = append(dto.Flows, FlowConfigDTO{
			FlowKey:         a.FlowKey,
			TemplateID:      a.TemplateID,
			TemplateName:    names[a.TemplateID],
			TemplateVersion: versions[a.TemplateID],
			OverrideCount:   count,
			UpdatedAt:       a.UpdatedAt.Format(time.RFC3339),
		})
	}

	if data, err := json.Marshal(dto); err == nil {
		s.cache.Set(ctx, key, string(data), cache.TenantConfigTTL)
	}
	return dto, nil
}
