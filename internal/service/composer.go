package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/promptweaver/backend/internal/model"
	"github.com/promptweaver/backend/internal/pkg/cache"
	"github.com/promptweaver/backend/internal/repository"
	"k8s.io/klog/v2"
)

// 特殊流程
const (
	FlowStatistics = "statistics" // 使用系统默认模板
	FlowImage      = "image"      // 无绑定时使用内置兜底分节
	rephraseSuffix = "_rephrase"
)

var (
	// ErrEmptyComposition 组合结果为空：配置问题而非系统故障，
	// 提示管理员去绑定或填充模板
	ErrEmptyComposition = errors.New("empty composition")
	// ErrNotConfigured 该 (tenant, flow) 没有可用的模板绑定
	ErrNotConfigured = errors.New("prompt not configured")
)

// modulePattern 模块占位符 {{module:<id>:<name>}}
var modulePattern = regexp.MustCompile(`\{\{module:(\d+):([^}]*)\}\}`)

// imageFallbackSections image 流程无绑定时的内置兜底分节
var imageFallbackSections = model.SectionList{
	{Key: 0, Content: "Descreva em detalhes o conteúdo da imagem enviada pelo cliente, para que a conversa possa continuar normalmente."},
}

// brazilTZ 时间标注使用巴西利亚时区，加载失败时退回固定偏移
var brazilTZ = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

var weekdaysPT = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

var monthsPT = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

// ComposerService 提示词组合服务接口
// 在给定存储快照下输出确定（末尾时间段落除外）
type ComposerService interface {
	BuildPrompt(ctx context.Context, tenantID uint, flowKey string) (string, error)
	BuildRephrasePrompt(ctx context.Context, tenantID uint, flowKey string) (string, error)
}

// composerService 实现
type composerService struct {
	templateRepo   repository.TemplateRepository
	assignmentRepo repository.AssignmentRepository
	overrideRepo   repository.OverrideRepository
	cache          cache.Cache
	now            func() time.Time
}

// NewComposerService 创建服务实例
func NewComposerService(
	templateRepo repository.TemplateRepository,
	assignmentRepo repository.AssignmentRepository,
	overrideRepo repository.OverrideRepository,
	c cache.Cache,
) ComposerService {
	return &composerService{
		templateRepo:   templateRepo,
		assignmentRepo: assignmentRepo,
		overrideRepo:   overrideRepo,
		cache:          c,
		now:            time.Now,
	}
}

// BuildPrompt 组合 (tenant, flow) 的最终提示词
// 基础分节叠加租户覆盖、解析模块占位符、追加时间标注，结果缓存 10 分钟
func (s *composerService) BuildPrompt(ctx context.Context, tenantID uint, flowKey string) (string, error) {
	key := cache.PromptKey(tenantID, flowKey)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}

	sections, err := s.baseSections(tenantID, flowKey)
	if err != nil {
		return "", err
	}

	// 以分节 key 为索引叠加覆盖：remove 删除，add/modify 均为赋值
	// （二者的区分只服务于编辑端与历史策略）
	merged := make(map[int]string, len(sections))
	for _, sec := range sections {
		merged[sec.Key] = sec.Content
	}

	overrides, err := s.overrideRepo.ListByTenantFlow(tenantID, flowKey)
	if err != nil {
		return "", fmt.Errorf("failed to list overrides: %w", err)
	}
	for _, o := range overrides {
		switch o.Action {
		case model.ActionRemove:
			delete(merged, o.SectionKey)
		case model.ActionAdd, model.ActionModify:
			merged[o.SectionKey] = o.Content.Unwrap()
		}
	}

	if len(merged) == 0 {
		return "", ErrEmptyComposition
	}

	keys := make([]int, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if content := strings.TrimSpace(merged[k]); content != "" {
			parts = append(parts, content)
		}
	}
	text := strings.Join(parts, "\n\n")
	if strings.TrimSpace(text) == "" {
		// 全部分节都是空白时同样视为空组合
		return "", ErrEmptyComposition
	}

	text, err = s.resolveModules(text)
	if err != nil {
		return "", err
	}
	text = s.appendTimeContext(text)

	s.cache.Set(ctx, key, text, cache.PromptTTL)
	return text, nil
}

// BuildRephrasePrompt 组合 flow 的改写变体（flowKey + "_rephrase"）
// 部分流程本就没有改写提示词，未配置与空组合均按预期的空结果处理
func (s *composerService) BuildRephrasePrompt(ctx context.Context, tenantID uint, flowKey string) (string, error) {
	text, err := s.BuildPrompt(ctx, tenantID, flowKey+rephraseSuffix)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrEmptyComposition) {
			return "", nil
		}
		return "", err
	}
	return text, nil
}

// baseSections 解析 (tenant, flow) 的基础分节
// statistics 固定使用系统默认模板；image 无绑定时使用内置兜底分节
func (s *composerService) baseSections(tenantID uint, flowKey string) (model.SectionList, error) {
	if flowKey == FlowStatistics {
		template, err := s.templateRepo.GetSystemDefault()
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotConfigured
			}
			return nil, fmt.Errorf("failed to get system default template: %w", err)
		}
		return template.Sections, nil
	}

	assignment, err := s.assignmentRepo.Get(tenantID, flowKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if flowKey == FlowImage {
				return imageFallbackSections, nil
			}
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	template, err := s.templateRepo.GetByID(assignment.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 弱引用：模板已删除但绑定仍在
			klog.Warningf("绑定指向的模板不存在: tenant=%d flow=%s template=%d", tenantID, flowKey, assignment.TemplateID)
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template.Sections, nil
}

// resolveModules 解析文本中的模块占位符并以模块内容原地替换
// 单层解析：模块自身的文本不再扫描占位符
// 未解析的占位符按原文保留并记录告警，不中断组合
func (s *composerService) resolveModules(text string) (string, error) {
	matches := modulePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		id64, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		id := uint(id64)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	templates, err := s.templateRepo.GetByIDs(ids)
	if err != nil {
		return "", fmt.Errorf("failed to fetch modules: %w", err)
	}
	contents := make(map[uint]string, len(templates))
	for i := range templates {
		if templates[i].IsModule() {
			contents[templates[i].ID] = composeSections(templates[i].Sections)
		}
	}

	for _, m := range matches {
		placeholder := m[0]
		id64, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			klog.Warningf("模块占位符 id 非法，保留原文: %s", placeholder)
			continue
		}
		content, ok := contents[uint(id64)]
		if !ok {
			klog.Warningf("模块引用未解析，保留原文: %s", placeholder)
			continue
		}
		text = strings.ReplaceAll(text, placeholder, content)
	}
	return text, nil
}

// composeSections 按 key 升序拼接分节，去除空白分节，空行分隔
func composeSections(sections model.SectionList) string {
	sorted := sections.Sorted()
	parts := make([]string, 0, len(sorted))
	for _, sec := range sorted {
		if content := strings.TrimSpace(sec.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// appendTimeContext 追加当前日期时间段落（巴西利亚时区，葡语表述）
func (s *composerService) appendTimeContext(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	now := s.now().In(brazilTZ)
	line := fmt.Sprintf("Contexto de data e hora: hoje é %s, %d de %s de %d, %02d:%02d (horário de Brasília).",
		weekdaysPT[now.Weekday()], now.Day(), monthsPT[now.Month()-1], now.Year(), now.Hour(), now.Minute())
	return text + "\n\n" + line
}
