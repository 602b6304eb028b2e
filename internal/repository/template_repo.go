package repository

import (
	"errors"

	"github.com/promptweaver/backend/internal/model"
	"gorm.io/gorm"
)

// TemplateRepository 提示词模板 Repository 接口
type TemplateRepository interface {
	List() ([]model.Template, error)
	GetByID(id uint) (*model.Template, error)
	GetByIDs(ids []uint) ([]model.Template, error)
	GetModules() ([]model.Template, error)
	GetSystemDefault() (*model.Template, error)
	Create(template *model.Template) error
	UpdateSections(id uint, sections model.SectionList, modifiedBy string, expectedVersion *int) (*model.Template, error)
	UpdateMeta(id uint, name, description string) (*model.Template, error)
	InsertSection(id uint, afterKey int, content, modifiedBy string) (*model.Template, int, error)
	Delete(id uint) error
	History(templateID uint, limit int) ([]model.TemplateHistory, error)
}

// templateRepository 实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建 Repository 实例
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// List 获取所有模板
func (r *templateRepository) List() ([]model.Template, error) {
	var templates []model.Template
	result := r.db.Order("id ASC").Find(&templates)
	return templates, result.Error
}

// GetByID 根据ID获取模板
func (r *templateRepository) GetByID(id uint) (*model.Template, error) {
	var template model.Template
	result := r.db.First(&template, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &template, nil
}

// GetByIDs 批量获取模板，用于模块占位符解析
func (r *templateRepository) GetByIDs(ids []uint) ([]model.Template, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var templates []model.Template
	result := r.db.Where("id IN ?", ids).Find(&templates)
	return templates, result.Error
}

// GetModules 获取所有模块模板
func (r *templateRepository) GetModules() ([]model.Template, error) {
	var templates []model.Template
	result := r.db.Where("kind = ?", model.TemplateKindModule).Order("id ASC").Find(&templates)
	return templates, result.Error
}

// GetSystemDefault 获取系统默认模板（全局至多一个）
func (r *templateRepository) GetSystemDefault() (*model.Template, error) {
	var template model.Template
	result := r.db.Where("kind = ?", model.TemplateKindSystemDefault).First(&template)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &template, nil
}

// Create 创建模板
func (r *templateRepository) Create(template *model.Template) error {
	if template.Version == 0 {
		template.Version = 1
	}
	return r.db.Create(template).Error
}

// UpdateSections 整体替换分节并递增版本号
// 同一事务内先将更新前的 version/sections 写入历史表，再写入新内容
// expectedVersion 非空时执行乐观校验，不一致返回 ErrVersionConflict
func (r *templateRepository) UpdateSections(id uint, sections model.SectionList, modifiedBy string, expectedVersion *int) (*model.Template, error) {
	var updated *model.Template
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current model.Template
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if expectedVersion != nil && *expectedVersion != current.Version {
			return ErrVersionConflict
		}

		history := model.TemplateHistory{
			TemplateID: current.ID,
			Version:    current.Version,
			Sections:   current.Sections,
			ModifiedBy: modifiedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		current.Sections = sections
		current.Version++
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		updated = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateMeta 更新名称与描述，不涉及分节，不产生历史快照
func (r *templateRepository) UpdateMeta(id uint, name, description string) (*model.Template, error) {
	var template model.Template
	if err := r.db.First(&template, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	template.Name = name
	template.Description = description
	if err := r.db.Save(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// InsertSection 在 afterKey 之后插入新分节，返回更新后的模板与新分节 key
// 同一事务内：写历史快照、分配 key、递增版本，并为该模板的所有既有绑定
// 自动创建 action=remove 的覆盖，使存量租户默认不受新增内容影响
func (r *templateRepository) InsertSection(id uint, afterKey int, content, modifiedBy string) (*model.Template, int, error) {
	var (
		updated *model.Template
		newKey  int
	)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current model.Template
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		sorted := current.Sections.Sorted()
		if !sorted.HasKey(afterKey) {
			return ErrNotFound
		}

		newKey = allocateKey(sorted, afterKey)

		history := model.TemplateHistory{
			TemplateID: current.ID,
			Version:    current.Version,
			Sections:   current.Sections,
			ModifiedBy: modifiedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		sorted = append(sorted, model.Section{Key: newKey, Content: content})
		current.Sections = sorted.Sorted()
		current.Version++
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		var assignments []model.Assignment
		if err := tx.Where("template_id = ?", id).Find(&assignments).Error; err != nil {
			return err
		}
		for _, a := range assignments {
			override := model.Override{
				TenantID:   a.TenantID,
				FlowKey:    a.FlowKey,
				SectionKey: newKey,
				Action:     model.ActionRemove,
				Content:    model.PlainText(""),
				ModifiedBy: modifiedBy,
			}
			if err := tx.Create(&override).Error; err != nil {
				return err
			}
		}

		updated = &current
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, newKey, nil
}

// allocateKey 为插入的分节分配 key
// 存在后继分节时：间隔 >=2 取中点（冲突则逐一递增探测），间隔为 1 取 prev*10+5
// 无后继分节时取 prev+1
func allocateKey(sorted model.SectionList, afterKey int) int {
	next := 0
	hasNext := false
	for _, s := range sorted {
		if s.Key > afterKey {
			next = s.Key
			hasNext = true
			break
		}
	}

	if !hasNext {
		return afterKey + 1
	}

	gap := next - afterKey
	if gap >= 2 {
		key := afterKey + gap/2
		for sorted.HasKey(key) {
			key++
		}
		return key
	}
	return afterKey*10 + 5
}

// Delete 删除模板（不级联删除绑定，弱引用语义）
func (r *templateRepository) Delete(id uint) error {
	result := r.db.Delete(&model.Template{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// History 获取模板历史快照，按时间倒序
func (r *templateRepository) History(templateID uint, limit int) ([]model.TemplateHistory, error) {
	if limit <= 0 {
		limit = 10
	}
	var histories []model.TemplateHistory
	result := r.db.Where("template_id = ?", templateID).
		Order("id DESC").
		Limit(limit).
		Find(&histories)
	return histories, result.Error
}
