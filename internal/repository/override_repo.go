package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/promptweaver/backend/internal/model"
	"gorm.io/gorm"
)

// OverrideRepository 租户覆盖 Repository 接口
type OverrideRepository interface {
	Upsert(override *model.Override) (*model.Override, error)
	Get(tenantID uint, flowKey string, sectionKey int) (*model.Override, error)
	GetByID(id uint) (*model.Override, error)
	ListByTenantFlow(tenantID uint, flowKey string) ([]model.Override, error)
	CountByTenantFlow(tenantID uint, flowKey string) (int64, error)
	Delete(id uint) error
	History(tenantID uint, flowKey string, sectionKey int, limit int) ([]model.OverrideHistory, error)
	Revert(tenantID uint, flowKey string, sectionKey int) (*model.Override, *model.OverrideHistory, error)
}

// overrideRepository 实现
type overrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository 创建 Repository 实例
func NewOverrideRepository(db *gorm.DB) OverrideRepository {
	return &overrideRepository{db: db}
}

// Upsert 创建或覆盖 (tenant, flow, section) 的覆盖记录
// 现有记录 action 为 modify 时，改写前先写入历史快照（同一事务）
func (r *overrideRepository) Upsert(override *model.Override) (*model.Override, error) {
	var saved model.Override
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current model.Override
		err := tx.Where("tenant_id = ? AND flow_key = ? AND section_key = ?",
			override.TenantID, override.FlowKey, override.SectionKey).First(&current).Error
		switch {
		case err == nil:
			if current.Action == model.ActionModify {
				history := model.OverrideHistory{
					RevisionID: uuid.New().String(),
					OverrideID: current.ID,
					TenantID:   current.TenantID,
					FlowKey:    current.FlowKey,
					SectionKey: current.SectionKey,
					Action:     current.Action,
					Content:    current.Content,
					SavedBy:    current.ModifiedBy,
				}
				if err := tx.Create(&history).Error; err != nil {
					return err
				}
			}
			current.Action = override.Action
			current.Content = override.Content
			current.ModifiedBy = override.ModifiedBy
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
			saved = current
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(override).Error; err != nil {
				return err
			}
			saved = *override
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Get 获取覆盖记录
func (r *overrideRepository) Get(tenantID uint, flowKey string, sectionKey int) (*model.Override, error) {
	var override model.Override
	result := r.db.Where("tenant_id = ? AND flow_key = ? AND section_key = ?",
		tenantID, flowKey, sectionKey).First(&override)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &override, nil
}

// GetByID 根据ID获取覆盖记录
func (r *overrideRepository) GetByID(id uint) (*model.Override, error) {
	var override model.Override
	result := r.db.First(&override, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &override, nil
}

// ListByTenantFlow 获取 (tenant, flow) 的所有覆盖
func (r *overrideRepository) ListByTenantFlow(tenantID uint, flowKey string) ([]model.Override, error) {
	var overrides []model.Override
	result := r.db.Where("tenant_id = ? AND flow_key = ?", tenantID, flowKey).
		Order("section_key ASC").
		Find(&overrides)
	return overrides, result.Error
}

// CountByTenantFlow 统计 (tenant, flow) 的覆盖数量
func (r *overrideRepository) CountByTenantFlow(tenantID uint, flowKey string) (int64, error) {
	var count int64
	result := r.db.Model(&model.Override{}).
		Where("tenant_id = ? AND flow_key = ?", tenantID, flowKey).
		Count(&count)
	return count, result.Error
}

// Delete 删除覆盖记录
func (r *overrideRepository) Delete(id uint) error {
	result := r.db.Delete(&model.Override{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// History 获取覆盖历史快照，按时间倒序
func (r *overrideRepository) History(tenantID uint, flowKey string, sectionKey int, limit int) ([]model.OverrideHistory, error) {
	if limit <= 0 {
		limit = 10
	}
	var histories []model.OverrideHistory
	result := r.db.Where("tenant_id = ? AND flow_key = ? AND section_key = ?",
		tenantID, flowKey, sectionKey).
		Order("id DESC").
		Limit(limit).
		Find(&histories)
	return histories, result.Error
}

// Revert 回退到最近一次历史快照（单步 LIFO）
// 同一事务内：快照当前值（使回退本身可再回退）、恢复内容、删除被消费的快照行
// 返回恢复后的覆盖与被消费的快照
func (r *overrideRepository) Revert(tenantID uint, flowKey string, sectionKey int) (*model.Override, *model.OverrideHistory, error) {
	var (
		restored model.Override
		consumed model.OverrideHistory
	)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var current model.Override
		err := tx.Where("tenant_id = ? AND flow_key = ? AND section_key = ?",
			tenantID, flowKey, sectionKey).First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if current.Action != model.ActionModify {
			return ErrNotRevertable
		}

		err = tx.Where("tenant_id = ? AND flow_key = ? AND section_key = ?",
			tenantID, flowKey, sectionKey).
			Order("id DESC").
			First(&consumed).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoHistory
			}
			return err
		}

		snapshot := model.OverrideHistory{
			RevisionID: uuid.New().String(),
			OverrideID: current.ID,
			TenantID:   current.TenantID,
			FlowKey:    current.FlowKey,
			SectionKey: current.SectionKey,
			Action:     current.Action,
			Content:    current.Content,
			SavedBy:    current.ModifiedBy,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		current.Content = consumed.Content
		current.ModifiedBy = consumed.SavedBy
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		if err := tx.Delete(&model.OverrideHistory{}, consumed.ID).Error; err != nil {
			return err
		}

		restored = current
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &restored, &consumed, nil
}
