package repository

import (
	"errors"

	"github.com/promptweaver/backend/internal/model"
	"gorm.io/gorm"
)

// AssignmentRepository 模板绑定 Repository 接口
type AssignmentRepository interface {
	Upsert(tenantID uint, flowKey string, templateID uint) (*model.Assignment, error)
	Get(tenantID uint, flowKey string) (*model.Assignment, error)
	ListByTenant(tenantID uint) ([]model.Assignment, error)
	ListByTemplate(templateID uint) ([]model.Assignment, error)
	Delete(tenantID uint, flowKey string) error
}

// assignmentRepository 实现
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建 Repository 实例
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Upsert 创建或覆盖 (tenant, flow) 的模板绑定
func (r *assignmentRepository) Upsert(tenantID uint, flowKey string, templateID uint) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND flow_key = ?", tenantID, flowKey).First(&assignment).Error
		switch {
		case err == nil:
			assignment.TemplateID = templateID
			return tx.Save(&assignment).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			assignment = model.Assignment{TenantID: tenantID, FlowKey: flowKey, TemplateID: templateID}
			return tx.Create(&assignment).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Get 获取绑定
func (r *assignmentRepository) Get(tenantID uint, flowKey string) (*model.Assignment, error) {
	var assignment model.Assignment
	result := r.db.Where("tenant_id = ? AND flow_key = ?", tenantID, flowKey).First(&assignment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &assignment, nil
}

// ListByTenant 获取租户的所有绑定
func (r *assignmentRepository) ListByTenant(tenantID uint) ([]model.Assignment, error) {
	var assignments []model.Assignment
	result := r.db.Where("tenant_id = ?", tenantID).Order("flow_key ASC").Find(&assignments)
	return assignments, result.Error
}

// ListByTemplate 获取引用某模板的所有绑定
func (r *assignmentRepository) ListByTemplate(templateID uint) ([]model.Assignment, error) {
	var assignments []model.Assignment
	result := r.db.Where("template_id = ?", templateID).Order("tenant_id ASC, flow_key ASC").Find(&assignments)
	return assignments, result.Error
}

// Delete 删除绑定
func (r *assignmentRepository) Delete(tenantID uint, flowKey string) error {
	result := r.db.Where("tenant_id = ? AND flow_key = ?", tenantID, flowKey).Delete(&model.Assignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
