package model

import "time"

// Assignment 租户流程与模板的绑定关系表，(tenant_id, flow_key) 唯一
// 对模板为弱引用：删除模板不级联删除绑定
type Assignment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"not null;uniqueIndex:ux_assignment_tenant_flow,priority:1"`
	FlowKey    string    `json:"flow_key" gorm:"size:100;not null;uniqueIndex:ux_assignment_tenant_flow,priority:2"`
	TemplateID uint      `json:"template_id" gorm:"index;not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Assignment) TableName() string {
	return "prompt_assignments"
}
