package model

import "time"

// 模板种类
const (
	TemplateKindStandard      = "standard"       // 普通模板，可分配给租户
	TemplateKindModule        = "module"         // 模块模板，通过占位符引用
	TemplateKindSystemDefault = "system-default" // 系统默认模板，statistics 流程使用
)

// Template 提示词模板表
type Template struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	Name        string      `json:"name" gorm:"size:255;not null"`
	Description string      `json:"description" gorm:"size:1000"`
	Sections    SectionList `json:"sections" gorm:"type:text"`
	Version     int         `json:"version" gorm:"not null;default:1"`
	Kind        string      `json:"kind" gorm:"size:50;not null;default:standard;index"` // standard, module, system-default
	CreatedBy   string      `json:"created_by" gorm:"size:255"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName 指定表名
func (Template) TableName() string {
	return "prompt_templates"
}

// IsModule 是否为模块模板
func (t *Template) IsModule() bool {
	return t.Kind == TemplateKindModule
}
