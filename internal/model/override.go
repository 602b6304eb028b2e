package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Override 操作类型
const (
	ActionAdd    = "add"
	ActionModify = "modify"
	ActionRemove = "remove"
)

// ValidAction 校验操作类型是否合法
func ValidAction(action string) bool {
	switch action {
	case ActionAdd, ActionModify, ActionRemove:
		return true
	}
	return false
}

// Override 租户分节覆盖表，(tenant_id, flow_key, section_key) 唯一
type Override struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	TenantID   uint            `json:"tenant_id" gorm:"not null;uniqueIndex:ux_override_tenant_flow_section,priority:1"`
	FlowKey    string          `json:"flow_key" gorm:"size:100;not null;uniqueIndex:ux_override_tenant_flow_section,priority:2"`
	SectionKey int             `json:"section_key" gorm:"not null;uniqueIndex:ux_override_tenant_flow_section,priority:3"`
	Action     string          `json:"action" gorm:"size:20;not null"` // add, modify, remove
	Content    OverrideContent `json:"content" gorm:"type:text"`
	ModifiedBy string          `json:"modified_by" gorm:"size:255"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName 指定表名
func (Override) TableName() string {
	return "prompt_overrides"
}

// ModuleRef 模块来源信息：覆盖内容取自某个模块分节时记录其出处
type ModuleRef struct {
	ModuleID                 uint   `json:"moduleId"`
	ModuleName               string `json:"moduleName"`
	OriginalModuleSectionKey int    `json:"originalModuleSectionKey"`
	ParentSectionKey         int    `json:"parentSectionKey"`
}

// OverrideContent 覆盖内容的带标签变体：纯文本，或携带模块来源的文本
// 存储层显式编解码：纯文本按原样落库，模块来源编码为 JSON 信封
type OverrideContent struct {
	Text   string     `json:"content"`
	Module *ModuleRef `json:"module,omitempty"`
}

// moduleEnvelope 落库用的模块信封格式，与历史数据保持兼容
type moduleEnvelope struct {
	Content                  string `json:"content"`
	IsModuleSection          bool   `json:"isModuleSection"`
	ModuleID                 uint   `json:"moduleId"`
	ModuleName               string `json:"moduleName"`
	OriginalModuleSectionKey int    `json:"originalModuleSectionKey"`
	ParentSectionKey         int    `json:"parentSectionKey"`
}

// PlainText 构造纯文本内容
func PlainText(text string) OverrideContent {
	return OverrideContent{Text: text}
}

// ModuleText 构造携带模块来源的内容
func ModuleText(text string, ref ModuleRef) OverrideContent {
	return OverrideContent{Text: text, Module: &ref}
}

// Unwrap 返回用于组合的原始文本（剥离模块信封）
func (c OverrideContent) Unwrap() string {
	return c.Text
}

// IsModule 内容是否来源于模块分节
func (c OverrideContent) IsModule() bool {
	return c.Module != nil
}

// Value 实现 driver.Valuer：纯文本原样存储，模块内容编码为信封
func (c OverrideContent) Value() (driver.Value, error) {
	if c.Module == nil {
		return c.Text, nil
	}
	data, err := json.Marshal(moduleEnvelope{
		Content:                  c.Text,
		IsModuleSection:          true,
		ModuleID:                 c.Module.ModuleID,
		ModuleName:               c.Module.ModuleName,
		OriginalModuleSectionKey: c.Module.OriginalModuleSectionKey,
		ParentSectionKey:         c.Module.ParentSectionKey,
	})
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner：识别模块信封，其余内容按纯文本处理
func (c *OverrideContent) Scan(value interface{}) error {
	if value == nil {
		*c = OverrideContent{}
		return nil
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported override content type: %T", value)
	}

	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var env moduleEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err == nil && env.IsModuleSection {
			*c = OverrideContent{
				Text: env.Content,
				Module: &ModuleRef{
					ModuleID:                 env.ModuleID,
					ModuleName:               env.ModuleName,
					OriginalModuleSectionKey: env.OriginalModuleSectionKey,
					ParentSectionKey:         env.ParentSectionKey,
				},
			}
			return nil
		}
	}

	*c = OverrideContent{Text: raw}
	return nil
}
