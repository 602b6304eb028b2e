package model

import "time"

// OverrideHistory 覆盖历史快照表
// 仅当现有覆盖的 action 为 modify 且即将被改写时写入；revert 消费后删除对应行
type OverrideHistory struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	RevisionID string          `json:"revision_id" gorm:"size:64;uniqueIndex"` // UUID
	OverrideID uint            `json:"override_id" gorm:"index;not null"`
	TenantID   uint            `json:"tenant_id" gorm:"not null;index:ix_override_history_triple,priority:1"`
	FlowKey    string          `json:"flow_key" gorm:"size:100;not null;index:ix_override_history_triple,priority:2"`
	SectionKey int             `json:"section_key" gorm:"not null;index:ix_override_history_triple,priority:3"`
	Action     string          `json:"action" gorm:"size:20;not null"`
	Content    OverrideContent `json:"content" gorm:"type:text"`
	SavedBy    string          `json:"saved_by" gorm:"size:255"`
	SavedAt    time.Time       `json:"saved_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (OverrideHistory) TableName() string {
	return "prompt_override_histories"
}
