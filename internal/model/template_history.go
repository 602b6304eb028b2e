package model

import "time"

// TemplateHistory 模板历史快照表，覆盖 sections 前写入，只追加不修改
type TemplateHistory struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	TemplateID    uint        `json:"template_id" gorm:"index;not null"`
	Version       int         `json:"version" gorm:"not null"` // 快照对应的版本号（更新前的版本）
	Sections      SectionList `json:"sections" gorm:"type:text"`
	ModifiedBy    string      `json:"modified_by" gorm:"size:255"`
	SnapshottedAt time.Time   `json:"snapshotted_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (TemplateHistory) TableName() string {
	return "prompt_template_histories"
}
