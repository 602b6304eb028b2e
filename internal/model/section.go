package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Section 模板分节，key 为排序键，组合时按 key 升序拼接
type Section struct {
	Key     int    `json:"key"`
	Content string `json:"content"`
}

// SectionList 分节列表，数据库中以 JSON 文本存储
type SectionList []Section

// sectionRow 兼容历史数据：早期数据可能缺少 key 字段
type sectionRow struct {
	Key     *int   `json:"key"`
	Content string `json:"content"`
}

// Value 实现 driver.Valuer，序列化为 JSON 文本
func (l SectionList) Value() (driver.Value, error) {
	if l == nil {
		l = SectionList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner，反序列化并规范化缺失的 key
func (l *SectionList) Scan(value interface{}) error {
	if value == nil {
		*l = SectionList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported section list type: %T", value)
	}

	if len(data) == 0 {
		*l = SectionList{}
		return nil
	}

	var rows []sectionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode section list: %w", err)
	}

	out := make(SectionList, 0, len(rows))
	for i, row := range rows {
		key := i
		if row.Key != nil {
			key = *row.Key
		}
		out = append(out, Section{Key: key, Content: row.Content})
	}
	*l = out
	return nil
}

// Sorted 返回按 key 升序排列的副本
func (l SectionList) Sorted() SectionList {
	out := make(SectionList, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// HasKey 是否包含指定 key
func (l SectionList) HasKey(key int) bool {
	for _, s := range l {
		if s.Key == key {
			return true
		}
	}
	return false
}

// DuplicateKey 返回首个重复的 key，无重复时返回 (0, false)
func (l SectionList) DuplicateKey() (int, bool) {
	seen := make(map[int]struct{}, len(l))
	for _, s := range l {
		if _, ok := seen[s.Key]; ok {
			return s.Key, true
		}
		seen[s.Key] = struct{}{}
	}
	return 0, false
}
