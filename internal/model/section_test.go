package model

import "testing"

func TestSectionListScanNormalizesMissingKeys(t *testing.T) {
	var list SectionList
	// 第二项缺少 key，按位置索引补齐
	raw := `[{"key":10,"content":"A"},{"content":"B"},{"key":30,"content":"C"}]`
	if err := list.Scan(raw); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(list))
	}
	if list[1].Key != 1 || list[1].Content != "B" {
		t.Fatalf("unexpected normalized section: %+v", list[1])
	}
	if list[0].Key != 10 || list[2].Key != 30 {
		t.Fatalf("explicit keys must be preserved: %+v", list)
	}
}

func TestSectionListScanEmpty(t *testing.T) {
	var list SectionList
	if err := list.Scan(nil); err != nil {
		t.Fatalf("scan nil error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestSectionListValueScanRoundTrip(t *testing.T) {
	original := SectionList{{Key: 20, Content: "B"}, {Key: 10, Content: "A"}}
	value, err := original.Value()
	if err != nil {
		t.Fatalf("value error: %v", err)
	}

	var decoded SectionList
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Key != 20 || decoded[1].Key != 10 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestSectionListSorted(t *testing.T) {
	list := SectionList{{Key: 30, Content: "C"}, {Key: 10, Content: "A"}, {Key: 20, Content: "B"}}
	sorted := list.Sorted()
	if sorted[0].Key != 10 || sorted[1].Key != 20 || sorted[2].Key != 30 {
		t.Fatalf("unexpected order: %+v", sorted)
	}
	// 原列表不受影响
	if list[0].Key != 30 {
		t.Fatalf("original list must not be mutated: %+v", list)
	}
}

func TestSectionListDuplicateKey(t *testing.T) {
	list := SectionList{{Key: 10, Content: "A"}, {Key: 10, Content: "B"}}
	if key, dup := list.DuplicateKey(); !dup || key != 10 {
		t.Fatalf("expected duplicate key 10, got key=%d dup=%v", key, dup)
	}
	list = SectionList{{Key: 10, Content: "A"}, {Key: 20, Content: "B"}}
	if _, dup := list.DuplicateKey(); dup {
		t.Fatalf("expected no duplicate")
	}
}

func TestOverrideContentPlainTextRoundTrip(t *testing.T) {
	content := PlainText("hello world")
	value, err := content.Value()
	if err != nil {
		t.Fatalf("value error: %v", err)
	}
	if value != "hello world" {
		t.Fatalf("plain text must be stored verbatim, got %v", value)
	}

	var decoded OverrideContent
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if decoded.IsModule() || decoded.Unwrap() != "hello world" {
		t.Fatalf("unexpected decoded content: %+v", decoded)
	}
}

func TestOverrideContentModuleEnvelopeRoundTrip(t *testing.T) {
	content := ModuleText("módulo de triagem", ModuleRef{
		ModuleID:                 7,
		ModuleName:               "Triagem",
		OriginalModuleSectionKey: 10,
		ParentSectionKey:         20,
	})
	value, err := content.Value()
	if err != nil {
		t.Fatalf("value error: %v", err)
	}

	var decoded OverrideContent
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if !decoded.IsModule() {
		t.Fatalf("expected module content, got %+v", decoded)
	}
	if decoded.Unwrap() != "módulo de triagem" {
		t.Fatalf("unexpected text: %q", decoded.Unwrap())
	}
	if decoded.Module.ModuleID != 7 || decoded.Module.ParentSectionKey != 20 {
		t.Fatalf("unexpected module ref: %+v", decoded.Module)
	}
}

func TestOverrideContentScanPlainJSONWithoutFlag(t *testing.T) {
	// 合法 JSON 但没有 isModuleSection 标记：按纯文本处理
	raw := `{"foo":"bar"}`
	var decoded OverrideContent
	if err := decoded.Scan(raw); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if decoded.IsModule() || decoded.Unwrap() != raw {
		t.Fatalf("unexpected decoded content: %+v", decoded)
	}
}
