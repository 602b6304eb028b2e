package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptweaver/backend/internal/model"
)

func newOverrideService(t *testing.T, f *composerFixture) OverrideService {
	t.Helper()
	return NewOverrideService(f.overrides, f.cache)
}

func TestOverrideServiceUpsertValidation(t *testing.T) {
	f := newComposerFixture(t)
	svc := newOverrideService(t, f)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{SectionKey: 1, Action: "replace"})
	assert.ErrorIs(t, err, ErrInvalidAction, "非法 action 在落库前拒绝")

	dto, err := svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 1,
		Action:     model.ActionModify,
		Content:    "novo texto",
		ModifiedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "novo texto", dto.Content)
	assert.Nil(t, dto.Module)
}

func TestOverrideServiceUpsertModuleContent(t *testing.T) {
	f := newComposerFixture(t)
	svc := newOverrideService(t, f)
	ctx := context.Background()

	dto, err := svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 5,
		Action:     model.ActionAdd,
		Content:    "{{module:3:regras}}",
		Module: &ModuleRefInput{
			ModuleID:         3,
			ModuleName:       "regras",
			ParentSectionKey: 5,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, dto.Module)
	assert.Equal(t, uint(3), dto.Module.ModuleID)
	assert.Equal(t, "{{module:3:regras}}", dto.Content, "DTO 展开为纯文本加来源信息")
}

func TestOverrideServiceRevert(t *testing.T) {
	f := newComposerFixture(t)
	svc := newOverrideService(t, f)
	ctx := context.Background()

	_, err := svc.Revert(ctx, 1, "main", 1)
	assert.ErrorIs(t, err, ErrOverrideNotFound)

	_, err = svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 1, Action: model.ActionModify, Content: "v1", ModifiedBy: "alice",
	})
	require.NoError(t, err)

	_, err = svc.Revert(ctx, 1, "main", 1)
	assert.ErrorIs(t, err, ErrNoOverrideHistory, "无快照时不可回退")

	_, err = svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 1, Action: model.ActionModify, Content: "v2", ModifiedBy: "bob",
	})
	require.NoError(t, err)

	result, err := svc.Revert(ctx, 1, "main", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", result.Override.Content)
	assert.Equal(t, "alice", result.Override.ModifiedBy)
	assert.Equal(t, "alice", result.SavedBy)
	assert.NotEmpty(t, result.RevisionID)

	histories, err := svc.History(ctx, 1, "main", 1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1, "消费的快照被替换为回退前的状态")
	assert.Equal(t, "v2", histories[0].Content)
}

func TestOverrideServiceRevertNonModify(t *testing.T) {
	f := newComposerFixture(t)
	svc := newOverrideService(t, f)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 2, Action: model.ActionRemove,
	})
	require.NoError(t, err)

	_, err = svc.Revert(ctx, 1, "main", 2)
	assert.ErrorIs(t, err, ErrOverrideNotModify)
}

func TestOverrideServiceMutationsInvalidatePrompt(t *testing.T) {
	f := newComposerFixture(t)
	svc := newOverrideService(t, f)
	ctx := context.Background()

	template := f.createTemplate(t, model.TemplateKindStandard, model.SectionList{
		{Key: 1, Content: "base"},
	})
	f.assign(t, 1, "main", template.ID)

	text, err := f.svc.BuildPrompt(ctx, 1, "main")
	require.NoError(t, err)
	assert.Equal(t, "base", stripTimeContext(t, text))

	dto, err := svc.Upsert(ctx, 1, "main", UpsertOverrideRequest{
		SectionKey: 1, Action: model.ActionModify, Content: "custom",
	})
	require.NoError(t, err)

	text, err = f.svc.BuildPrompt(ctx, 1, "main")
	require.NoError(t, err)
	assert.Equal(t, "custom", stripTimeContext(t, text), "覆盖写入后缓存立即失效")

	require.NoError(t, svc.Delete(ctx, dto.ID))
	text, err = f.svc.BuildPrompt(ctx, 1, "main")
	require.NoError(t, err)
	assert.Equal(t, "base", stripTimeContext(t, text), "覆盖删除后恢复模板原文")
}
