package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptweaver/backend/internal/model"
	"github.com/promptweaver/backend/internal/pkg/cache"
)

func newTenantConfigService(t *testing.T, f *composerFixture) TenantConfigService {
	t.Helper()
	return NewTenantConfigService(f.assignments, f.templates, f.overrides, f.cache)
}

func TestTenantConfigGet(t *testing.T) {
	f := newComposerFixture(t)
	svc := newTenantConfigService(t, f)
	ctx := context.Background()

	empty, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Flows, "无绑定租户返回空视图")

	template := f.createTemplate(t, model.TemplateKindStandard, model.SectionList{
		{Key: 1, Content: "a"},
	})
	f.assign(t, 1, "main", template.ID)
	f.override(t, 1, "main", 1, model.ActionModify, model.PlainText("x"))
	f.override(t, 1, "main", 2, model.ActionAdd, model.PlainText("y"))

	// 空视图还在缓存里，先清掉
	f.cache.Delete(ctx, cache.TenantConfigKey(1))

	dto, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, dto.Flows, 1)
	flow := dto.Flows[0]
	assert.Equal(t, "main", flow.FlowKey)
	assert.Equal(t, template.ID, flow.TemplateID)
	assert.Equal(t, template.Name, flow.TemplateName)
	assert.Equal(t, 1, flow.TemplateVersion)
	assert.EqualValues(t, 2, flow.OverrideCount)
}

func TestTenantConfigCachedView(t *testing.T) {
	f := newComposerFixture(t)
	svc := newTenantConfigService(t, f)
	ctx := context.Background()

	template := f.createTemplate(t, model.TemplateKindStandard, model.SectionList{
		{Key: 1, Content: "a"},
	})
	f.assign(t, 1, "main", template.ID)

	first, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first.Flows, 1)

	// 绕过服务层直接加绑定：缓存未失效前视图不变
	f.assign(t, 1, "image", template.ID)
	second, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, second.Flows, 1, "TTL 内应命中缓存")

	f.cache.Delete(ctx, cache.TenantConfigKey(1))
	third, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, third.Flows, 2)
}

func TestTenantConfigCorruptCacheRefetches(t *testing.T) {
	f := newComposerFixture(t)
	svc := newTenantConfigService(t, f)
	ctx := context.Background()

	template := f.createTemplate(t, model.TemplateKindStandard, model.SectionList{
		{Key: 1, Content: "a"},
	})
	f.assign(t, 1, "main", template.ID)

	f.cache.Set(ctx, cache.TenantConfigKey(1), "{not json", cache.TenantConfigTTL)
	dto, err := svc.Get(ctx, 1)
	require.NoError(t, err, "损坏的缓存条目应被忽略并回源")
	assert.Len(t, dto.Flows, 1)
}
