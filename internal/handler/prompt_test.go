package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/promptweaver/backend/internal/model"
	"github.com/promptweaver/backend/internal/pkg/cache"
	"github.com/promptweaver/backend/internal/repository"
	"github.com/promptweaver/backend/internal/service"
)

// newTestRouter 以内存数据库搭建完整 API 栈
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Template{},
		&model.TemplateHistory{},
		&model.Assignment{},
		&model.Override{},
		&model.OverrideHistory{},
	); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	templateRepo := repository.NewTemplateRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	c := cache.NewMemory()

	templateService := service.NewTemplateService(templateRepo, assignmentRepo, c)
	assignmentService := service.NewAssignmentService(assignmentRepo, templateRepo, c)
	overrideService := service.NewOverrideService(overrideRepo, c)
	composerService := service.NewComposerService(templateRepo, assignmentRepo, overrideRepo, c)
	tenantConfigService := service.NewTenantConfigService(assignmentRepo, templateRepo, overrideRepo, c)

	templateHandler := NewTemplateHandler(templateService)
	assignmentHandler := NewAssignmentHandler(assignmentService)
	overrideHandler := NewOverrideHandler(overrideService)
	promptHandler := NewPromptHandler(composerService, tenantConfigService)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/templates", templateHandler.Create)
	api.PUT("/templates/:id/sections", templateHandler.UpdateSections)
	api.PUT("/tenants/:tenantId/assignments", assignmentHandler.Upsert)
	api.PUT("/tenants/:tenantId/flows/:flowKey/overrides", overrideHandler.Upsert)
	api.GET("/tenants/:tenantId/flows/:flowKey/prompt", promptHandler.Build)
	api.GET("/tenants/:tenantId/flows/:flowKey/prompt/rephrase", promptHandler.BuildRephrase)
	api.GET("/tenants/:tenantId/config", promptHandler.TenantConfig)
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("编码请求体失败: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPromptEndpointFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	// 未配置时 404
	w := doJSON(t, r, http.MethodGet, "/api/tenants/1/flows/main/prompt", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/templates", gin.H{
		"name": "principal",
		"sections": []gin.H{
			{"key": 10, "content": "Intro"},
			{"key": 20, "content": "Body"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	w = doJSON(t, r, http.MethodPut, "/api/tenants/1/assignments", gin.H{
		"flow_key":    "main",
		"template_id": created.Data.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/tenants/1/flows/main/prompt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Data struct {
			Prompt string `json:"prompt"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if got.Data.Prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
}

func TestPromptEndpointEmptyComposition(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/templates", gin.H{"name": "vazio"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	w = doJSON(t, r, http.MethodPut, "/api/tenants/1/assignments", gin.H{
		"flow_key":    "main",
		"template_id": created.Data.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/tenants/1/flows/main/prompt", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty composition, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRephraseEndpointReturnsNullWhenUnconfigured(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/tenants/1/flows/main/prompt/rephrase", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Data struct {
			Prompt *string `json:"prompt"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if got.Data.Prompt != nil {
		t.Fatalf("expected null prompt, got %q", *got.Data.Prompt)
	}
}

func TestUpdateSectionsVersionConflictStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/templates", gin.H{
		"name":     "t",
		"sections": []gin.H{{"key": 1, "content": "a"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			ID      uint `json:"id"`
			Version int  `json:"version"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	path := "/api/templates/" + uintString(created.Data.ID) + "/sections"
	w = doJSON(t, r, http.MethodPut, path, gin.H{
		"sections":         []gin.H{{"key": 1, "content": "b"}},
		"expected_version": created.Data.Version - 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on stale version, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, path, gin.H{
		"sections": []gin.H{{"key": 1, "content": "b"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOverrideEndpointRejectsInvalidAction(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/tenants/1/flows/main/overrides", gin.H{
		"section_key": 1,
		"action":      "replace",
		"content":     "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTenantConfigEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/tenants/1/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
