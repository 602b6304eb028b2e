package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/promptweaver/backend/config"
	"github.com/promptweaver/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	templateHandler *handler.TemplateHandler,
	assignmentHandler *handler.AssignmentHandler,
	overrideHandler *handler.OverrideHandler,
	promptHandler *handler.PromptHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		templates := api.Group("/templates")
		{
			templates.GET("", templateHandler.List)
			templates.POST("", templateHandler.Create)
			templates.GET("/modules", templateHandler.ListModules)
			templates.GET("/:id", templateHandler.Get)
			templates.PUT("/:id", templateHandler.UpdateMeta)
			templates.PUT("/:id/sections", templateHandler.UpdateSections)
			templates.POST("/:id/sections", templateHandler.InsertSection)
			templates.DELETE("/:id", templateHandler.Delete)
			templates.GET("/:id/history", templateHandler.History)
			templates.GET("/:id/assignments", assignmentHandler.ListByTemplate)
		}

		tenants := api.Group("/tenants/:tenantId")
		{
			tenants.GET("/config", promptHandler.TenantConfig)
			tenants.GET("/assignments", assignmentHandler.List)
			tenants.PUT("/assignments", assignmentHandler.Upsert)

			flows := tenants.Group("/flows/:flowKey")
			{
				flows.DELETE("/assignment", assignmentHandler.Delete)
				flows.GET("/overrides", overrideHandler.List)
				flows.PUT("/overrides", overrideHandler.Upsert)
				flows.GET("/overrides/:sectionKey/history", overrideHandler.History)
				flows.POST("/overrides/:sectionKey/revert", overrideHandler.Revert)
				flows.GET("/prompt", promptHandler.Build)
				flows.GET("/prompt/rephrase", promptHandler.BuildRephrase)
			}
		}

		overrides := api.Group("/overrides")
		{
			overrides.DELETE("/:id", overrideHandler.Delete)
		}
	}

	return r
}
