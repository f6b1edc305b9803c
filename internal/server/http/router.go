package http

import (
	"github.com/dmitrijs2005/docvault/internal/logging"
	httpH "github.com/dmitrijs2005/docvault/internal/server/http/handlers"
	httpMW "github.com/dmitrijs2005/docvault/internal/server/http/middleware"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Logger         logging.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler     *httpH.AuthHandler
	DocumentHandler *httpH.DocumentHandler
	CategoryHandler *httpH.CategoryHandler
	TagHandler      *httpH.TagHandler
	LogHandler      *httpH.LogHandler
	HealthCheck     gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Logger))

	r.GET("/healthcheck", cfg.HealthCheck)
	r.POST("/api/login", cfg.AuthHandler.Login)

	am := cfg.AuthMiddleware
	api := r.Group("/api", am.RequireAuth(), am.RequireCSRF())
	{
		api.POST("/logout", cfg.AuthHandler.Logout)
		api.GET("/csrf", cfg.AuthHandler.CSRF)

		api.GET("/documents", cfg.DocumentHandler.List)
		api.POST("/documents", cfg.DocumentHandler.Upload)
		api.GET("/documents/:id", cfg.DocumentHandler.Get)
		api.PATCH("/documents/:id", cfg.DocumentHandler.Update)
		api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
		api.PUT("/documents/:id/file", cfg.DocumentHandler.ReplaceFile)
		api.PUT("/documents/:id/expiry", cfg.DocumentHandler.SetExpiry)
		api.GET("/documents/:id/download", cfg.DocumentHandler.Download)
		api.GET("/documents/:id/view", cfg.DocumentHandler.View)

		api.GET("/artifacts/:name", cfg.DocumentHandler.Artifact)
		api.DELETE("/artifacts/:name", cfg.DocumentHandler.ReleaseArtifact)

		api.GET("/categories", cfg.CategoryHandler.List)
		api.POST("/categories", cfg.CategoryHandler.Create)
		api.GET("/categories/:id", cfg.CategoryHandler.Get)
		api.PUT("/categories/:id", cfg.CategoryHandler.Update)
		api.DELETE("/categories/:id", cfg.CategoryHandler.Delete)
		api.GET("/categories/:id/subcategories", cfg.CategoryHandler.ListSubcategories)
		api.POST("/categories/:id/subcategories", cfg.CategoryHandler.CreateSubcategory)
		api.PUT("/categories/:id/subcategories/:subID", cfg.CategoryHandler.UpdateSubcategory)
		api.DELETE("/categories/:id/subcategories/:subID", cfg.CategoryHandler.DeleteSubcategory)

		api.GET("/tags", cfg.TagHandler.List)
		api.DELETE("/tags/:id", cfg.TagHandler.Delete)

		api.GET("/logs", am.RequireAdmin(), cfg.LogHandler.List)
	}

	return r
}
