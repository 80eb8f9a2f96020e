package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Analysis *AnalysisHandler
	Health   *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/analyze-change", deps.Analysis.Analyze)
	api.POST("/similar-changes", deps.Analysis.Similar)
	api.GET("/healthz", deps.Health.Get)
}
