package http

import (
	"github.com/gin-gonic/gin"

	"intellidocs/internal/bootstrap"
	"intellidocs/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.MaxFileSizeBytes()

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	sessionHandler := handler.NewSessionHandler(app.RAG)

	v1 := router.Group("/api/v1")
	sessions := v1.Group("/sessions")
	sessions.POST("", sessionHandler.Create)
	sessions.GET("/:id", sessionHandler.Info)
	sessions.DELETE("/:id", sessionHandler.Delete)
	sessions.POST("/:id/documents", sessionHandler.UploadDocuments)
	sessions.GET("/:id/documents", sessionHandler.ListDocuments)
	sessions.POST("/:id/ask", sessionHandler.Ask)
	sessions.GET("/:id/history", sessionHandler.History)
	sessions.DELETE("/:id/history", sessionHandler.ClearHistory)
	sessions.GET("/:id/export", sessionHandler.Export)
	sessions.POST("/:id/reset", sessionHandler.Reset)

	return router
}
