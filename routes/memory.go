package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workspace-ai-backend/middleware"
	"workspace-ai-backend/models"
	"workspace-ai-backend/services"
	"workspace-ai-backend/utils"
)

func SetupMemoryRoutes(router *gin.Engine, memory *services.MemoryStore, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/api/projects/:projectId")
	group.Use(authMiddleware.RequireAuth(), authMiddleware.RequireProjectAccess())

	group.POST("/messages", HandleStoreMessage(memory))
	group.GET("/search/documents", HandleSearchDocuments(memory))
	group.GET("/search/messages", HandleSearchMessages(memory))
	group.GET("/context", HandleBuildContext(memory))
}

func HandleStoreMessage(memory *services.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")

		var req struct {
			Role      string `json:"role" binding:"required"`
			Content   string `json:"content" binding:"required"`
			SessionID string `json:"session_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "role and content are required", nil)
			return
		}

		msg, err := memory.StoreMessage(c.Request.Context(), projectID, models.StoredMessage{
			Role:      req.Role,
			Content:   req.Content,
			SessionID: req.SessionID,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to store message", nil)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func HandleSearchDocuments(memory *services.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
			return
		}

		hits, err := memory.SearchDocuments(c.Request.Context(), projectID, query, searchOptionsFromQuery(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": hits})
	}
}

func HandleSearchMessages(memory *services.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
			return
		}

		hits, err := memory.SearchMessages(c.Request.Context(), projectID, query, searchOptionsFromQuery(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": hits})
	}
}

func HandleBuildContext(memory *services.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
			return
		}

		context, err := memory.BuildContext(c.Request.Context(), projectID, query)
		if err != nil {
			utils.RespondWithInternalError(c, "Context build failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"context": context})
	}
}

func searchOptionsFromQuery(c *gin.Context) services.SearchOptions {
	opts := services.SearchOptions{}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	if threshold, err := strconv.ParseFloat(c.Query("threshold"), 64); err == nil && threshold > 0 {
		opts.Threshold = threshold
	}
	return opts
}
