package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"workspace-ai-backend/internal/config"
	"workspace-ai-backend/internal/queue"
	"workspace-ai-backend/middleware"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
	"workspace-ai-backend/services"
	"workspace-ai-backend/utils"
)

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, ingestor *services.Ingestor, docs repository.DocumentRepository, queueClient *asynq.Client, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/api/projects/:projectId/documents")
	group.Use(authMiddleware.RequireAuth(), authMiddleware.RequireProjectAccess())

	group.POST("", HandleBatchUpload(cfg, ingestor))
	group.GET("", HandleListDocuments(docs))
	group.GET("/:documentId", HandleGetDocument(docs))
	group.POST("/:documentId/reindex", HandleReindexDocument(docs, queueClient))
}

// HandleBatchUpload ingests one or more uploaded files. The response
// reports every file's outcome; a failed file never blocks its siblings.
func HandleBatchUpload(cfg *config.Config, ingestor *services.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithPayloadTooLarge(c, "Upload exceeds maximum size")
			return
		}

		form := c.Request.MultipartForm
		if form == nil || len(form.File["files"]) == 0 {
			utils.RespondWithBadRequest(c, "No files provided", nil)
			return
		}

		files := make([]models.IngestFile, 0, len(form.File["files"]))
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				utils.RespondWithBadRequest(c, "Cannot open uploaded file", gin.H{"file": header.Filename})
				return
			}
			content, err := io.ReadAll(io.LimitReader(f, cfg.MaxFileSize+1))
			f.Close()
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to read uploaded file", gin.H{"file": header.Filename})
				return
			}
			files = append(files, models.IngestFile{Name: header.Filename, Content: content})
		}

		report, err := ingestor.IngestBatch(c.Request.Context(), projectID, middleware.GetUserID(c), files, nil)
		if err != nil {
			utils.RespondWithInternalError(c, "Ingestion failed", gin.H{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if len(report.Stored) == 0 && len(report.Failed) > 0 {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, report)
	}
}

func HandleListDocuments(docs repository.DocumentRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")

		list, err := docs.ListByProject(c.Request.Context(), projectID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}

		summaries := make([]gin.H, 0, len(list))
		for _, doc := range list {
			summaries = append(summaries, gin.H{
				"document_id":  doc.DocumentID,
				"name":         doc.Name,
				"version":      doc.Version,
				"content_hash": doc.ContentHash,
				"created_at":   doc.CreatedAt,
				"updated_at":   doc.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"documents": summaries})
	}
}

func HandleGetDocument(docs repository.DocumentRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		documentID := c.Param("documentId")

		doc, err := docs.GetByDocumentID(c.Request.Context(), projectID, documentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// HandleReindexDocument enqueues a chunk rebuild for one document.
func HandleReindexDocument(docs repository.DocumentRepository, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		documentID := c.Param("documentId")

		if _, err := docs.GetByDocumentID(c.Request.Context(), projectID, documentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}

		task, err := queue.NewReindexTask(projectID, documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create reindex task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue reindex task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":     "Reindex queued",
			"document_id": documentID,
			"task_id":     info.ID,
		})
	}
}
