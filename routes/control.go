package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/middleware"
	"workspace-ai-backend/models"
	"workspace-ai-backend/services"
	"workspace-ai-backend/utils"
)

// Control runs are long; give background analysis room to finish.
const controlRunTimeout = 10 * time.Minute

func SetupControlRoutes(router *gin.Engine, control *services.ControlService, progress *services.ProgressStore, applicator *services.ChangeApplicator, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/api/projects/:projectId/control")
	group.Use(authMiddleware.RequireAuth(), authMiddleware.RequireProjectAccess())

	group.POST("/analyze", HandleAnalyze(control))
	group.GET("/jobs/:jobId/progress", HandleJobProgress(progress))
	group.GET("/jobs/:jobId/result", HandleJobResult(progress))
	group.POST("/apply", HandleApplyChanges(applicator))
}

// HandleAnalyze starts a control analysis run in the background and
// returns the job ID for polling. The run itself never mutates documents.
func HandleAnalyze(control *services.ControlService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")

		var req struct {
			Content  string `json:"content" binding:"required"`
			FileName string `json:"fileName"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "content is required", nil)
			return
		}

		jobID := uuid.NewString()
		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), controlRunTimeout)
			defer cancel()
			if _, err := control.Run(runCtx, projectID, jobID, req.Content, req.FileName, nil); err != nil {
				logger.Error("control analysis run failed", "project_id", projectID, "job_id", jobID, "error", err)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{
			"job_id":  jobID,
			"status":  models.ControlProgress{Step: services.ControlStepExtracting, ProgressPercent: 0, Message: "Analysis started"},
			"message": "Analysis started",
		})
	}
}

func HandleJobProgress(progress *services.ProgressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		state, err := progress.GetProgress(c.Request.Context(), jobID)
		if err != nil {
			utils.RespondWithNotFound(c, "Unknown or expired job")
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func HandleJobResult(progress *services.ProgressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		result, err := progress.GetResult(c.Request.Context(), jobID)
		if err != nil {
			utils.RespondWithNotFound(c, "Result not ready or job expired")
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleApplyChanges applies approved changes. The response carries a
// per-change result; partial success is expected when documents drifted
// since the proposal.
func HandleApplyChanges(applicator *services.ChangeApplicator) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")

		var req struct {
			Changes      []models.ProposedChange `json:"changes" binding:"required"`
			ChangeNotes  string                  `json:"change_notes"`
			MajorVersion bool                    `json:"major_version"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Changes) == 0 {
			utils.RespondWithBadRequest(c, "changes are required", nil)
			return
		}

		results, err := applicator.Apply(c.Request.Context(), projectID, req.Changes, services.ApplyOptions{
			AppliedBy:    middleware.GetUserID(c),
			ChangeNotes:  req.ChangeNotes,
			MajorVersion: req.MajorVersion,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Apply failed", gin.H{"error": err.Error()})
			return
		}

		applied := 0
		for _, result := range results {
			if result.Success {
				applied++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"results": results,
			"applied": applied,
			"failed":  len(results) - applied,
		})
	}
}
