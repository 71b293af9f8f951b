package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
	"launchpad-ai-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

// PipelineOrchestrator is the orchestrator surface the HTTP layer needs.
type PipelineOrchestrator interface {
	ExecutePipeline(ctx context.Context, req *models.PipelineRequest) (*models.PipelineResponse, error)
	GetRunStatus(runID string) (*models.PipelineRun, error)
	GetRunUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error)
	CancelRun(runID string) error
	GetActiveRunCount() int
	GetStats() map[string]interface{}
}

type PipelineHandler struct {
	orchestrator PipelineOrchestrator
	parser       *services.ParserService
	source       *services.SourceService
	callLog      *services.CallLog
	logger       *logger.Logger
}

func NewPipelineHandler(
	orchestrator PipelineOrchestrator,
	parser *services.ParserService,
	source *services.SourceService,
	callLog *services.CallLog,
	log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		orchestrator: orchestrator,
		parser:       parser,
		source:       source,
		callLog:      callLog,
		logger:       log,
	}
}

type createRunRequest struct {
	Text      string         `json:"text"`
	SourceURL string         `json:"source_url"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata"`
}

// CreateRun starts a pipeline run from pasted text or a source URL.
func (handler *PipelineHandler) CreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	text := req.Text
	if text == "" && req.SourceURL != "" {
		page, err := handler.source.FetchPage(c.Request.Context(), req.SourceURL)
		if err != nil {
			handler.respondError(c, err)
			return
		}
		text = page.Text
		if req.Title == "" {
			req.Title = page.Title
		}
	}

	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either text or source_url is required"})
		return
	}

	handler.executeRun(c, &models.PipelineRequest{
		Text:     text,
		Title:    req.Title,
		Metadata: req.Metadata,
	})
}

// CreateRunFromUpload starts a run from an uploaded PDF.
func (handler *PipelineHandler) CreateRunFromUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF uploads are supported"})
		return
	}

	text, err := handler.parser.ExtractPDFReader(file)
	if err != nil {
		handler.respondError(c, err)
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ".pdf")
	}

	handler.executeRun(c, &models.PipelineRequest{
		Text:  text,
		Title: title,
	})
}

func (handler *PipelineHandler) executeRun(c *gin.Context, req *models.PipelineRequest) {
	response, err := handler.orchestrator.ExecutePipeline(c.Request.Context(), req)
	if err != nil {
		if response != nil && models.KindOf(err) == models.ErrorKindValidation {
			c.JSON(http.StatusUnprocessableEntity, response)
			return
		}
		handler.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (handler *PipelineHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")

	run, err := handler.orchestrator.GetRunStatus(runID)
	if err != nil {
		handler.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (handler *PipelineHandler) GetRunUpdates(c *gin.Context) {
	runID := c.Param("id")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	updates, err := handler.orchestrator.GetRunUpdates(c.Request.Context(), runID, limit)
	if err != nil {
		handler.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "updates": updates, "count": len(updates)})
}

func (handler *PipelineHandler) CancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := handler.orchestrator.CancelRun(runID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "status": "cancel_requested"})
}

func (handler *PipelineHandler) GetActiveRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active_runs": handler.orchestrator.GetActiveRunCount()})
}

func (handler *PipelineHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, handler.orchestrator.GetStats())
}

// GetCallLog exposes the in-memory model call log for debugging.
func (handler *PipelineHandler) GetCallLog(c *gin.Context) {
	entries := handler.callLog.Entries()
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (handler *PipelineHandler) respondError(c *gin.Context, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Kind {
		case models.ErrorKindValidation, models.ErrorKindParse:
			status = http.StatusBadRequest
		case models.ErrorKindTimeout:
			status = http.StatusGatewayTimeout
		case models.ErrorKindTransport, models.ErrorKindExternal:
			status = http.StatusBadGateway
		}
		if errors.Is(err, models.ErrRunNotFound) {
			status = http.StatusNotFound
		}

		handler.logger.WithError(err).Warn("Request failed", "code", appErr.Code)
		c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	handler.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
