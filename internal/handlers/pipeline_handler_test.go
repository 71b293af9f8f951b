package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/handlers"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
	"launchpad-ai-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

type mockOrchestrator struct {
	executeResponse *models.PipelineResponse
	executeErr      error
	lastRequest     *models.PipelineRequest

	run    *models.PipelineRun
	runErr error

	updates    []models.AgentUpdate
	updatesErr error
	lastLimit  int

	cancelErr  error
	activeRuns int
}

func (m *mockOrchestrator) ExecutePipeline(ctx context.Context, req *models.PipelineRequest) (*models.PipelineResponse, error) {
	m.lastRequest = req
	return m.executeResponse, m.executeErr
}

func (m *mockOrchestrator) GetRunStatus(runID string) (*models.PipelineRun, error) {
	return m.run, m.runErr
}

func (m *mockOrchestrator) GetRunUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error) {
	m.lastLimit = limit
	return m.updates, m.updatesErr
}

func (m *mockOrchestrator) CancelRun(runID string) error {
	return m.cancelErr
}

func (m *mockOrchestrator) GetActiveRunCount() int {
	return m.activeRuns
}

func (m *mockOrchestrator) GetStats() map[string]interface{} {
	return map[string]interface{}{"service": "orchestrator", "active_runs": m.activeRuns}
}

func newTestRouter(t *testing.T, orchestrator *mockOrchestrator) (*gin.Engine, *services.CallLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	parser := services.NewParserService(config.PipelineConfig{MaxTextLength: 10000, MaxPDFPages: 50}, log)
	source := services.NewSourceService(log)
	callLog := services.NewCallLog(100)
	handler := handlers.NewPipelineHandler(orchestrator, parser, source, callLog, log)

	router := gin.New()
	api := router.Group("/api/v1")
	{
		api.POST("/runs", handler.CreateRun)
		api.GET("/runs/active", handler.GetActiveRuns)
		api.GET("/runs/:id", handler.GetRun)
		api.GET("/runs/:id/updates", handler.GetRunUpdates)
		api.DELETE("/runs/:id", handler.CancelRun)
		api.GET("/logs", handler.GetCallLog)
		api.GET("/stats", handler.GetStats)
	}
	return router, callLog
}

func TestCreateRunSuccess(t *testing.T) {
	orchestrator := &mockOrchestrator{
		executeResponse: models.NewPipelineResponse("run-1", "req-1", "completed", "Pipeline run completed", models.ModeDemo),
	}
	router, _ := newTestRouter(t, orchestrator)

	body := `{"text": "nanostructured electrode research for grid storage", "title": "Batteries"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response models.PipelineResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.RunID != "run-1" || response.Status != "completed" {
		t.Errorf("Unexpected response: %+v", response)
	}

	if orchestrator.lastRequest == nil || orchestrator.lastRequest.Title != "Batteries" {
		t.Errorf("Expected request forwarded with title, got %+v", orchestrator.lastRequest)
	}
}

func TestCreateRunMissingText(t *testing.T) {
	router, _ := newTestRouter(t, &mockOrchestrator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"title": "no text"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestCreateRunInvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t, &mockOrchestrator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestCreateRunValidationFailure(t *testing.T) {
	orchestrator := &mockOrchestrator{
		executeResponse: models.NewPipelineResponse("run-2", "req-2", "failed", "input too short", models.ModeDemo),
		executeErr:      models.NewValidationError("INPUT_TOO_SHORT", "research text must be at least 100 characters"),
	}
	router, _ := newTestRouter(t, orchestrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"text": "short but present"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var response models.PipelineResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "failed" {
		t.Errorf("Expected failed run in body, got %s", response.Status)
	}
}

func TestGetRunFound(t *testing.T) {
	run := models.NewPipelineRun(models.PipelineRequest{Text: "stored run", RunID: "run-3"}, "req-3", models.ModeDemo)
	run.MarkCompleted()
	router, _ := newTestRouter(t, &mockOrchestrator{run: run})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-3", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got models.PipelineRun
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if got.ID != "run-3" || got.Status != models.RunStatusCompleted {
		t.Errorf("Unexpected run: %+v", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	orchestrator := &mockOrchestrator{
		runErr: models.ErrRunNotFound.WithMetadata("run_id", "missing"),
	}
	router, _ := newTestRouter(t, orchestrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetRunUpdatesLimit(t *testing.T) {
	orchestrator := &mockOrchestrator{
		updates: []models.AgentUpdate{
			{RunID: "run-4", AgentName: "research", Status: models.AgentStatusCompleted},
			{RunID: "run-4", AgentName: "market", Status: models.AgentStatusProcessing},
		},
	}
	router, _ := newTestRouter(t, orchestrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-4/updates?limit=25", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if orchestrator.lastLimit != 25 {
		t.Errorf("Expected limit 25 forwarded, got %d", orchestrator.lastLimit)
	}

	var body struct {
		RunID   string               `json:"run_id"`
		Updates []models.AgentUpdate `json:"updates"`
		Count   int                  `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Count != 2 || len(body.Updates) != 2 {
		t.Errorf("Expected 2 updates, got %+v", body)
	}
}

func TestCancelRunNotFound(t *testing.T) {
	orchestrator := &mockOrchestrator{
		cancelErr: models.ErrRunNotFound.WithMetadata("run_id", "missing"),
	}
	router, _ := newTestRouter(t, orchestrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/runs/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestCancelRunSuccess(t *testing.T) {
	router, _ := newTestRouter(t, &mockOrchestrator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/runs/run-5", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("cancel_requested")) {
		t.Errorf("Expected cancel_requested in body, got %s", w.Body.String())
	}
}

func TestGetCallLog(t *testing.T) {
	router, callLog := newTestRouter(t, &mockOrchestrator{})

	callLog.Append(models.CallLogEntry{Agent: "research", Prompt: "analyze", Mode: models.ModeDemo})
	callLog.Append(models.CallLogEntry{Agent: "market", Prompt: "size", Mode: models.ModeDemo, Fallback: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Entries []models.CallLogEntry `json:"entries"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Count != 2 || body.Entries[0].Agent != "research" {
		t.Errorf("Unexpected call log body: %+v", body)
	}
}

func TestGetActiveRuns(t *testing.T) {
	router, _ := newTestRouter(t, &mockOrchestrator{activeRuns: 3})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/active", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["active_runs"] != 3 {
		t.Errorf("Expected 3 active runs, got %d", body["active_runs"])
	}
}
