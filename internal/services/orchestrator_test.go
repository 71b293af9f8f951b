package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
)

const pipelineAbstract = `We present a novel solid-state battery electrode design
using nanostructured lithium composite materials. The fabrication approach
improves volumetric energy density by forty percent while extending cycle life
beyond two thousand charge cycles at elevated temperatures. We characterize the
electrode interface with operando spectroscopy and demonstrate stable operation
in pouch cell prototypes. Target applications include grid scale storage,
electric vehicles, and backup power for renewable energy installations where
battery longevity and safety dominate total cost of ownership considerations.`

func newDemoOrchestrator(t *testing.T) (*Orchestrator, *MemoryStateStore, string) {
	t.Helper()

	log := newTestLogger(t)
	outputDir := t.TempDir()

	pipelineCfg := config.PipelineConfig{
		MaxTextLength: 10000,
		MaxPDFPages:   50,
		CallLogLimit:  100,
		TopInvestors:  5,
	}

	mock := NewMockGenerator(log)
	callLog := NewCallLog(pipelineCfg.CallLogLimit)
	gemini := NewGeminiService(config.GeminiConfig{ModeOverride: "demo"}, mock, callLog, log)
	tavily := NewTavilyService(config.TavilyConfig{ModeOverride: "demo", Timeout: time.Second}, log)
	source := NewSourceService(log)
	matcher := NewMatcherService(pipelineCfg, log)
	parser := NewParserService(pipelineCfg, log)
	deck := NewDeckService(config.OutputConfig{Dir: outputDir}, log)
	store := NewMemoryStateStore(time.Minute, log)

	cfg := config.Config{Pipeline: pipelineCfg, Output: config.OutputConfig{Dir: outputDir}}
	orchestrator := NewOrchestrator(store, gemini, tavily, source, matcher, parser, deck, cfg, log)
	return orchestrator, store, outputDir
}

func TestExecutePipelineDemoMode(t *testing.T) {
	orchestrator, store, outputDir := newDemoOrchestrator(t)

	req := &models.PipelineRequest{Text: pipelineAbstract, Title: "Solid-State Batteries"}
	response, err := orchestrator.ExecutePipeline(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if response.Status != "completed" {
		t.Errorf("Expected completed status, got %s", response.Status)
	}
	if response.Mode != models.ModeDemo {
		t.Errorf("Expected demo mode, got %s", response.Mode)
	}
	if response.Outputs == nil {
		t.Fatal("Expected outputs on completed run")
	}

	outputs := response.Outputs
	if outputs.Research == nil || len(outputs.Research.Innovations) == 0 {
		t.Error("Expected research analysis with innovations")
	}
	if outputs.Market == nil || outputs.Market.TAM == "" {
		t.Error("Expected market analysis with TAM")
	}
	if outputs.Feasibility == nil || outputs.Feasibility.FeasibilityScore == 0 {
		t.Error("Expected feasibility assessment with score")
	}
	if outputs.Stakeholders == nil || len(outputs.Stakeholders.InvestorMatches) == 0 {
		t.Error("Expected stakeholder report with investor matches")
	}
	if outputs.BusinessPlan == nil || len(outputs.BusinessPlan.Slides) != 7 {
		t.Error("Expected business plan with 7 slides")
	}

	run, err := store.GetRunState(context.Background(), response.RunID)
	if err != nil {
		t.Fatalf("Expected run state persisted: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("Expected stored run completed, got %s", run.Status)
	}
	for _, agent := range pipelineAgents {
		if _, ok := run.ProcessingStats.AgentStats[agent]; !ok {
			t.Errorf("Expected stats for agent %s", agent)
		}
	}
	if run.ProcessingStats.APICallsCount == 0 {
		t.Error("Expected API call count recorded")
	}

	deckPath := filepath.Join(outputDir, response.RunID, "pitch_deck.md")
	if _, err := os.Stat(deckPath); err != nil {
		t.Errorf("Expected pitch deck artifact at %s: %v", deckPath, err)
	}
	reportPath := filepath.Join(outputDir, response.RunID, "report.json")
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("Expected report artifact at %s: %v", reportPath, err)
	}
}

func TestExecutePipelinePublishesUpdates(t *testing.T) {
	orchestrator, store, _ := newDemoOrchestrator(t)

	response, err := orchestrator.ExecutePipeline(context.Background(),
		&models.PipelineRequest{Text: pipelineAbstract})
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	updates, err := store.GetAgentUpdates(context.Background(), response.RunID, 0)
	if err != nil {
		t.Fatalf("GetAgentUpdates failed: %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("Expected agent updates published")
	}

	if updates[0].AgentName != string(models.UpdateTypeRunStarted) {
		t.Errorf("Expected run_started first, got %s", updates[0].AgentName)
	}
	last := updates[len(updates)-1]
	if last.AgentName != string(models.UpdateTypeRunCompleted) {
		t.Errorf("Expected run_completed last, got %s", last.AgentName)
	}

	seen := make(map[string]bool)
	for _, update := range updates {
		seen[update.AgentName] = true
	}
	for _, agent := range pipelineAgents {
		if !seen[agent] {
			t.Errorf("Expected an update for agent %s", agent)
		}
	}
}

func TestExecutePipelineRejectsShortInput(t *testing.T) {
	orchestrator, _, _ := newDemoOrchestrator(t)

	response, err := orchestrator.ExecutePipeline(context.Background(),
		&models.PipelineRequest{Text: "too short to analyze"})
	if err == nil {
		t.Fatal("Expected validation error for short input")
	}
	if models.KindOf(err) != models.ErrorKindValidation {
		t.Errorf("Expected validation kind, got %s", models.KindOf(err))
	}
	if response.Status != string(models.RunStatusFailed) {
		t.Errorf("Expected failed status, got %s", response.Status)
	}
	if response.Outputs != nil {
		t.Error("Expected no outputs on failed run")
	}
}

func TestGetRunStatusFallsBackToStore(t *testing.T) {
	orchestrator, _, _ := newDemoOrchestrator(t)

	response, err := orchestrator.ExecutePipeline(context.Background(),
		&models.PipelineRequest{Text: pipelineAbstract})
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	// The run is no longer active, so status comes from the state store.
	run, err := orchestrator.GetRunStatus(response.RunID)
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("Expected completed run, got %s", run.Status)
	}

	if orchestrator.GetActiveRunCount() != 0 {
		t.Errorf("Expected no active runs, got %d", orchestrator.GetActiveRunCount())
	}
}

func TestCancelRunUnknown(t *testing.T) {
	orchestrator, _, _ := newDemoOrchestrator(t)

	if err := orchestrator.CancelRun("missing-run"); err == nil {
		t.Error("Expected error cancelling unknown run")
	}
}

func TestOrchestratorHealthCheckDemo(t *testing.T) {
	orchestrator, _, _ := newDemoOrchestrator(t)

	if err := orchestrator.HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected demo health check to pass, got %v", err)
	}
}

func TestOrchestratorStats(t *testing.T) {
	orchestrator, _, _ := newDemoOrchestrator(t)

	stats := orchestrator.GetStats()
	if stats["mode"] != string(models.ModeDemo) {
		t.Errorf("Expected demo mode in stats, got %v", stats["mode"])
	}
	if stats["active_runs"] != 0 {
		t.Errorf("Expected zero active runs, got %v", stats["active_runs"])
	}
}

func TestCalculateAgentProgress(t *testing.T) {
	if p := calculateAgentProgress("parser", models.AgentStatusCompleted); p <= 0 || p > 1 {
		t.Errorf("Unexpected parser progress %f", p)
	}
	deckDone := calculateAgentProgress("deck", models.AgentStatusCompleted)
	if deckDone != 1.0 {
		t.Errorf("Expected final agent completion to reach 1.0, got %f", deckDone)
	}
	fallback := calculateAgentProgress(string(models.AgentMarket), models.AgentStatusFallback)
	completed := calculateAgentProgress(string(models.AgentMarket), models.AgentStatusCompleted)
	if fallback != completed {
		t.Errorf("Expected fallback to count as completed, got %f vs %f", fallback, completed)
	}
	if p := calculateAgentProgress("unknown", models.AgentStatusProcessing); p != 0 {
		t.Errorf("Expected zero progress for unknown agent, got %f", p)
	}
}

func TestEnrichEvidenceFetchesResultPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Battery Market Report</title></head><body><article><h1>Battery Market Report</h1><p>Global demand for solid-state batteries is projected to grow rapidly as electric vehicle makers seek higher energy density and improved safety over conventional lithium-ion cells.</p></article></body></html>`)
	}))
	defer server.Close()

	orchestrator, _, _ := newDemoOrchestrator(t)

	evidence := []Evidence{
		{Snippet: "canned snippet without a page"},
		{Snippet: "search snippet", URL: server.URL + "/report"},
	}

	extra := orchestrator.enrichEvidence(context.Background(), evidence)
	if len(extra) != 1 {
		t.Fatalf("Expected one fetched page, got %d", len(extra))
	}
	if !strings.Contains(extra[0].Snippet, "solid-state batteries") {
		t.Errorf("Expected page text in fetched evidence, got %q", extra[0].Snippet)
	}
	if extra[0].URL != server.URL+"/report" {
		t.Errorf("Expected page URL carried through, got %q", extra[0].URL)
	}
}

func TestEnrichEvidenceSkipsFailedFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	orchestrator, _, _ := newDemoOrchestrator(t)

	extra := orchestrator.enrichEvidence(context.Background(), []Evidence{
		{Snippet: "dead link", URL: server.URL + "/gone"},
	})
	if len(extra) != 0 {
		t.Errorf("Expected no evidence from failed fetches, got %v", extra)
	}
}

func TestEvidenceSnippets(t *testing.T) {
	snippets := evidenceSnippets([]Evidence{
		{Snippet: "canned"},
		{Snippet: "live", URL: "https://example.com/report"},
	})

	if len(snippets) != 2 {
		t.Fatalf("Expected 2 snippets, got %d", len(snippets))
	}
	if snippets[0] != "canned" {
		t.Errorf("Expected canned snippet unchanged, got %q", snippets[0])
	}
	if snippets[1] != "live (https://example.com/report)" {
		t.Errorf("Expected URL appended to live snippet, got %q", snippets[1])
	}
}
