package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
)

// Orchestrator drives a run through the full agent sequence: input parsing,
// research extraction, market sizing with live evidence, feasibility,
// stakeholder matching, business plan, and artifact output. Agent failures
// degrade to mock-backed fallbacks; a run only fails on invalid input or
// cancellation.
type Orchestrator struct {
	stateStore     StateStore
	geminiService  *GeminiService
	tavilyService  *TavilyService
	sourceService  *SourceService
	matcherService *MatcherService
	parserService  *ParserService
	deckService    *DeckService

	config config.Config
	logger *logger.Logger

	activeRuns sync.Map // run_id -> *activeRun

	startTime time.Time
}

type activeRun struct {
	run    *models.PipelineRun
	cancel context.CancelFunc
}

type runExecutor struct {
	orchestrator *Orchestrator
	run          *models.PipelineRun
	logger       *logger.Logger

	// statsMu guards run stats and state snapshots while the stakeholder
	// and business plan agents run concurrently.
	statsMu sync.Mutex
}

var pipelineAgents = []string{
	"parser",
	string(models.AgentResearch),
	string(models.AgentMarket),
	string(models.AgentFeasibility),
	string(models.AgentStakeholder),
	string(models.AgentBusinessPlan),
	"deck",
}

func NewOrchestrator(
	stateStore StateStore,
	geminiService *GeminiService,
	tavilyService *TavilyService,
	sourceService *SourceService,
	matcherService *MatcherService,
	parserService *ParserService,
	deckService *DeckService,
	cfg config.Config,
	log *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		stateStore:     stateStore,
		geminiService:  geminiService,
		tavilyService:  tavilyService,
		sourceService:  sourceService,
		matcherService: matcherService,
		parserService:  parserService,
		deckService:    deckService,
		config:         cfg,
		logger:         log,
		startTime:      time.Now(),
	}

	log.Info("Orchestrator initialized",
		"agents", len(pipelineAgents),
		"mode", string(geminiService.Mode()))

	return orchestrator
}

func (orchestrator *Orchestrator) ExecutePipeline(ctx context.Context, req *models.PipelineRequest) (*models.PipelineResponse, error) {
	startTime := time.Now()
	requestID := models.GenerateRequestID()

	run := models.NewPipelineRun(*req, requestID, orchestrator.geminiService.Mode())
	run.DemoReason = orchestrator.geminiService.DemoReason()

	orchestrator.logger.LogPipeline(run.ID, "run_started", 0, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	orchestrator.activeRuns.Store(run.ID, &activeRun{run: run, cancel: cancel})
	defer orchestrator.activeRuns.Delete(run.ID)

	run.Status = models.RunStatusProcessing
	if err := orchestrator.stateStore.StoreRunState(ctx, run); err != nil {
		orchestrator.logger.WithError(err).Error("Failed to store initial run state")
	}

	orchestrator.publishRunUpdate(ctx, run, models.UpdateTypeRunStarted, "Pipeline run started")

	executor := &runExecutor{
		orchestrator: orchestrator,
		run:          run,
		logger:       orchestrator.logger,
	}

	err := executor.execute(runCtx, req.Text)
	duration := time.Since(startTime)

	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			run.MarkCancelled()
			orchestrator.logger.LogPipeline(run.ID, "run_cancelled", duration, nil)
		} else {
			run.MarkFailed()
			orchestrator.logger.LogPipeline(run.ID, "run_failed", duration, err)
		}

		if storeErr := orchestrator.stateStore.StoreRunState(ctx, run); storeErr != nil {
			orchestrator.logger.WithError(storeErr).Error("Failed to store failed run state")
		}
		orchestrator.publishRunUpdate(ctx, run, models.UpdateTypeRunError, fmt.Sprintf("Run failed: %s", err.Error()))

		response := models.NewPipelineResponse(run.ID, requestID, string(run.Status), err.Error(), run.Mode)
		return response, err
	}

	run.MarkCompleted()
	orchestrator.logger.LogPipeline(run.ID, "run_completed", duration, nil)

	if err := orchestrator.stateStore.StoreRunState(ctx, run); err != nil {
		orchestrator.logger.WithError(err).Error("Failed to store final run state")
	}
	orchestrator.publishRunUpdate(ctx, run, models.UpdateTypeRunCompleted, "Pipeline run completed")

	totalTimeMs := float64(duration.Milliseconds())
	response := models.NewPipelineResponse(run.ID, requestID, "completed", "Pipeline run completed", run.Mode)
	response.TotalTime = &totalTimeMs
	response.Outputs = &run.Outputs

	return response, nil
}

func (executor *runExecutor) execute(ctx context.Context, rawText string) error {
	text, err := executor.prepareInput(ctx, rawText)
	if err != nil {
		return err
	}

	if err := executor.runResearchAgent(ctx, text); err != nil {
		return err
	}
	if err := executor.runMarketAgent(ctx); err != nil {
		return err
	}
	if err := executor.runFeasibilityAgent(ctx); err != nil {
		return err
	}

	// Stakeholder matching needs no model call, so it runs alongside the
	// business plan agent.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		executor.runStakeholderAgent(ctx)
	}()

	var planErr error
	go func() {
		defer wg.Done()
		planErr = executor.runBusinessPlanAgent(ctx)
	}()
	wg.Wait()

	if planErr != nil {
		return planErr
	}
	if ctx.Err() != nil {
		return models.NewTimeoutError("RUN_CANCELLED", "pipeline run cancelled").WithCause(ctx.Err())
	}

	executor.writeArtifacts(ctx)
	return nil
}

func (executor *runExecutor) prepareInput(ctx context.Context, rawText string) (string, error) {
	startTime := time.Now()
	executor.publishAgentUpdate(ctx, "parser", models.AgentStatusProcessing, "Preparing research input")

	text, err := executor.orchestrator.parserService.PrepareText(rawText)
	if err != nil {
		executor.publishAgentFailure(ctx, "parser", err)
		return "", err
	}

	executor.run.UpdateAgentStats("parser", models.AgentStats{
		Name:      "parser",
		Duration:  time.Since(startTime),
		Status:    string(models.AgentStatusCompleted),
		StartTime: startTime,
		EndTime:   time.Now(),
	})
	executor.publishAgentUpdate(ctx, "parser", models.AgentStatusCompleted,
		fmt.Sprintf("Prepared %d characters of research text", len(text)))

	return text, nil
}

func (executor *runExecutor) runResearchAgent(ctx context.Context, text string) error {
	startTime := time.Now()
	agent := string(models.AgentResearch)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusProcessing, "Extracting innovations and readiness level")

	analysis, err := executor.orchestrator.geminiService.AnalyzeResearch(ctx, text)
	executor.recordAgentResult(ctx, agent, startTime, err)

	executor.run.Outputs.Research = analysis
	executor.publishAgentCompletion(ctx, agent, err, analysis.Summarize())
	return ctx.Err()
}

func (executor *runExecutor) runMarketAgent(ctx context.Context) error {
	startTime := time.Now()
	agent := string(models.AgentMarket)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusProcessing, "Sizing market opportunity")

	research := executor.run.Outputs.Research
	evidence := executor.orchestrator.tavilyService.SearchEvidence(ctx, evidenceQuery(research))
	if executor.orchestrator.config.Pipeline.FetchSources {
		evidence = append(evidence, executor.orchestrator.enrichEvidence(ctx, evidence)...)
	}

	analysis, err := executor.orchestrator.geminiService.AnalyzeMarket(ctx, research, evidenceSnippets(evidence))
	executor.recordAgentResult(ctx, agent, startTime, err)

	executor.run.Outputs.Market = analysis
	executor.publishAgentCompletion(ctx, agent, err, analysis.Summarize())
	return ctx.Err()
}

func (executor *runExecutor) runFeasibilityAgent(ctx context.Context) error {
	startTime := time.Now()
	agent := string(models.AgentFeasibility)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusProcessing, "Assessing commercialization feasibility")

	assessment, err := executor.orchestrator.geminiService.AssessFeasibility(ctx,
		executor.run.Outputs.Research, executor.run.Outputs.Market)
	executor.recordAgentResult(ctx, agent, startTime, err)

	executor.run.Outputs.Feasibility = assessment
	executor.publishAgentCompletion(ctx, agent, err, assessment.Summarize())
	return ctx.Err()
}

func (executor *runExecutor) runStakeholderAgent(ctx context.Context) {
	startTime := time.Now()
	agent := string(models.AgentStakeholder)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusProcessing, "Matching investors and recommending team")

	report := executor.orchestrator.matcherService.Match(
		executor.run.Outputs.Research,
		executor.run.Outputs.Market,
		executor.run.Outputs.Feasibility)

	executor.statsMu.Lock()
	executor.run.Outputs.Stakeholders = report
	executor.statsMu.Unlock()

	executor.recordAgentResult(ctx, agent, startTime, nil)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusCompleted, report.Summarize())
}

func (executor *runExecutor) runBusinessPlanAgent(ctx context.Context) error {
	startTime := time.Now()
	agent := string(models.AgentBusinessPlan)
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusProcessing, "Generating pitch deck slides")

	plan, err := executor.orchestrator.geminiService.GenerateBusinessPlan(ctx, &executor.run.Outputs)

	executor.statsMu.Lock()
	executor.run.Outputs.BusinessPlan = plan
	executor.statsMu.Unlock()

	executor.recordAgentResult(ctx, agent, startTime, err)
	executor.publishAgentCompletion(ctx, agent, err,
		fmt.Sprintf("Generated %d pitch deck slides", len(plan.Slides)))
	return ctx.Err()
}

func (executor *runExecutor) writeArtifacts(ctx context.Context) {
	startTime := time.Now()
	executor.publishAgentUpdate(ctx, "deck", models.AgentStatusProcessing, "Writing pitch deck and report")

	artifacts, err := executor.orchestrator.deckService.Write(executor.run)
	if err != nil {
		// Output artifacts are a convenience; the API response already
		// carries the full result.
		executor.logger.WithError(err).Warn("Failed to write run artifacts", "run_id", executor.run.ID)
		executor.publishAgentUpdate(ctx, "deck", models.AgentStatusFallback, "Artifact write skipped")
		return
	}

	executor.run.Metadata["deck_path"] = artifacts.DeckPath
	executor.run.Metadata["report_path"] = artifacts.ReportPath

	executor.run.UpdateAgentStats("deck", models.AgentStats{
		Name:      "deck",
		Duration:  time.Since(startTime),
		Status:    string(models.AgentStatusCompleted),
		StartTime: startTime,
		EndTime:   time.Now(),
	})
	executor.publishAgentUpdate(ctx, "deck", models.AgentStatusCompleted, "Artifacts written")
}

// recordAgentResult updates per-agent stats and fallback counters. A non-nil
// err from a Gemini agent means fallback output, not failure.
func (executor *runExecutor) recordAgentResult(ctx context.Context, agent string, startTime time.Time, err error) {
	executor.statsMu.Lock()
	defer executor.statsMu.Unlock()

	status := models.AgentStatusCompleted
	if err != nil {
		status = models.AgentStatusFallback
		executor.run.ProcessingStats.FallbackCount++
	}
	// The stakeholder matcher is pure heuristics and makes no model call.
	if agent != string(models.AgentStakeholder) {
		executor.run.ProcessingStats.APICallsCount++
	}

	executor.run.UpdateAgentStats(agent, models.AgentStats{
		Name:      agent,
		Duration:  time.Since(startTime),
		Status:    string(status),
		StartTime: startTime,
		EndTime:   time.Now(),
	})

	if err := executor.orchestrator.stateStore.StoreRunState(ctx, executor.run); err != nil {
		executor.logger.WithError(err).Debug("Failed to store intermediate run state")
	}
}

func (executor *runExecutor) publishAgentCompletion(ctx context.Context, agent string, err error, message string) {
	if err != nil {
		executor.logger.WithError(err).Warn("Agent degraded to fallback output",
			"run_id", executor.run.ID,
			"agent", agent)
		executor.publishAgentUpdate(ctx, agent, models.AgentStatusFallback, message)
		return
	}
	executor.publishAgentUpdate(ctx, agent, models.AgentStatusCompleted, message)
}

func (executor *runExecutor) publishAgentFailure(ctx context.Context, agent string, err error) {
	update := &models.AgentUpdate{
		RunID:     executor.run.ID,
		RequestID: executor.run.RequestID,
		AgentName: agent,
		Status:    models.AgentStatusFailed,
		Message:   err.Error(),
		Progress:  calculateAgentProgress(agent, models.AgentStatusFailed),
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
	if publishErr := executor.orchestrator.stateStore.PublishAgentUpdate(ctx, update); publishErr != nil {
		executor.logger.WithError(publishErr).Error("Failed to publish agent failure")
	}
}

func (executor *runExecutor) publishAgentUpdate(ctx context.Context, agent string, status models.AgentStatus, message string) {
	update := &models.AgentUpdate{
		RunID:     executor.run.ID,
		RequestID: executor.run.RequestID,
		AgentName: agent,
		Status:    status,
		Message:   message,
		Progress:  calculateAgentProgress(agent, status),
		Data: map[string]any{
			"agent_sequence": pipelineAgents,
			"total_agents":   len(pipelineAgents),
		},
		Timestamp: time.Now(),
		Retryable: status == models.AgentStatusFailed,
	}

	if err := executor.orchestrator.stateStore.PublishAgentUpdate(ctx, update); err != nil {
		executor.logger.WithError(err).Error("Failed to publish agent update",
			"agent", agent,
			"run_id", executor.run.ID)
	}
}

func calculateAgentProgress(agentName string, status models.AgentStatus) float64 {
	agentIndex := -1
	for i, agent := range pipelineAgents {
		if agent == agentName {
			agentIndex = i
			break
		}
	}
	if agentIndex == -1 {
		return 0.0
	}

	totalAgents := float64(len(pipelineAgents))
	baseProgress := float64(agentIndex) / totalAgents

	switch status {
	case models.AgentStatusProcessing:
		return baseProgress + (0.5 / totalAgents)
	case models.AgentStatusCompleted, models.AgentStatusFallback:
		return float64(agentIndex+1) / totalAgents
	default:
		return baseProgress
	}
}

func (orchestrator *Orchestrator) publishRunUpdate(ctx context.Context, run *models.PipelineRun, updateType models.UpdateType, message string) {
	update := &models.AgentUpdate{
		RunID:     run.ID,
		RequestID: run.RequestID,
		AgentName: string(updateType),
		Status:    models.AgentStatusCompleted,
		Message:   message,
		Progress:  1.0,
		Timestamp: time.Now(),
	}

	if err := orchestrator.stateStore.PublishAgentUpdate(ctx, update); err != nil {
		orchestrator.logger.WithError(err).Error("Failed to publish run update",
			"run_id", run.ID,
			"type", string(updateType))
	}
}

const (
	evidenceFetchLimit   = 2
	evidenceSnippetLimit = 500
)

// enrichEvidence fetches the pages behind search results so the market agent
// sees full article text, not just search snippets. Fetch failures are
// skipped; evidence is best-effort.
func (orchestrator *Orchestrator) enrichEvidence(ctx context.Context, evidence []Evidence) []Evidence {
	extra := make([]Evidence, 0, evidenceFetchLimit)
	for _, item := range evidence {
		if item.URL == "" {
			continue
		}
		if len(extra) >= evidenceFetchLimit {
			break
		}
		page, err := orchestrator.sourceService.FetchPage(ctx, item.URL)
		if err != nil {
			orchestrator.logger.WithError(err).Debug("Evidence page fetch skipped", "url", item.URL)
			continue
		}
		extra = append(extra, Evidence{
			Snippet: truncateForLog(page.Text, evidenceSnippetLimit),
			URL:     page.URL,
		})
	}
	return extra
}

func evidenceSnippets(evidence []Evidence) []string {
	snippets := make([]string, 0, len(evidence))
	for _, item := range evidence {
		if item.URL != "" {
			snippets = append(snippets, fmt.Sprintf("%s (%s)", item.Snippet, item.URL))
			continue
		}
		snippets = append(snippets, item.Snippet)
	}
	return snippets
}

func evidenceQuery(research *models.ResearchAnalysis) string {
	parts := research.ApplicationDomains
	if len(parts) == 0 && len(research.Innovations) > 0 {
		parts = research.Innovations[:1]
	}
	return strings.TrimSpace(strings.Join(parts, " ") + " market size trends")
}

func (orchestrator *Orchestrator) GetRunStatus(runID string) (*models.PipelineRun, error) {
	if entry, exists := orchestrator.activeRuns.Load(runID); exists {
		return entry.(*activeRun).run, nil
	}

	ctx := context.Background()
	return orchestrator.stateStore.GetRunState(ctx, runID)
}

func (orchestrator *Orchestrator) GetRunUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error) {
	return orchestrator.stateStore.GetAgentUpdates(ctx, runID, limit)
}

func (orchestrator *Orchestrator) GetActiveRunCount() int {
	count := 0
	orchestrator.activeRuns.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) CancelRun(runID string) error {
	if entry, exists := orchestrator.activeRuns.Load(runID); exists {
		active := entry.(*activeRun)
		active.cancel()
		orchestrator.logger.LogPipeline(runID, "run_cancel_requested", 0, nil)
		return nil
	}

	return fmt.Errorf("run %s not found or not active", runID)
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	services := map[string]func() error{
		"state_store": func() error { return orchestrator.stateStore.HealthCheck(ctx) },
		"gemini":      func() error { return orchestrator.geminiService.HealthCheck(ctx) },
		"tavily":      func() error { return orchestrator.tavilyService.HealthCheck(ctx) },
	}

	for serviceName, healthCheck := range services {
		if err := healthCheck(); err != nil {
			return fmt.Errorf("service %s health check failed: %w", serviceName, err)
		}
	}

	return nil
}

func (orchestrator *Orchestrator) GetStats() map[string]interface{} {
	uptime := time.Since(orchestrator.startTime)

	return map[string]interface{}{
		"service":        "orchestrator",
		"uptime_seconds": uptime.Seconds(),
		"active_runs":    orchestrator.GetActiveRunCount(),
		"mode":           string(orchestrator.geminiService.Mode()),
		"agent_sequence": pipelineAgents,
	}
}

func (orchestrator *Orchestrator) Close() error {
	orchestrator.logger.Info("Orchestrator shutting down")

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			activeCount := orchestrator.GetActiveRunCount()
			if activeCount > 0 {
				orchestrator.logger.Warn("Timeout waiting for runs to complete", "active_runs", activeCount)
			}
			return nil
		case <-ticker.C:
			if orchestrator.GetActiveRunCount() == 0 {
				orchestrator.logger.Info("All runs completed, orchestrator closed")
				return nil
			}
		}
	}
}
