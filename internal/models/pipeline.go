package models

import (
	"time"

	"github.com/google/uuid"
)

type PipelineRequest struct {
	Text     string         `json:"text" binding:"required"`
	Title    string         `json:"title,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type PipelineResponse struct {
	RunID     string        `json:"run_id"`
	RequestID string        `json:"request_id"`
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	Mode      OperatingMode `json:"mode"`
	Timestamp time.Time     `json:"timestamp"`
	TotalTime *float64      `json:"total_time_ms,omitempty"`

	Outputs *PipelineOutputs `json:"outputs,omitempty"`
}

// PipelineOutputs is the complete four-agent output set plus the stakeholder
// branch. Every field is populated on a completed run, mock-backed or not.
type PipelineOutputs struct {
	Research     *ResearchAnalysis      `json:"research,omitempty"`
	Market       *MarketAnalysis        `json:"market,omitempty"`
	Feasibility  *FeasibilityAssessment `json:"feasibility,omitempty"`
	Stakeholders *StakeholderReport     `json:"stakeholders,omitempty"`
	BusinessPlan *BusinessPlan          `json:"business_plan,omitempty"`
}

type PipelineRun struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id"`
	Title     string        `json:"title,omitempty"`
	Status    RunStatus     `json:"status"`
	Mode      OperatingMode `json:"mode"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`

	InputPreview string `json:"input_preview,omitempty"`
	DemoReason   string `json:"demo_reason,omitempty"`

	Outputs PipelineOutputs `json:"outputs"`

	Metadata        map[string]any  `json:"metadata,omitempty"`
	ProcessingStats ProcessingStats `json:"processing_stats"`
}

type ProcessingStats struct {
	TotalDuration time.Duration         `json:"total_duration"`
	AgentStats    map[string]AgentStats `json:"agent_stats"`
	APICallsCount int                   `json:"api_calls_count,omitempty"`
	FallbackCount int                   `json:"fallback_count,omitempty"`
}

type AgentStats struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

type AgentUpdate struct {
	RunID     string         `json:"run_id"`
	RequestID string         `json:"request_id"`
	AgentName string         `json:"agent_name"`
	Status    AgentStatus    `json:"status"`
	Message   string         `json:"message"`
	Progress  float64        `json:"progress"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

type AgentStatus string

const (
	AgentStatusPending    AgentStatus = "pending"
	AgentStatusProcessing AgentStatus = "processing"
	AgentStatusCompleted  AgentStatus = "completed"
	AgentStatusFallback   AgentStatus = "fallback"
	AgentStatusFailed     AgentStatus = "failed"
)

type UpdateType string

const (
	UpdateTypeRunStarted   UpdateType = "run_started"
	UpdateTypeRunCompleted UpdateType = "run_completed"
	UpdateTypeRunError     UpdateType = "run_error"
)

const inputPreviewLength = 240

func NewPipelineRun(req PipelineRequest, requestID string, mode OperatingMode) *PipelineRun {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	preview := req.Text
	if len(preview) > inputPreviewLength {
		preview = preview[:inputPreviewLength]
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &PipelineRun{
		ID:           runID,
		RequestID:    requestID,
		Title:        req.Title,
		Status:       RunStatusPending,
		Mode:         mode,
		StartTime:    time.Now(),
		InputPreview: preview,
		Metadata:     metadata,
		ProcessingStats: ProcessingStats{
			AgentStats: make(map[string]AgentStats),
		},
	}
}

func NewPipelineResponse(runID, requestID, status, message string, mode OperatingMode) *PipelineResponse {
	return &PipelineResponse{
		RunID:     runID,
		RequestID: requestID,
		Status:    status,
		Message:   message,
		Mode:      mode,
		Timestamp: time.Now(),
	}
}

func (run *PipelineRun) MarkCompleted() {
	run.Status = RunStatusCompleted
	now := time.Now()
	run.EndTime = &now
	run.ProcessingStats.TotalDuration = time.Since(run.StartTime)
}

func (run *PipelineRun) MarkFailed() {
	run.Status = RunStatusFailed
	now := time.Now()
	run.EndTime = &now
	run.ProcessingStats.TotalDuration = time.Since(run.StartTime)
}

func (run *PipelineRun) MarkCancelled() {
	run.Status = RunStatusCancelled
	now := time.Now()
	run.EndTime = &now
	run.ProcessingStats.TotalDuration = time.Since(run.StartTime)
}

func (run *PipelineRun) UpdateAgentStats(agentName string, stats AgentStats) {
	run.ProcessingStats.AgentStats[agentName] = stats
}

func (run *PipelineRun) GetDuration() time.Duration {
	if run.EndTime != nil {
		return run.EndTime.Sub(run.StartTime)
	}
	return time.Since(run.StartTime)
}

func (run *PipelineRun) IsCompleted() bool {
	return run.Status == RunStatusCompleted
}

func (run *PipelineRun) IsFailed() bool {
	return run.Status == RunStatusFailed
}

func GenerateRequestID() string {
	return uuid.New().String()
}
