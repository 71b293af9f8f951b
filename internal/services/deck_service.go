package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
)

// DeckService renders a completed run into investor-facing artifacts on disk:
// a markdown pitch deck and a full JSON report, one directory per run.
type DeckService struct {
	outputDir string
	logger    *logger.Logger
}

func NewDeckService(cfg config.OutputConfig, log *logger.Logger) *DeckService {
	return &DeckService{outputDir: cfg.Dir, logger: log}
}

type DeckArtifacts struct {
	DeckPath   string `json:"deck_path"`
	ReportPath string `json:"report_path"`
}

// Write renders the run's outputs under <outputDir>/<runID>/.
func (service *DeckService) Write(run *models.PipelineRun) (*DeckArtifacts, error) {
	if run == nil || run.Outputs.BusinessPlan == nil {
		return nil, models.NewValidationError("DECK_NO_OUTPUTS", "run has no outputs to render")
	}

	runDir := filepath.Join(service.outputDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, models.NewInternalError("DECK_MKDIR", "failed to create output directory").WithCause(err)
	}

	artifacts := &DeckArtifacts{
		DeckPath:   filepath.Join(runDir, "pitch_deck.md"),
		ReportPath: filepath.Join(runDir, "report.json"),
	}

	deck := service.renderDeck(run)
	if err := os.WriteFile(artifacts.DeckPath, []byte(deck), 0o644); err != nil {
		return nil, models.NewInternalError("DECK_WRITE", "failed to write pitch deck").WithCause(err)
	}

	report, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, models.NewInternalError("DECK_ENCODE", "failed to encode run report").WithCause(err)
	}
	if err := os.WriteFile(artifacts.ReportPath, report, 0o644); err != nil {
		return nil, models.NewInternalError("DECK_WRITE", "failed to write run report").WithCause(err)
	}

	service.logger.Info("Run artifacts written",
		"run_id", run.ID,
		"deck", artifacts.DeckPath,
		"report", artifacts.ReportPath)

	return artifacts, nil
}

func (service *DeckService) renderDeck(run *models.PipelineRun) string {
	var builder strings.Builder

	title := run.Title
	if title == "" {
		title = "Startup Pitch Deck"
	}

	builder.WriteString("# " + title + "\n\n")
	builder.WriteString(fmt.Sprintf("_Generated %s in %s mode._\n\n",
		time.Now().Format("January 2, 2006"), run.Mode))

	if summary := run.Outputs.BusinessPlan.ExecutiveSummary; summary != "" {
		builder.WriteString("## Executive Summary\n\n" + summary + "\n\n")
	}

	for _, slide := range run.Outputs.BusinessPlan.Slides {
		builder.WriteString("## " + slide.Title + "\n\n")
		builder.WriteString(slide.Content + "\n\n")
	}

	if run.Outputs.Stakeholders != nil && len(run.Outputs.Stakeholders.InvestorMatches) > 0 {
		builder.WriteString("## Suggested Investors\n\n")
		builder.WriteString("| Investor | Stage | Focus | Match |\n")
		builder.WriteString("|---|---|---|---|\n")
		for _, match := range run.Outputs.Stakeholders.InvestorMatches {
			builder.WriteString(fmt.Sprintf("| %s | %s | %s | %.0f%% |\n",
				match.Name, match.Stage, strings.Join(match.Focus, ", "), match.MatchScore*100))
		}
		builder.WriteString("\n")
		builder.WriteString("**Recommended team:** " +
			strings.Join(run.Outputs.Stakeholders.TeamRoles, ", ") + "\n")
	}

	return builder.String()
}
