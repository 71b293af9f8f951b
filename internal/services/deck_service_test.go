package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
)

func completedRunForDeck(t *testing.T) *models.PipelineRun {
	t.Helper()

	run := models.NewPipelineRun(models.PipelineRequest{
		Text:  "battery research",
		Title: "Solid-State Storage",
		RunID: "deck-run",
	}, "req-deck", models.ModeDemo)

	run.Outputs.BusinessPlan = &models.BusinessPlan{
		Slides: []models.Slide{
			{Title: "Problem", Content: "Grid storage is expensive."},
			{Title: "Solution", Content: "Solid-state batteries with longer cycle life."},
		},
	}
	run.Outputs.Stakeholders = &models.StakeholderReport{
		TeamRoles: []string{"CEO", "CTO"},
		InvestorMatches: []models.InvestorMatch{
			{Name: "GreenSpark Partners", Stage: "Seed", Focus: []string{"Energy"}, MatchScore: 0.8},
		},
	}
	run.MarkCompleted()
	return run
}

func TestDeckServiceWrite(t *testing.T) {
	dir := t.TempDir()
	service := NewDeckService(config.OutputConfig{Dir: dir}, newTestLogger(t))

	run := completedRunForDeck(t)
	artifacts, err := service.Write(run)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if artifacts.DeckPath != filepath.Join(dir, "deck-run", "pitch_deck.md") {
		t.Errorf("Unexpected deck path %s", artifacts.DeckPath)
	}

	deck, err := os.ReadFile(artifacts.DeckPath)
	if err != nil {
		t.Fatalf("Failed to read deck: %v", err)
	}
	content := string(deck)
	for _, want := range []string{"# Solid-State Storage", "## Problem", "## Solution", "GreenSpark Partners", "CEO, CTO"} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected deck to contain %q", want)
		}
	}

	report, err := os.ReadFile(artifacts.ReportPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(report), `"deck-run"`) {
		t.Error("Expected report to contain the run ID")
	}
}

func TestDeckServiceRejectsEmptyRun(t *testing.T) {
	service := NewDeckService(config.OutputConfig{Dir: t.TempDir()}, newTestLogger(t))

	run := models.NewPipelineRun(models.PipelineRequest{Text: "no outputs"}, "req-x", models.ModeDemo)
	if _, err := service.Write(run); err == nil {
		t.Error("Expected error for run without business plan")
	}
	if _, err := service.Write(nil); err == nil {
		t.Error("Expected error for nil run")
	}
}
