package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"launchpad-ai-pipeline/internal/models"
)

// Agent methods always return a usable result. When the model call fails or
// the response cannot be coerced, the mock generator fills the gaps and the
// returned error only signals that a fallback happened; callers log it and
// keep going.

func (service *GeminiService) AnalyzeResearch(ctx context.Context, text string) (*models.ResearchAnalysis, error) {
	startTime := time.Now()

	fields, err := service.CallModel(ctx, models.AgentResearch, buildResearchPrompt(text), text)
	fallback := false
	if err != nil {
		service.logger.LogAgent("", string(models.AgentResearch), "analyze", time.Since(startTime), nil, err)
		fields = service.mock.Fields(models.AgentResearch, text)
		fallback = true
	}

	// Mock defaults fill any field the model omitted or mangled.
	defaults := service.mock.Research(text)
	analysis := &models.ResearchAnalysis{
		Innovations:        toStringSlice(fields["innovations"], defaults.Innovations),
		ReadinessLevel:     clampInt(toInt(fields["readiness_level"], defaults.ReadinessLevel), 1, 9),
		ApplicationDomains: toStringSlice(fields["application_domains"], defaults.ApplicationDomains),
		TechnicalSummary:   toString(fields["technical_summary"], defaults.TechnicalSummary),
	}
	analysis.AnalysisSummary = analysis.Summarize()

	if fallback {
		return analysis, models.NewExternalError("RESEARCH_FALLBACK", "research agent used fallback output").WithCause(err)
	}
	return analysis, nil
}

func (service *GeminiService) AnalyzeMarket(ctx context.Context, research *models.ResearchAnalysis, evidence []string) (*models.MarketAnalysis, error) {
	startTime := time.Now()

	fields, err := service.CallModel(ctx, models.AgentMarket,
		buildMarketPrompt(research, evidence), strings.Join(research.Innovations, " "))
	fallback := false
	if err != nil {
		service.logger.LogAgent("", string(models.AgentMarket), "analyze", time.Since(startTime), nil, err)
		fields = service.mock.Fields(models.AgentMarket, strings.Join(research.Innovations, " "))
		fallback = true
	}

	defaults := service.mock.Market(research.Innovations, research.ApplicationDomains)
	analysis := &models.MarketAnalysis{
		TAM:         extractMarketValue(fields["TAM"], defaults.TAM),
		SAM:         extractMarketValue(fields["SAM"], defaults.SAM),
		SOM:         extractMarketValue(fields["SOM"], defaults.SOM),
		Trends:      toStringSlice(fields["trends"], defaults.Trends),
		Competitors: toStringSlice(fields["competitors"], defaults.Competitors),
	}
	analysis.MarketSummary = analysis.Summarize()

	if fallback {
		return analysis, models.NewExternalError("MARKET_FALLBACK", "market agent used fallback output").WithCause(err)
	}
	return analysis, nil
}

func (service *GeminiService) AssessFeasibility(ctx context.Context, research *models.ResearchAnalysis, market *models.MarketAnalysis) (*models.FeasibilityAssessment, error) {
	startTime := time.Now()

	fields, err := service.CallModel(ctx, models.AgentFeasibility,
		buildFeasibilityPrompt(research, market), research.TechnicalSummary)
	fallback := false
	if err != nil {
		service.logger.LogAgent("", string(models.AgentFeasibility), "assess", time.Since(startTime), nil, err)
		fields = service.mock.Fields(models.AgentFeasibility, research.TechnicalSummary)
		fallback = true
	}

	defaults := service.mock.Feasibility(research, market)
	assessment := &models.FeasibilityAssessment{
		Roadmap:          toStringSlice(fields["roadmap"], defaults.Roadmap),
		Resources:        defaults.Resources,
		Risks:            toStringSlice(fields["risks"], defaults.Risks),
		FeasibilityScore: clampInt(toInt(fields["feasibility_score"], defaults.FeasibilityScore), 1, 10),
	}
	if resources, ok := fields["resources"].(map[string]any); ok {
		assessment.Resources = models.ResourceEstimate{
			Time:     toString(resources["time"], defaults.Resources.Time),
			TeamSize: toInt(resources["team_size"], defaults.Resources.TeamSize),
			Budget:   toString(resources["budget"], defaults.Resources.Budget),
		}
	}
	assessment.FeasibilitySummary = assessment.Summarize()

	if fallback {
		return assessment, models.NewExternalError("FEASIBILITY_FALLBACK", "feasibility agent used fallback output").WithCause(err)
	}
	return assessment, nil
}

func (service *GeminiService) GenerateBusinessPlan(ctx context.Context, outputs *models.PipelineOutputs) (*models.BusinessPlan, error) {
	startTime := time.Now()

	fields, err := service.CallModel(ctx, models.AgentBusinessPlan,
		buildBusinessPlanPrompt(outputs), outputs.Research.TechnicalSummary)
	fallback := false
	if err != nil {
		service.logger.LogAgent("", string(models.AgentBusinessPlan), "generate", time.Since(startTime), nil, err)
		fields = service.mock.Fields(models.AgentBusinessPlan, outputs.Research.TechnicalSummary)
		fallback = true
	}

	plan := service.mock.BusinessPlan(outputs)

	if rawSlides, ok := fields["slides"].([]any); ok && len(rawSlides) > 0 {
		slides := make([]models.Slide, 0, len(rawSlides))
		for _, raw := range rawSlides {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			slide := models.Slide{
				Title:   toString(item["title"], ""),
				Content: toString(item["content"], ""),
			}
			if slide.Title == "" && slide.Content == "" {
				continue
			}
			slides = append(slides, slide)
		}
		if len(slides) > 0 {
			plan.Slides = slides
		}
	}

	plan.ExecutiveSummary = buildExecutiveSummary(outputs)
	plan.KeyMetrics = buildKeyMetrics(outputs)

	if fallback {
		return plan, models.NewExternalError("BUSINESS_PLAN_FALLBACK", "business plan agent used fallback output").WithCause(err)
	}
	return plan, nil
}

func buildExecutiveSummary(outputs *models.PipelineOutputs) string {
	technology := "A novel deep-tech innovation"
	if outputs.Research != nil && outputs.Research.TechnicalSummary != "" {
		technology = outputs.Research.TechnicalSummary
	}

	parts := []string{technology}
	if outputs.Market != nil && outputs.Market.TAM != "" {
		parts = append(parts, fmt.Sprintf("The total addressable market is %s.", outputs.Market.TAM))
	}
	if outputs.Feasibility != nil {
		parts = append(parts, fmt.Sprintf("Commercialization is rated %d/10 with an estimated %s to market requiring %s.",
			outputs.Feasibility.FeasibilityScore,
			outputs.Feasibility.Resources.Time,
			outputs.Feasibility.Resources.Budget))
	}
	return strings.Join(parts, " ")
}

func buildKeyMetrics(outputs *models.PipelineOutputs) map[string]interface{} {
	metrics := make(map[string]interface{})
	if outputs.Research != nil {
		metrics["readiness_level"] = outputs.Research.ReadinessLevel
		metrics["innovation_count"] = len(outputs.Research.Innovations)
	}
	if outputs.Market != nil {
		metrics["tam"] = outputs.Market.TAM
		metrics["som"] = outputs.Market.SOM
	}
	if outputs.Feasibility != nil {
		metrics["feasibility_score"] = outputs.Feasibility.FeasibilityScore
		metrics["time_to_market"] = outputs.Feasibility.Resources.Time
		metrics["funding_need"] = outputs.Feasibility.Resources.Budget
		metrics["team_size"] = outputs.Feasibility.Resources.TeamSize
	}
	return metrics
}

func buildResearchPrompt(text string) string {
	return fmt.Sprintf(`You are a technology transfer analyst reviewing a research paper.

Analyze the research text below and respond with ONLY a JSON object, no markdown formatting, with exactly these keys:
{
  "innovations": ["3-5 concrete commercializable innovations extracted from the research"],
  "readiness_level": <technology readiness level as an integer from 1 to 9>,
  "application_domains": ["2-4 industry domains where this research applies"],
  "technical_summary": "<2-3 sentence plain-language summary of the core technology>"
}

Research text:
%s`, text)
}

func buildMarketPrompt(research *models.ResearchAnalysis, evidence []string) string {
	var builder strings.Builder

	builder.WriteString(`You are a market analyst sizing the opportunity for a deep-tech startup.

Given the innovations and application domains below, respond with ONLY a JSON object, no markdown formatting, with exactly these keys:
{
  "TAM": "<total addressable market with dollar figure and one-line justification>",
  "SAM": "<serviceable addressable market with dollar figure>",
  "SOM": "<serviceable obtainable market with dollar figure>",
  "trends": ["3-5 current market trends relevant to this technology"],
  "competitors": ["3-5 companies or products competing in this space"]
}

Innovations:
`)
	for _, innovation := range research.Innovations {
		builder.WriteString("- " + innovation + "\n")
	}
	builder.WriteString("\nApplication domains: " + strings.Join(research.ApplicationDomains, ", ") + "\n")

	if len(evidence) > 0 {
		builder.WriteString("\nRecent market evidence:\n")
		for _, snippet := range evidence {
			builder.WriteString("- " + snippet + "\n")
		}
	}

	return builder.String()
}

func buildFeasibilityPrompt(research *models.ResearchAnalysis, market *models.MarketAnalysis) string {
	return fmt.Sprintf(`You are a startup advisor assessing commercialization feasibility.

Given the technology and market context below, respond with ONLY a JSON object, no markdown formatting, with exactly these keys:
{
  "roadmap": ["4-6 milestone steps from current readiness to first revenue"],
  "resources": {"time": "<estimated time to market>", "team_size": <integer>, "budget": "<estimated funding need>"},
  "risks": ["3-5 key technical and commercial risks"],
  "feasibility_score": <integer from 1 to 10>
}

Technology summary: %s
Readiness level: %d of 9
Target market: TAM %s, SAM %s
Key competitors: %s`,
		research.TechnicalSummary,
		research.ReadinessLevel,
		market.TAM,
		market.SAM,
		strings.Join(market.Competitors, ", "))
}

func buildBusinessPlanPrompt(outputs *models.PipelineOutputs) string {
	return fmt.Sprintf(`You are a pitch deck writer for an early-stage deep-tech startup.

Using the analysis below, respond with ONLY a JSON object, no markdown formatting, shaped as:
{
  "slides": [
    {"title": "Problem", "content": "..."},
    {"title": "Solution", "content": "..."},
    {"title": "Market Opportunity", "content": "..."},
    {"title": "Competition", "content": "..."},
    {"title": "Roadmap", "content": "..."},
    {"title": "Team & Resources", "content": "..."},
    {"title": "The Ask", "content": "..."}
  ]
}
Each slide content should be 2-4 sentences of investor-ready copy.

Technology: %s
Innovations: %s
Market: TAM %s, SAM %s, SOM %s
Trends: %s
Roadmap: %s
Resources: %s over %s with a team of %d
Feasibility score: %d of 10`,
		outputs.Research.TechnicalSummary,
		strings.Join(outputs.Research.Innovations, "; "),
		outputs.Market.TAM,
		outputs.Market.SAM,
		outputs.Market.SOM,
		strings.Join(outputs.Market.Trends, "; "),
		strings.Join(outputs.Feasibility.Roadmap, " -> "),
		outputs.Feasibility.Resources.Budget,
		outputs.Feasibility.Resources.Time,
		outputs.Feasibility.Resources.TeamSize,
		outputs.Feasibility.FeasibilityScore)
}
