package models

import "fmt"

type AgentKind string

const (
	AgentResearch     AgentKind = "research"
	AgentMarket       AgentKind = "market"
	AgentFeasibility  AgentKind = "feasibility"
	AgentStakeholder  AgentKind = "stakeholder"
	AgentBusinessPlan AgentKind = "business_plan"
)

// ResearchAnalysis is the Research agent's output shape.
type ResearchAnalysis struct {
	Innovations        []string `json:"innovations"`
	ReadinessLevel     int      `json:"readiness_level"`
	ApplicationDomains []string `json:"application_domains"`
	TechnicalSummary   string   `json:"technical_summary"`
	AnalysisSummary    string   `json:"analysis_summary,omitempty"`
}

// MarketAnalysis is the Market agent's output shape. TAM/SAM/SOM arrive from
// the model as strings or nested objects and are flattened before storage.
type MarketAnalysis struct {
	TAM           string   `json:"TAM"`
	SAM           string   `json:"SAM"`
	SOM           string   `json:"SOM"`
	Trends        []string `json:"trends"`
	Competitors   []string `json:"competitors"`
	MarketSummary string   `json:"market_summary,omitempty"`
}

type ResourceEstimate struct {
	Time     string `json:"time"`
	TeamSize int    `json:"team_size"`
	Budget   string `json:"budget"`
}

type FeasibilityAssessment struct {
	Roadmap            []string         `json:"roadmap"`
	Resources          ResourceEstimate `json:"resources"`
	Risks              []string         `json:"risks"`
	FeasibilityScore   int              `json:"feasibility_score"`
	FeasibilitySummary string           `json:"feasibility_summary,omitempty"`
}

type Slide struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type BusinessPlan struct {
	Slides           []Slide                `json:"slides"`
	ExecutiveSummary string                 `json:"executive_summary,omitempty"`
	KeyMetrics       map[string]interface{} `json:"key_metrics,omitempty"`
}

type InvestorMatch struct {
	Name       string   `json:"name"`
	Focus      []string `json:"focus"`
	Stage      string   `json:"stage"`
	Geo        string   `json:"geo"`
	TicketSize string   `json:"ticket_size"`
	MatchScore float64  `json:"match_score"`
}

type MatchStatistics struct {
	TotalMatches          int     `json:"total_matches"`
	HighConfidenceMatches int     `json:"high_confidence_matches"`
	AverageMatchScore     float64 `json:"average_match_score"`
}

type StakeholderReport struct {
	TeamRoles          []string        `json:"team_roles"`
	InvestorMatches    []InvestorMatch `json:"investor_matches"`
	MatchStatistics    MatchStatistics `json:"match_statistics"`
	StakeholderSummary string          `json:"stakeholder_summary,omitempty"`
}

func (r *ResearchAnalysis) Summarize() string {
	return fmt.Sprintf("This paper introduces %d key innovations with TRL %d, applicable to %d domains.",
		len(r.Innovations), r.ReadinessLevel, len(r.ApplicationDomains))
}

func (m *MarketAnalysis) Summarize() string {
	return fmt.Sprintf("Total addressable market of %s with %d key trends and %d major competitors.",
		m.TAM, len(m.Trends), len(m.Competitors))
}

func (f *FeasibilityAssessment) Summarize() string {
	return fmt.Sprintf("Project feasibility score: %d/10 with %d development phases.",
		f.FeasibilityScore, len(f.Roadmap))
}

func (s *StakeholderReport) Summarize() string {
	return fmt.Sprintf("Found %d potential investors with %d high-confidence matches. Recommended team: %d key roles.",
		s.MatchStatistics.TotalMatches, s.MatchStatistics.HighConfidenceMatches, len(s.TeamRoles))
}
