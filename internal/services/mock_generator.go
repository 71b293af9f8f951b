package services

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
)

// MockGenerator synthesizes agent responses with the same JSON shape the
// real model is prompted for. Field values are derived from the input text so
// two different inputs never produce byte-identical output. It must never
// fail: any internal problem degrades to minimal zero-value fields.
type MockGenerator struct {
	logger *logger.Logger
}

func NewMockGenerator(log *logger.Logger) *MockGenerator {
	return &MockGenerator{logger: log}
}

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"been": true, "were": true, "will": true, "would": true, "could": true,
	"should": true, "there": true, "their": true, "which": true, "these": true,
	"those": true, "into": true, "over": true, "under": true, "about": true,
	"paper": true, "research": true, "study": true, "results": true,
	"using": true, "based": true, "approach": true, "method": true,
	"analysis": true, "analyze": true, "between": true, "within": true,
	"propose": true, "present": true, "novel": true, "more": true,
	"than": true, "also": true, "such": true, "through": true,
}

var domainSignals = []struct {
	keywords []string
	domain   string
}{
	{[]string{"cancer", "patient", "clinical", "medical", "diagnosis", "drug", "health", "biomarker", "genomic"}, "Healthcare"},
	{[]string{"battery", "energy", "solar", "grid", "electrode", "photovoltaic", "storage", "lithium"}, "Energy"},
	{[]string{"recycling", "carbon", "climate", "emission", "sustainable", "waste", "circular"}, "Sustainability"},
	{[]string{"learning", "neural", "model", "algorithm", "intelligence", "transformer", "inference"}, "AI/ML"},
	{[]string{"blockchain", "payment", "ledger", "financial", "banking", "credit"}, "FinTech"},
	{[]string{"student", "education", "curriculum", "teaching", "learner"}, "EdTech"},
	{[]string{"robot", "robotic", "actuator", "autonomous", "drone"}, "Robotics"},
	{[]string{"quantum", "qubit", "superconducting"}, "Quantum Computing"},
	{[]string{"material", "graphene", "polymer", "composite", "nanostructure", "alloy"}, "Advanced Materials"},
	{[]string{"crop", "soil", "agriculture", "farming", "irrigation"}, "AgTech"},
}

var domainCompetitors = map[string][]string{
	"Healthcare":         {"Roche", "Medtronic", "Siemens Healthineers", "GE Healthcare", "Tempus"},
	"Energy":             {"Tesla", "CATL", "Siemens Energy", "Enphase", "QuantumScape"},
	"Sustainability":     {"Veolia", "Redwood Materials", "Climeworks", "Li-Cycle", "TerraCycle"},
	"AI/ML":              {"Google", "Microsoft", "OpenAI", "Anthropic", "NVIDIA"},
	"FinTech":            {"Stripe", "Adyen", "Block", "Plaid", "Revolut"},
	"EdTech":             {"Coursera", "Duolingo", "Khan Academy", "Udemy", "Chegg"},
	"Robotics":           {"Boston Dynamics", "ABB", "Fanuc", "KUKA", "Universal Robots"},
	"Quantum Computing":  {"IBM", "Google", "IonQ", "Rigetti", "PsiQuantum"},
	"Advanced Materials": {"BASF", "Dow", "3M", "Applied Materials", "Corning"},
	"AgTech":             {"John Deere", "Bayer", "Corteva", "Indigo Ag", "AeroFarms"},
}

// Research builds a mock research analysis keyed on terms detected in the
// input text.
func (gen *MockGenerator) Research(input string) *models.ResearchAnalysis {
	terms := extractTerms(input, 3)
	if len(terms) == 0 {
		terms = []string{"adaptive computation"}
	}

	innovations := make([]string, 0, 3)
	innovations = append(innovations, fmt.Sprintf("Novel %s technique for pattern recognition and optimization", terms[0]))
	if len(terms) > 1 {
		innovations = append(innovations, fmt.Sprintf("Advanced %s architecture with enhanced performance characteristics", terms[1]))
	} else {
		innovations = append(innovations, "Advanced materials with enhanced properties")
	}
	if len(terms) > 2 {
		innovations = append(innovations, fmt.Sprintf("Innovative computational approach to %s at scale", terms[2]))
	} else {
		innovations = append(innovations, "Innovative computational approach to optimization")
	}

	domains := detectDomains(input)
	if len(domains) == 0 {
		domains = []string{"AI/ML", "Manufacturing"}
	}

	result := &models.ResearchAnalysis{
		Innovations:        innovations,
		ReadinessLevel:     4 + int(fingerprint(input)%5),
		ApplicationDomains: domains,
		TechnicalSummary:   fmt.Sprintf("Breakthrough work on %s with strong commercial potential", strings.Join(terms, ", ")),
	}
	result.AnalysisSummary = result.Summarize()
	return result
}

// Market builds a mock market analysis sized deterministically from the
// innovations and domains it is asked about.
func (gen *MockGenerator) Market(innovations, domains []string) *models.MarketAnalysis {
	seed := fingerprint(strings.Join(innovations, "|") + strings.Join(domains, "|"))

	tam := 100 + int(seed%400)
	sam := tam / 10
	som := sam / 10
	if som < 1 {
		som = 1
	}

	trends := []string{
		"Rapid digital transformation across industries",
		"Increased focus on AI-powered solutions",
		"Growing demand for automation",
	}
	for i, domain := range domains {
		if i >= 2 {
			break
		}
		trends = append(trends, fmt.Sprintf("Accelerating investment in %s ventures", domain))
	}

	competitors := []string{}
	for _, domain := range domains {
		if names, ok := domainCompetitors[domain]; ok {
			competitors = append(competitors, names...)
			break
		}
	}
	if len(competitors) == 0 {
		competitors = []string{"Google", "Microsoft", "Amazon", "IBM", "OpenAI"}
	}

	result := &models.MarketAnalysis{
		TAM:         fmt.Sprintf("$%dB", tam),
		SAM:         fmt.Sprintf("$%dB", sam),
		SOM:         fmt.Sprintf("$%dB", som),
		Trends:      trends,
		Competitors: competitors,
	}
	result.MarketSummary = result.Summarize()
	return result
}

func (gen *MockGenerator) Feasibility(research *models.ResearchAnalysis, market *models.MarketAnalysis) *models.FeasibilityAssessment {
	primary := "the core technology"
	seedSource := ""
	if research != nil {
		seedSource = strings.Join(research.Innovations, "|")
		if len(research.Innovations) > 0 {
			primary = research.Innovations[0]
		}
	}
	if market != nil {
		seedSource += market.TAM
	}
	seed := fingerprint(seedSource)

	months := 12 + int(seed%12)
	team := 5 + int(seed%6)
	budget := float64(800+int(seed%1500)) / 1000

	result := &models.FeasibilityAssessment{
		Roadmap: []string{
			fmt.Sprintf("Complete technical validation of %s", strings.ToLower(primary)),
			"Develop MVP prototype",
			"Conduct market validation with pilot customers",
			"Refine product based on feedback",
			"Scale manufacturing and operations",
			"Launch commercial product",
		},
		Resources: models.ResourceEstimate{
			Time:     fmt.Sprintf("%d months", months),
			TeamSize: team,
			Budget:   fmt.Sprintf("$%.1fM", budget),
		},
		Risks: []string{
			"Technical complexity challenges",
			"Market competition",
			"Regulatory requirements",
			"Funding constraints",
			"Talent acquisition",
		},
		FeasibilityScore: 5 + int(seed%4),
	}
	result.FeasibilitySummary = result.Summarize()
	return result
}

func (gen *MockGenerator) BusinessPlan(outputs *models.PipelineOutputs) *models.BusinessPlan {
	innovation := "Breakthrough technology with clear competitive advantages."
	market := "Large addressable market with strong growth potential."
	roadmap := "Clear development path with realistic resource requirements."

	if outputs != nil && outputs.Research != nil && len(outputs.Research.Innovations) > 0 {
		innovation = fmt.Sprintf("%s, with clear competitive advantages.", outputs.Research.Innovations[0])
	}
	if outputs != nil && outputs.Market != nil && outputs.Market.TAM != "" {
		market = fmt.Sprintf("Total addressable market of %s with strong growth potential.", outputs.Market.TAM)
	}
	if outputs != nil && outputs.Feasibility != nil && outputs.Feasibility.Resources.Time != "" {
		roadmap = fmt.Sprintf("Development path of %s with realistic resource requirements.", outputs.Feasibility.Resources.Time)
	}

	return &models.BusinessPlan{
		Slides: []models.Slide{
			{Title: "Problem & Opportunity", Content: "Addressing critical challenges in the target market with innovative solutions."},
			{Title: "Core Innovation", Content: innovation},
			{Title: "Market Landscape", Content: market},
			{Title: "Competitive Advantage", Content: "Unique positioning with sustainable competitive moats."},
			{Title: "Feasibility & Roadmap", Content: roadmap},
			{Title: "Business Potential", Content: "Strong revenue potential with clear monetization strategy."},
			{Title: "Next Steps & Investor Recommendations", Content: "Ready for funding with identified investor matches."},
		},
	}
}

// Fields returns the mock response for an agent as a generic field map, the
// same form a parsed model response takes. Must never fail.
func (gen *MockGenerator) Fields(agent models.AgentKind, input string) (fields map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			if gen.logger != nil {
				gen.logger.Warn("mock generation recovered", "agent", string(agent), "panic", fmt.Sprintf("%v", r))
			}
			fields = minimalFields(agent)
		}
	}()

	var value any
	switch agent {
	case models.AgentResearch:
		value = gen.Research(input)
	case models.AgentMarket:
		research := gen.Research(input)
		value = gen.Market(research.Innovations, research.ApplicationDomains)
	case models.AgentFeasibility:
		research := gen.Research(input)
		value = gen.Feasibility(research, gen.Market(research.Innovations, research.ApplicationDomains))
	case models.AgentBusinessPlan:
		research := gen.Research(input)
		value = gen.BusinessPlan(&models.PipelineOutputs{Research: research})
	default:
		return minimalFields(agent)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return minimalFields(agent)
	}

	fields = make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return minimalFields(agent)
	}
	return fields
}

func minimalFields(agent models.AgentKind) map[string]any {
	switch agent {
	case models.AgentResearch:
		return map[string]any{
			"innovations":         []any{},
			"readiness_level":     0,
			"application_domains": []any{},
			"technical_summary":   "",
		}
	case models.AgentMarket:
		return map[string]any{
			"TAM": "N/A", "SAM": "N/A", "SOM": "N/A",
			"trends": []any{}, "competitors": []any{},
		}
	case models.AgentFeasibility:
		return map[string]any{
			"roadmap":   []any{},
			"resources": map[string]any{"time": "", "team_size": "", "budget": ""},
			"risks":     []any{}, "feasibility_score": 0,
		}
	case models.AgentBusinessPlan:
		return map[string]any{"slides": []any{}}
	default:
		return map[string]any{}
	}
}

func extractTerms(input string, max int) []string {
	seen := make(map[string]bool)
	terms := []string{}

	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-'
	})

	for _, word := range words {
		word = strings.Trim(word, "-")
		if len(word) < 4 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
		if len(terms) >= max {
			break
		}
	}

	return terms
}

func detectDomains(input string) []string {
	lower := strings.ToLower(input)
	domains := []string{}
	for _, signal := range domainSignals {
		for _, keyword := range signal.keywords {
			if strings.Contains(lower, keyword) {
				domains = append(domains, signal.domain)
				break
			}
		}
		if len(domains) >= 3 {
			break
		}
	}
	return domains
}

func fingerprint(input string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(input))
	return hash.Sum32()
}
