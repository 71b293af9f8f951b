package services

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
)

// MatcherService ranks investors against a run's analysis and recommends
// founding team roles. Pure heuristics, no model calls, so stakeholder output
// is identical in demo and production mode.
type MatcherService struct {
	investors []models.InvestorMatch
	topN      int
	logger    *logger.Logger
}

const highConfidenceThreshold = 0.7

func NewMatcherService(cfg config.PipelineConfig, log *logger.Logger) *MatcherService {
	service := &MatcherService{
		topN:   cfg.TopInvestors,
		logger: log,
	}
	if service.topN <= 0 {
		service.topN = 5
	}

	investors, err := loadInvestors(cfg.InvestorDataPath)
	if err != nil {
		log.WithError(err).Warn("Investor data file unavailable, using built-in directory",
			"path", cfg.InvestorDataPath)
		investors = defaultInvestors()
	}
	service.investors = investors

	log.Info("Matcher service initialized", "investors", len(investors), "top_n", service.topN)
	return service
}

func loadInvestors(path string) ([]models.InvestorMatch, error) {
	if path == "" {
		return nil, fmt.Errorf("no investor data path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var investors []models.InvestorMatch
	if err := json.Unmarshal(data, &investors); err != nil {
		return nil, models.NewParseError("INVESTOR_DATA_INVALID", "investor data file is not valid JSON").WithCause(err)
	}
	if len(investors) == 0 {
		return nil, fmt.Errorf("investor data file is empty")
	}
	return investors, nil
}

// Match builds the stakeholder report for a completed analysis.
func (service *MatcherService) Match(research *models.ResearchAnalysis, market *models.MarketAnalysis, feasibility *models.FeasibilityAssessment) *models.StakeholderReport {
	scored := make([]models.InvestorMatch, 0, len(service.investors))
	for _, investor := range service.investors {
		match := investor
		match.MatchScore = service.scoreInvestor(investor, research, feasibility)
		if match.MatchScore > 0 {
			scored = append(scored, match)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].MatchScore > scored[j].MatchScore
	})

	if len(scored) > service.topN {
		scored = scored[:service.topN]
	}

	stats := models.MatchStatistics{TotalMatches: len(scored)}
	var scoreSum float64
	for _, match := range scored {
		scoreSum += match.MatchScore
		if match.MatchScore >= highConfidenceThreshold {
			stats.HighConfidenceMatches++
		}
	}
	if len(scored) > 0 {
		stats.AverageMatchScore = scoreSum / float64(len(scored))
	}

	report := &models.StakeholderReport{
		TeamRoles:       service.recommendTeam(research),
		InvestorMatches: scored,
		MatchStatistics: stats,
	}
	report.StakeholderSummary = report.Summarize()

	service.logger.Debug("Stakeholder matching complete",
		"matches", stats.TotalMatches,
		"high_confidence", stats.HighConfidenceMatches,
		"avg_score", fmt.Sprintf("%.2f", stats.AverageMatchScore))

	return report
}

// scoreInvestor weights focus overlap 0.4, stage fit 0.3, geography 0.2, and
// ticket size 0.1.
func (service *MatcherService) scoreInvestor(investor models.InvestorMatch, research *models.ResearchAnalysis, feasibility *models.FeasibilityAssessment) float64 {
	var score float64

	if len(investor.Focus) > 0 {
		overlap := 0
		for _, focus := range investor.Focus {
			for _, domain := range research.ApplicationDomains {
				if domainsOverlap(focus, domain) {
					overlap++
					break
				}
			}
		}
		score += 0.4 * float64(overlap) / float64(len(investor.Focus))
	}

	for _, stage := range stagesForTRL(research.ReadinessLevel) {
		if strings.EqualFold(investor.Stage, stage) {
			score += 0.3
			break
		}
	}

	if strings.EqualFold(investor.Geo, "Global") || investor.Geo == "" {
		score += 0.2
	} else {
		score += 0.1
	}

	if budget := parseBudget(feasibility.Resources.Budget); budget > 0 {
		low, high := parseTicketSize(investor.TicketSize)
		if low > 0 && budget >= low && budget <= high {
			score += 0.1
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// stagesForTRL maps technology readiness to the funding stages that fit it.
func stagesForTRL(trl int) []string {
	switch {
	case trl <= 3:
		return []string{"Pre-Seed", "Seed"}
	case trl <= 6:
		return []string{"Seed", "Series A"}
	default:
		return []string{"Series A", "Series B"}
	}
}

func domainsOverlap(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	for _, word := range strings.Fields(b) {
		if len(word) > 3 && strings.Contains(a, word) {
			return true
		}
	}
	return false
}

var moneyRE = regexp.MustCompile(`\$?\s*([\d.]+)\s*([MKBmkb])`)

// parseTicketSize reads ranges like "$500K-$2M" into low/high millions.
func parseTicketSize(ticket string) (float64, float64) {
	matches := moneyRE.FindAllStringSubmatch(ticket, -1)
	if len(matches) == 0 {
		return 0, 0
	}

	values := make([]float64, 0, len(matches))
	for _, match := range matches {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		switch strings.ToUpper(match[2]) {
		case "K":
			value /= 1000
		case "B":
			value *= 1000
		}
		values = append(values, value)
	}

	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], values[0]
	default:
		return values[0], values[len(values)-1]
	}
}

func parseBudget(budget string) float64 {
	low, _ := parseTicketSize(budget)
	return low
}

var domainRoles = map[string][]string{
	"healthcare":         {"Chief Medical Officer", "Regulatory Affairs Lead"},
	"energy":             {"Power Systems Engineer", "Grid Integration Specialist"},
	"sustainability":     {"Sustainability Officer", "Supply Chain Lead"},
	"ai/ml":              {"Machine Learning Engineer", "Data Engineer"},
	"fintech":            {"Compliance Officer", "Payments Engineer"},
	"edtech":             {"Learning Experience Designer", "Content Lead"},
	"robotics":           {"Robotics Engineer", "Embedded Systems Lead"},
	"quantum computing":  {"Quantum Algorithms Researcher", "Cryogenics Engineer"},
	"advanced materials": {"Materials Scientist", "Process Engineer"},
	"agtech":             {"Agronomist", "Field Operations Lead"},
}

// recommendTeam builds a founding team for the detected domains, with extra
// research depth for early-stage technology.
func (service *MatcherService) recommendTeam(research *models.ResearchAnalysis) []string {
	roles := []string{"CEO / Business Lead", "CTO / Technical Lead"}

	seen := map[string]bool{}
	for _, role := range roles {
		seen[role] = true
	}

	for _, domain := range research.ApplicationDomains {
		key := strings.ToLower(strings.TrimSpace(domain))
		for domainKey, domainSpecific := range domainRoles {
			if !domainsOverlap(domainKey, key) {
				continue
			}
			for _, role := range domainSpecific {
				if !seen[role] {
					seen[role] = true
					roles = append(roles, role)
				}
			}
		}
	}

	if research.ReadinessLevel <= 4 && !seen["Principal Research Scientist"] {
		roles = append(roles, "Principal Research Scientist")
	}
	if len(roles) < 4 {
		roles = append(roles, "Product Manager")
	}

	if len(roles) > 6 {
		roles = roles[:6]
	}
	return roles
}

func defaultInvestors() []models.InvestorMatch {
	return []models.InvestorMatch{
		{Name: "Deep Science Ventures", Focus: []string{"Advanced Materials", "Energy", "Healthcare"}, Stage: "Seed", Geo: "Global", TicketSize: "$500K-$2M"},
		{Name: "Horizon Frontier Capital", Focus: []string{"AI/ML", "Robotics", "Quantum Computing"}, Stage: "Series A", Geo: "North America", TicketSize: "$2M-$10M"},
		{Name: "GreenSpark Partners", Focus: []string{"Sustainability", "Energy", "AgTech"}, Stage: "Seed", Geo: "Europe", TicketSize: "$250K-$1.5M"},
		{Name: "MedBridge Capital", Focus: []string{"Healthcare", "Biotech"}, Stage: "Series A", Geo: "Global", TicketSize: "$3M-$15M"},
		{Name: "Catalyst Labs Fund", Focus: []string{"AI/ML", "FinTech", "EdTech"}, Stage: "Pre-Seed", Geo: "Global", TicketSize: "$100K-$500K"},
		{Name: "Quantum Leap Ventures", Focus: []string{"Quantum Computing", "Advanced Materials"}, Stage: "Seed", Geo: "North America", TicketSize: "$1M-$5M"},
		{Name: "TerraFirma Growth", Focus: []string{"AgTech", "Sustainability"}, Stage: "Series B", Geo: "Global", TicketSize: "$10M-$30M"},
		{Name: "Nexus Industrial Partners", Focus: []string{"Robotics", "Advanced Materials", "Energy"}, Stage: "Series A", Geo: "Asia", TicketSize: "$2M-$8M"},
	}
}
