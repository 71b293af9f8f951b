package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// TavilyService fetches live market evidence snippets for the market agent.
// In demo mode it returns canned evidence so the pipeline stays deterministic
// offline. Repeated upstream failures open the circuit breaker and evidence
// degrades to empty without failing the run.
type TavilyService struct {
	config     config.TavilyConfig
	mode       models.OperatingMode
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
}

// Evidence is one market evidence item. URL is empty for canned demo
// evidence, populated for live search results so the pages behind them can be
// fetched.
type Evidence struct {
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
}

type tavilySearchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func NewTavilyService(cfg config.TavilyConfig, log *logger.Logger) *TavilyService {
	service := &TavilyService{
		config: cfg,
		mode:   models.ResolveMode(cfg.APIKey, cfg.ModeOverride),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}

	service.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tavily",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	log.Info("Tavily service initialized", "mode", string(service.mode), "max_results", cfg.MaxResults)
	return service
}

func (service *TavilyService) Mode() models.OperatingMode {
	return service.mode
}

// SearchEvidence returns up to MaxResults evidence items for the query. It
// never returns an error to callers that should keep running; failures are
// logged and an empty slice comes back.
func (service *TavilyService) SearchEvidence(ctx context.Context, query string) []Evidence {
	if service.mode == models.ModeDemo {
		return cannedEvidence(query)
	}

	startTime := time.Now()

	evidence, err := service.search(ctx, query)
	service.logger.LogService("tavily", "search", time.Since(startTime), map[string]interface{}{
		"query":   truncateForLog(query, 120),
		"results": len(evidence),
	}, err)

	if err != nil {
		return nil
	}
	return evidence
}

func (service *TavilyService) search(ctx context.Context, query string) ([]Evidence, error) {
	operation := func() ([]Evidence, error) {
		result, err := service.breaker.Execute(func() (interface{}, error) {
			return service.doSearch(ctx, query)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return result.([]Evidence), nil
	}

	evidence, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(service.config.MaxRetries+1)))
	if err != nil {
		return nil, models.WrapExternalError("tavily", err)
	}
	return evidence, nil
}

func (service *TavilyService) doSearch(ctx context.Context, query string) ([]Evidence, error) {
	payload, err := json.Marshal(tavilySearchRequest{
		APIKey:      service.config.APIKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  service.config.MaxResults,
	})
	if err != nil {
		return nil, models.NewInternalError("TAVILY_ENCODE", "failed to encode search request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, service.config.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, models.NewInternalError("TAVILY_REQUEST", "failed to build search request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := service.httpClient.Do(req)
	if err != nil {
		return nil, models.NewTransportError("TAVILY_UNREACHABLE", "search request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.NewTransportError("TAVILY_READ", "failed to read search response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewTransportError("TAVILY_STATUS",
			fmt.Sprintf("search returned status %d", resp.StatusCode)).WithMetadata("body", truncateForLog(string(body), 200))
	}

	var parsed tavilySearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, models.NewParseError("TAVILY_DECODE", "failed to decode search response").WithCause(err)
	}

	evidence := make([]Evidence, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if result.Content == "" {
			continue
		}
		evidence = append(evidence, Evidence{
			Snippet: truncateForLog(result.Content, 300),
			URL:     result.URL,
		})
	}
	return evidence, nil
}

func cannedEvidence(query string) []Evidence {
	return []Evidence{
		{Snippet: fmt.Sprintf("Analyst reports project double-digit annual growth for technologies related to %q through 2030.", truncateForLog(query, 80))},
		{Snippet: "Venture funding in deep-tech commercialization rose 18% year over year according to industry trackers."},
		{Snippet: "Enterprise buyers increasingly favor vendors with proven pilot deployments over pure research-stage offerings."},
	}
}

func (service *TavilyService) HealthCheck(ctx context.Context) error {
	if service.mode == models.ModeDemo {
		return nil
	}
	if service.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("tavily circuit breaker open")
	}
	return nil
}

func (service *TavilyService) Close() error {
	service.httpClient.CloseIdleConnections()
	return nil
}
