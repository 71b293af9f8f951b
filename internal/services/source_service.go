package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// SourceService fetches research text from web pages so a run can start from
// a URL instead of pasted text. It pulls abstract and body text and strips
// boilerplate; PDF links go through the parser service instead.
type SourceService struct {
	collector   *colly.Collector
	logger      *logger.Logger
	rateLimiter chan struct{}
	mu          sync.Mutex
	userAgents  []string
	uaIndex     int
}

type SourcePage struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

const sourceTextLimit = 30000

func NewSourceService(log *logger.Logger) *SourceService {
	collector := colly.NewCollector(
		colly.UserAgent("Launchpad-Research-Pipeline/1.0"),
		colly.AllowedDomains(),
	)

	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       1 * time.Second,
	})

	collector.SetRequestTimeout(30 * time.Second)

	service := &SourceService{
		collector:   collector,
		logger:      log,
		rateLimiter: make(chan struct{}, 3),
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/120.0",
		},
	}

	log.Info("Source service initialized", "timeout", "30s", "parallelism", 2)
	return service
}

// FetchPage downloads one page and extracts its readable text.
func (service *SourceService) FetchPage(ctx context.Context, targetURL string) (*SourcePage, error) {
	startTime := time.Now()

	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, models.NewValidationError("SOURCE_URL_INVALID", "source URL is not parseable").WithCause(err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, models.NewValidationError("SOURCE_URL_SCHEME",
			fmt.Sprintf("unsupported URL scheme %q", parsedURL.Scheme))
	}

	select {
	case service.rateLimiter <- struct{}{}:
		defer func() { <-service.rateLimiter }()
	case <-ctx.Done():
		return nil, models.NewTimeoutError("SOURCE_TIMEOUT", "rate limiter wait cancelled").WithCause(ctx.Err())
	}

	page := &SourcePage{URL: targetURL, FetchedAt: time.Now()}

	c := service.collector.Clone()
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		service.mu.Lock()
		userAgent := service.userAgents[service.uaIndex]
		service.uaIndex = (service.uaIndex + 1) % len(service.userAgents)
		service.mu.Unlock()

		r.Headers.Set("User-Agent", userAgent)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		page.Title = service.extractTitle(e)
		page.Text = service.extractText(e)
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = models.NewTransportError("SOURCE_FETCH_FAILED",
			fmt.Sprintf("fetch returned HTTP %d", status)).WithCause(err)
	})

	done := make(chan struct{}, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fetchErr = models.NewInternalError("SOURCE_PANIC", fmt.Sprintf("fetch panicked: %v", r))
			}
			select {
			case done <- struct{}{}:
			default:
			}
		}()
		if err := c.Visit(targetURL); err != nil && fetchErr == nil {
			fetchErr = models.NewTransportError("SOURCE_FETCH_FAILED", "visit failed").WithCause(err)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, models.NewTimeoutError("SOURCE_TIMEOUT", "page fetch timed out").WithCause(ctx.Err())
	}

	service.logger.LogService("source", "fetch_page", time.Since(startTime), map[string]interface{}{
		"url":         targetURL,
		"title":       page.Title != "",
		"text_length": len(page.Text),
	}, fetchErr)

	if fetchErr != nil {
		return nil, fetchErr
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, models.NewParseError("SOURCE_EMPTY", "no readable text found on page")
	}
	return page, nil
}

func (service *SourceService) extractTitle(e *colly.HTMLElement) string {
	selectors := []string{
		"article h1", "h1.title", "h1.entry-title", "[itemprop='headline']", "h1",
	}
	for _, sel := range selectors {
		if title := strings.TrimSpace(e.ChildText(sel)); title != "" {
			return title
		}
	}
	return strings.TrimSpace(e.ChildText("title"))
}

// extractText prefers abstract and article regions, falling back to all
// paragraph text.
func (service *SourceService) extractText(e *colly.HTMLElement) string {
	var sections []string

	abstractSelectors := []string{
		".abstract", "#abstract", "[itemprop='description']",
		"meta[name='description']", "meta[property='og:description']",
	}
	for _, sel := range abstractSelectors {
		if strings.HasPrefix(sel, "meta") {
			if desc := strings.TrimSpace(e.ChildAttr(sel, "content")); desc != "" {
				sections = append(sections, desc)
				break
			}
			continue
		}
		if abstract := strings.TrimSpace(e.ChildText(sel)); abstract != "" {
			sections = append(sections, abstract)
			break
		}
	}

	var bodyTexts []string
	e.DOM.Find("article, main, .article-body, .paper-body").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 100 {
			bodyTexts = append(bodyTexts, text)
		}
	})

	if len(bodyTexts) == 0 {
		paragraphs := e.ChildTexts("p")
		for _, p := range paragraphs {
			if len(strings.TrimSpace(p)) > 60 {
				bodyTexts = append(bodyTexts, strings.TrimSpace(p))
			}
		}
	}

	sections = append(sections, bodyTexts...)
	combined := collapseWhitespace(strings.Join(sections, "\n\n"))
	if len(combined) > sourceTextLimit {
		combined = combined[:sourceTextLimit]
	}
	return combined
}

var whitespaceRE = regexp.MustCompile(`[ \t]+`)

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(whitespaceRE.ReplaceAllString(line, " "))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func (service *SourceService) HealthCheck(ctx context.Context) error {
	return nil
}

func (service *SourceService) Close() error {
	return nil
}
