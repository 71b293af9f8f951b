package services

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/ledongthuc/pdf"
)

// ParserService normalizes raw research input before it reaches the agents.
// It cleans pasted text, extracts text from uploaded PDFs, and rejects input
// too thin to analyze.
type ParserService struct {
	config config.PipelineConfig
	logger *logger.Logger
}

const (
	minInputChars = 100
	minInputWords = 50
)

var (
	citationRE  = regexp.MustCompile(`\[\d+(?:,\s*\d+)*\]`)
	multiDotRE  = regexp.MustCompile(`\.{3,}`)
	controlRE   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	multiWSRE   = regexp.MustCompile(`[ \t]+`)
	multiLineRE = regexp.MustCompile(`\n{3,}`)
)

func NewParserService(cfg config.PipelineConfig, log *logger.Logger) *ParserService {
	return &ParserService{config: cfg, logger: log}
}

// PrepareText cleans, validates, and truncates raw input text. The returned
// string is what the research agent sees.
func (service *ParserService) PrepareText(raw string) (string, error) {
	cleaned := service.CleanText(raw)

	if err := service.Validate(cleaned); err != nil {
		return "", err
	}

	if len(cleaned) > service.config.MaxTextLength {
		service.logger.Debug("Truncating input text",
			"original_length", len(cleaned),
			"max_length", service.config.MaxTextLength)
		cleaned = truncateAtWord(cleaned, service.config.MaxTextLength)
	}

	return cleaned, nil
}

// CleanText strips citation markers, control characters, and noisy
// whitespace while preserving paragraph breaks.
func (service *ParserService) CleanText(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = controlRE.ReplaceAllString(text, "")
	text = citationRE.ReplaceAllString(text, "")
	text = multiDotRE.ReplaceAllString(text, "...")
	text = multiWSRE.ReplaceAllString(text, " ")
	text = multiLineRE.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Validate rejects input too short to produce a meaningful analysis.
func (service *ParserService) Validate(text string) error {
	if len(text) < minInputChars {
		return models.NewValidationError("INPUT_TOO_SHORT",
			fmt.Sprintf("research text must be at least %d characters, got %d", minInputChars, len(text)))
	}
	if words := len(strings.Fields(text)); words < minInputWords {
		return models.NewValidationError("INPUT_TOO_SHORT",
			fmt.Sprintf("research text must contain at least %d words, got %d", minInputWords, words))
	}
	return nil
}

// ExtractPDF pulls plain text from a PDF upload, capped at MaxPDFPages.
func (service *ParserService) ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", models.NewParseError("PDF_UNREADABLE", "failed to open PDF").WithCause(err)
	}

	totalPages := reader.NumPage()
	pages := totalPages
	if pages > service.config.MaxPDFPages {
		service.logger.Warn("PDF exceeds page limit, truncating",
			"pages", totalPages,
			"max_pages", service.config.MaxPDFPages)
		pages = service.config.MaxPDFPages
	}

	var builder strings.Builder
	extracted := 0
	for pageNum := 1; pageNum <= pages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			service.logger.Debug("Skipping unreadable PDF page", "page", pageNum, "error", err)
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n\n")
		extracted++
	}

	if extracted == 0 {
		return "", models.NewParseError("PDF_NO_TEXT", "no extractable text found in PDF")
	}

	service.logger.Info("PDF text extracted",
		"pages_total", totalPages,
		"pages_read", extracted,
		"text_length", builder.Len())

	return builder.String(), nil
}

// ExtractPDFReader is a convenience wrapper for multipart uploads.
func (service *ParserService) ExtractPDFReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", models.NewInternalError("PDF_READ", "failed to read upload").WithCause(err)
	}
	return service.ExtractPDF(data)
}

// KeySections pulls abstract, conclusion, and results paragraphs when the
// document is structured; falls back to the leading text otherwise.
func (service *ParserService) KeySections(text string) string {
	headings := []string{"abstract", "introduction", "methodology", "results", "discussion", "conclusion"}

	lower := strings.ToLower(text)
	var sections []string
	for _, heading := range headings {
		idx := strings.Index(lower, heading)
		if idx < 0 {
			continue
		}
		end := idx + 1500
		if end > len(text) {
			end = len(text)
		}
		sections = append(sections, strings.TrimSpace(text[idx:end]))
	}

	if len(sections) == 0 {
		return truncateAtWord(text, 4000)
	}
	combined := strings.Join(sections, "\n\n")
	if len(combined) > service.config.MaxTextLength {
		combined = truncateAtWord(combined, service.config.MaxTextLength)
	}
	return combined
}

func truncateAtWord(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
