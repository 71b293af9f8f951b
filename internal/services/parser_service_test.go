package services

import (
	"strings"
	"testing"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
)

func newTestParser(t *testing.T) *ParserService {
	t.Helper()
	return NewParserService(config.PipelineConfig{
		MaxTextLength: 10000,
		MaxPDFPages:   50,
	}, newTestLogger(t))
}

func TestCleanTextStripsNoise(t *testing.T) {
	parser := newTestParser(t)

	raw := "We  present [1] a novel    method [2, 3] for\r\nbattery design.....\n\n\n\nNext paragraph."
	cleaned := parser.CleanText(raw)

	if strings.Contains(cleaned, "[1]") || strings.Contains(cleaned, "[2, 3]") {
		t.Errorf("Expected citation markers stripped, got %q", cleaned)
	}
	if strings.Contains(cleaned, "  ") {
		t.Errorf("Expected collapsed whitespace, got %q", cleaned)
	}
	if strings.Contains(cleaned, ".....") {
		t.Errorf("Expected dot runs collapsed, got %q", cleaned)
	}
	if strings.Contains(cleaned, "\n\n\n") {
		t.Errorf("Expected paragraph breaks limited, got %q", cleaned)
	}
}

func TestValidateRejectsShortInput(t *testing.T) {
	parser := newTestParser(t)

	err := parser.Validate("too short")
	if err == nil {
		t.Fatal("Expected validation error for short input")
	}
	if models.KindOf(err) != models.ErrorKindValidation {
		t.Errorf("Expected validation kind, got %s", models.KindOf(err))
	}
}

func TestValidateRejectsFewWords(t *testing.T) {
	parser := newTestParser(t)

	// Long enough in characters but too few words.
	input := strings.Repeat("abcdefghij", 15)
	if err := parser.Validate(input); err == nil {
		t.Error("Expected validation error for input with too few words")
	}
}

func TestPrepareTextTruncates(t *testing.T) {
	parser := NewParserService(config.PipelineConfig{
		MaxTextLength: 500,
		MaxPDFPages:   50,
	}, newTestLogger(t))

	input := strings.Repeat("perovskite solar cell efficiency research ", 50)
	prepared, err := parser.PrepareText(input)
	if err != nil {
		t.Fatalf("PrepareText failed: %v", err)
	}

	if len(prepared) > 500 {
		t.Errorf("Expected truncation to 500 chars, got %d", len(prepared))
	}
	if strings.HasSuffix(prepared, " ") {
		t.Error("Expected truncation at a word boundary without trailing space")
	}
}

func TestPrepareTextAcceptsValidInput(t *testing.T) {
	parser := newTestParser(t)

	input := strings.Repeat("novel electrode materials improve battery performance significantly ", 12)
	prepared, err := parser.PrepareText(input)
	if err != nil {
		t.Fatalf("Expected valid input accepted, got %v", err)
	}
	if prepared == "" {
		t.Error("Expected non-empty prepared text")
	}
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	parser := newTestParser(t)

	_, err := parser.ExtractPDF([]byte("not a pdf at all"))
	if err == nil {
		t.Fatal("Expected error for non-PDF bytes")
	}
	if models.KindOf(err) != models.ErrorKindParse {
		t.Errorf("Expected parse kind, got %s", models.KindOf(err))
	}
}

func TestKeySectionsFindsHeadings(t *testing.T) {
	parser := newTestParser(t)

	text := "Title page filler. Abstract: we study solid-state batteries. " +
		strings.Repeat("body filler ", 50) +
		"Conclusion: the method works well in practice."

	sections := parser.KeySections(text)
	if !strings.Contains(strings.ToLower(sections), "abstract") {
		t.Errorf("Expected abstract section, got %q", sections)
	}
	if !strings.Contains(strings.ToLower(sections), "conclusion") {
		t.Errorf("Expected conclusion section, got %q", sections)
	}
}

func TestTruncateAtWord(t *testing.T) {
	text := "alpha beta gamma delta"

	got := truncateAtWord(text, 12)
	if got != "alpha beta" {
		t.Errorf("Expected word-boundary truncation, got %q", got)
	}

	if got := truncateAtWord(text, 100); got != text {
		t.Errorf("Expected passthrough for short text, got %q", got)
	}
}
