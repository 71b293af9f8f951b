package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"google.golang.org/genai"
)

// GeminiService is the single chokepoint for model calls. In production mode
// it talks to the Gemini API; in demo mode it never touches the network and
// answers from the mock generator. Either way every call appends one entry to
// the injected call recorder.
type GeminiService struct {
	client     *genai.Client
	config     config.GeminiConfig
	mode       models.OperatingMode
	demoReason string

	mock     *MockGenerator
	recorder models.CallRecorder
	logger   *logger.Logger
}

type GenerationRequest struct {
	Prompt         string
	MaxTokens      int32
	Temperature    *float32
	SystemRole     string
	ResponseFormat string
}

type GenerationResponse struct {
	Content        string
	FinishReason   string
	ProcessingTime time.Duration
}

const callLogPreviewLimit = 400

func NewGeminiService(cfg config.GeminiConfig, mock *MockGenerator, recorder models.CallRecorder, log *logger.Logger) *GeminiService {
	service := &GeminiService{
		config:   cfg,
		mock:     mock,
		recorder: recorder,
		logger:   log,
		mode:     models.ResolveMode(cfg.APIKey, cfg.ModeOverride),
	}

	if service.mode == models.ModeDemo {
		if cfg.ModeOverride == string(models.ModeProduction) {
			configErr := models.NewConfigError("GEMINI_KEY_INVALID",
				"production mode requested but no usable API key configured")
			service.demoReason = configErr.Message
			log.WithError(configErr).Warn("Falling back to demo mode")
		} else {
			service.demoReason = "no API key configured"
		}
		log.Info("AI service initialized in demo mode", "reason", service.demoReason)
		return service
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		service.mode = models.ModeDemo
		service.demoReason = fmt.Sprintf("Gemini client initialization failed: %v", err)
		log.WithError(err).Warn("Falling back to demo mode")
		return service
	}

	service.client = client
	log.Info("AI service initialized - Gemini API",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"temperature", cfg.Temperature)

	return service
}

func (service *GeminiService) Mode() models.OperatingMode {
	return service.mode
}

// DemoReason explains why the service is in demo mode when production was
// wanted; empty in production mode.
func (service *GeminiService) DemoReason() string {
	return service.demoReason
}

// CallModel sends one prompt and returns the parsed JSON field map. Demo mode
// delegates to the mock generator without network I/O, keyed on the caller's
// raw input rather than the prompt template so distinct inputs produce
// distinct output. Failures come back as typed AppErrors for the agent layer
// to convert into fallbacks.
func (service *GeminiService) CallModel(ctx context.Context, agent models.AgentKind, prompt, input string) (map[string]any, error) {
	if service.mode == models.ModeDemo {
		fields := service.mock.Fields(agent, input)
		preview, _ := json.Marshal(fields)
		service.recorder.Append(models.CallLogEntry{
			Agent:    string(agent),
			Prompt:   truncateForLog(prompt, callLogPreviewLimit),
			Response: truncateForLog(string(preview), callLogPreviewLimit),
			Mode:     models.ModeDemo,
		})
		return fields, nil
	}

	response, err := service.generateWithRetries(ctx, &GenerationRequest{
		Prompt:         prompt,
		ResponseFormat: "application/json",
	})
	if err != nil {
		// The agent layer degrades every failed call to mock output, so the
		// error entry carries the fallback tag here; agents do not log again.
		service.recorder.Append(models.CallLogEntry{
			Agent:    string(agent),
			Prompt:   truncateForLog(prompt, callLogPreviewLimit),
			Error:    err.Error(),
			Mode:     models.ModeProduction,
			Fallback: true,
		})
		return nil, err
	}

	fields, parseErr := parseFieldMap(response.Content)
	if parseErr != nil {
		service.recorder.Append(models.CallLogEntry{
			Agent:    string(agent),
			Prompt:   truncateForLog(prompt, callLogPreviewLimit),
			Response: truncateForLog(response.Content, callLogPreviewLimit),
			Error:    parseErr.Error(),
			Mode:     models.ModeProduction,
			Fallback: true,
		})
		return nil, parseErr
	}

	service.recorder.Append(models.CallLogEntry{
		Agent:    string(agent),
		Prompt:   truncateForLog(prompt, callLogPreviewLimit),
		Response: truncateForLog(response.Content, callLogPreviewLimit),
		Mode:     models.ModeProduction,
	})

	return fields, nil
}

func (service *GeminiService) generateWithRetries(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()

	attempts := service.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var response *GenerationResponse
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err = service.makeGenerationRequest(ctx, request)
		if err == nil {
			break
		}

		if attempt < attempts {
			service.logger.WithFields(logger.Fields{
				"attempt":      attempt,
				"max_attempts": attempts,
				"error":        err,
			}).Warn("Generate content failed, retrying")

			select {
			case <-time.After(service.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, models.NewTimeoutError("GEMINI_TIMEOUT", "content generation timed out").WithCause(ctx.Err())
			}
		}
	}

	if err != nil {
		service.logger.LogService("gemini", "generate_content", time.Since(startTime), map[string]interface{}{
			"prompt_length": len(request.Prompt),
			"attempts":      attempts,
		}, err)
		return nil, err
	}

	response.ProcessingTime = time.Since(startTime)

	service.logger.LogService("gemini", "generate_content", response.ProcessingTime, map[string]interface{}{
		"prompt_length":   len(request.Prompt),
		"response_length": len(response.Content),
		"finish_reason":   response.FinishReason,
	}, nil)

	return response, nil
}

func (service *GeminiService) makeGenerationRequest(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{}

	if req.SystemRole != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemRole, genai.RoleUser)
	}

	if req.Temperature != nil {
		genConfig.Temperature = req.Temperature
	} else {
		temp := float32(service.config.Temperature)
		genConfig.Temperature = &temp
	}

	if req.MaxTokens != 0 {
		genConfig.MaxOutputTokens = req.MaxTokens
	} else {
		genConfig.MaxOutputTokens = int32(service.config.MaxTokens)
	}

	if req.ResponseFormat != "" {
		genConfig.ResponseMIMEType = req.ResponseFormat
	}

	result, err := service.client.Models.GenerateContent(genCtx, service.config.Model, genai.Text(req.Prompt), genConfig)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, models.NewTimeoutError("GEMINI_TIMEOUT", "model call exceeded configured timeout").WithCause(err)
		}
		return nil, models.NewTransportError("GEMINI_UNREACHABLE", "model call failed").WithCause(err)
	}

	if len(result.Candidates) == 0 {
		return nil, models.NewParseError("GEMINI_NO_CANDIDATES", "no response candidates generated")
	}

	candidate := result.Candidates[0]

	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return &GenerationResponse{
		Content:      text,
		FinishReason: string(candidate.FinishReason),
	}, nil
}

func parseFieldMap(response string) (map[string]any, error) {
	cleaned := stripCodeFences(response)
	if cleaned == "" {
		return nil, models.NewParseError("GEMINI_EMPTY_RESPONSE", "model returned an empty response")
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, models.NewParseError("GEMINI_INVALID_JSON", "model response is not a JSON object").WithCause(err)
	}
	return fields, nil
}

func (service *GeminiService) HealthCheck(ctx context.Context) error {
	if service.mode == models.ModeDemo {
		return nil
	}

	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var temperature float32 = 0
	resp, err := service.generateWithRetries(testCtx, &GenerationRequest{
		Prompt:      "Respond with 'OK' if you can process this request",
		Temperature: &temperature,
		MaxTokens:   10,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.Content == "" {
		return fmt.Errorf("empty response received")
	}

	return nil
}

func (service *GeminiService) Close() error {
	service.logger.Info("Gemini client closed")
	return nil
}
