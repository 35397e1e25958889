// Package insight turns dataset profiles into narrative analysis using
// the Gemini API.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/reportpilot/reportpilot/internal/dataset"
)

// ErrEmptyResponse is returned when the model answers with no usable
// text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ErrInsightUnavailable is returned when the model cannot produce an
// analysis: a permanent API error, or retries exhausted on transient
// ones.
var ErrInsightUnavailable = errors.New("analysis unavailable")

// Config holds Gemini connection and generation settings.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	RetryAttempts   int
	RetryBaseDelay  time.Duration
}

// Request describes one analysis to generate.
type Request struct {
	ReportName string
	Language   string
	Profile    *dataset.Profile
}

// Generator produces analysis text for report runs.
type Generator struct {
	client *genai.Client
	config Config
	logger *slog.Logger
}

// NewGenerator creates a Gemini-backed analysis generator.
func NewGenerator(ctx context.Context, config Config, logger *slog.Logger) (*Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Generator{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Generate runs the analysis prompt and returns the narrative text.
// Rate limits, transient unavailability, and empty responses are
// retried with exponential backoff; other API errors fail immediately
// with ErrInsightUnavailable.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if req.Profile == nil {
		return "", errors.New("missing dataset profile")
	}

	prompt := buildPrompt(req.ReportName, req.Language, req.Profile)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](g.config.Temperature),
		MaxOutputTokens:   g.config.MaxOutputTokens,
	}

	delay := g.config.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= g.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			g.logger.Warn("Retrying analysis generation",
				slog.String("model", g.config.Model),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), genCfg)
		if err != nil {
			if !retryable(err) {
				return "", fmt.Errorf("%w: %v", ErrInsightUnavailable, err)
			}
			lastErr = err
			continue
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			lastErr = ErrEmptyResponse
			continue
		}

		g.logger.Info("Generated analysis",
			slog.String("model", g.config.Model),
			slog.String("language", req.Language),
			slog.Int("chars", len(text)),
		)
		return text, nil
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrInsightUnavailable, g.config.RetryAttempts, lastErr)
}

// retryable reports whether the model error is worth another attempt.
// Rate limits and transient unavailability retry; everything else is
// permanent.
func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code == 503
	}
	return false
}
