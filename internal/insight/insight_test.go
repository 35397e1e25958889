package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGenerator_RequiresAPIKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewGenerator(context.Background(), Config{}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing gemini api key")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", genai.APIError{Code: 429}, true},
		{"unavailable", genai.APIError{Code: 503}, true},
		{"wrapped rate limit", fmt.Errorf("generate: %w", genai.APIError{Code: 429}), true},
		{"bad request", genai.APIError{Code: 400}, false},
		{"unauthorized", genai.APIError{Code: 401}, false},
		{"plain", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
