package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantErr   bool
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name: "json format with debug level",
			config: &Config{
				Level:        "debug",
				Format:       "json",
				Output:       "stdout",
				EnableSource: false,
				TimeFormat:   time.RFC3339,
			},
			wantErr: false,
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("fetching sheet", slog.String("spreadsheet_id", "1abc"))

				var logEntry map[string]interface{}
				err := json.Unmarshal(output.Bytes(), &logEntry)
				require.NoError(t, err)

				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "fetching sheet", logEntry["msg"])
				assert.Equal(t, "1abc", logEntry["spreadsheet_id"])
				assert.Contains(t, logEntry, "time")
			},
		},
		{
			name: "info level suppresses debug",
			config: &Config{
				Level:        "info",
				Format:       "json",
				Output:       "stdout",
				EnableSource: false,
				TimeFormat:   time.RFC3339,
			},
			wantErr: false,
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("debug message")
				logger.Info("report sent", slog.String("recipient", "ops@example.com"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				// Debug should not be logged
				assert.Len(t, lines, 1)

				var logEntry map[string]interface{}
				err := json.Unmarshal([]byte(lines[0]), &logEntry)
				require.NoError(t, err)

				assert.Equal(t, "INFO", logEntry["level"])
				assert.Equal(t, "report sent", logEntry["msg"])
				assert.Equal(t, "ops@example.com", logEntry["recipient"])
			},
		},
		{
			name: "error level suppresses warn",
			config: &Config{
				Level:        "error",
				Format:       "json",
				Output:       "stdout",
				EnableSource: false,
				TimeFormat:   time.RFC3339,
			},
			wantErr: false,
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Warn("retrying fetch")
				logger.Error("run failed", slog.String("run_id", "r-1"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				// Warn should not be logged
				assert.Len(t, lines, 1)

				var logEntry map[string]interface{}
				err := json.Unmarshal([]byte(lines[0]), &logEntry)
				require.NoError(t, err)

				assert.Equal(t, "ERROR", logEntry["level"])
				assert.Equal(t, "run failed", logEntry["msg"])
				assert.Equal(t, "r-1", logEntry["run_id"])
			},
		},
		{
			name: "console format with colors",
			config: &Config{
				Level:        "info",
				Format:       "console",
				Output:       "stdout",
				EnableSource: false,
				TimeFormat:   time.RFC3339,
			},
			wantErr: false,
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("console test")

				// Console format should contain the message (tint uses "INF" not "INFO")
				logOutput := output.String()
				assert.Contains(t, logOutput, "INF")
				assert.Contains(t, logOutput, "console test")
			},
		},
		{
			name: "with source location enabled",
			config: &Config{
				Level:        "info",
				Format:       "json",
				Output:       "stdout",
				EnableSource: true,
				TimeFormat:   time.RFC3339,
			},
			wantErr: false,
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				var logEntry map[string]interface{}
				err := json.Unmarshal(output.Bytes(), &logEntry)
				require.NoError(t, err)

				assert.Contains(t, logEntry, "source")
				source := logEntry["source"].(map[string]interface{})
				assert.Contains(t, source, "function")
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Capture output
			output := &bytes.Buffer{}

			// Override output for testing
			cfg := *tt.config
			cfg.writer = output

			logger, err := New(&cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
			} else {
				require.NoError(t, err)
				require.NotNil(t, logger)

				if tt.checkFunc != nil {
					tt.checkFunc(t, logger, output)
				}
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportpilot.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("schedule fired", slog.String("schedule_id", "s-42"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &logEntry))
	assert.Equal(t, "schedule fired", logEntry["msg"])
	assert.Equal(t, "s-42", logEntry["schedule_id"])
}

func TestNew_FileOutputBadPath(t *testing.T) {
	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "sub", "dir.log"),
	})
	require.Error(t, err)
	assert.Nil(t, logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{
			name:     "debug level",
			level:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info level",
			level:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn level",
			level:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "warning alias",
			level:    "warning",
			expected: slog.LevelWarn,
		},
		{
			name:     "error level",
			level:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "uppercase is not recognized",
			level:    "DEBUG",
			expected: slog.LevelInfo, // parseLevel is case-sensitive, defaults to info
		},
		{
			name:     "invalid level defaults to info",
			level:    "invalid",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty string defaults to info",
			level:    "",
			expected: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.level)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLogger_WithGroup(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	groupLogger := logger.WithGroup("pipeline")
	require.NotNil(t, groupLogger)

	groupLogger.Info("charts rendered", slog.Int("count", 3))

	var logEntry map[string]interface{}
	err = json.Unmarshal(output.Bytes(), &logEntry)
	require.NoError(t, err)

	// Check that the group exists
	assert.Contains(t, logEntry, "pipeline")
	group := logEntry["pipeline"].(map[string]interface{})
	assert.Equal(t, float64(3), group["count"])
}

func TestLogger_With(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	contextLogger := logger.With(
		slog.String("service", "report-api"),
		slog.Int("workers", 4),
	)
	require.NotNil(t, contextLogger)

	contextLogger.Info("startup complete")

	var logEntry map[string]interface{}
	err = json.Unmarshal(output.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "report-api", logEntry["service"])
	assert.Equal(t, float64(4), logEntry["workers"]) // JSON numbers are float64
	assert.Equal(t, "startup complete", logEntry["msg"])
}
