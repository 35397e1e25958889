package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequency_CronSpec(t *testing.T) {
	tests := []struct {
		name     string
		freq     Frequency
		expected string
		wantErr  bool
	}{
		{
			name:     "interval 15 minutes",
			freq:     Frequency{Type: FrequencyInterval, Minutes: 15},
			expected: "@every 15m",
		},
		{
			name:     "hourly interval",
			freq:     Frequency{Type: FrequencyInterval, Minutes: 60},
			expected: "@every 60m",
		},
		{
			name:     "daily at 09:30",
			freq:     Frequency{Type: FrequencyDaily, Hour: 9, Minute: 30},
			expected: "30 9 * * *",
		},
		{
			name:     "daily at midnight",
			freq:     Frequency{Type: FrequencyDaily},
			expected: "0 0 * * *",
		},
		{
			name:     "weekly on monday",
			freq:     Frequency{Type: FrequencyWeekly, Weekday: "mon", Hour: 9, Minute: 30},
			expected: "30 9 * * mon",
		},
		{
			name:     "weekly accepts mixed case weekday",
			freq:     Frequency{Type: FrequencyWeekly, Weekday: " Fri ", Hour: 17, Minute: 0},
			expected: "0 17 * * fri",
		},
		{
			name:     "cron passthrough",
			freq:     Frequency{Type: FrequencyCron, Expression: "*/5 * * * *"},
			expected: "*/5 * * * *",
		},
		{
			name:    "interval with zero minutes",
			freq:    Frequency{Type: FrequencyInterval},
			wantErr: true,
		},
		{
			name:    "daily hour out of range",
			freq:    Frequency{Type: FrequencyDaily, Hour: 24},
			wantErr: true,
		},
		{
			name:    "daily minute out of range",
			freq:    Frequency{Type: FrequencyDaily, Hour: 9, Minute: 60},
			wantErr: true,
		},
		{
			name:    "weekly unknown day",
			freq:    Frequency{Type: FrequencyWeekly, Weekday: "monday", Hour: 9},
			wantErr: true,
		},
		{
			name:    "empty cron expression",
			freq:    Frequency{Type: FrequencyCron, Expression: "   "},
			wantErr: true,
		},
		{
			name:    "unknown type",
			freq:    Frequency{Type: "fortnightly"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := tt.freq.CronSpec()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFrequency)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}

func TestFrequency_Validate(t *testing.T) {
	valid := Frequency{Type: FrequencyWeekly, Weekday: "sun", Hour: 6, Minute: 15}
	assert.NoError(t, valid.Validate())

	malformed := Frequency{Type: FrequencyCron, Expression: "61 * * * *"}
	err := malformed.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestFrequency_NextRun(t *testing.T) {
	// 2026-03-02 is a Monday.
	from := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		freq     Frequency
		expected time.Time
	}{
		{
			name:     "interval advances by its period",
			freq:     Frequency{Type: FrequencyInterval, Minutes: 15},
			expected: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		},
		{
			name:     "daily rolls to tomorrow when time has passed",
			freq:     Frequency{Type: FrequencyDaily, Hour: 9, Minute: 30},
			expected: time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "daily later today",
			freq:     Frequency{Type: FrequencyDaily, Hour: 18, Minute: 0},
			expected: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly waits a full week when time has passed",
			freq:     Frequency{Type: FrequencyWeekly, Weekday: "mon", Hour: 9, Minute: 30},
			expected: time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "weekly later this week",
			freq:     Frequency{Type: FrequencyWeekly, Weekday: "wed", Hour: 8, Minute: 0},
			expected: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.freq.NextRun(from)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestFrequency_Describe(t *testing.T) {
	tests := []struct {
		freq     Frequency
		expected string
	}{
		{Frequency{Type: FrequencyInterval, Minutes: 1}, "Every minute"},
		{Frequency{Type: FrequencyInterval, Minutes: 30}, "Every 30 minutes"},
		{Frequency{Type: FrequencyInterval, Minutes: 60}, "Hourly"},
		{Frequency{Type: FrequencyDaily, Hour: 9, Minute: 5}, "Daily at 09:05"},
		{Frequency{Type: FrequencyWeekly, Weekday: "tue", Hour: 14, Minute: 30}, "Weekly on Tue at 14:30"},
		{Frequency{Type: FrequencyCron, Expression: "0 8 * * 1-5"}, "Cron 0 8 * * 1-5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.freq.Describe())
	}
}

func TestRun_Terminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		RunStatusPending:   false,
		RunStatusRunning:   false,
		RunStatusCompleted: true,
		RunStatusFailed:    true,
		RunStatusCanceled:  true,
	} {
		r := &Run{Status: status}
		assert.Equal(t, terminal, r.Terminal(), "status %s", status)
	}
}
