package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency types accepted by schedules.
const (
	FrequencyInterval = "interval"
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyCron     = "cron"
)

var weekdayNames = map[string]struct{}{
	"mon": {}, "tue": {}, "wed": {}, "thu": {}, "fri": {}, "sat": {}, "sun": {},
}

// Frequency describes when a schedule fires. Exactly one shape is
// meaningful per Type: Minutes for interval, Hour/Minute for daily,
// Weekday/Hour/Minute for weekly, Expression for cron.
type Frequency struct {
	Type       string `json:"type"`
	Minutes    int    `json:"minutes,omitempty"`
	Hour       int    `json:"hour"`
	Minute     int    `json:"minute"`
	Weekday    string `json:"weekday,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// CronSpec renders the frequency as a spec understood by the standard
// cron parser. Fixed intervals use the @every descriptor.
func (f Frequency) CronSpec() (string, error) {
	switch f.Type {
	case FrequencyInterval:
		if f.Minutes <= 0 {
			return "", fmt.Errorf("%w: interval minutes must be positive", ErrInvalidFrequency)
		}
		return fmt.Sprintf("@every %dm", f.Minutes), nil
	case FrequencyDaily:
		if err := checkClock(f.Hour, f.Minute); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", f.Minute, f.Hour), nil
	case FrequencyWeekly:
		day := strings.ToLower(strings.TrimSpace(f.Weekday))
		if _, ok := weekdayNames[day]; !ok {
			return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidFrequency, f.Weekday)
		}
		if err := checkClock(f.Hour, f.Minute); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * %s", f.Minute, f.Hour, day), nil
	case FrequencyCron:
		if strings.TrimSpace(f.Expression) == "" {
			return "", fmt.Errorf("%w: empty cron expression", ErrInvalidFrequency)
		}
		return f.Expression, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidFrequency, f.Type)
	}
}

func checkClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidFrequency, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidFrequency, minute)
	}
	return nil
}

// Validate checks the frequency shape, including cron expressions.
func (f Frequency) Validate() error {
	spec, err := f.CronSpec()
	if err != nil {
		return err
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, err)
	}
	return nil
}

// NextRun returns the first occurrence strictly after from, in from's
// location.
func (f Frequency) NextRun(from time.Time) (time.Time, error) {
	spec, err := f.CronSpec()
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, err)
	}
	return sched.Next(from), nil
}

// Describe renders a short human label for listings and email footers.
func (f Frequency) Describe() string {
	switch f.Type {
	case FrequencyInterval:
		switch f.Minutes {
		case 1:
			return "Every minute"
		case 60:
			return "Hourly"
		default:
			return fmt.Sprintf("Every %d minutes", f.Minutes)
		}
	case FrequencyDaily:
		return fmt.Sprintf("Daily at %02d:%02d", f.Hour, f.Minute)
	case FrequencyWeekly:
		day := strings.ToLower(strings.TrimSpace(f.Weekday))
		if len(day) >= 3 {
			day = strings.ToUpper(day[:1]) + day[1:3]
		}
		return fmt.Sprintf("Weekly on %s at %02d:%02d", day, f.Hour, f.Minute)
	case FrequencyCron:
		return "Cron " + f.Expression
	default:
		return f.Type
	}
}

// Schedule is a recurring report definition. NextRunAt is maintained by
// the scheduler. Snapshot holds the dataset captured at creation time
// when AutoRefresh is off, so every delivery reports the same data.
type Schedule struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SheetRef       string     `json:"sheet_ref"`
	Worksheet      string     `json:"worksheet,omitempty"`
	Recipient      string     `json:"recipient"`
	Language       string     `json:"language"`
	Frequency      Frequency  `json:"frequency"`
	IncludeCharts  bool       `json:"include_charts"`
	IncludeRawData bool       `json:"include_raw_data"`
	AutoRefresh    bool       `json:"auto_refresh"`
	Paused         bool       `json:"paused"`
	Snapshot       []byte     `json:"snapshot,omitempty"`
	NextRunAt      time.Time  `json:"next_run_at"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
