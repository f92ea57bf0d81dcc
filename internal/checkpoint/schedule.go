package checkpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

type Schedule struct {
	Kind     string        `json:"kind"`                // "cron" or "interval"
	CronExpr string        `json:"cron_expr,omitempty"` // if kind=cron
	Interval time.Duration `json:"interval,omitempty"`  // if kind=interval
}

// ParseSchedule accepts a cron expression ("*/5 * * * *") or a Go duration
// ("30s", "5m").
func ParseSchedule(raw string) (*Schedule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", raw)
		}
		return &Schedule{Kind: "interval", Interval: d}, nil
	}
	if !gronx.New().IsValid(raw) {
		return nil, fmt.Errorf("invalid schedule: not a duration or cron expression: %s", raw)
	}
	return &Schedule{Kind: "cron", CronExpr: raw}, nil
}

// Next returns the first due time strictly after ref.
func (s *Schedule) Next(ref time.Time) (time.Time, error) {
	switch s.Kind {
	case "cron":
		return gronx.NextTickAfter(s.CronExpr, ref, false)
	case "interval":
		return ref.Add(s.Interval), nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
}

// String returns a human-readable description.
func (s *Schedule) String() string {
	switch s.Kind {
	case "cron":
		if strings.HasPrefix(s.CronExpr, "@") {
			return s.CronExpr
		}
		return "cron " + s.CronExpr
	case "interval":
		d := s.Interval
		switch {
		case d%time.Hour == 0:
			if d == time.Hour {
				return "Every hour"
			}
			return fmt.Sprintf("Every %d hours", int(d.Hours()))
		case d%time.Minute == 0:
			if d == time.Minute {
				return "Every minute"
			}
			return fmt.Sprintf("Every %d minutes", int(d.Minutes()))
		default:
			return "Every " + d.String()
		}
	default:
		return s.Kind
	}
}
