package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/algoflow/algoflow/common/engine"
	"github.com/algoflow/algoflow/common/models"
)

// Schedule types accepted on a start node
const (
	TypeDaily    = "daily"
	TypeWeekly   = "weekly"
	TypeInterval = "interval"
	TypeOnce     = "once"
)

// Spec is a parsed schedule from a workflow's start node
type Spec struct {
	Type   string
	Hour   int
	Minute int

	// Days holds cron day-of-week abbreviations for weekly schedules
	Days []string
	// Every is the interval schedule period
	Every time.Duration
	// RunAt is the one-shot fire time
	RunAt time.Time
}

var cronDays = map[string]string{
	"sunday":    "SUN",
	"monday":    "MON",
	"tuesday":   "TUE",
	"wednesday": "WED",
	"thursday":  "THU",
	"friday":    "FRI",
	"saturday":  "SAT",
	"sun":       "SUN",
	"mon":       "MON",
	"tue":       "TUE",
	"wed":       "WED",
	"thu":       "THU",
	"fri":       "FRI",
	"sat":       "SAT",
}

var onceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseSpec reads the schedule off a workflow's start node. Malformed
// times degrade to 09:15; structural problems (no start node, unknown
// type, empty weekly days, one-shot time in the past) are errors because
// activation must surface them to the user.
func ParseSpec(wf *models.Workflow, loc *time.Location, now time.Time) (*Spec, error) {
	start, ok := wf.StartNode()
	if !ok {
		return nil, fmt.Errorf("workflow has no start node")
	}
	data := start.Data
	if data == nil {
		data = map[string]any{}
	}

	scheduleType, _ := data["scheduleType"].(string)
	if scheduleType == "" {
		scheduleType = TypeDaily
	}

	timeStr, _ := data["time"].(string)
	hour, minute, _ := engine.ParseClock(timeStr, 9, 15, 0)

	spec := &Spec{Type: scheduleType, Hour: hour, Minute: minute}

	switch scheduleType {
	case TypeDaily:
		return spec, nil

	case TypeWeekly:
		raw, _ := data["days"].([]any)
		for _, item := range raw {
			name, _ := item.(string)
			if abbr, ok := cronDays[strings.ToLower(strings.TrimSpace(name))]; ok {
				spec.Days = append(spec.Days, abbr)
			}
		}
		if len(spec.Days) == 0 {
			return nil, fmt.Errorf("weekly schedule has no valid days")
		}
		return spec, nil

	case TypeInterval:
		value := intValue(data["intervalValue"], 0)
		if value <= 0 {
			// older graphs store the value under "interval"
			value = intValue(data["interval"], 0)
		}
		if value <= 0 {
			return nil, fmt.Errorf("interval schedule requires a positive interval")
		}
		unit, _ := data["intervalUnit"].(string)
		switch unit {
		case "seconds":
			spec.Every = time.Duration(value) * time.Second
		case "hours":
			spec.Every = time.Duration(value) * time.Hour
		default:
			spec.Every = time.Duration(value) * time.Minute
		}
		return spec, nil

	case TypeOnce:
		raw, _ := data["executeAt"].(string)
		runAt, err := parseOnce(raw, loc)
		if err != nil {
			return nil, err
		}
		if !runAt.After(now) {
			return nil, fmt.Errorf("execute time %s is in the past", runAt.Format(time.RFC3339))
		}
		spec.RunAt = runAt
		return spec, nil
	}

	return nil, fmt.Errorf("unknown schedule type: %s", scheduleType)
}

// CronExpr renders the spec for the cron parser. Only daily, weekly and
// interval schedules have cron forms.
func (s *Spec) CronExpr() string {
	switch s.Type {
	case TypeWeekly:
		return fmt.Sprintf("%d %d * * %s", s.Minute, s.Hour, strings.Join(s.Days, ","))
	case TypeInterval:
		return "@every " + s.Every.String()
	default:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour)
	}
}

// parseOnce accepts the common datetime shapes the editor produces.
// Timestamps without a zone are taken in the scheduler's location.
func parseOnce(raw string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("once schedule requires an execute time")
	}
	for _, layout := range onceLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse execute time: %s", trimmed)
}

func intValue(raw any, def int) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n
		}
	}
	return def
}
