package engine

import (
	"strconv"
	"strings"
	"time"
)

// ParseClock parses "HH:MM" or "HH:MM:SS" wall-clock strings. Fields that
// fail to parse keep their defaults and out-of-range fields are clamped,
// so a malformed schedule degrades to the default instead of erroring.
func ParseClock(value string, defHour, defMin, defSec int) (hour, minute, second int) {
	hour, minute, second = defHour, defMin, defSec

	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 {
		return hour, minute, second
	}

	if v, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		hour = clampInt(v, 0, 23)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
		minute = clampInt(v, 0, 59)
	}
	if len(parts) >= 3 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil {
			second = clampInt(v, 0, 59)
		}
	}
	return hour, minute, second
}

// SecondsOfDay converts a wall-clock time to seconds since midnight
func SecondsOfDay(hour, minute, second int) int {
	return hour*3600 + minute*60 + second
}

// ClockToday anchors a wall-clock time to today's date in local time
func ClockToday(now time.Time, hour, minute, second int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
