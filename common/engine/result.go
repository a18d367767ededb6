package engine

import (
	"time"

	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
)

// Result is a node handler's outcome envelope. Handlers never return Go
// errors for business failures; they fold them into the envelope so the
// traversal keeps going.
type Result map[string]any

func successResult(message string) Result {
	return Result{"status": "success", "message": message}
}

func errorResult(message string) Result {
	return Result{"status": "error", "message": message}
}

// fromResponse lifts a gateway envelope into a node result
func fromResponse(resp gateway.Response) Result {
	return Result(resp.AsMap())
}

// OK reports whether the envelope carries status success
func (r Result) OK() bool {
	s, _ := r["status"].(string)
	return s == "success"
}

// Message returns the envelope message, if any
func (r Result) Message() string {
	s, _ := r["message"].(string)
	return s
}

// Condition returns the boolean routing outcome and whether the node
// produced one. Only conditionals and gates set it.
func (r Result) Condition() (bool, bool) {
	v, ok := r["condition"]
	if !ok {
		return false, false
	}
	met, ok := v.(bool)
	return met, ok
}

// LogBuffer accumulates execution log entries and mirrors them to the
// structured logger.
type LogBuffer struct {
	entries []models.LogEntry
	log     *logger.Logger
	now     func() time.Time
}

// NewLogBuffer creates a buffer mirroring to the given logger
func NewLogBuffer(log *logger.Logger) *LogBuffer {
	return &LogBuffer{log: log, now: time.Now}
}

// Append records one timestamped entry
func (b *LogBuffer) Append(level, message string) {
	b.entries = append(b.entries, models.LogEntry{
		Time:    b.now().UTC().Format(time.RFC3339),
		Level:   level,
		Message: message,
	})

	if b.log == nil {
		return
	}
	switch level {
	case "error":
		b.log.Error(message)
	case "warning":
		b.log.Warn(message)
	case "debug":
		b.log.Debug(message)
	default:
		b.log.Info(message)
	}
}

// Entries returns the accumulated log
func (b *LogBuffer) Entries() []models.LogEntry {
	return b.entries
}
