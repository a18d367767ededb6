package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Context carries user variables and condition results for one execution.
// It is not safe for concurrent use; traversal is sequential by design.
type Context struct {
	variables        map[string]any
	conditionResults map[string]bool

	// now is swappable so time builtins are testable
	now func() time.Time
}

// NewContext creates an empty execution context
func NewContext() *Context {
	return &Context{
		variables:        make(map[string]any),
		conditionResults: make(map[string]bool),
		now:              time.Now,
	}
}

// SetVariable stores a variable
func (c *Context) SetVariable(name string, value any) {
	c.variables[name] = value
}

// GetVariable returns a variable and whether it exists
func (c *Context) GetVariable(name string) (any, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// SetConditionResult memoizes a conditional node's outcome so downstream
// gates can combine it
func (c *Context) SetConditionResult(nodeID string, met bool) {
	c.conditionResults[nodeID] = met
}

// ConditionResult returns a memoized condition outcome
func (c *Context) ConditionResult(nodeID string) (bool, bool) {
	v, ok := c.conditionResults[nodeID]
	return v, ok
}

// builtin resolves built-in time placeholders
func (c *Context) builtin(name string) (string, bool) {
	now := c.now()
	switch name {
	case "timestamp":
		return now.Format("2006-01-02 15:04:05"), true
	case "iso_timestamp":
		return now.Format(time.RFC3339), true
	case "date":
		return now.Format("2006-01-02"), true
	case "time":
		return now.Format("15:04:05"), true
	case "year":
		return now.Format("2006"), true
	case "month":
		return now.Format("01"), true
	case "day":
		return now.Format("02"), true
	case "hour":
		return now.Format("15"), true
	case "minute":
		return now.Format("04"), true
	case "second":
		return now.Format("05"), true
	case "weekday":
		return now.Weekday().String(), true
	}
	return "", false
}

// Interpolate replaces every {{ path }} placeholder. Resolution order:
// builtins, exact variable name, dotted-path descent through nested maps.
// Unknown placeholders stay literal so partially-filled templates remain
// inspectable instead of failing the node.
func (c *Context) Interpolate(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		if path == "" {
			return match
		}

		if v, ok := c.builtin(path); ok {
			return v
		}

		if v, ok := c.variables[path]; ok && v != nil {
			return Stringify(v)
		}

		if v, ok := c.resolvePath(path); ok {
			return Stringify(v)
		}

		return match
	})
}

// resolvePath descends dotted paths through nested maps
func (c *Context) resolvePath(path string) (any, bool) {
	parts := strings.Split(path, ".")

	var current any = c.variables
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a variable value for interpolation. Floats render
// minimally (600 not 600.000000), composites render as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// toFloat coerces common JSON-decoded shapes to float64
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// StringField fetches a string from node data, interpolating placeholders.
// Missing or empty values return the default.
func (c *Context) StringField(data map[string]any, key, def string) string {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def
	}

	s, ok := raw.(string)
	if !ok {
		s = Stringify(raw)
	}
	s = strings.TrimSpace(c.Interpolate(s))
	if s == "" {
		return def
	}
	return s
}

// IntField fetches an integer, interpolating then coercing. Coercion
// failure returns the default.
func (c *Context) IntField(data map[string]any, key string, def int) int {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def
	}

	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		s := strings.TrimSpace(c.Interpolate(v))
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
	}
	return def
}

// FloatField fetches a float, interpolating then coercing. Coercion
// failure returns the default.
func (c *Context) FloatField(data map[string]any, key string, def float64) float64 {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def
	}

	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c.Interpolate(v)), 64); err == nil {
			return f
		}
	}
	return def
}
