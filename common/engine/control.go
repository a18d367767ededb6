package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func (r *Runner) delay(ctx context.Context, data map[string]any) Result {
	var wait time.Duration
	if _, ok := data["delay"]; ok {
		// legacy shape: milliseconds
		wait = time.Duration(r.ctx.IntField(data, "delay", 1000)) * time.Millisecond
	} else {
		value := r.ctx.IntField(data, "duration", 1)
		switch r.ctx.StringField(data, "unit", "seconds") {
		case "minutes":
			wait = time.Duration(value) * time.Minute
		case "hours":
			wait = time.Duration(value) * time.Hour
		default:
			wait = time.Duration(value) * time.Second
		}
	}
	if wait < 0 {
		wait = 0
	}

	r.logs.Append("info", fmt.Sprintf("Waiting %s", wait))
	if err := r.sleep(ctx, wait); err != nil {
		return errorResult("delay cancelled: " + err.Error())
	}
	return successResult(fmt.Sprintf("waited %s", wait))
}

// waitUntil blocks until a wall-clock time today, polling once a second so
// the deadline tracks clock adjustments. A target already in the past
// passes through immediately.
func (r *Runner) waitUntil(ctx context.Context, data map[string]any) Result {
	hour, minute, second := ParseClock(r.ctx.StringField(data, "time", ""), 9, 15, 0)
	target := ClockToday(r.now(), hour, minute, second)

	if !r.now().Before(target) {
		return Result{
			"status":  "success",
			"waited":  false,
			"message": "target time already passed",
		}
	}

	r.logs.Append("info", "Waiting until "+target.Format("15:04:05"))
	for r.now().Before(target) {
		interval := time.Second
		if remaining := target.Sub(r.now()); remaining < interval {
			interval = remaining
		}
		if err := r.sleep(ctx, interval); err != nil {
			return errorResult("wait cancelled: " + err.Error())
		}
	}

	return Result{
		"status":  "success",
		"waited":  true,
		"message": "waited until " + target.Format("15:04:05"),
	}
}

func (r *Runner) mathExpression(data map[string]any) Result {
	expression := r.ctx.StringField(data, "expression", "")
	if expression == "" {
		return errorResult("math expression is empty")
	}
	name := r.ctx.StringField(data, "outputVariable", "result")

	value, err := EvalExpression(r.ctx, expression)
	if err != nil {
		r.logs.Append("error", "Expression failed: "+err.Error())
		return errorResult(err.Error())
	}

	r.ctx.SetVariable(name, value)
	r.logs.Append("info", fmt.Sprintf("Evaluated %s = %s", expression, Stringify(value)))
	return Result{"status": "success", "result": value, "variable": name}
}

func (r *Runner) variable(data map[string]any) Result {
	operation := r.ctx.StringField(data, "operation", "set")

	switch operation {
	case "set":
		return r.variableSet(data)
	case "get":
		return r.variableGet(data)
	case "add", "subtract", "multiply", "divide", "increment", "decrement":
		return r.variableArithmetic(data, operation)
	case "append":
		return r.variableAppend(data)
	case "parse_json":
		return r.variableParseJSON(data)
	case "stringify":
		return r.variableStringify(data)
	}
	return errorResult("unknown variable operation: " + operation)
}

func (r *Runner) variableSet(data map[string]any) Result {
	name := r.ctx.StringField(data, "name", "")
	if name == "" {
		return errorResult("variable requires a name")
	}

	var value any
	if s, ok := data["value"].(string); ok {
		resolved := r.ctx.Interpolate(s)
		value = resolved
		trimmed := strings.TrimSpace(resolved)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				value = parsed
			}
		}
	} else {
		value = data["value"]
	}

	r.ctx.SetVariable(name, value)
	r.logs.Append("info", "Set variable "+name)
	return Result{"status": "success", "variable": name, "value": value}
}

func (r *Runner) variableGet(data map[string]any) Result {
	source := r.ctx.StringField(data, "sourceVariable", "")
	if source == "" {
		return errorResult("variable get requires a source variable")
	}

	value, ok := r.ctx.GetVariable(source)
	if !ok {
		return errorResult("variable not found: " + source)
	}
	if name := r.ctx.StringField(data, "name", ""); name != "" {
		r.ctx.SetVariable(name, value)
	}
	return Result{"status": "success", "variable": source, "value": value}
}

// variableArithmetic mutates a numeric variable in place. Failures leave
// the variable untouched.
func (r *Runner) variableArithmetic(data map[string]any, operation string) Result {
	name := r.ctx.StringField(data, "name", "")
	if name == "" {
		return errorResult("variable requires a name")
	}
	current, ok := r.ctx.GetVariable(name)
	if !ok {
		return errorResult("variable not found: " + name)
	}
	base, ok := toFloat(current)
	if !ok {
		return errorResult("variable is not numeric: " + name)
	}

	operandDefault := 0.0
	if operation == "increment" || operation == "decrement" {
		operandDefault = 1
	}
	operand := r.ctx.FloatField(data, "value", operandDefault)

	var value float64
	switch operation {
	case "add", "increment":
		value = base + operand
	case "subtract", "decrement":
		value = base - operand
	case "multiply":
		value = base * operand
	case "divide":
		if operand == 0 {
			return errorResult("division by zero")
		}
		value = base / operand
	}

	r.ctx.SetVariable(name, value)
	r.logs.Append("info", fmt.Sprintf("Variable %s %s -> %s", name, operation, Stringify(value)))
	return Result{"status": "success", "variable": name, "value": value}
}

func (r *Runner) variableAppend(data map[string]any) Result {
	name := r.ctx.StringField(data, "name", "")
	if name == "" {
		return errorResult("variable requires a name")
	}
	current, ok := r.ctx.GetVariable(name)
	if !ok {
		return errorResult("variable not found: " + name)
	}

	value := Stringify(current) + r.ctx.StringField(data, "value", "")
	r.ctx.SetVariable(name, value)
	return Result{"status": "success", "variable": name, "value": value}
}

func (r *Runner) variableParseJSON(data map[string]any) Result {
	name := r.ctx.StringField(data, "name", "")
	if name == "" {
		return errorResult("variable requires a name")
	}
	current, ok := r.ctx.GetVariable(name)
	if !ok {
		return errorResult("variable not found: " + name)
	}
	text, ok := current.(string)
	if !ok {
		return errorResult("variable is not a string: " + name)
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return errorResult("failed to parse JSON: " + err.Error())
	}
	r.ctx.SetVariable(name, parsed)
	return Result{"status": "success", "variable": name, "value": parsed}
}

func (r *Runner) variableStringify(data map[string]any) Result {
	name := r.ctx.StringField(data, "name", "")
	if name == "" {
		return errorResult("variable requires a name")
	}
	current, ok := r.ctx.GetVariable(name)
	if !ok {
		return errorResult("variable not found: " + name)
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return errorResult("failed to stringify variable: " + err.Error())
	}
	value := string(encoded)
	r.ctx.SetVariable(name, value)
	return Result{"status": "success", "variable": name, "value": value}
}
