package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/algoflow/algoflow/common/gateway"
)

// compare applies a threshold operator. Unknown operators evaluate false.
func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt", ">":
		return value > threshold
	case "gte", ">=":
		return value >= threshold
	case "lt", "<":
		return value < threshold
	case "lte", "<=":
		return value <= threshold
	case "eq", "==":
		return value == threshold
	case "neq", "!=":
		return value != threshold
	}
	return false
}

func (r *Runner) positionCheck(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("position check requires a symbol")
	}

	resp := r.gw.OpenPosition(ctx, symbol,
		r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		r.ctx.StringField(data, "product", gateway.DefaultProduct))
	if !resp.OK() {
		r.logResult("Position check", resp)
		return fromResponse(resp)
	}

	// open position quantity rides on the envelope itself
	quantity, _ := toFloat(resp.AsMap()["quantity"])
	operator := r.ctx.StringField(data, "operator", "neq")
	threshold := r.ctx.FloatField(data, "threshold", 0)
	met := compare(quantity, operator, threshold)

	r.logs.Append("info", fmt.Sprintf("Position %s qty=%s %s %s -> %t",
		symbol, Stringify(quantity), operator, Stringify(threshold), met))
	return Result{"status": "success", "condition": met, "quantity": quantity}
}

func (r *Runner) fundCheck(ctx context.Context, data map[string]any) Result {
	resp := r.gw.Funds(ctx)
	if !resp.OK() {
		r.logResult("Fund check", resp)
		return fromResponse(resp)
	}

	available, _ := toFloat(resp.DataMap()["availablecash"])
	operator := r.ctx.StringField(data, "operator", "gte")
	threshold := r.ctx.FloatField(data, "threshold", 0)
	met := compare(available, operator, threshold)

	r.logs.Append("info", fmt.Sprintf("Funds available=%s %s %s -> %t",
		Stringify(available), operator, Stringify(threshold), met))
	return Result{"status": "success", "condition": met, "available": available}
}

func (r *Runner) priceCondition(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("price condition requires a symbol")
	}

	resp := r.gw.Quote(ctx, symbol, r.ctx.StringField(data, "exchange", gateway.DefaultExchange))
	if !resp.OK() {
		r.logResult("Price condition", resp)
		return fromResponse(resp)
	}

	ltp, _ := toFloat(resp.DataMap()["ltp"])
	operator := r.ctx.StringField(data, "operator", "gt")
	threshold := r.ctx.FloatField(data, "threshold", 0)
	met := compare(ltp, operator, threshold)

	r.logs.Append("info", fmt.Sprintf("Price %s ltp=%s %s %s -> %t",
		symbol, Stringify(ltp), operator, Stringify(threshold), met))
	return Result{"status": "success", "condition": met, "ltp": ltp}
}

// priceAlert evaluates richer price predicates: simple thresholds, a price
// channel, close-to-last crossings and percent moves from previous close.
func (r *Runner) priceAlert(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("price alert requires a symbol")
	}

	resp := r.gw.Quote(ctx, symbol, r.ctx.StringField(data, "exchange", gateway.DefaultExchange))
	if !resp.OK() {
		r.logResult("Price alert", resp)
		return fromResponse(resp)
	}

	quote := resp.DataMap()
	ltp, _ := toFloat(quote["ltp"])
	prevClose, _ := toFloat(quote["prev_close"])
	condition := r.ctx.StringField(data, "condition", "above")
	threshold := r.ctx.FloatField(data, "threshold", 0)

	var met bool
	switch condition {
	case "above":
		met = ltp > threshold
	case "below":
		met = ltp < threshold
	case "channel":
		lower := r.ctx.FloatField(data, "lowerBound", 0)
		upper := r.ctx.FloatField(data, "upperBound", 0)
		met = ltp >= lower && ltp <= upper
	case "crosses_above":
		met = prevClose <= threshold && ltp > threshold
	case "crosses_below":
		met = prevClose >= threshold && ltp < threshold
	case "percent_change":
		percent := r.ctx.FloatField(data, "changePercent", threshold)
		met = prevClose > 0 && math.Abs(ltp-prevClose)/prevClose*100 >= percent
	default:
		return errorResult("unknown price alert condition: " + condition)
	}

	r.logs.Append("info", fmt.Sprintf("Price alert %s %s ltp=%s -> %t",
		symbol, condition, Stringify(ltp), met))
	return Result{"status": "success", "condition": met, "ltp": ltp, "prev_close": prevClose}
}

// timeWindow checks whether the current wall-clock time falls inside an
// inclusive window.
func (r *Runner) timeWindow(data map[string]any) Result {
	sh, sm, ss := ParseClock(r.ctx.StringField(data, "startTime", ""), 9, 15, 0)
	eh, em, es := ParseClock(r.ctx.StringField(data, "endTime", ""), 15, 30, 0)

	now := r.now()
	nowSec := SecondsOfDay(now.Hour(), now.Minute(), now.Second())
	startSec := SecondsOfDay(sh, sm, ss)
	endSec := SecondsOfDay(eh, em, es)
	met := nowSec >= startSec && nowSec <= endSec

	r.logs.Append("info", fmt.Sprintf("Time window %02d:%02d-%02d:%02d now=%s -> %t",
		sh, sm, eh, em, now.Format("15:04:05"), met))
	return Result{"status": "success", "condition": met, "current_time": now.Format("15:04:05")}
}

func (r *Runner) timeCondition(data map[string]any) Result {
	th, tm, ts := ParseClock(r.ctx.StringField(data, "time", ""), 9, 15, 0)
	operator := r.ctx.StringField(data, "operator", ">=")

	now := r.now()
	nowSec := SecondsOfDay(now.Hour(), now.Minute(), now.Second())
	targetSec := SecondsOfDay(th, tm, ts)

	var met bool
	switch operator {
	case "==":
		met = nowSec == targetSec
	case ">=":
		met = nowSec >= targetSec
	case "<=":
		met = nowSec <= targetSec
	case ">":
		met = nowSec > targetSec
	case "<":
		met = nowSec < targetSec
	default:
		return errorResult("unknown time operator: " + operator)
	}

	target := fmt.Sprintf("%02d:%02d:%02d", th, tm, ts)
	r.logs.Append("info", fmt.Sprintf("Time condition now=%s %s %s -> %t",
		now.Format("15:04:05"), operator, target, met))
	return Result{
		"status":       "success",
		"condition":    met,
		"current_time": now.Format("15:04:05"),
		"target_time":  target,
	}
}
