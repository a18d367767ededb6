package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
)

// lotSizes maps index underlyings to contract lot sizes
var lotSizes = map[string]int{
	"NIFTY":      75,
	"BANKNIFTY":  30,
	"FINNIFTY":   65,
	"MIDCPNIFTY": 120,
	"NIFTYNXT50": 25,
	"SENSEX":     20,
	"BANKEX":     30,
	"SENSEX50":   25,
}

const defaultLotSize = 75

// lotSize returns the contract lot size for an index underlying
func lotSize(underlying string) int {
	if size, ok := lotSizes[strings.ToUpper(underlying)]; ok {
		return size
	}
	return defaultLotSize
}

// underlyingExchanges returns the index exchange and the derivatives
// exchange for an underlying. SENSEX-family indices trade on BSE.
func underlyingExchanges(underlying string) (indexExchange, foExchange string) {
	switch strings.ToUpper(underlying) {
	case "SENSEX", "BANKEX", "SENSEX50":
		return "BSE_INDEX", "BFO"
	}
	return "NSE_INDEX", "NFO"
}

var expiryLayouts = []string{"02-Jan-06", "02Jan06"}

// parseExpiry parses gateway expiry dates like "10-JUL-25" or "10JUL25".
// time.Parse matches month names case-insensitively.
func parseExpiry(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatExpiry renders a parsed expiry the way the gateway expects it,
// uppercase with no separators ("10JUL25").
func formatExpiry(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan06"))
}

// expiryDates pulls the date strings out of an expiry response
func expiryDates(resp gateway.Response) []string {
	items := resp.DataList()
	dates := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			dates = append(dates, v)
		case map[string]any:
			if s, ok := v["expiry"].(string); ok {
				dates = append(dates, s)
			} else if s, ok := v["date"].(string); ok {
				dates = append(dates, s)
			}
		}
	}
	return dates
}

// resolveFromList picks one expiry date from a gateway expiry list.
// Selectors: current_week (nearest), next_week (second nearest),
// current_month (last within this calendar month), next_month (last
// within the following month). Past dates are dropped first.
func resolveFromList(dates []string, expiryType string, now time.Time) (string, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	valid := make([]time.Time, 0, len(dates))
	for _, raw := range dates {
		t, ok := parseExpiry(raw)
		if !ok || t.Before(today) {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return "", false
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Before(valid[j]) })

	inMonth := func(year int, month time.Month) []time.Time {
		var out []time.Time
		for _, t := range valid {
			if t.Year() == year && t.Month() == month {
				out = append(out, t)
			}
		}
		return out
	}

	switch expiryType {
	case "next_week":
		if len(valid) > 1 {
			return formatExpiry(valid[1]), true
		}
		return formatExpiry(valid[0]), true

	case "current_month":
		if monthly := inMonth(today.Year(), today.Month()); len(monthly) > 0 {
			return formatExpiry(monthly[len(monthly)-1]), true
		}
		return formatExpiry(valid[0]), true

	case "next_month":
		next := today.AddDate(0, 1, 0)
		if monthly := inMonth(next.Year(), next.Month()); len(monthly) > 0 {
			return formatExpiry(monthly[len(monthly)-1]), true
		}
		return formatExpiry(valid[len(valid)-1]), true

	default: // current_week
		return formatExpiry(valid[0]), true
	}
}

// resolveExpiry fetches the expiry list for an underlying and resolves the
// selector against it.
func (r *Runner) resolveExpiry(ctx context.Context, underlying, foExchange, expiryType string) (string, bool) {
	resp := r.gw.Expiry(ctx, underlying, foExchange, "options")
	if !resp.OK() {
		r.logs.Append("error", "Expiry fetch failed: "+resp.Message)
		return "", false
	}

	dates := expiryDates(resp)
	for _, raw := range dates {
		if _, ok := parseExpiry(raw); !ok {
			r.logs.Append("warning", "Skipping unparseable expiry date: "+raw)
		}
	}

	date, ok := resolveFromList(dates, expiryType, r.now())
	if !ok {
		r.logs.Append("error", "No valid expiry dates for "+underlying)
		return "", false
	}
	r.logs.Append("info", fmt.Sprintf("Resolved expiry: %s -> %s", expiryType, date))
	return date, true
}

func (r *Runner) optionsOrder(ctx context.Context, data map[string]any) Result {
	underlying := strings.ToUpper(r.ctx.StringField(data, "underlying", "NIFTY"))
	action := strings.ToUpper(r.ctx.StringField(data, "action", "BUY"))
	optionType := strings.ToUpper(r.ctx.StringField(data, "optionType", "CE"))
	offset := strings.ToUpper(r.ctx.StringField(data, "offset", "ATM"))
	lots := r.ctx.IntField(data, "quantity", 1)
	quantity := lots * lotSize(underlying)
	_, foExchange := underlyingExchanges(underlying)

	r.logs.Append("info", fmt.Sprintf("Options order: %s %s %s %s lots=%d qty=%d",
		underlying, offset, optionType, action, lots, quantity))

	expiryDate, ok := r.resolveExpiry(ctx, underlying, foExchange,
		r.ctx.StringField(data, "expiryType", "current_week"))
	if !ok {
		return errorResult("could not resolve expiry for " + underlying)
	}

	resp := r.gw.OptionsOrder(ctx, gateway.OptionsOrderParams{
		Strategy:   r.ctx.StringField(data, "strategy", ""),
		Underlying: underlying,
		Exchange:   foExchange,
		ExpiryDate: expiryDate,
		Offset:     offset,
		OptionType: optionType,
		Action:     action,
		Quantity:   quantity,
		PriceType:  r.ctx.StringField(data, "priceType", gateway.DefaultPriceType),
		Product:    r.ctx.StringField(data, "product", gateway.DefaultOptionsProduct),
		SplitSize:  r.ctx.IntField(data, "splitSize", 0),
	})
	r.logResult("Options order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) optionsMultiOrder(ctx context.Context, data map[string]any) Result {
	underlying := strings.ToUpper(r.ctx.StringField(data, "underlying", "NIFTY"))
	strategy := strings.ToLower(r.ctx.StringField(data, "strategy", "straddle"))
	action := strings.ToUpper(r.ctx.StringField(data, "action", "SELL"))
	lots := r.ctx.IntField(data, "quantity", 1)
	quantity := lots * lotSize(underlying)
	_, foExchange := underlyingExchanges(underlying)

	legs := buildStrategyLegs(strategy, action, quantity)
	if legs == nil {
		return errorResult("unknown strategy: " + strategy)
	}
	r.logs.Append("info", fmt.Sprintf("Strategy %s %s on %s: %d legs qty=%d",
		strategy, action, underlying, len(legs), quantity))

	expiryDate, ok := r.resolveExpiry(ctx, underlying, foExchange,
		r.ctx.StringField(data, "expiryType", "current_week"))
	if !ok {
		return errorResult("could not resolve expiry for " + underlying)
	}

	resp := r.gw.OptionsMultiOrder(ctx, gateway.OptionsMultiOrderParams{
		Strategy:   strategy,
		Underlying: underlying,
		Exchange:   foExchange,
		ExpiryDate: expiryDate,
		Legs:       legs,
		PriceType:  r.ctx.StringField(data, "priceType", gateway.DefaultPriceType),
		Product:    r.ctx.StringField(data, "product", gateway.DefaultOptionsProduct),
	})
	r.logResult("Strategy order result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

// buildStrategyLegs expands a named options strategy into legs. action is
// the position direction: SELL straddles sell both legs, BUY straddles buy
// both, and the hedged strategies flip their hedge legs accordingly.
// Returns nil for unknown strategies.
func buildStrategyLegs(strategy, action string, quantity int) []gateway.OptionLeg {
	opposite := "SELL"
	if action == "SELL" {
		opposite = "BUY"
	}

	leg := func(offset, optionType, act string) gateway.OptionLeg {
		return gateway.OptionLeg{Offset: offset, OptionType: optionType, Action: act, Quantity: quantity}
	}

	switch strategy {
	case "straddle":
		return []gateway.OptionLeg{
			leg("ATM", "CE", action),
			leg("ATM", "PE", action),
		}
	case "strangle":
		return []gateway.OptionLeg{
			leg("OTM2", "CE", action),
			leg("OTM2", "PE", action),
		}
	case "iron_condor":
		return []gateway.OptionLeg{
			leg("OTM5", "CE", action),
			leg("OTM5", "PE", action),
			leg("OTM10", "CE", opposite),
			leg("OTM10", "PE", opposite),
		}
	case "iron_butterfly":
		return []gateway.OptionLeg{
			leg("ATM", "CE", action),
			leg("ATM", "PE", action),
			leg("OTM3", "CE", opposite),
			leg("OTM3", "PE", opposite),
		}
	case "bull_call_spread":
		return []gateway.OptionLeg{
			leg("ATM", "CE", "BUY"),
			leg("OTM3", "CE", "SELL"),
		}
	case "bear_put_spread":
		return []gateway.OptionLeg{
			leg("ATM", "PE", "BUY"),
			leg("OTM3", "PE", "SELL"),
		}
	case "bull_put_spread":
		return []gateway.OptionLeg{
			leg("ATM", "PE", "SELL"),
			leg("OTM3", "PE", "BUY"),
		}
	case "bear_call_spread":
		return []gateway.OptionLeg{
			leg("ATM", "CE", "SELL"),
			leg("OTM3", "CE", "BUY"),
		}
	}
	return nil
}
