package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/algoflow/algoflow/common/gateway"
)

func (r *Runner) getQuote(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	exchange := r.ctx.StringField(data, "exchange", gateway.DefaultExchange)
	if symbol == "" {
		return errorResult("quote requires a symbol")
	}

	resp := r.gw.Quote(ctx, symbol, exchange)
	if resp.OK() {
		if ltp, ok := toFloat(resp.DataMap()["ltp"]); ok {
			r.logs.Append("info", fmt.Sprintf("Quote %s: ltp=%s", symbol, Stringify(ltp)))
		}
	} else {
		r.logResult("Quote result", resp)
	}
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) multiQuotes(ctx context.Context, data map[string]any) Result {
	raw, _ := data["symbols"].([]any)
	refs := make([]gateway.SymbolRef, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref := gateway.SymbolRef{
			Symbol:   r.ctx.StringField(m, "symbol", ""),
			Exchange: r.ctx.StringField(m, "exchange", gateway.DefaultExchange),
		}
		if ref.Symbol != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return errorResult("multi quotes requires at least one symbol")
	}

	r.logs.Append("info", fmt.Sprintf("Fetching quotes for %d symbols", len(refs)))
	resp := r.gw.MultiQuote(ctx, refs)
	r.logResult("Multi quote result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) getDepth(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("depth requires a symbol")
	}

	resp := r.gw.Depth(ctx, symbol, r.ctx.StringField(data, "exchange", gateway.DefaultExchange))
	r.logResult("Depth result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) getOrderStatus(ctx context.Context, data map[string]any) Result {
	orderID := r.ctx.StringField(data, "orderId", "")
	if orderID == "" {
		return errorResult("order status requires an order id")
	}

	resp := r.gw.OrderStatus(ctx, orderID, r.ctx.StringField(data, "strategy", gateway.DefaultStrategy))
	r.logResult("Order status", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) openPosition(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("open position requires a symbol")
	}

	resp := r.gw.OpenPosition(ctx, symbol,
		r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		r.ctx.StringField(data, "product", gateway.DefaultProduct))
	r.logResult("Open position", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) history(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("history requires a symbol")
	}

	resp := r.gw.History(ctx, symbol,
		r.ctx.StringField(data, "exchange", gateway.DefaultExchange),
		r.ctx.StringField(data, "interval", "5m"),
		r.ctx.StringField(data, "startDate", ""),
		r.ctx.StringField(data, "endDate", ""))
	if resp.OK() {
		r.logs.Append("info", "History data received")
	} else {
		r.logResult("History result", resp)
	}
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

// expiry fetches the expiry list and, when the node names a selector,
// resolves it to a single date.
func (r *Runner) expiry(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "NIFTY")
	exchange := r.ctx.StringField(data, "exchange", "NFO")
	instrument := r.ctx.StringField(data, "instrumentType", "options")

	resp := r.gw.Expiry(ctx, symbol, exchange, instrument)
	r.logResult("Expiry result", resp)

	result := fromResponse(resp)
	if expiryType := r.ctx.StringField(data, "expiryType", ""); expiryType != "" && resp.OK() {
		if date, ok := resolveFromList(expiryDates(resp), expiryType, r.now()); ok {
			result["expiry_date"] = date
			r.logs.Append("info", fmt.Sprintf("Resolved expiry: %s -> %s", expiryType, date))
		}
	}
	r.storeOutput(data, map[string]any(result))
	return result
}

func (r *Runner) symbolInfo(ctx context.Context, data map[string]any) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	if symbol == "" {
		return errorResult("symbol lookup requires a symbol")
	}

	resp := r.gw.SymbolInfo(ctx, symbol, r.ctx.StringField(data, "exchange", gateway.DefaultExchange))
	r.logResult("Symbol result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) optionSymbol(ctx context.Context, data map[string]any) Result {
	underlying := r.ctx.StringField(data, "underlying", "NIFTY")
	_, foExchange := underlyingExchanges(underlying)
	expiryType := r.ctx.StringField(data, "expiryType", "current_week")

	expiryDate, ok := r.resolveExpiry(ctx, underlying, foExchange, expiryType)
	if !ok {
		return errorResult("could not resolve expiry for " + underlying)
	}

	resp := r.gw.OptionSymbol(ctx, underlying, foExchange, expiryDate,
		r.ctx.StringField(data, "offset", "ATM"),
		r.ctx.StringField(data, "optionType", "CE"))
	r.logResult("Option symbol result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) orderBook(ctx context.Context, data map[string]any) Result {
	resp := r.gw.OrderBook(ctx)
	r.logResult("Order book", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) tradeBook(ctx context.Context, data map[string]any) Result {
	resp := r.gw.TradeBook(ctx)
	r.logResult("Trade book", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) positionBook(ctx context.Context, data map[string]any) Result {
	resp := r.gw.PositionBook(ctx)
	r.logResult("Position book", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) syntheticFuture(ctx context.Context, data map[string]any) Result {
	underlying := r.ctx.StringField(data, "underlying", "NIFTY")
	_, foExchange := underlyingExchanges(underlying)

	expiryDate, ok := r.resolveExpiry(ctx, underlying, foExchange,
		r.ctx.StringField(data, "expiryType", "current_month"))
	if !ok {
		return errorResult("could not resolve expiry for " + underlying)
	}

	resp := r.gw.SyntheticFuture(ctx, underlying, foExchange, expiryDate)
	r.logResult("Synthetic future", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) optionChain(ctx context.Context, data map[string]any) Result {
	underlying := r.ctx.StringField(data, "underlying", "NIFTY")
	_, foExchange := underlyingExchanges(underlying)

	expiryDate, ok := r.resolveExpiry(ctx, underlying, foExchange,
		r.ctx.StringField(data, "expiryType", "current_week"))
	if !ok {
		return errorResult("could not resolve expiry for " + underlying)
	}

	resp := r.gw.OptionChain(ctx, underlying, foExchange, expiryDate,
		r.ctx.IntField(data, "strikeCount", 10))
	r.logResult("Option chain", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) holidays(ctx context.Context, data map[string]any) Result {
	year := r.ctx.IntField(data, "year", r.now().Year())

	resp := r.gw.Holidays(ctx, year)
	r.logResult("Holidays for "+strconv.Itoa(year), resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) timings(ctx context.Context, data map[string]any) Result {
	date := r.ctx.StringField(data, "date", r.now().Format("2006-01-02"))

	resp := r.gw.Timings(ctx, date)
	r.logResult("Market timings", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) holdings(ctx context.Context, data map[string]any) Result {
	resp := r.gw.Holdings(ctx)
	r.logResult("Holdings", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) funds(ctx context.Context, data map[string]any) Result {
	resp := r.gw.Funds(ctx)
	r.logResult("Funds", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}

func (r *Runner) margin(ctx context.Context, data map[string]any) Result {
	p := r.orderParams(data)
	if p.Symbol == "" {
		return errorResult("margin requires a symbol")
	}

	resp := r.gw.Margin(ctx, p)
	r.logResult("Margin result", resp)
	r.storeOutput(data, resp.AsMap())
	return fromResponse(resp)
}
