package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
)

// subscribeTick registers a live subscription and blocks until the first
// matching tick arrives. If nothing arrives within the wait window the
// handler falls back to a REST snapshot tagged "fallback": true. The
// subscription itself stays registered so later nodes and executions keep
// receiving data.
func (r *Runner) subscribeTick(ctx context.Context, data map[string]any, mode string) Result {
	symbol := r.ctx.StringField(data, "symbol", "")
	exchange := r.ctx.StringField(data, "exchange", gateway.DefaultExchange)
	if symbol == "" {
		return errorResult("subscribe requires a symbol")
	}

	first := make(chan map[string]any, 1)
	var once sync.Once
	fn := func(tick map[string]any) {
		once.Do(func() { first <- tick })
	}

	r.logs.Append("info", fmt.Sprintf("Subscribing %s %s:%s", mode, exchange, symbol))
	if err := r.stream.Subscribe(ctx, mode, exchange, symbol, fn); err != nil {
		r.logs.Append("warning", "Stream subscribe failed: "+err.Error())
		return r.snapshotFallback(ctx, mode, symbol, exchange)
	}

	select {
	case tick := <-first:
		r.logs.Append("info", "Received live tick for "+symbol)
		result := Result{
			"status":   "success",
			"mode":     mode,
			"symbol":   symbol,
			"exchange": exchange,
			"data":     tick,
		}
		r.storeOutput(data, map[string]any(result))
		return result

	case <-time.After(r.streamWait):
		r.logs.Append("warning", fmt.Sprintf("No tick for %s within %s, using snapshot", symbol, r.streamWait))
		result := r.snapshotFallback(ctx, mode, symbol, exchange)
		r.storeOutput(data, map[string]any(result))
		return result

	case <-ctx.Done():
		return errorResult("subscribe cancelled: " + ctx.Err().Error())
	}
}

// snapshotFallback fetches a REST quote or depth snapshot in place of a
// live tick.
func (r *Runner) snapshotFallback(ctx context.Context, mode, symbol, exchange string) Result {
	var resp gateway.Response
	if mode == gateway.ModeDepth {
		resp = r.gw.Depth(ctx, symbol, exchange)
	} else {
		resp = r.gw.Quote(ctx, symbol, exchange)
	}

	result := fromResponse(resp)
	result["fallback"] = true
	result["mode"] = mode
	result["symbol"] = symbol
	result["exchange"] = exchange
	return result
}

func (r *Runner) unsubscribe(ctx context.Context, data map[string]any) Result {
	mode := r.ctx.StringField(data, "mode", "all")
	symbol := r.ctx.StringField(data, "symbol", "")

	if mode == "all" || symbol == "" {
		r.stream.UnsubscribeAll(ctx)
		r.logs.Append("info", "Unsubscribed from all streams")
		return successResult("unsubscribed from all streams")
	}

	exchange := r.ctx.StringField(data, "exchange", gateway.DefaultExchange)
	if err := r.stream.Unsubscribe(ctx, mode, exchange, symbol); err != nil {
		return errorResult("unsubscribe failed: " + err.Error())
	}
	r.logs.Append("info", fmt.Sprintf("Unsubscribed %s %s:%s", mode, exchange, symbol))
	return successResult("unsubscribed " + symbol)
}
