package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/models"
)

// Gateway is the brokerage surface node handlers call. *gateway.Client
// satisfies it; tests substitute fakes.
type Gateway interface {
	PlaceOrder(ctx context.Context, p gateway.OrderParams) gateway.Response
	SmartOrder(ctx context.Context, p gateway.SmartOrderParams) gateway.Response
	OptionsOrder(ctx context.Context, p gateway.OptionsOrderParams) gateway.Response
	OptionsMultiOrder(ctx context.Context, p gateway.OptionsMultiOrderParams) gateway.Response
	BasketOrder(ctx context.Context, strategy string, orders []map[string]any) gateway.Response
	SplitOrder(ctx context.Context, p gateway.SplitOrderParams) gateway.Response
	ModifyOrder(ctx context.Context, p gateway.ModifyOrderParams) gateway.Response
	CancelOrder(ctx context.Context, orderID, strategy string) gateway.Response
	CancelAllOrders(ctx context.Context, strategy string) gateway.Response
	ClosePositions(ctx context.Context, strategy string) gateway.Response

	OrderStatus(ctx context.Context, orderID, strategy string) gateway.Response
	OpenPosition(ctx context.Context, symbol, exchange, product string) gateway.Response
	Quote(ctx context.Context, symbol, exchange string) gateway.Response
	MultiQuote(ctx context.Context, symbols []gateway.SymbolRef) gateway.Response
	Depth(ctx context.Context, symbol, exchange string) gateway.Response
	History(ctx context.Context, symbol, exchange, interval, startDate, endDate string) gateway.Response
	Expiry(ctx context.Context, symbol, exchange, instrumentType string) gateway.Response
	OptionChain(ctx context.Context, underlying, exchange, expiryDate string, strikeCount int) gateway.Response
	OptionSymbol(ctx context.Context, underlying, exchange, expiryDate, offset, optionType string) gateway.Response
	SyntheticFuture(ctx context.Context, underlying, exchange, expiryDate string) gateway.Response
	SymbolInfo(ctx context.Context, symbol, exchange string) gateway.Response
	Funds(ctx context.Context) gateway.Response
	Holdings(ctx context.Context) gateway.Response
	PositionBook(ctx context.Context) gateway.Response
	TradeBook(ctx context.Context) gateway.Response
	OrderBook(ctx context.Context) gateway.Response
	Margin(ctx context.Context, p gateway.OrderParams) gateway.Response
	Holidays(ctx context.Context, year int) gateway.Response
	Timings(ctx context.Context, date string) gateway.Response
	Telegram(ctx context.Context, username, message string) gateway.Response
}

// Stream is the market-data subscription surface. *gateway.StreamManager
// satisfies it.
type Stream interface {
	Subscribe(ctx context.Context, mode, exchange, symbol string, fn gateway.TickFunc) error
	Unsubscribe(ctx context.Context, mode, exchange, symbol string) error
	UnsubscribeAll(ctx context.Context)
}

const defaultStreamWait = 5 * time.Second

// Runner executes individual nodes. It owns node semantics; the traverser
// owns edge routing.
type Runner struct {
	ctx    *Context
	gw     Gateway
	stream Stream
	logs   *LogBuffer

	httpClient *http.Client
	streamWait time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// RunnerOpts configures a Runner
type RunnerOpts struct {
	Context *Context
	Gateway Gateway
	Stream  Stream
	Logs    *LogBuffer

	// StreamWait overrides the first-tick timeout, for tests
	StreamWait time.Duration
}

// NewRunner creates a node runner
func NewRunner(opts RunnerOpts) *Runner {
	wait := opts.StreamWait
	if wait <= 0 {
		wait = defaultStreamWait
	}
	return &Runner{
		ctx:        opts.Context,
		gw:         opts.Gateway,
		stream:     opts.Stream,
		logs:       opts.Logs,
		httpClient: &http.Client{},
		streamWait: wait,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// sleepContext blocks for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs one node and returns its result envelope. Start, group and
// unknown kinds produce no envelope; traversal continues through them.
// incoming carries memoized upstream condition outcomes for gate nodes.
func (r *Runner) Execute(ctx context.Context, node models.Node, incoming []bool) Result {
	data := node.Data
	if data == nil {
		data = map[string]any{}
	}

	switch node.Kind {
	case models.KindStart:
		r.logs.Append("info", "Workflow started")
		return nil
	case models.KindGroup:
		return nil

	case models.KindPlaceOrder:
		return r.placeOrder(ctx, data)
	case models.KindSmartOrder:
		return r.smartOrder(ctx, data)
	case models.KindOptionsOrder:
		return r.optionsOrder(ctx, data)
	case models.KindOptionsMultiOrder:
		return r.optionsMultiOrder(ctx, data)
	case models.KindBasketOrder:
		return r.basketOrder(ctx, data)
	case models.KindSplitOrder:
		return r.splitOrder(ctx, data)
	case models.KindModifyOrder:
		return r.modifyOrder(ctx, data)
	case models.KindCancelOrder:
		return r.cancelOrder(ctx, data)
	case models.KindCancelAllOrders:
		return r.cancelAllOrders(ctx, data)
	case models.KindClosePositions:
		return r.closePositions(ctx, data)
	case models.KindTelegramAlert:
		return r.telegramAlert(ctx, data)
	case models.KindHTTPRequest:
		return r.httpRequest(ctx, data)
	case models.KindLog:
		return r.logMessage(data)

	case models.KindGetQuote:
		return r.getQuote(ctx, data)
	case models.KindMultiQuotes:
		return r.multiQuotes(ctx, data)
	case models.KindGetDepth:
		return r.getDepth(ctx, data)
	case models.KindGetOrderStatus:
		return r.getOrderStatus(ctx, data)
	case models.KindOpenPosition:
		return r.openPosition(ctx, data)
	case models.KindHistory:
		return r.history(ctx, data)
	case models.KindExpiry:
		return r.expiry(ctx, data)
	case models.KindSymbol:
		return r.symbolInfo(ctx, data)
	case models.KindOptionSymbol:
		return r.optionSymbol(ctx, data)
	case models.KindOrderBook:
		return r.orderBook(ctx, data)
	case models.KindTradeBook:
		return r.tradeBook(ctx, data)
	case models.KindPositionBook:
		return r.positionBook(ctx, data)
	case models.KindSyntheticFuture:
		return r.syntheticFuture(ctx, data)
	case models.KindOptionChain:
		return r.optionChain(ctx, data)
	case models.KindHolidays:
		return r.holidays(ctx, data)
	case models.KindTimings:
		return r.timings(ctx, data)
	case models.KindHoldings:
		return r.holdings(ctx, data)
	case models.KindFunds:
		return r.funds(ctx, data)
	case models.KindMargin:
		return r.margin(ctx, data)

	case models.KindSubscribeLTP:
		return r.subscribeTick(ctx, data, gateway.ModeLTP)
	case models.KindSubscribeQuote:
		return r.subscribeTick(ctx, data, gateway.ModeQuote)
	case models.KindSubscribeDepth:
		return r.subscribeTick(ctx, data, gateway.ModeDepth)
	case models.KindUnsubscribe:
		return r.unsubscribe(ctx, data)

	case models.KindDelay:
		return r.delay(ctx, data)
	case models.KindWaitUntil:
		return r.waitUntil(ctx, data)
	case models.KindVariable:
		return r.variable(data)
	case models.KindMathExpression:
		return r.mathExpression(data)

	case models.KindPositionCheck:
		return r.positionCheck(ctx, data)
	case models.KindFundCheck:
		return r.fundCheck(ctx, data)
	case models.KindPriceCondition:
		return r.priceCondition(ctx, data)
	case models.KindPriceAlert:
		return r.priceAlert(ctx, data)
	case models.KindTimeWindow:
		return r.timeWindow(data)
	case models.KindTimeCondition:
		return r.timeCondition(data)

	case models.KindAndGate:
		return andGate(incoming)
	case models.KindOrGate:
		return orGate(incoming)
	case models.KindNotGate:
		return notGate(incoming)
	}

	r.logs.Append("warning", "Unknown node type: "+node.Kind)
	return nil
}

// storeOutput copies a node result into a context variable when the node
// declares an outputVariable.
func (r *Runner) storeOutput(data map[string]any, value any) {
	name, _ := data["outputVariable"].(string)
	if name == "" {
		return
	}
	r.ctx.SetVariable(name, value)
	r.logs.Append("info", "Stored result in variable: "+name)
}

// logResult appends a one-line summary of a gateway response
func (r *Runner) logResult(prefix string, resp gateway.Response) {
	level := "info"
	if !resp.OK() {
		level = "error"
	}
	msg := prefix + ": " + resp.Status
	if resp.Message != "" {
		msg += " (" + resp.Message + ")"
	}
	r.logs.Append(level, msg)
}
