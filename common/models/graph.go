package models

// Node kinds understood by the engine. The editor may introduce new kinds
// before the engine learns them; unknown kinds are tolerated at traversal
// time (warning + pass-through), so this list is not enforced on save.
const (
	// Special
	KindStart = "start"
	KindGroup = "group"

	// Actions
	KindPlaceOrder        = "placeOrder"
	KindSmartOrder        = "smartOrder"
	KindOptionsOrder      = "optionsOrder"
	KindOptionsMultiOrder = "optionsMultiOrder"
	KindBasketOrder       = "basketOrder"
	KindSplitOrder        = "splitOrder"
	KindModifyOrder       = "modifyOrder"
	KindCancelOrder       = "cancelOrder"
	KindCancelAllOrders   = "cancelAllOrders"
	KindClosePositions    = "closePositions"
	KindTelegramAlert     = "telegramAlert"
	KindHTTPRequest       = "httpRequest"
	KindLog               = "log"

	// Queries
	KindGetQuote        = "getQuote"
	KindMultiQuotes     = "multiQuotes"
	KindGetDepth        = "getDepth"
	KindGetOrderStatus  = "getOrderStatus"
	KindOpenPosition    = "openPosition"
	KindHistory         = "history"
	KindExpiry          = "expiry"
	KindSymbol          = "symbol"
	KindOptionSymbol    = "optionSymbol"
	KindOrderBook       = "orderBook"
	KindTradeBook       = "tradeBook"
	KindPositionBook    = "positionBook"
	KindSyntheticFuture = "syntheticFuture"
	KindOptionChain     = "optionChain"
	KindHolidays        = "holidays"
	KindTimings         = "timings"
	KindHoldings        = "holdings"
	KindFunds           = "funds"
	KindMargin          = "margin"

	// Streaming
	KindSubscribeLTP   = "subscribeLtp"
	KindSubscribeQuote = "subscribeQuote"
	KindSubscribeDepth = "subscribeDepth"
	KindUnsubscribe    = "unsubscribe"

	// Control
	KindDelay          = "delay"
	KindWaitUntil      = "waitUntil"
	KindVariable       = "variable"
	KindMathExpression = "mathExpression"

	// Conditionals
	KindPositionCheck  = "positionCheck"
	KindFundCheck      = "fundCheck"
	KindPriceCondition = "priceCondition"
	KindPriceAlert     = "priceAlert"
	KindTimeWindow     = "timeWindow"
	KindTimeCondition  = "timeCondition"

	// Gates
	KindAndGate = "andGate"
	KindOrGate  = "orGate"
	KindNotGate = "notGate"
)

// Node is a single graph vertex as the editor stores it.
// Data carries the node label plus kind-specific fields.
type Node struct {
	ID   string         `json:"id"`
	Kind string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Label returns the display label, falling back to the node id
func (n Node) Label() string {
	if n.Data != nil {
		if label, ok := n.Data["label"].(string); ok && label != "" {
			return label
		}
	}
	return n.ID
}

// Edge connects two nodes. SourceHandle carries branch selection for
// conditional sources: "yes", "no", or anything else for default edges
// that are always followed.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// IsConditionalKind reports whether results of this kind steer branch
// selection (conditionals and gates produce a boolean condition)
func IsConditionalKind(kind string) bool {
	switch kind {
	case KindPositionCheck, KindFundCheck, KindPriceCondition, KindPriceAlert,
		KindTimeWindow, KindTimeCondition, KindAndGate, KindOrGate, KindNotGate:
		return true
	}
	return false
}

// IsGateKind reports whether the kind combines upstream condition results
func IsGateKind(kind string) bool {
	switch kind {
	case KindAndGate, KindOrGate, KindNotGate:
		return true
	}
	return false
}
