package gateway

// Response is the gateway's JSON envelope. Every operation returns one;
// transport failures are folded into an error envelope so callers never
// branch on Go errors for remote outcomes.
type Response struct {
	Status  string
	Message string
	Data    any

	// raw keeps the decoded body so extra envelope fields survive
	// round-trips into the variable context
	raw map[string]any
}

// OK reports whether the gateway accepted the operation
func (r Response) OK() bool {
	return r.Status == "success"
}

// DataMap returns Data as an object, or an empty map
func (r Response) DataMap() map[string]any {
	if m, ok := r.Data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// DataList returns Data as a list, or nil
func (r Response) DataList() []any {
	if l, ok := r.Data.([]any); ok {
		return l
	}
	return nil
}

// AsMap returns the full envelope for storage in the variable context
func (r Response) AsMap() map[string]any {
	if r.raw != nil {
		return r.raw
	}
	m := map[string]any{"status": r.Status}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	return m
}

// ResponseFromMap rebuilds a Response from a decoded envelope. Fields the
// envelope carries beyond status, message and data survive through AsMap.
func ResponseFromMap(raw map[string]any) Response {
	out := Response{raw: raw, Data: raw["data"]}
	if s, ok := raw["status"].(string); ok {
		out.Status = s
	}
	if m, ok := raw["message"].(string); ok {
		out.Message = m
	}
	return out
}

// errorResponse builds a local error envelope
func errorResponse(message string) Response {
	return Response{
		Status:  "error",
		Message: message,
		raw:     map[string]any{"status": "error", "message": message},
	}
}

// OrderParams describes a plain order
type OrderParams struct {
	Strategy          string
	Symbol            string
	Exchange          string
	Action            string
	Quantity          int
	PriceType         string
	Product           string
	Price             float64
	TriggerPrice      float64
	DisclosedQuantity int
}

// SmartOrderParams adds target position sizing on top of a plain order
type SmartOrderParams struct {
	OrderParams
	PositionSize int
}

// OptionsOrderParams describes a single-leg options order resolved by the
// gateway from underlying, expiry and strike offset
type OptionsOrderParams struct {
	Strategy   string
	Underlying string
	Exchange   string
	ExpiryDate string
	Offset     string
	OptionType string
	Action     string
	Quantity   int
	PriceType  string
	Product    string
	SplitSize  int
}

// OptionLeg is one leg of a multi-leg options order
type OptionLeg struct {
	Offset     string `json:"offset"`
	OptionType string `json:"option_type"`
	Action     string `json:"action"`
	Quantity   int    `json:"quantity"`
}

// OptionsMultiOrderParams describes a multi-leg options order with a
// shared expiry and product
type OptionsMultiOrderParams struct {
	Strategy   string
	Underlying string
	Exchange   string
	ExpiryDate string
	Legs       []OptionLeg
	PriceType  string
	Product    string
}

// SplitOrderParams slices a large order into child orders of SplitSize
type SplitOrderParams struct {
	Strategy     string
	Symbol       string
	Exchange     string
	Action       string
	Quantity     int
	SplitSize    int
	PriceType    string
	Product      string
	Price        float64
	TriggerPrice float64
}

// ModifyOrderParams rewrites an open order
type ModifyOrderParams struct {
	Strategy     string
	OrderID      string
	Symbol       string
	Exchange     string
	Action       string
	Quantity     int
	PriceType    string
	Product      string
	Price        float64
	TriggerPrice float64
}

// SymbolRef names one instrument for multi-quote requests
type SymbolRef struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}
