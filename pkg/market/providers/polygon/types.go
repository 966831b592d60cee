package polygon

// Response schemas for the Polygon REST endpoints consumed by the client.
// Fields default to zero values when the upstream omits them; callers treat
// zero prices as "no data".

// TradeLatestResponse is the /v3/trades/{ticker}/latest payload.
type TradeLatestResponse struct {
	Status  string `json:"status"`
	Results struct {
		Price     float64 `json:"p"`
		Size      float64 `json:"s"`
		Timestamp int64   `json:"t"`
	} `json:"results"`
}

// QuoteLatestResponse is the /v3/quotes/{ticker}/latest payload.
type QuoteLatestResponse struct {
	Status  string `json:"status"`
	Results struct {
		BidPrice  float64 `json:"bp"`
		AskPrice  float64 `json:"ap"`
		Timestamp int64   `json:"t"`
	} `json:"results"`
}

// SnapshotResponse is the /v2/snapshot/.../tickers/{ticker} payload.
type SnapshotResponse struct {
	Status string `json:"status"`
	Ticker struct {
		Symbol           string  `json:"ticker"`
		TodaysChange     float64 `json:"todaysChange"`
		TodaysChangePerc float64 `json:"todaysChangePerc"`
		LastTrade        struct {
			Price float64 `json:"p"`
		} `json:"lastTrade"`
		Day struct {
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
		} `json:"day"`
		PrevDay struct {
			Close float64 `json:"c"`
		} `json:"prevDay"`
	} `json:"ticker"`
}

// AggsResponse is the /v2/aggs/ticker/.../range/... payload, also returned by
// the previous-close endpoint.
type AggsResponse struct {
	Status       string      `json:"status"`
	Symbol       string      `json:"ticker"`
	ResultsCount int         `json:"resultsCount"`
	Results      []AggResult `json:"results"`
}

// AggResult is one aggregate bar.
type AggResult struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}
