package derive

// tickersResponse is the envelope returned by public/get_tickers.
type tickersResponse struct {
	Result struct {
		Tickers map[string]ticker `json:"tickers"`
	} `json:"result"`
}

// ticker carries the subset of fields the aggregator consumes. Derive
// serializes all decimals as strings.
type ticker struct {
	BestBidPrice  string `json:"best_bid_price"`
	BestAskPrice  string `json:"best_ask_price"`
	OptionPricing struct {
		BidIV string `json:"bid_iv"`
		AskIV string `json:"ask_iv"`
	} `json:"option_pricing"`
}
