package deribit

// bookSummaryResponse is the envelope returned by
// /public/get_book_summary_by_currency.
type bookSummaryResponse struct {
	Result []bookSummaryItem `json:"result"`
}

// bookSummaryItem is one instrument's book summary. IVs are percentages;
// absent sides come back as null and stay nil.
type bookSummaryItem struct {
	InstrumentName string   `json:"instrument_name"`
	Bid            *float64 `json:"bid"`
	Ask            *float64 `json:"ask"`
	BidIV          *float64 `json:"bid_iv"`
	AskIV          *float64 `json:"ask_iv"`
	OpenInterest   float64  `json:"open_interest"`
	Volume         float64  `json:"volume"`
}
