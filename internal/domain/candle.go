package domain

// Candle is one fixed-interval OHLC bar. Candle values are immutable: the
// aggregator replaces the current bar with a fresh value on every update
// (copy-on-write) so concurrent readers never observe a half-written bar.
type Candle struct {
	Time   int64   `json:"time"` // bucket start, epoch seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ChartUpdate is the incremental price/volume push emitted after each trade.
type ChartUpdate struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// ChartHistory is the full candle series pushed on the candle topic and
// returned to chart consumers. Candles are ordered oldest to newest.
type ChartHistory struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}
