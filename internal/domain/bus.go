package domain

import (
	"context"
	"time"
)

// Topic names for the pub/sub bus. Subscribers use one topic per symbol.
const (
	TopicDepthPrefix  = "depth."
	TopicChartPrefix  = "chart."
	TopicCandlePrefix = "candle."
)

// DepthTopic returns the depth feed topic for a symbol.
func DepthTopic(symbol string) string { return TopicDepthPrefix + symbol }

// ChartTopic returns the incremental chart update topic for a symbol.
func ChartTopic(symbol string) string { return TopicChartPrefix + symbol }

// CandleTopic returns the full candle series topic for a symbol.
func CandleTopic(symbol string) string { return TopicCandlePrefix + symbol }

// SignalBus publishes payloads to named topics and lets consumers
// subscribe to them. Publish failures are logged by callers and never
// unwind a completed match.
type SignalBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
}

// LastPriceCache stores the most recent execution price per symbol so a
// restarted process can seed candle series from real prices instead of the
// configured default.
type LastPriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}
