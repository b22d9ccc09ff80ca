package collector

import (
	"context"

	"MarketPulse/internal/broker"
	"MarketPulse/internal/model"
)

// Fetcher defines the interface for fetching candles from the broker.
type Fetcher interface {
	Candles(ctx context.Context, sess *broker.Session, q broker.CandleQuery) ([]model.Candle, error)
}
