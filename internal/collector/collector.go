package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketPulse/internal/broker"
	"MarketPulse/internal/config"
	"MarketPulse/internal/model"
)

// Collector issues one candle query per cycle over a sliding lookback window.
type Collector struct {
	Fetcher    Fetcher
	Instrument config.Instrument
	Lookback   time.Duration
	Now        func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, inst config.Instrument, lookback time.Duration) *Collector {
	return &Collector{
		Fetcher:    fetcher,
		Instrument: inst,
		Lookback:   lookback,
		Now:        time.Now,
	}
}

// Query builds the request for the window ending now.
func (c *Collector) Query() broker.CandleQuery {
	to := c.Now()
	return broker.CandleQuery{
		Exchange:    c.Instrument.Exchange,
		SymbolToken: c.Instrument.SymbolToken,
		Interval:    c.Instrument.Interval,
		From:        to.Add(-c.Lookback),
		To:          to,
	}
}

// Collect fetches the candles of the current window in chronological order.
// No candles is a valid, empty result.
func (c *Collector) Collect(ctx context.Context, sess *broker.Session) ([]model.Candle, error) {
	candles, err := c.Fetcher.Candles(ctx, sess, c.Query())
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", c.Instrument.Label, err)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}
