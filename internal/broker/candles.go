package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"MarketPulse/internal/model"
)

const (
	candleDataPath = "/rest/secure/angelbroking/historical/v1/getCandleData"
	queryLayout    = "2006-01-02 15:04"
)

// ErrNoSession is returned when a data call is made without a logged-in session.
var ErrNoSession = errors.New("smartapi: no active session")

// CandleQuery selects one instrument's candles between From and To.
type CandleQuery struct {
	Exchange    string
	SymbolToken string
	Interval    model.Interval
	From        time.Time
	To          time.Time
}

// Candles calls getCandleData and maps each [timestamp, o, h, l, c, v] row into a Candle.
// A null or empty data field yields an empty slice.
func (c *Client) Candles(ctx context.Context, sess *Session, q CandleQuery) ([]model.Candle, error) {
	if sess == nil || sess.JWTToken == "" {
		return nil, ErrNoSession
	}
	payload := map[string]string{
		"exchange":    q.Exchange,
		"symboltoken": q.SymbolToken,
		"interval":    string(q.Interval),
		"fromdate":    q.From.In(IST).Format(queryLayout),
		"todate":      q.To.In(IST).Format(queryLayout),
	}
	data, err := c.post(ctx, candleDataPath, sess.JWTToken, payload)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode candle response: %w", err)
	}
	if !env.Status {
		return nil, fmt.Errorf("getCandleData: %s (%s)", env.Message, env.ErrorCode)
	}
	if env.empty() {
		return []model.Candle{}, nil
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode candle rows: %w", err)
	}
	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		cd, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("candle row %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

func parseRow(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 5 {
		return model.Candle{}, fmt.Errorf("expected at least 5 fields, got %d", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return model.Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return model.Candle{}, err
	}

	var vals [5]float64
	for i := 1; i < len(row) && i <= 5; i++ {
		v, err := parseNumber(row[i])
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return model.Candle{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(queryLayout, s, IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

// parseNumber accepts both JSON numbers and numeric strings. A null is malformed, not zero.
func parseNumber(raw json.RawMessage) (float64, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, errors.New("null value")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	return strconv.ParseFloat(s, 64)
}
