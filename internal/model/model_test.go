package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandle_Body(t *testing.T) {
	up := Candle{Open: 100, High: 105, Low: 99, Close: 104}
	assert.True(t, up.Bullish())
	assert.Equal(t, 100.0, up.BodyLow())
	assert.Equal(t, 104.0, up.BodyHigh())

	down := Candle{Open: 104, High: 106, Low: 101, Close: 102}
	assert.False(t, down.Bullish())
	assert.Equal(t, 102.0, down.BodyLow())
	assert.Equal(t, 104.0, down.BodyHigh())

	assert.True(t, Candle{Open: 100, Close: 100}.Bullish())
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("FIVE_MINUTE")
	require.NoError(t, err)
	assert.Equal(t, FiveMinute, iv)
	assert.Equal(t, 5*time.Minute, iv.Duration())
	assert.Equal(t, 24*time.Hour, OneDay.Duration())

	_, err = ParseInterval("five_minute")
	assert.Error(t, err)
	assert.Zero(t, Interval("WEEKLY").Duration())
}
