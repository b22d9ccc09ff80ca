package model

import (
	"fmt"
	"time"
)

// Interval is a broker candle bucket size.
type Interval string

const (
	OneMinute     Interval = "ONE_MINUTE"
	ThreeMinute   Interval = "THREE_MINUTE"
	FiveMinute    Interval = "FIVE_MINUTE"
	TenMinute     Interval = "TEN_MINUTE"
	FifteenMinute Interval = "FIFTEEN_MINUTE"
	ThirtyMinute  Interval = "THIRTY_MINUTE"
	OneHour       Interval = "ONE_HOUR"
	OneDay        Interval = "ONE_DAY"
)

var intervalDurations = map[Interval]time.Duration{
	OneMinute:     time.Minute,
	ThreeMinute:   3 * time.Minute,
	FiveMinute:    5 * time.Minute,
	TenMinute:     10 * time.Minute,
	FifteenMinute: 15 * time.Minute,
	ThirtyMinute:  30 * time.Minute,
	OneHour:       time.Hour,
	OneDay:        24 * time.Hour,
}

// ParseInterval validates a broker interval name.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unknown candle interval %q", s)
	}
	return iv, nil
}

// Duration returns the bucket length, or zero for an unknown interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}
