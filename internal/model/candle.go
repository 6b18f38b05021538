package model

import (
	"encoding/json"
	"time"
)

// Candle is a closed OHLCV bar for the traded symbol.
// Prices are quote-currency floats (FDUSD per DOGE); the values are only ever
// compared and averaged, exchange precision is applied at order time.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`  // bucket start (UTC)
	CloseTime time.Time `json:"close_time"` // bucket end (UTC), zero if the source did not send it
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// EventTime returns the timestamp used for day bookkeeping: the close time
// when known, otherwise the open time.
func (c *Candle) EventTime() time.Time {
	if !c.CloseTime.IsZero() {
		return c.CloseTime
	}
	return c.OpenTime
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// KlineEvent is one message from the market-data transport. Only events with
// Closed == true carry a finished candle; in-flight updates are discarded.
type KlineEvent struct {
	Symbol string `json:"symbol"`
	Closed bool   `json:"closed"`
	Candle
}
