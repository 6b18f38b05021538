package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kline is a parsed kline stream payload.
type Kline struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Closed    bool
}

// Binance reuses single letters that differ only in case. encoding/json
// matches keys case-insensitively, so every colliding key is declared.
type wireKline struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		OpenTime    int64           `json:"t"`
		CloseTime   int64           `json:"T"`
		Interval    string          `json:"i"`
		Open        decimal.Decimal `json:"o"`
		Close       decimal.Decimal `json:"c"`
		High        decimal.Decimal `json:"h"`
		Low         decimal.Decimal `json:"l"`
		LastTradeID int64           `json:"L"`
		Volume      decimal.Decimal `json:"v"`
		TakerVolume decimal.Decimal `json:"V"`
		QuoteVolume decimal.Decimal `json:"q"`
		TakerQuote  decimal.Decimal `json:"Q"`
		Closed      bool            `json:"x"`
	} `json:"k"`
}

// ErrNotKline is returned by ParseKline for frames of another event type.
var ErrNotKline = errors.New("binance: not a kline event")

// ParseKline decodes a <symbol>@kline_<interval> frame. Combined-stream
// frames ({"stream":..., "data":{...}}) are unwrapped.
func ParseKline(raw []byte) (Kline, error) {
	raw = unwrapCombined(raw)

	var w wireKline
	if err := json.Unmarshal(raw, &w); err != nil {
		return Kline{}, fmt.Errorf("binance: decode kline: %w", err)
	}
	if w.EventType != "kline" {
		return Kline{}, ErrNotKline
	}
	if w.K.OpenTime == 0 {
		return Kline{}, errors.New("binance: kline missing open time")
	}
	return Kline{
		Symbol:    w.Symbol,
		Interval:  w.K.Interval,
		OpenTime:  time.UnixMilli(w.K.OpenTime).UTC(),
		CloseTime: time.UnixMilli(w.K.CloseTime).UTC(),
		Open:      w.K.Open,
		High:      w.K.High,
		Low:       w.K.Low,
		Close:     w.K.Close,
		Volume:    w.K.Volume,
		Closed:    w.K.Closed,
	}, nil
}

// ExecutionReport is an order update from the user-data stream.
type ExecutionReport struct {
	Symbol            string
	ClientOrderID     string
	OrigClientOrderID string
	Side              string
	OrderType         string
	ExecType          string // NEW, CANCELED, REJECTED, TRADE, EXPIRED
	Status            string // NEW, PARTIALLY_FILLED, FILLED, CANCELED, ...
	Price             decimal.Decimal
	Quantity          decimal.Decimal
	LastPrice         decimal.Decimal
	CumQty            decimal.Decimal
	CumQuote          decimal.Decimal
	TradeTime         time.Time
}

// Filled reports whether the order is completely filled.
func (r ExecutionReport) Filled() bool { return r.Status == "FILLED" }

// AvgPrice returns the volume-weighted fill price, falling back to the
// order price when nothing has executed.
func (r ExecutionReport) AvgPrice() decimal.Decimal {
	if r.CumQty.IsPositive() && r.CumQuote.IsPositive() {
		return r.CumQuote.Div(r.CumQty)
	}
	return r.Price
}

type wireExecutionReport struct {
	EventType         string          `json:"e"`
	EventTime         int64           `json:"E"`
	Symbol            string          `json:"s"`
	ClientOrderID     string          `json:"c"`
	Side              string          `json:"S"`
	OrderType         string          `json:"o"`
	CreatedAt         int64           `json:"O"`
	Quantity          decimal.Decimal `json:"q"`
	QuoteQty          decimal.Decimal `json:"Q"`
	Price             decimal.Decimal `json:"p"`
	StopPrice         decimal.Decimal `json:"P"`
	OrigClientOrderID string          `json:"C"`
	ExecType          string          `json:"x"`
	Status            string          `json:"X"`
	LastQty           decimal.Decimal `json:"l"`
	LastPrice         decimal.Decimal `json:"L"`
	CumQty            decimal.Decimal `json:"z"`
	CumQuote          decimal.Decimal `json:"Z"`
	TradeTime         int64           `json:"T"`
	TradeID           int64           `json:"t"`
}

// ParseUserEvent decodes a user-data frame. ok is false for event types
// other than executionReport (balance updates, listen key expiry, ...).
func ParseUserEvent(raw []byte) (rep ExecutionReport, ok bool, err error) {
	raw = unwrapCombined(raw)

	var w wireExecutionReport
	if err := json.Unmarshal(raw, &w); err != nil {
		return ExecutionReport{}, false, fmt.Errorf("binance: decode user event: %w", err)
	}
	if w.EventType != "executionReport" {
		return ExecutionReport{}, false, nil
	}
	rep = ExecutionReport{
		Symbol:            w.Symbol,
		ClientOrderID:     w.ClientOrderID,
		OrigClientOrderID: w.OrigClientOrderID,
		Side:              w.Side,
		OrderType:         w.OrderType,
		ExecType:          w.ExecType,
		Status:            w.Status,
		Price:             w.Price,
		Quantity:          w.Quantity,
		LastPrice:         w.LastPrice,
		CumQty:            w.CumQty,
		CumQuote:          w.CumQuote,
	}
	if w.TradeTime > 0 {
		rep.TradeTime = time.UnixMilli(w.TradeTime).UTC()
	}
	return rep, true, nil
}

func unwrapCombined(raw []byte) []byte {
	var env struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Stream != "" && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}
