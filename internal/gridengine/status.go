package gridengine

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/indicator"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/internal/strategy"
)

// Status is the read-only view served on /status and mirrored to Redis.
type Status struct {
	Mode            string               `json:"mode"`
	Symbol          string               `json:"symbol"`
	CycleActive     bool                 `json:"cycle_active"`
	Paused          bool                 `json:"paused"`
	RealizedPnL     float64              `json:"realized_pnl"`
	ProfitTarget    float64              `json:"profit_target"`
	DailyTarget     float64              `json:"daily_target"`
	Ladders         []strategy.Ladder    `json:"ladders"`
	StepSize        float64              `json:"step_size"`
	NextBuyPrice    float64              `json:"next_buy_price"`
	NextBuyQuantity float64              `json:"next_buy_quantity"`
	PendingBuys     int                  `json:"pending_buys"`
	FundsFree       float64              `json:"funds_free"`
	FundsCap        float64              `json:"funds_cap"`
	Candles         int                  `json:"candles"`
	LastCandle      *model.Candle        `json:"last_candle,omitempty"`
	Indicators      indicator.Snapshot   `json:"indicators"`
	LastGate        *strategy.GateResult `json:"last_gate,omitempty"`
	Day             string               `json:"day,omitempty"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// RedisFields flattens the status into hash fields. The full document is
// stored under "json"; the rest are for quick redis-cli inspection.
func (s *Status) RedisFields() map[string]interface{} {
	raw, _ := json.Marshal(s)
	return map[string]interface{}{
		"json":         string(raw),
		"cycle_active": strconv.FormatBool(s.CycleActive),
		"paused":       strconv.FormatBool(s.Paused),
		"realized_pnl": strconv.FormatFloat(s.RealizedPnL, 'f', 6, 64),
		"ladders":      strconv.Itoa(len(s.Ladders)),
		"funds_free":   strconv.FormatFloat(s.FundsFree, 'f', 6, 64),
		"updated_at":   s.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// finite zeroes undefined indicator values; encoding/json rejects NaN.
func finite(v float64) float64 {
	if indicator.Defined(v) {
		return v
	}
	return 0
}

func jsonSnapshot(s indicator.Snapshot) indicator.Snapshot {
	s.ATR, s.EMA, s.PercentB = finite(s.ATR), finite(s.EMA), finite(s.PercentB)
	return s
}

func jsonGate(g *strategy.GateResult) *strategy.GateResult {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Failed = append([]strategy.Condition(nil), g.Failed...)
	cp.Close, cp.PercentB = finite(cp.Close), finite(cp.PercentB)
	cp.EMARatio, cp.Drawdown = finite(cp.EMARatio), finite(cp.Drawdown)
	return &cp
}
