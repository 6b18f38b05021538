package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the grid bot.
type Metrics struct {
	// Ingestion
	CandlesTotal    prometheus.Counter
	CandlesIgnored  prometheus.Counter // in-flight, duplicate or out-of-order
	CandleLag       prometheus.Gauge
	WSReconnects    *prometheus.CounterVec // labels: stream=market|user
	IndicatorDur    prometheus.Histogram
	IndicatorValues *prometheus.GaugeVec // labels: name=atr|ema|percent_b

	// Entry gate
	GateEvaluations *prometheus.CounterVec // labels: result=pass|fail
	GateFailures    *prometheus.CounterVec // labels: condition

	// Ladder
	CyclesStarted prometheus.Counter
	TargetsHit    prometheus.Counter
	Liquidations  prometheus.Counter
	CycleActive   prometheus.Gauge
	OpenLadders   prometheus.Gauge
	RealizedPnL   prometheus.Gauge
	FundsFree     prometheus.Gauge
	NextBuyPrice  prometheus.Gauge
	Paused        prometheus.Gauge

	// Orders
	OrdersPlaced  *prometheus.CounterVec // labels: side
	OrderRetries  prometheus.Counter
	OrderFailures *prometheus.CounterVec // labels: reason=would_take|exhausted|transport
	OrderLatency  prometheus.Histogram
	FillsTotal    *prometheus.CounterVec // labels: side
	Cancels       *prometheus.CounterVec // labels: result=ok|failed

	// Loop
	LoopErrors *prometheus.CounterVec // labels: stage

	// Event fan-out
	EventsPublished          prometheus.Counter
	EventsDropped            *prometheus.CounterVec // labels: sink
	RedisCircuitBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_candles_total",
			Help: "Closed candles accepted into the candle store",
		}),
		CandlesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_candles_ignored_total",
			Help: "Kline events ignored (in-flight, duplicate or out of order)",
		}),
		CandleLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_candle_lag_seconds",
			Help: "Lag between candle close time and processing time",
		}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_ws_reconnects_total",
			Help: "WebSocket reconnection attempts",
		}, []string{"stream"}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grid_indicator_compute_duration_seconds",
			Help:    "Indicator recompute latency per closed candle",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		IndicatorValues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grid_indicator_value",
			Help: "Latest defined indicator value",
		}, []string{"name"}),

		GateEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_gate_evaluations_total",
			Help: "Entry gate evaluations by result",
		}, []string{"result"}),
		GateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_gate_failures_total",
			Help: "Entry gate failures by condition",
		}, []string{"condition"}),

		CyclesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_cycles_started_total",
			Help: "Grid cycles started",
		}),
		TargetsHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_targets_hit_total",
			Help: "Cycles that reached the profit target",
		}),
		Liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_liquidations_total",
			Help: "Liquidations executed",
		}),
		CycleActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_cycle_active",
			Help: "1 while a grid cycle is active",
		}),
		OpenLadders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_open_ladders",
			Help: "Filled ladders awaiting their take-profit",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_realized_pnl",
			Help: "Realized PnL in quote currency since cycle start or day reset",
		}),
		FundsFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_funds_free",
			Help: "Quote currency available under the funds cap",
		}),
		NextBuyPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_next_buy_price",
			Help: "Price of the next rung buy (0 when idle)",
		}),
		Paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_paused",
			Help: "1 while new cycles are paused by an operator",
		}),

		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_orders_placed_total",
			Help: "Maker orders accepted by the exchange",
		}, []string{"side"}),
		OrderRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_order_retries_total",
			Help: "Maker resubmissions after a would-take rejection",
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_order_failures_total",
			Help: "Order submissions that failed, by reason",
		}, []string{"reason"}),
		OrderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grid_order_submit_duration_seconds",
			Help:    "Order submission latency including retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_fills_total",
			Help: "Fills received from the transport",
		}, []string{"side"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_cancels_total",
			Help: "Order cancellations by result",
		}, []string{"result"}),

		LoopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_loop_errors_total",
			Help: "Errors handled inside the ingestion loop, by stage",
		}, []string{"stage"}),

		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_events_published_total",
			Help: "Strategy events published to Redis",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_events_dropped_total",
			Help: "Strategy events dropped by a sink (queue full or backend down)",
		}, []string{"sink"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.CandlesTotal,
		m.CandlesIgnored,
		m.CandleLag,
		m.WSReconnects,
		m.IndicatorDur,
		m.IndicatorValues,
		m.GateEvaluations,
		m.GateFailures,
		m.CyclesStarted,
		m.TargetsHit,
		m.Liquidations,
		m.CycleActive,
		m.OpenLadders,
		m.RealizedPnL,
		m.FundsFree,
		m.NextBuyPrice,
		m.Paused,
		m.OrdersPlaced,
		m.OrderRetries,
		m.OrderFailures,
		m.OrderLatency,
		m.FillsTotal,
		m.Cancels,
		m.LoopErrors,
		m.EventsPublished,
		m.EventsDropped,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Mode           string    `json:"mode"`
	WSConnected    bool      `json:"ws_connected"`
	UserStreamOK   bool      `json:"user_stream_ok"`
	LastCandleTime time.Time `json:"last_candle_time"`

	// Optional backends; unchecked ones do not degrade health.
	RedisEnabled   bool    `json:"redis_enabled"`
	RedisConnected bool    `json:"redis_connected"`
	SQLiteEnabled  bool    `json:"sqlite_enabled"`
	SQLiteOK       bool    `json:"sqlite_ok"`
	RedisLatencyMs float64 `json:"redis_latency_ms"`

	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(mode string) *HealthStatus {
	return &HealthStatus{
		Mode:         mode,
		UserStreamOK: mode != "live",
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetUserStreamOK(v bool) {
	h.mu.Lock()
	h.UserStreamOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Either backend may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.UserStreamOK ||
		(h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Mode            string  `json:"mode"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		UserStreamOK    bool    `json:"user_stream_ok"`
		LastCandleTime  string  `json:"last_candle_time"`
		CandleAge       string  `json:"candle_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Mode:            h.Mode,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		UserStreamOK:    h.UserStreamOK,
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
