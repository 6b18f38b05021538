// Package gridengine runs the grid bot: it feeds closed candles through the
// indicator set, the entry gate and the ladder engine, routes fills, and
// exposes the resulting state over HTTP.
package gridengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/candlestore"
	"github.com/Shubhamshinde5080/DogeBOT/internal/indicator"
	"github.com/Shubhamshinde5080/DogeBOT/internal/logger"
	"github.com/Shubhamshinde5080/DogeBOT/internal/metrics"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/internal/session"
	"github.com/Shubhamshinde5080/DogeBOT/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoCycle is returned by control commands that need an active cycle.
var ErrNoCycle = errors.New("no active cycle")

// LoopConfig configures the candle pipeline.
type LoopConfig struct {
	Symbol          string
	Mode            string
	IndicatorWindow int
	DailyTarget     float64
	Indicators      indicator.Params
	Gate            strategy.GateParams
}

// FillRecorder persists fills.
type FillRecorder interface {
	RecordFill(f model.Fill) error
}

// Loop processes candles and fills one at a time. It is not safe for
// concurrent use; Service owns it from a single goroutine.
type Loop struct {
	cfg     LoopConfig
	store   *candlestore.Store
	engine  *strategy.LadderEngine
	sink    model.EventSink
	journal FillRecorder
	m       *metrics.Metrics
	log     *slog.Logger

	day    session.DayTracker
	paused bool

	lastCandle model.Candle
	lastSnap   indicator.Snapshot
	lastGate   *strategy.GateResult

	now func() time.Time

	// OnClosed runs after a closed candle is stored and before indicators
	// are computed. Paper mode matches resting orders here.
	OnClosed func(ctx context.Context, c model.Candle)
}

// NewLoop wires a Loop. sink may be nil; a nil m registers metrics on a
// private registry.
func NewLoop(cfg LoopConfig, store *candlestore.Store, engine *strategy.LadderEngine, sink model.EventSink, m *metrics.Metrics, log *slog.Logger) *Loop {
	if sink == nil {
		sink = model.MultiSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &Loop{
		cfg:    cfg,
		store:  store,
		engine: engine,
		sink:   sink,
		m:      m,
		log:    log.With(slog.String("component", "loop")),
		now:    time.Now,
	}
}

// SetJournal enables fill persistence.
func (l *Loop) SetJournal(j FillRecorder) { l.journal = j }

// HandleCandle runs one kline event through the pipeline. Errors are logged
// and counted; the loop never stops on them.
func (l *Loop) HandleCandle(ctx context.Context, ev model.KlineEvent) {
	if !l.store.Append(ev) {
		l.m.CandlesIgnored.Inc()
		return
	}
	c := ev.Candle
	l.m.CandlesTotal.Inc()
	l.m.CandleLag.Set(l.now().Sub(c.EventTime()).Seconds())
	l.lastCandle = c

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(l.cfg.Symbol, c.OpenTime))
	l.sink.Emit(ctx, model.Event{Kind: model.EventCandleClosed, Symbol: l.cfg.Symbol,
		Time: c.EventTime(), Price: c.Close, TraceID: logger.TraceID(ctx)})

	if l.OnClosed != nil {
		l.OnClosed(ctx, c)
	}

	window := l.store.Window(l.cfg.IndicatorWindow)
	start := time.Now()
	snap := indicator.Compute(window, l.cfg.Indicators)
	l.m.IndicatorDur.Observe(time.Since(start).Seconds())
	l.lastSnap = snap
	l.recordIndicators(snap)

	defer l.updateGauges()

	if !snap.ATRReady {
		l.log.Debug("atr_not_ready", append(logger.LogWithTrace(ctx), "candles", l.store.Len())...)
		return
	}

	if l.day.Observe(c.EventTime()) {
		l.resetDay(ctx, c.EventTime())
	}

	if pnl := l.engine.RealizedPnL(); pnl >= l.cfg.DailyTarget {
		l.log.Debug("daily_target_reached", append(logger.LogWithTrace(ctx),
			"realized_pnl", pnl, "target", l.cfg.DailyTarget)...)
		return
	}

	if l.paused {
		return
	}

	if !l.engine.Active() {
		res := strategy.EvaluateEntry(snap, window, l.cfg.Gate)
		l.lastGate = &res
		l.recordGate(ctx, res)
		if res.Pass {
			if err := l.engine.StartCycle(ctx, c.Close, snap.ATR); err != nil {
				l.fail(ctx, "start_cycle", err)
			} else {
				l.m.CyclesStarted.Inc()
			}
		}
	}

	if _, err := l.engine.OnTick(ctx, c.Close, snap.ATR); err != nil {
		l.fail(ctx, "on_tick", err)
	}
}

// HandleFill forwards a transport fill to the ladder engine.
func (l *Loop) HandleFill(ctx context.Context, f model.Fill) {
	if logger.TraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(l.cfg.Symbol, f.Time))
	}
	l.m.FillsTotal.WithLabelValues(string(f.Side)).Inc()

	if l.journal != nil {
		if err := l.journal.RecordFill(f); err != nil {
			l.fail(ctx, "journal", err)
		}
	}

	wasActive := l.engine.Active()
	if err := l.engine.OnFill(ctx, f); err != nil {
		l.fail(ctx, "fill", err)
	}
	if wasActive && !l.engine.Active() {
		l.m.TargetsHit.Inc()
		l.m.Liquidations.Inc()
	}
	l.updateGauges()
}

// Pause stops new cycles and rungs. Fills are still processed.
func (l *Loop) Pause(ctx context.Context, reason string) {
	if l.paused {
		return
	}
	l.paused = true
	l.m.Paused.Set(1)
	l.log.Warn("paused", "reason", reason)
	l.sink.Emit(ctx, model.Event{Kind: model.EventPaused, Symbol: l.cfg.Symbol, Time: l.now(), Message: reason})
}

// Resume re-enables new cycles and rungs.
func (l *Loop) Resume(ctx context.Context) {
	if !l.paused {
		return
	}
	l.paused = false
	l.m.Paused.Set(0)
	l.log.Info("resumed")
	l.sink.Emit(ctx, model.Event{Kind: model.EventResumed, Symbol: l.cfg.Symbol, Time: l.now(), Message: "operator"})
}

// Liquidate closes the active cycle at the last close.
func (l *Loop) Liquidate(ctx context.Context) error {
	if !l.engine.Active() {
		return ErrNoCycle
	}
	err := l.engine.Liquidate(ctx, l.lastCandle.Close)
	l.m.Liquidations.Inc()
	l.updateGauges()
	return err
}

// Paused reports whether the loop is paused.
func (l *Loop) Paused() bool { return l.paused }

func (l *Loop) resetDay(ctx context.Context, t time.Time) {
	prev := l.engine.RealizedPnL()
	l.engine.ResetDailyPnL()
	day := session.DayOf(t).Format("2006-01-02")
	l.sink.Emit(ctx, model.Event{Kind: model.EventDayReset, Symbol: l.cfg.Symbol, Time: t,
		PnL: prev, Message: "new UTC day " + day, TraceID: logger.TraceID(ctx)})
}

// fail logs and counts an error. Bookkeeping violations are escalated as
// invariant events.
func (l *Loop) fail(ctx context.Context, stage string, err error) {
	l.m.LoopErrors.WithLabelValues(stage).Inc()
	attrs := append(logger.LogWithTrace(ctx), "stage", stage, "error", err)

	if errors.Is(err, strategy.ErrInvariant) || errors.Is(err, strategy.ErrLadderNotFound) {
		l.log.Error("invariant_violation", attrs...)
		l.sink.Emit(ctx, model.Event{Kind: model.EventInvariant, Symbol: l.cfg.Symbol, Time: l.now(),
			Message: fmt.Sprintf("%s: %v", stage, err), TraceID: logger.TraceID(ctx)})
		return
	}
	l.log.Warn("loop_error", attrs...)
}

func (l *Loop) recordIndicators(s indicator.Snapshot) {
	if s.ATRReady {
		l.m.IndicatorValues.WithLabelValues("atr").Set(s.ATR)
	}
	if s.EMAReady {
		l.m.IndicatorValues.WithLabelValues("ema").Set(s.EMA)
	}
	if s.PercentBReady {
		l.m.IndicatorValues.WithLabelValues("percent_b").Set(s.PercentB)
	}
}

func (l *Loop) recordGate(ctx context.Context, res strategy.GateResult) {
	result := "fail"
	if res.Pass {
		result = "pass"
	}
	l.m.GateEvaluations.WithLabelValues(result).Inc()
	for _, c := range res.Failed {
		l.m.GateFailures.WithLabelValues(string(c)).Inc()
	}
	l.log.Debug("gate_check", append(logger.LogWithTrace(ctx),
		"pass", res.Pass, "failed", res.Failed, "close", res.Close,
		"percent_b", res.PercentB, "ema_ratio", res.EMARatio, "drawdown", res.Drawdown)...)
}

func (l *Loop) updateGauges() {
	s := l.engine.Snapshot()
	active := 0.0
	if s.CycleActive {
		active = 1
	}
	l.m.CycleActive.Set(active)
	l.m.OpenLadders.Set(float64(len(s.Ladders)))
	l.m.RealizedPnL.Set(s.RealizedPnL)
	l.m.FundsFree.Set(l.engine.FundsFree())
	l.m.NextBuyPrice.Set(s.NextBuyPrice)
}

// Status builds a point-in-time view of the bot.
func (l *Loop) Status() Status {
	s := l.engine.Snapshot()
	p := l.engine.Params()
	st := Status{
		Mode:            l.cfg.Mode,
		Symbol:          l.cfg.Symbol,
		CycleActive:     s.CycleActive,
		Paused:          l.paused,
		RealizedPnL:     s.RealizedPnL,
		ProfitTarget:    p.ProfitTarget,
		DailyTarget:     l.cfg.DailyTarget,
		Ladders:         s.Ladders,
		StepSize:        s.StepSize,
		NextBuyPrice:    s.NextBuyPrice,
		NextBuyQuantity: s.NextBuyQuantity,
		PendingBuys:     s.PendingBuys,
		FundsFree:       l.engine.FundsFree(),
		FundsCap:        p.FundsCap,
		Candles:         l.store.Len(),
		Indicators:      jsonSnapshot(l.lastSnap),
		LastGate:        jsonGate(l.lastGate),
		UpdatedAt:       l.now().UTC(),
	}
	if !l.lastCandle.OpenTime.IsZero() {
		c := l.lastCandle
		st.LastCandle = &c
		st.Day = session.StatusString(c.EventTime())
	}
	return st
}
