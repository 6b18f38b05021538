package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// DefaultQueueSize bounds the number of alerts waiting for delivery.
const DefaultQueueSize = 64

// EventSink turns strategy events into alerts and delivers them from a single
// background worker. Emit never blocks; alerts are dropped when the queue
// is full.
type EventSink struct {
	n       Notifier
	queue   chan Alert
	timeout time.Duration

	// OnDrop is called once per dropped alert.
	OnDrop func()
}

// NewEventSink creates a EventSink delivering through n. Run must be started for
// alerts to go anywhere.
func NewEventSink(n Notifier, queueSize int) *EventSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &EventSink{
		n:       n,
		queue:   make(chan Alert, queueSize),
		timeout: 10 * time.Second,
	}
}

// Emit implements model.EventSink.
func (s *EventSink) Emit(_ context.Context, ev model.Event) {
	a, ok := AlertFor(ev)
	if !ok {
		return
	}
	select {
	case s.queue <- a:
	default:
		log.Printf("[notify] queue full, dropping %s alert", ev.Kind)
		if s.OnDrop != nil {
			s.OnDrop()
		}
	}
}

// Run delivers queued alerts until ctx is cancelled. Delivery errors are
// logged and never retried.
func (s *EventSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.queue:
			sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
			if err := s.n.Send(sendCtx, a); err != nil {
				log.Printf("[notify] delivery failed: %v", err)
			}
			cancel()
		}
	}
}

// AlertFor maps an event to an alert. ok is false for events that are too
// frequent to notify on (placements, candles).
func AlertFor(ev model.Event) (a Alert, ok bool) {
	a = Alert{Level: AlertInfo, Symbol: ev.Symbol}
	switch ev.Kind {
	case model.EventCycleStart:
		a.Title = "Cycle started"
		a.Message = fmt.Sprintf("entry %.5f, ATR %.5f", ev.Price, ev.ATR)
	case model.EventBuyFill:
		a.Title = "Buy filled"
		a.Message = fmt.Sprintf("bought %g @ %.5f", ev.Quantity, ev.Price)
	case model.EventSellFill:
		a.Title = "Take-profit filled"
		a.Message = fmt.Sprintf("sold %g @ %.5f, pnl %+.4f, realized %.4f", ev.Quantity, ev.Price, ev.PnL, ev.RealizedPnL)
	case model.EventTargetHit:
		a.Title = "Profit target reached"
		a.Message = fmt.Sprintf("realized %.4f (target %.4f)", ev.RealizedPnL, ev.Target)
	case model.EventLiquidation:
		a.Level = AlertWarning
		a.Title = "Cycle liquidated"
		a.Message = fmt.Sprintf("closed %g ladders @ %.5f, realized %.4f", ev.Quantity, ev.Price, ev.RealizedPnL)
		if ev.Message != "" {
			a.Message += ": " + ev.Message
		}
	case model.EventOrderError:
		a.Level = AlertWarning
		a.Title = "Order failed"
		a.Message = fmt.Sprintf("%s @ %.5f: %s", ev.Side, ev.Price, ev.Message)
	case model.EventInvariant:
		a.Level = AlertCritical
		a.Title = "Invariant violation"
		a.Message = ev.Message
	case model.EventDayReset:
		a.Title = "New trading day"
		a.Message = ev.Message
	case model.EventPaused:
		a.Level = AlertWarning
		a.Title = "Trading paused"
		a.Message = ev.Message
	case model.EventResumed:
		a.Title = "Trading resumed"
		a.Message = ev.Message
	default:
		return Alert{}, false
	}
	return a, true
}
