package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
	got    chan struct{}
}

func newCapture() *captureNotifier {
	return &captureNotifier{got: make(chan struct{}, 16)}
}

func (c *captureNotifier) Send(_ context.Context, a Alert) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
	c.got <- struct{}{}
	return c.err
}

func TestAlertForMapping(t *testing.T) {
	tests := []struct {
		kind  model.EventKind
		ok    bool
		level AlertLevel
	}{
		{model.EventSellFill, true, AlertInfo},
		{model.EventTargetHit, true, AlertInfo},
		{model.EventLiquidation, true, AlertWarning},
		{model.EventOrderError, true, AlertWarning},
		{model.EventInvariant, true, AlertCritical},
		{model.EventBuyPlaced, false, ""},
		{model.EventSellPlaced, false, ""},
		{model.EventCandleClosed, false, ""},
	}
	for _, tt := range tests {
		a, ok := AlertFor(model.Event{Kind: tt.kind, Symbol: "DOGEFDUSD"})
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.kind, ok, tt.ok)
			continue
		}
		if ok && a.Level != tt.level {
			t.Errorf("%s: level = %s, want %s", tt.kind, a.Level, tt.level)
		}
		if ok && a.Symbol != "DOGEFDUSD" {
			t.Errorf("%s: symbol = %q", tt.kind, a.Symbol)
		}
	}
}

func TestSellFillMessage(t *testing.T) {
	a, _ := AlertFor(model.Event{Kind: model.EventSellFill, Price: 0.211, Quantity: 300, PnL: 0.3, RealizedPnL: 0.3})
	if !strings.Contains(a.Message, "0.21100") || !strings.Contains(a.Message, "+0.3000") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestSinkDeliversInOrder(t *testing.T) {
	c := newCapture()
	s := NewEventSink(c, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Emit(ctx, model.Event{Kind: model.EventBuyPlaced})
	s.Emit(ctx, model.Event{Kind: model.EventSellFill})
	s.Emit(ctx, model.Event{Kind: model.EventTargetHit})

	for i := 0; i < 2; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for alert")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.alerts) != 2 || c.alerts[0].Title != "Take-profit filled" || c.alerts[1].Title != "Profit target reached" {
		t.Errorf("alerts = %+v", c.alerts)
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	s := NewEventSink(newCapture(), 1)
	drops := 0
	s.OnDrop = func() { drops++ }

	// No worker running: the second alert has nowhere to go.
	s.Emit(context.Background(), model.Event{Kind: model.EventSellFill})
	s.Emit(context.Background(), model.Event{Kind: model.EventSellFill})
	if drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	a, b := newCapture(), newCapture()
	b.err = errors.New("down")
	err := Multi{a, b}.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("err = %v", err)
	}
	if len(a.alerts) != 1 || len(b.alerts) != 1 {
		t.Error("every backend should be called")
	}
}

func TestTelegramSend(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	if err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "Invariant violation", Message: "x.y"}); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if body["chat_id"] != "42" || !strings.Contains(body["text"].(string), `x\.y`) {
		t.Errorf("body = %v", body)
	}
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v", err)
	}
}

func TestDiscordEmbed(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Send(context.Background(), Alert{Level: AlertWarning, Title: "Order failed", Symbol: "DOGEFDUSD"})
	if err != nil {
		t.Fatal(err)
	}
	var msg discordMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Embeds) != 1 || msg.Embeds[0].Color != 0xF1C40F || !strings.Contains(msg.Embeds[0].Title, "DOGEFDUSD Order failed") {
		t.Errorf("msg = %+v", msg)
	}
}
