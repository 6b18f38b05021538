package execution

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/pkg/binance"
)

func newBinanceTest(t *testing.T, h http.HandlerFunc) *BinanceTransport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := binance.NewClient(binance.Config{APIKey: "k", APISecret: "s", BaseURL: srv.URL})
	return NewBinanceTransport(c, BinanceConfig{Symbol: "DOGEFDUSD", TickSize: 0.00001, QtyStep: 1})
}

func TestBinanceTransport_SubmitFormatsToFilters(t *testing.T) {
	b := newBinanceTest(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("price") != "0.21" || q.Get("quantity") != "300" || q.Get("type") != "LIMIT_MAKER" {
			t.Errorf("unexpected order params %v", q)
		}
		w.Write([]byte(`{"clientOrderId":"` + q.Get("newClientOrderId") + `","status":"NEW"}`))
	})

	id, err := b.Submit(context.Background(), model.SideBuy, 0.2100000003, 300.7)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected client order id")
	}
}

func TestBinanceTransport_WouldTakeMapsToSentinel(t *testing.T) {
	b := newBinanceTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Order would immediately match and take."}`))
	})
	_, err := b.Submit(context.Background(), model.SideSell, 0.21, 300)
	if !errors.Is(err, model.ErrWouldTake) {
		t.Fatalf("expected model.ErrWouldTake, got %v", err)
	}
}

func TestBinanceTransport_OtherRejectionPassesThrough(t *testing.T) {
	b := newBinanceTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	})
	_, err := b.Submit(context.Background(), model.SideBuy, 0.21, 300)
	if err == nil || errors.Is(err, model.ErrWouldTake) {
		t.Fatalf("expected plain API error, got %v", err)
	}
}

func TestBinanceTransport_SubmitRejectsDustQuantity(t *testing.T) {
	b := newBinanceTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := b.Submit(context.Background(), model.SideBuy, 0.21, 0.4); err == nil {
		t.Error("quantity below one lot must be rejected")
	}
}

func TestBinanceTransport_ParseFill(t *testing.T) {
	b := NewBinanceTransport(binance.NewClient(binance.Config{}), BinanceConfig{Symbol: "DOGEFDUSD"})

	filled := []byte(`{"e":"executionReport","E":1,"s":"DOGEFDUSD","c":"grid-1","S":"SELL","o":"LIMIT_MAKER",
		"q":"300","p":"0.211","x":"TRADE","X":"FILLED","l":"300","z":"300","L":"0.211","Z":"63.3","T":1717200904000}`)
	f, ok := b.parseFill(filled)
	if !ok {
		t.Fatal("expected a fill")
	}
	if f.OrderID != "grid-1" || f.Side != model.SideSell || f.Quantity != 300 || !near(f.Price, 0.211) {
		t.Errorf("unexpected fill %+v", f)
	}

	partial := []byte(`{"e":"executionReport","s":"DOGEFDUSD","c":"grid-2","S":"BUY","X":"PARTIALLY_FILLED","z":"10","Z":"2.1"}`)
	if _, ok := b.parseFill(partial); ok {
		t.Error("partial fills are not reported")
	}
	other := []byte(`{"e":"executionReport","s":"BTCUSDT","c":"x","S":"BUY","X":"FILLED","z":"1","Z":"1"}`)
	if _, ok := b.parseFill(other); ok {
		t.Error("other symbols are ignored")
	}
}
