// Package ws streams Binance klines for one symbol into the strategy loop.
package ws

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/pkg/binance"
)

// IngestConfig holds configuration for the kline ingest.
type IngestConfig struct {
	StreamURL string // base, e.g. wss://stream.binance.com:9443/ws
	Symbol    string // e.g. DOGEFDUSD
	Interval  string // e.g. 15m
}

// Ingest connects to the Binance kline stream and pushes every update,
// closed or not, into the output channel. Filtering is the consumer's job.
type Ingest struct {
	cfg    IngestConfig
	stream *binance.Stream

	// Optional hooks for health and metrics.
	OnConnect    func()
	OnDisconnect func(err error)
}

// New creates a new Ingest instance.
func New(cfg IngestConfig) *Ingest {
	ing := &Ingest{cfg: cfg}
	ing.stream = binance.NewStream(binance.StreamConfig{
		URL:  binance.KlineStreamURL(cfg.StreamURL, cfg.Symbol, cfg.Interval),
		Name: "market",
	})
	ing.stream.OnConnect = func() {
		if ing.OnConnect != nil {
			ing.OnConnect()
		}
	}
	ing.stream.OnDisconnect = func(err error) {
		if ing.OnDisconnect != nil {
			ing.OnDisconnect(err)
		}
	}
	return ing
}

// Start streams kline events into out. Blocks until ctx is cancelled.
// Sends block, so a stalled consumer applies backpressure to the socket
// instead of losing a closed candle.
func (ing *Ingest) Start(ctx context.Context, out chan<- model.KlineEvent) error {
	return ing.stream.Run(ctx, func(raw []byte) {
		k, err := binance.ParseKline(raw)
		if err != nil {
			if !errors.Is(err, binance.ErrNotKline) {
				log.Printf("[ws] parse error: %v", err)
			}
			return
		}
		if !strings.EqualFold(k.Symbol, ing.cfg.Symbol) {
			return
		}

		select {
		case out <- toEvent(k):
		case <-ctx.Done():
		}
	})
}

// toEvent converts a wire kline into the model type.
func toEvent(k binance.Kline) model.KlineEvent {
	return model.KlineEvent{
		Symbol: strings.ToUpper(k.Symbol),
		Closed: k.Closed,
		Candle: model.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      k.Open.InexactFloat64(),
			High:      k.High.InexactFloat64(),
			Low:       k.Low.InexactFloat64(),
			Close:     k.Close.InexactFloat64(),
			Volume:    k.Volume.InexactFloat64(),
		},
	}
}
