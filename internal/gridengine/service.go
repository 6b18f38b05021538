package gridengine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/config"
	"github.com/Shubhamshinde5080/DogeBOT/internal/candlestore"
	"github.com/Shubhamshinde5080/DogeBOT/internal/execution"
	"github.com/Shubhamshinde5080/DogeBOT/internal/gateway"
	"github.com/Shubhamshinde5080/DogeBOT/internal/marketdata/ws"
	"github.com/Shubhamshinde5080/DogeBOT/internal/metrics"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/internal/notification"
	redisstore "github.com/Shubhamshinde5080/DogeBOT/internal/store/redis"
	"github.com/Shubhamshinde5080/DogeBOT/internal/strategy"
	"github.com/Shubhamshinde5080/DogeBOT/pkg/binance"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Control commands accepted by Service.Control.
const (
	CmdPause     = "pause"
	CmdResume    = "resume"
	CmdLiquidate = "liquidate"
)

type command struct {
	kind  string
	reply chan error
}

// Service wires the bot together and owns the goroutine that mutates
// strategy state.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	reg    *prometheus.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus

	loop   *Loop
	source model.CandleSource
	paper  *execution.PaperTransport
	live   *execution.BinanceTransport

	journal   *execution.Journal
	rdb       *goredis.Client
	publisher *redisstore.Publisher
	notifier  *notification.EventSink
	hub       *gateway.Hub

	control chan command
	status  atomic.Pointer[Status]
}

// Option customises a Service.
type Option func(*Service)

// WithCandleSource replaces the Binance kline stream.
func WithCandleSource(src model.CandleSource) Option {
	return func(s *Service) { s.source = src }
}

// New builds a Service from cfg. Redis and SQLite are optional; failures to
// reach them are logged and the bot runs without them.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:     cfg,
		log:     logger.With(slog.String("component", "service")),
		reg:     prometheus.NewRegistry(),
		health:  metrics.NewHealthStatus(cfg.Mode),
		hub:     gateway.NewHub(500),
		control: make(chan command),
	}
	s.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.prom = metrics.NewMetrics(s.reg)

	for _, o := range opts {
		o(s)
	}

	sinks := model.MultiSink{}

	if cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			log.Printf("[gridbot] WARNING: create journal dir: %v", err)
		}
		j, err := execution.NewJournal(cfg.SQLitePath, cfg.Symbol, cfg.Mode)
		if err != nil {
			log.Printf("[gridbot] WARNING: journal init failed: %v (continuing without trade journal)", err)
		} else {
			s.journal = j
			sinks = append(sinks, j)
		}
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Dial(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[gridbot] WARNING: %v (continuing without Redis)", err)
		} else {
			s.rdb = rdb
			s.publisher = redisstore.NewClientPublisher(rdb, s.newBreaker())
			s.publisher.OnPublish = s.prom.EventsPublished.Inc
			s.publisher.OnDrop = s.prom.EventsDropped.WithLabelValues("redis").Inc
			sinks = append(sinks, s.publisher)
		}
	}
	if s.rdb == nil {
		// Without Redis the dashboard is fed in-process.
		sinks = append(sinks, s.hub)
	}

	s.notifier = notification.NewEventSink(s.buildNotifier(), 0)
	s.notifier.OnDrop = s.prom.EventsDropped.WithLabelValues("notify").Inc
	sinks = append(sinks, s.notifier)

	var transport model.OrderTransport
	if cfg.Mode == config.ModeLive {
		client := binance.NewClient(binance.Config{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		})
		s.live = execution.NewBinanceTransport(client, execution.BinanceConfig{
			Symbol:    cfg.Symbol,
			TickSize:  cfg.TickSize,
			QtyStep:   cfg.QtyStep,
			StreamURL: cfg.StreamURL,
		})
		s.live.OnConnect = func() { s.health.SetUserStreamOK(true) }
		s.live.OnDisconnect = func(error) {
			s.health.SetUserStreamOK(false)
			s.prom.WSReconnects.WithLabelValues("user").Inc()
		}
		transport = s.live
	} else {
		s.paper = execution.NewPaperTransport(cfg.PaperStrictMaker)
		transport = s.paper
	}

	gw := execution.NewGateway(transport, cfg.GatewayConfig(), s.prom, logger)
	engine := strategy.NewLadderEngine(cfg.Symbol, cfg.Strategy, gw, sinks, logger)
	s.loop = NewLoop(LoopConfig{
		Symbol:          cfg.Symbol,
		Mode:            cfg.Mode,
		IndicatorWindow: cfg.IndicatorWindow,
		DailyTarget:     cfg.DailyTarget,
		Indicators:      cfg.Indicators,
		Gate:            cfg.Gate,
	}, candlestore.New(cfg.StoreCapacity), engine, sinks, s.prom, logger)
	if s.journal != nil {
		s.loop.SetJournal(s.journal)
	}
	if s.paper != nil {
		s.loop.OnClosed = func(ctx context.Context, c model.Candle) {
			for _, f := range s.paper.OnCandle(c) {
				s.loop.HandleFill(ctx, f)
			}
		}
	}

	if s.source == nil {
		ing := ws.New(ws.IngestConfig{StreamURL: cfg.StreamURL, Symbol: cfg.Symbol, Interval: cfg.Interval})
		ing.OnConnect = func() { s.health.SetWSConnected(true) }
		ing.OnDisconnect = func(error) {
			s.health.SetWSConnected(false)
			s.prom.WSReconnects.WithLabelValues("market").Inc()
		}
		s.source = ing
	} else {
		s.health.SetWSConnected(true)
	}

	s.publishStatus()
	return s, nil
}

func (s *Service) newBreaker() *redisstore.CircuitBreaker {
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		s.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			s.prom.RedisCircuitBreakerTrips.Inc()
		}
	}
	return cb
}

func (s *Service) buildNotifier() notification.Notifier {
	var ns notification.Multi
	if s.cfg.TelegramToken != "" && s.cfg.TelegramChatID != "" {
		ns = append(ns, notification.NewTelegramNotifier(s.cfg.TelegramToken, s.cfg.TelegramChatID))
	}
	if s.cfg.DiscordWebhook != "" {
		ns = append(ns, notification.NewDiscordNotifier(s.cfg.DiscordWebhook))
	}
	if s.cfg.WebhookURL != "" {
		ns = append(ns, notification.NewWebhookNotifier(s.cfg.WebhookURL))
	}
	if len(ns) == 0 {
		return notification.NewLogNotifier()
	}
	return ns
}

// Run starts every subsystem and blocks until ctx is cancelled or one of
// them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	candles := make(chan model.KlineEvent, 64)
	g.Go(func() error {
		if err := s.source.Start(ctx, candles); err != nil {
			return fmt.Errorf("candle source: %w", err)
		}
		return nil
	})

	var fills <-chan model.Fill
	if s.live != nil {
		fills = s.live.Fills()
		g.Go(func() error { return s.live.RunUserStream(ctx) })
	}

	g.Go(func() error { s.notifier.Run(ctx); return nil })
	if s.publisher != nil {
		g.Go(func() error { s.publisher.Run(ctx); return nil })
		g.Go(func() error { s.hub.RunRedis(ctx, s.rdb, redisstore.EventsChannel); return nil })
	}

	var sqlDB *sql.DB
	if s.journal != nil {
		sqlDB = s.journal.DB()
		s.health.CheckSQLite(ctx, sqlDB)
	}
	if s.rdb != nil {
		s.health.CheckRedis(ctx, s.rdb)
	}
	if s.rdb != nil || sqlDB != nil {
		s.health.StartLivenessChecker(ctx, s.rdb, sqlDB, 15*time.Second)
	}

	if s.cfg.HTTPAddr != "" {
		g.Go(func() error { return s.serveHTTP(ctx) })
	}

	s.log.Info("started", "mode", s.cfg.Mode, "symbol", s.cfg.Symbol, "interval", s.cfg.Interval,
		"redis", s.rdb != nil, "journal", s.journal != nil, "http", s.cfg.HTTPAddr)

	g.Go(func() error { return s.process(ctx, candles, fills) })

	err := g.Wait()
	s.shutdown()
	return err
}

// process is the only goroutine that touches the loop.
func (s *Service) process(ctx context.Context, candles <-chan model.KlineEvent, fills <-chan model.Fill) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-candles:
			s.loop.HandleCandle(ctx, ev)
			if !ev.Closed {
				continue
			}
			s.health.SetLastCandleTime(ev.EventTime())
		case f := <-fills:
			s.loop.HandleFill(ctx, f)
		case cmd := <-s.control:
			err := s.exec(ctx, cmd.kind)
			s.publishStatus()
			cmd.reply <- err
			continue
		}
		s.publishStatus()
	}
}

func (s *Service) exec(ctx context.Context, kind string) error {
	switch kind {
	case CmdPause:
		s.loop.Pause(ctx, "operator")
	case CmdResume:
		s.loop.Resume(ctx)
	case CmdLiquidate:
		return s.loop.Liquidate(ctx)
	default:
		return fmt.Errorf("unknown command %q", kind)
	}
	return nil
}

// Control hands a command to the processing goroutine and waits for it.
func (s *Service) Control(ctx context.Context, kind string) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case s.control <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the last published status.
func (s *Service) Status() *Status { return s.status.Load() }

func (s *Service) publishStatus() {
	st := s.loop.Status()
	s.status.Store(&st)
	if s.publisher != nil {
		s.publisher.PublishStatus(st.RedisFields())
	}
}

func (s *Service) shutdown() {
	if s.journal != nil {
		s.journal.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	log.Println("[gridbot] shutdown complete.")
}
