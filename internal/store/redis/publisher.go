// Package redis publishes strategy events and status snapshots to Redis so
// dashboards and other processes can follow the bot without touching it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// EventsChannel carries every strategy event as JSON.
	EventsChannel = "grid:events"
	// StatusKey is a hash holding the latest status snapshot.
	StatusKey = "grid:status"

	defaultQueueSize  = 256
	defaultMaxPending = 1000
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Backend is the subset of Redis the publisher needs.
type Backend interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	HSet(ctx context.Context, key string, fields map[string]interface{}) error
}

type clientBackend struct{ c *goredis.Client }

func (b clientBackend) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.c.Publish(ctx, channel, payload).Err()
}

func (b clientBackend) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	return b.c.HSet(ctx, key, fields).Err()
}

// Dial connects to Redis and pings it.
func Dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}

type op struct {
	event  []byte
	status map[string]interface{}
}

// Publisher queues events and status updates and writes them from a single
// worker through a circuit breaker. While the breaker is open, events are
// held (oldest dropped beyond maxPending) and replayed in order once Redis
// recovers; only the newest status is kept.
type Publisher struct {
	b     Backend
	cb    *CircuitBreaker
	queue chan op

	mu         sync.Mutex
	pending    [][]byte
	status     map[string]interface{}
	maxPending int

	// Optional hooks for metrics.
	OnPublish func()
	OnDrop    func()
}

// NewPublisher creates a Publisher. Run must be started.
func NewPublisher(b Backend, cb *CircuitBreaker) *Publisher {
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	return &Publisher{
		b:          b,
		cb:         cb,
		queue:      make(chan op, defaultQueueSize),
		maxPending: defaultMaxPending,
	}
}

// NewClientPublisher wraps a go-redis client.
func NewClientPublisher(c *goredis.Client, cb *CircuitBreaker) *Publisher {
	return NewPublisher(clientBackend{c}, cb)
}

// Emit implements model.EventSink. It never blocks.
func (p *Publisher) Emit(_ context.Context, ev model.Event) {
	p.enqueue(op{event: ev.JSON()})
}

// PublishStatus queues an HSET of the status hash.
func (p *Publisher) PublishStatus(fields map[string]interface{}) {
	p.enqueue(op{status: fields})
}

func (p *Publisher) enqueue(o op) {
	select {
	case p.queue <- o:
	default:
		p.drop()
	}
}

func (p *Publisher) drop() {
	if p.OnDrop != nil {
		p.OnDrop()
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-p.queue:
			p.handle(ctx, o)
		}
	}
}

func (p *Publisher) handle(ctx context.Context, o op) {
	if !p.flush(ctx) {
		p.hold(o)
		return
	}
	if err := p.write(ctx, o); err != nil {
		if !errors.Is(err, ErrCircuitOpen) {
			log.Printf("[redis] publish failed: %v", err)
		}
		p.hold(o)
	}
}

func (p *Publisher) write(ctx context.Context, o op) error {
	return p.cb.Execute(func() error {
		if o.status != nil {
			return p.b.HSet(ctx, StatusKey, o.status)
		}
		if err := p.b.Publish(ctx, EventsChannel, o.event); err != nil {
			return err
		}
		if p.OnPublish != nil {
			p.OnPublish()
		}
		return nil
	})
}

func (p *Publisher) hold(o op) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.status != nil {
		p.status = o.status
		return
	}
	if len(p.pending) >= p.maxPending {
		p.pending = p.pending[1:]
		p.drop()
	}
	p.pending = append(p.pending, o.event)
}

// flush replays held writes. It reports false if anything is still held.
func (p *Publisher) flush(ctx context.Context) bool {
	p.mu.Lock()
	events, status := p.pending, p.status
	p.pending, p.status = nil, nil
	p.mu.Unlock()

	if len(events) == 0 && status == nil {
		return true
	}

	for i, ev := range events {
		if err := p.write(ctx, op{event: ev}); err != nil {
			p.mu.Lock()
			p.pending = append(events[i:len(events):len(events)], p.pending...)
			if p.status == nil {
				p.status = status
			}
			p.mu.Unlock()
			return false
		}
	}
	if status != nil {
		if err := p.write(ctx, op{status: status}); err != nil {
			p.mu.Lock()
			if p.status == nil {
				p.status = status
			}
			p.mu.Unlock()
			return false
		}
	}
	log.Printf("[redis] flushed %d held events", len(events))
	return true
}

// Pending returns the number of held events.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
