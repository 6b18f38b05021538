package gateway

import (
	"context"
	"log"

	goredis "github.com/go-redis/redis/v8"
)

// RunRedis relays the Redis events channel to WebSocket clients, letting the
// dashboard follow a bot running in another process. Blocks until ctx is
// cancelled.
func (h *Hub) RunRedis(ctx context.Context, rdb *goredis.Client, channel string) {
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Printf("[gateway] subscribed to %s", channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast("event", []byte(msg.Payload))
		}
	}
}
