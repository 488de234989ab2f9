package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus bridges the in-process hub across processes. Publish goes to a
// redis channel per room; one subscriber goroutine per room feeds whatever
// arrives back into the local hub. Delivery is at-least-once and ordered per
// publisher only, which is all the sessions rely on.
type RedisBus struct {
	client *redis.Client
	local  *Hub

	mu     sync.Mutex
	relays map[string]*relay
}

type relay struct {
	refs   int
	cancel context.CancelFunc
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{
		client: client,
		local:  NewHub(),
		relays: make(map[string]*relay),
	}
}

func channelFor(room string) string {
	return "chat:" + room
}

func (b *RedisBus) Join(room string) *Subscription {
	sub := b.local.Join(room)

	b.mu.Lock()
	r, ok := b.relays[room]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		r = &relay{cancel: cancel}
		b.relays[room] = r
		go b.relayLoop(ctx, room)
	}
	r.refs++
	b.mu.Unlock()

	inner := sub.leave
	var once sync.Once
	sub.leave = func() {
		once.Do(func() {
			inner()
			b.mu.Lock()
			if r, ok := b.relays[room]; ok {
				r.refs--
				if r.refs == 0 {
					r.cancel()
					delete(b.relays, room)
				}
			}
			b.mu.Unlock()
		})
	}
	return sub
}

func (b *RedisBus) Publish(ctx context.Context, room string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("bus marshal: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(room), payload).Err(); err != nil {
		return fmt.Errorf("bus publish: %w", err)
	}
	return nil
}

func (b *RedisBus) relayLoop(ctx context.Context, room string) {
	pubsub := b.client.Subscribe(ctx, channelFor(room))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Error().Err(err).Str("module", "bus").Str("room", room).Msg("bad event payload")
				continue
			}
			_ = b.local.Publish(ctx, room, ev)
		}
	}
}
