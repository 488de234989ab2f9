package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 32

// Hub is the in-process bus. Each subscriber gets a buffered channel; a full
// channel drops the event for that subscriber instead of blocking publishers.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*hubSub]struct{}
	queueSize int
}

type hubSub struct {
	ch chan Event
}

func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[*hubSub]struct{}),
		queueSize: defaultQueueSize,
	}
}

func (h *Hub) Join(room string) *Subscription {
	sub := &hubSub{ch: make(chan Event, h.queueSize)}

	h.mu.Lock()
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*hubSub]struct{})
		h.rooms[room] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return &Subscription{
		C: sub.ch,
		leave: func() {
			once.Do(func() {
				// Closing under the write lock keeps Publish, which sends
				// under the read lock, from racing a send against the close.
				h.mu.Lock()
				if set, ok := h.rooms[room]; ok {
					delete(set, sub)
					if len(set) == 0 {
						delete(h.rooms, room)
					}
				}
				close(sub.ch)
				h.mu.Unlock()
			})
		},
	}
}

func (h *Hub) Publish(_ context.Context, room string, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		select {
		case s.ch <- ev:
		default:
			log.Warn().Str("module", "bus").Str("room", room).Str("type", string(ev.Type)).Msg("slow subscriber, event dropped")
		}
	}
	return nil
}
