package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/metrics"
)

const (
	// EventsChannel is the Redis pub/sub channel shared by all instances.
	EventsChannel = "diary:events"

	EventEntrySaved = "entry.saved"

	subscriberBuffer = 16
)

// Event is the payload broadcast over Redis and WebSocket.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	EntryID   string    `json:"entry_id,omitempty"`
	Created   bool      `json:"created"`
	Streak    *int      `json:"streak,omitempty"` // set when the save created an entry
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is one open live-update connection. Events arrive on Send; a
// subscriber that falls behind misses events rather than stalling the hub.
type Subscriber struct {
	UserID string
	Send   chan Event
}

// Hub fans events out to the local connections of each user. Events published
// on one instance reach the others through Redis.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Subscriber]struct{}

	redis *redis.Client
	log   *zap.Logger
}

// NewHub returns a hub. With a nil client events only reach this instance.
func NewHub(client *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conns: make(map[string]map[*Subscriber]struct{}),
		redis: client,
		log:   log,
	}
}

func (h *Hub) Register(userID string) *Subscriber {
	sub := &Subscriber{UserID: userID, Send: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.conns[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	return sub
}

// Unregister removes sub and closes its Send channel. Calling it twice is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[sub.UserID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.conns, sub.UserID)
	}
	close(sub.Send)
	metrics.LiveConnections.Dec()
}

// FanOut delivers ev to every local connection of ev.UserID.
func (h *Hub) FanOut(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.conns[ev.UserID] {
		select {
		case sub.Send <- ev:
		default:
			h.log.Warn("dropping live event for slow subscriber", zap.String("user_id", ev.UserID))
		}
	}
}

// Publish broadcasts ev to all instances.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if h.redis == nil {
		h.FanOut(ev)
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, EventsChannel, data).Err()
}

// Run relays events from Redis to local connections until ctx is done,
// resubscribing with backoff when the subscription breaks.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	backoff := time.Second

	for ctx.Err() == nil {
		func() {
			pubsub := h.redis.Subscribe(ctx, EventsChannel)
			defer pubsub.Close()

			h.log.Info("live event subscriber started", zap.String("channel", EventsChannel))

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.log.Warn("redis subscriber error", zap.Error(err), zap.Duration("backoff", backoff))
					select {
					case <-ctx.Done():
					case <-time.After(backoff):
					}
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}
				backoff = time.Second

				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					h.log.Warn("failed to unmarshal live event", zap.Error(err))
					continue
				}
				h.FanOut(ev)
			}
		}()
	}
}
