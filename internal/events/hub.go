package events

import (
	"log/slog"
	"sync"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

const subscriberBuffer = 16

// Hub fans unlock events out to the subscribers of the unlocking user
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.LevelUnlockedEvent
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan models.LevelUnlockedEvent)}
}

// Subscribe registers a subscriber for userID. The returned cancel func
// removes it and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan models.LevelUnlockedEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan models.LevelUnlockedEvent, subscriberBuffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan models.LevelUnlockedEvent)
	}
	h.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Dispatch delivers event to the user's subscribers. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Dispatch(event models.LevelUnlockedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			slog.Warn("dropping unlock event for slow subscriber", "user_id", event.UserID, "subscriber", id)
		}
	}
}

// Subscribers returns the number of live subscribers of a user
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
