// Package notify delivers notifications to connected clients. The core only
// depends on the subscribe capability, not on any concrete stream transport.
package notify

import (
	"context"
	"sync"

	"kirana/internal/broker"
	"kirana/internal/models"
)

// Hub fans notifications out to per-user subscribers. Subscribe returns an
// unsubscribe func; callbacks run on the publisher's goroutine and must not
// block.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(models.Notification)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]func(models.Notification))}
}

// Subscribe registers a callback for a user's notifications.
func (h *Hub) Subscribe(userID string, fn func(models.Notification)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]func(models.Notification))
	}
	id := h.nextID
	h.nextID++
	h.subs[userID][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Publish delivers a notification to the user's subscribers.
func (h *Hub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.subs[n.UserID] {
		fn(n)
	}
}

// HandleEvent adapts consumed broker events into hub deliveries, used as the
// Kafka consumer's handler. Events without a message are mutation telemetry,
// not notifications, and are not delivered.
func (h *Hub) HandleEvent(ctx context.Context, event broker.InventoryEvent) error {
	if event.Message == "" {
		return nil
	}

	kind := models.NotificationKind(event.Kind)
	switch kind {
	case models.NotifyExpiryUpcoming, models.NotifyExpired:
	default:
		kind = models.NotifySystem
	}

	h.Publish(models.Notification{
		UserID:  event.UserID,
		ItemID:  event.ItemID,
		Kind:    kind,
		Message: event.Message,
	})
	return nil
}
