package broker

import "time"

// EventType classifies an inventory event
type EventType string

const (
	EventItemAdded    EventType = "item_added"
	EventItemRemoved  EventType = "item_removed"
	EventItemDeleted  EventType = "item_deleted"
	EventExpiryAlert  EventType = "expiry_alert"
	EventNotification EventType = "notification"
)

// InventoryEvent is the envelope published for every inventory mutation and
// expiry alert. Consumers feed the notification hub; ordering across users is
// not guaranteed and not required.
type InventoryEvent struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"userId"`
	ItemID   uint      `json:"itemId,omitempty"`
	ItemName string    `json:"itemName,omitempty"`
	Quantity int       `json:"quantity,omitempty"`
	// Kind carries the notification kind for alert events so consumers
	// deliver the same classification the originating node derived.
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
