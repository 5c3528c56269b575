package models

import "github.com/jinzhu/gorm"

// Notification is a message pushed to a shopkeeper, either from the expiry
// scanner or from system events. Notifications referencing an item are
// cleaned up when the item is deleted.
type Notification struct {
	gorm.Model
	UserID  string `gorm:"index;not null"`
	ItemID  uint   `gorm:"index"`
	Kind    NotificationKind
	Message string
	Read    bool
}

// NotificationKind classifies a notification
type NotificationKind string

const (
	NotifyExpiryUpcoming NotificationKind = "expiry_upcoming"
	NotifyExpired        NotificationKind = "expired"
	NotifySystem         NotificationKind = "system"
)
