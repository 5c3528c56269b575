package notify

import (
	"context"
	"fmt"
	"time"

	"kirana/internal/broker"
	"kirana/internal/models"
	"kirana/internal/util"

	"go.uber.org/zap"
)

// ExpiryStore is the store slice the scanner reads and writes.
type ExpiryStore interface {
	ItemsWithExpiry(ctx context.Context) ([]models.InventoryItem, error)
	MarkAlerted(ctx context.Context, itemID uint, status models.ExpiryStatus, at time.Time) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// EventSink publishes expiry alerts for downstream consumers. Optional.
type EventSink interface {
	Publish(ctx context.Context, event broker.InventoryEvent) error
}

// Scanner periodically derives expiry statuses and raises at most one
// notification per status transition. Restocking with a fresh expiry resets
// the tracked status, so a replenished perishable alerts again.
type Scanner struct {
	store ExpiryStore
	hub   *Hub
	sink  EventSink
	log   *zap.Logger
}

// NewScanner creates an expiry scanner. sink may be nil.
func NewScanner(store ExpiryStore, hub *Hub, sink EventSink) *Scanner {
	return &Scanner{store: store, hub: hub, sink: sink, log: util.GetLogger()}
}

// Run scans on the given interval until the context is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Scan(ctx, time.Now()); err != nil {
				s.log.Warn("expiry scan failed", zap.Error(err))
			}
		}
	}
}

// Scan walks every expiry-tracked item once and alerts on status changes.
func (s *Scanner) Scan(ctx context.Context, now time.Time) error {
	items, err := s.store.ItemsWithExpiry(ctx)
	if err != nil {
		return fmt.Errorf("failed to load expiry items: %w", err)
	}

	for _, item := range items {
		status := item.ExpiryStatusAt(now)
		if status == item.ExpiryStatus {
			continue
		}

		if err := s.store.MarkAlerted(ctx, item.ID, status, now); err != nil {
			s.log.Warn("failed to record expiry status",
				zap.Uint("item", item.ID), zap.Error(err))
			continue
		}

		notification := s.notificationFor(item, status, now)
		if notification == nil {
			continue
		}
		if err := s.store.CreateNotification(ctx, notification); err != nil {
			s.log.Warn("failed to store expiry notification",
				zap.Uint("item", item.ID), zap.Error(err))
			continue
		}

		// With a sink the alert travels through the broker and reaches the
		// hub via the consumer, so publishing locally too would deliver it
		// twice. Local delivery is the fallback path only.
		if s.sink == nil {
			s.hub.Publish(*notification)
			continue
		}
		event := broker.InventoryEvent{
			Type:     broker.EventExpiryAlert,
			UserID:   item.UserID,
			ItemID:   item.ID,
			ItemName: item.Name,
			Kind:     string(notification.Kind),
			Message:  notification.Message,
		}
		if err := s.sink.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish expiry event", zap.Error(err))
			s.hub.Publish(*notification)
		}
	}
	return nil
}

func (s *Scanner) notificationFor(item models.InventoryItem, status models.ExpiryStatus, now time.Time) *models.Notification {
	switch status {
	case models.ExpiryUpcoming:
		days := int(item.ExpiryDate.Sub(now).Hours() / 24)
		return &models.Notification{
			UserID:  item.UserID,
			ItemID:  item.ID,
			Kind:    models.NotifyExpiryUpcoming,
			Message: fmt.Sprintf("%s expires in %d day(s).", item.Name, days),
		}
	case models.ExpiryExpired:
		if !item.NotifyExpired {
			return nil
		}
		return &models.Notification{
			UserID:  item.UserID,
			ItemID:  item.ID,
			Kind:    models.NotifyExpired,
			Message: fmt.Sprintf("%s has expired. Remove it from the shelf.", item.Name),
		}
	default:
		return nil
	}
}
