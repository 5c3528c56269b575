package store

import (
	"context"
	"fmt"

	"kirana/internal/models"
)

// CreateNotification persists a notification for later delivery and unread
// counting.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// Notifications returns a user's notifications, newest first.
func (s *Store) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationsRead marks all of a user's notifications as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID string) error {
	return s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}

// DeleteNotificationsForItems removes notifications referencing the given
// items. Called from the best-effort cleanup path after item deletion.
func (s *Store) DeleteNotificationsForItems(ctx context.Context, userID string, itemIDs []uint) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return s.db.Where("user_id = ? AND item_id IN (?)", userID, itemIDs).
		Delete(&models.Notification{}).Error
}
