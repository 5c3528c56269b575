package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kirana/internal/broker"
	"kirana/internal/models"
	"kirana/internal/tasks"
	"kirana/internal/util"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no item matches the given name.
	ErrNotFound = errors.New("item not found")
	// ErrInsufficientStock is returned when a removal exceeds current stock.
	ErrInsufficientStock = errors.New("insufficient quantity in stock")
)

// RemoveResult reports the outcome of a removal. Business-rule violations are
// carried in OK/Message; only infrastructure failures surface as errors.
type RemoveResult struct {
	OK        bool
	Message   string
	Deleted   bool
	Remaining int
}

// SetTaskQueue attaches the best-effort queue used for notification cleanup
// after deletions. Without a queue, cleanup is skipped.
func (s *Store) SetTaskQueue(q *tasks.Queue) {
	s.tasks = q
}

// AddOrUpdate creates or restocks an item inside a single transaction.
// Quantity accumulates, price is last-write-wins. A given expiry overwrites
// the existing one and resets the alert state so a restocked perishable is
// tracked fresh; an omitted expiry preserves whatever is stored.
func (s *Store) AddOrUpdate(ctx context.Context, userID, name string, qty int, price float64, expiry *time.Time) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	if price < 0 {
		return nil, fmt.Errorf("price must not be negative, got %v", price)
	}

	normalized := models.NormalizeName(name)
	if normalized == "" {
		return nil, errors.New("item name must not be empty")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var item models.InventoryItem
	err := tx.Where("user_id = ? AND normalized_name = ?", userID, normalized).
		First(&item).Error

	switch {
	case gorm.IsRecordNotFoundError(err):
		item = models.InventoryItem{
			UserID:         userID,
			Name:           name,
			NormalizedName: normalized,
			Category:       string(models.CategoryFor(name)),
			Quantity:       qty,
			Price:          price,
		}
		if expiry != nil {
			item.ExpiryDate = expiry
			item.ExpiryStatus = item.ExpiryStatusAt(time.Now())
			item.AlertDaysBefore = models.DefaultAlertDaysBefore
			item.NotifyExpired = true
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create item: %w", err)
		}

	case err != nil:
		tx.Rollback()
		return nil, fmt.Errorf("failed to look up item: %w", err)

	default:
		item.Quantity += qty
		item.Price = price
		if expiry != nil {
			item.ExpiryDate = expiry
			item.ExpiryStatus = item.ExpiryStatusAt(time.Now())
			item.LastAlertedAt = nil
		}
		if err := tx.Save(&item).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to update item: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	util.ItemsAddedTotal.Inc()
	s.publishEvent(broker.InventoryEvent{
		Type:     broker.EventItemAdded,
		UserID:   userID,
		ItemID:   item.ID,
		ItemName: item.Name,
		Quantity: item.Quantity,
	})
	return &item, nil
}

// ClearExpiry drops the expiry tracking of an item without touching quantity
// or price.
func (s *Store) ClearExpiry(ctx context.Context, userID, name string) error {
	normalized := models.NormalizeName(name)

	var item models.InventoryItem
	err := s.db.Where("user_id = ? AND normalized_name = ?", userID, normalized).
		First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up item: %w", err)
	}

	updates := map[string]interface{}{
		"expiry_date":     nil,
		"expiry_status":   models.ExpiryNone,
		"last_alerted_at": nil,
	}
	if err := s.db.Model(&item).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to clear expiry: %w", err)
	}
	return nil
}

// Remove decrements stock by name. Removing more than is stocked fails and
// leaves the quantity unchanged; removing exactly the stocked quantity
// deletes the record and schedules cleanup of its notifications.
func (s *Store) Remove(ctx context.Context, userID, name string, qty int) (*RemoveResult, error) {
	if qty <= 0 {
		return &RemoveResult{OK: false, Message: "quantity must be positive"}, nil
	}

	normalized := models.NormalizeName(name)

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var item models.InventoryItem
	err := tx.Where("user_id = ? AND normalized_name = ?", userID, normalized).
		First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		tx.Rollback()
		util.MutationFailuresTotal.WithLabelValues("not_found").Inc()
		return &RemoveResult{
			OK:      false,
			Message: fmt.Sprintf("You don't have any %s in your inventory.", name),
		}, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to look up item: %w", err)
	}

	if qty > item.Quantity {
		tx.Rollback()
		util.MutationFailuresTotal.WithLabelValues("insufficient_stock").Inc()
		return &RemoveResult{
			OK:        false,
			Message:   fmt.Sprintf("You only have %d %s in stock, can't remove %d.", item.Quantity, item.Name, qty),
			Remaining: item.Quantity,
		}, nil
	}

	if qty == item.Quantity {
		if err := tx.Delete(&item).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to delete item: %w", err)
		}
		if err := tx.Commit().Error; err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}

		s.cleanupNotifications(userID, []uint{item.ID})
		util.ItemsDeletedTotal.Inc()
		s.publishEvent(broker.InventoryEvent{
			Type:     broker.EventItemDeleted,
			UserID:   userID,
			ItemID:   item.ID,
			ItemName: item.Name,
		})
		return &RemoveResult{
			OK:      true,
			Message: fmt.Sprintf("Removed all %d %s. The item is now out of your inventory.", qty, item.Name),
			Deleted: true,
		}, nil
	}

	item.Quantity -= qty
	if err := tx.Save(&item).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	util.ItemsRemovedTotal.Inc()
	s.publishEvent(broker.InventoryEvent{
		Type:     broker.EventItemRemoved,
		UserID:   userID,
		ItemID:   item.ID,
		ItemName: item.Name,
		Quantity: item.Quantity,
	})
	return &RemoveResult{
		OK:        true,
		Message:   fmt.Sprintf("Removed %d %s, %d left in stock.", qty, item.Name, item.Quantity),
		Remaining: item.Quantity,
	}, nil
}

// DeleteBatch deletes the given item ids in one transaction. Notification
// cleanup runs afterwards in the background; its failure never rolls the
// deletion back.
func (s *Store) DeleteBatch(ctx context.Context, userID string, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	res := tx.Where("user_id = ? AND id IN (?)", userID, ids).
		Delete(&models.InventoryItem{})
	if res.Error != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to delete items: %w", res.Error)
	}
	deleted := int(res.RowsAffected)

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	s.cleanupNotifications(userID, ids)
	s.publishEvent(broker.InventoryEvent{
		Type:     broker.EventItemDeleted,
		UserID:   userID,
		Quantity: deleted,
	})
	return deleted, nil
}

// Get returns an item by normalized name.
func (s *Store) Get(ctx context.Context, userID, name string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.Where("user_id = ? AND normalized_name = ?", userID, models.NormalizeName(name)).
		First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns all items of a user ordered by name.
func (s *Store) List(ctx context.Context, userID string) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.Where("user_id = ?", userID).
		Order("normalized_name").
		Find(&items).Error
	return items, err
}

// ListByIDs returns the user's items matching the given ids.
func (s *Store) ListByIDs(ctx context.Context, userID string, ids []uint) ([]models.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.InventoryItem
	err := s.db.Where("user_id = ? AND id IN (?)", userID, ids).Find(&items).Error
	return items, err
}

// Count returns the number of distinct items in a user's inventory, used by
// the usage gate.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.Model(&models.InventoryItem{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// ItemsWithExpiry returns every item carrying an expiry date, for the expiry
// scanner.
func (s *Store) ItemsWithExpiry(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.Where("expiry_date IS NOT NULL").Find(&items).Error
	return items, err
}

// MarkAlerted persists a derived expiry status and stamps the alert time.
func (s *Store) MarkAlerted(ctx context.Context, itemID uint, status models.ExpiryStatus, at time.Time) error {
	return s.db.Model(&models.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"expiry_status":   status,
			"last_alerted_at": at,
		}).Error
}

// publishEvent hands the event to the best-effort queue. Without a sink or a
// queue the event is dropped; publishing never blocks a mutation.
func (s *Store) publishEvent(event broker.InventoryEvent) {
	if s.events == nil || s.tasks == nil {
		return
	}
	s.tasks.Submit("event-publish", func(ctx context.Context) error {
		return s.events.Publish(ctx, event)
	})
}

func (s *Store) cleanupNotifications(userID string, itemIDs []uint) {
	if s.tasks == nil {
		return
	}
	ids := append([]uint(nil), itemIDs...)
	s.tasks.Submit("notification-cleanup", func(ctx context.Context) error {
		err := s.DeleteNotificationsForItems(ctx, userID, ids)
		if err != nil {
			util.GetLogger().Warn("notification cleanup failed",
				zap.String("user", userID), zap.Error(err))
		}
		return err
	})
}
