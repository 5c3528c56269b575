package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"kirana/internal/broker"
	"kirana/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpiryStore struct {
	items   []models.InventoryItem
	alerted map[uint]models.ExpiryStatus
	created []models.Notification
}

func newFakeExpiryStore(items ...models.InventoryItem) *fakeExpiryStore {
	return &fakeExpiryStore{items: items, alerted: make(map[uint]models.ExpiryStatus)}
}

func (f *fakeExpiryStore) ItemsWithExpiry(ctx context.Context) ([]models.InventoryItem, error) {
	return f.items, nil
}

func (f *fakeExpiryStore) MarkAlerted(ctx context.Context, itemID uint, status models.ExpiryStatus, at time.Time) error {
	f.alerted[itemID] = status
	return nil
}

func (f *fakeExpiryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	f.created = append(f.created, *n)
	return nil
}

func expiryItem(id uint, name string, expiry time.Time, status models.ExpiryStatus) models.InventoryItem {
	item := models.InventoryItem{
		UserID:          "user1",
		Name:            name,
		NormalizedName:  models.NormalizeName(name),
		ExpiryDate:      &expiry,
		ExpiryStatus:    status,
		AlertDaysBefore: models.DefaultAlertDaysBefore,
		NotifyExpired:   true,
	}
	item.ID = id
	return item
}

func TestScanRaisesUpcomingAlert(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		expiryItem(1, "Milk", now.Add(48*time.Hour), models.ExpiryNone),
	)

	scanner := NewScanner(store, NewHub(), nil)
	require.NoError(t, scanner.Scan(context.Background(), now))

	assert.Equal(t, models.ExpiryUpcoming, store.alerted[1])
	require.Len(t, store.created, 1)
	assert.Equal(t, models.NotifyExpiryUpcoming, store.created[0].Kind)
	assert.Contains(t, store.created[0].Message, "Milk expires in")
}

func TestScanRaisesExpiredAlert(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		expiryItem(1, "Bread", now.Add(-24*time.Hour), models.ExpiryUpcoming),
	)

	scanner := NewScanner(store, NewHub(), nil)
	require.NoError(t, scanner.Scan(context.Background(), now))

	assert.Equal(t, models.ExpiryExpired, store.alerted[1])
	require.Len(t, store.created, 1)
	assert.Equal(t, models.NotifyExpired, store.created[0].Kind)
}

func TestScanAlertsOncePerTransition(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		// Status already recorded as upcoming, nothing changed.
		expiryItem(1, "Milk", now.Add(48*time.Hour), models.ExpiryUpcoming),
	)

	scanner := NewScanner(store, NewHub(), nil)
	require.NoError(t, scanner.Scan(context.Background(), now))

	assert.Empty(t, store.alerted)
	assert.Empty(t, store.created)
}

func TestScanHonorsNotifyExpiredOptOut(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	item := expiryItem(1, "Curd", now.Add(-time.Hour), models.ExpiryUpcoming)
	item.NotifyExpired = false
	store := newFakeExpiryStore(item)

	scanner := NewScanner(store, NewHub(), nil)
	require.NoError(t, scanner.Scan(context.Background(), now))

	// The status transition is still recorded, just silently.
	assert.Equal(t, models.ExpiryExpired, store.alerted[1])
	assert.Empty(t, store.created)
}

func TestScanPublishesToHub(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		expiryItem(1, "Milk", now.Add(24*time.Hour), models.ExpiryNone),
	)

	hub := NewHub()
	var received []models.Notification
	unsubscribe := hub.Subscribe("user1", func(n models.Notification) {
		received = append(received, n)
	})
	defer unsubscribe()

	scanner := NewScanner(store, hub, nil)
	require.NoError(t, scanner.Scan(context.Background(), now))

	require.Len(t, received, 1)
	assert.Contains(t, received[0].Message, "Milk")
}

type fakeSink struct {
	events []broker.InventoryEvent
	fail   bool
}

func (f *fakeSink) Publish(ctx context.Context, event broker.InventoryEvent) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

func TestScanWithSinkDeliversOnce(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		expiryItem(1, "Bread", now.Add(-24*time.Hour), models.ExpiryUpcoming),
	)

	hub := NewHub()
	var received []models.Notification
	unsubscribe := hub.Subscribe("user1", func(n models.Notification) {
		received = append(received, n)
	})
	defer unsubscribe()

	sink := &fakeSink{}
	scanner := NewScanner(store, hub, sink)
	require.NoError(t, scanner.Scan(context.Background(), now))

	// The alert travels through the broker; the consumer is the only path
	// into the hub, so local subscribers see exactly the consumed copy.
	assert.Empty(t, received, "originating node must not also publish locally")
	require.Len(t, sink.events, 1)
	assert.Equal(t, broker.EventExpiryAlert, sink.events[0].Type)
	assert.Equal(t, string(models.NotifyExpired), sink.events[0].Kind)

	require.NoError(t, hub.HandleEvent(context.Background(), sink.events[0]))
	require.Len(t, received, 1)
	assert.Equal(t, models.NotifyExpired, received[0].Kind)
}

func TestScanFallsBackToHubOnSinkFailure(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeExpiryStore(
		expiryItem(1, "Milk", now.Add(24*time.Hour), models.ExpiryNone),
	)

	hub := NewHub()
	var received []models.Notification
	hub.Subscribe("user1", func(n models.Notification) { received = append(received, n) })

	scanner := NewScanner(store, hub, &fakeSink{fail: true})
	require.NoError(t, scanner.Scan(context.Background(), now))

	require.Len(t, received, 1)
	assert.Equal(t, models.NotifyExpiryUpcoming, received[0].Kind)
}

func TestHandleEventPreservesKind(t *testing.T) {
	hub := NewHub()
	var received []models.Notification
	hub.Subscribe("user1", func(n models.Notification) { received = append(received, n) })

	for _, event := range []broker.InventoryEvent{
		{Type: broker.EventExpiryAlert, UserID: "user1", Kind: string(models.NotifyExpired), Message: "Bread has expired."},
		{Type: broker.EventExpiryAlert, UserID: "user1", Kind: string(models.NotifyExpiryUpcoming), Message: "Milk expires in 2 day(s)."},
		{Type: broker.EventNotification, UserID: "user1", Message: "Welcome back."},
	} {
		require.NoError(t, hub.HandleEvent(context.Background(), event))
	}

	require.Len(t, received, 3)
	assert.Equal(t, models.NotifyExpired, received[0].Kind)
	assert.Equal(t, models.NotifyExpiryUpcoming, received[1].Kind)
	assert.Equal(t, models.NotifySystem, received[2].Kind)
}

func TestHandleEventSkipsMessagelessEvents(t *testing.T) {
	hub := NewHub()
	var count int
	hub.Subscribe("user1", func(models.Notification) { count++ })

	event := broker.InventoryEvent{Type: broker.EventItemAdded, UserID: "user1", ItemID: 3, Quantity: 5}
	require.NoError(t, hub.HandleEvent(context.Background(), event))

	assert.Equal(t, 0, count, "mutation telemetry must not reach subscribers")
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()

	var count int
	unsubscribe := hub.Subscribe("user1", func(models.Notification) { count++ })

	hub.Publish(models.Notification{UserID: "user1"})
	unsubscribe()
	hub.Publish(models.Notification{UserID: "user1"})

	assert.Equal(t, 1, count)
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub()

	var got []string
	hub.Subscribe("user1", func(n models.Notification) { got = append(got, n.Message) })

	hub.Publish(models.Notification{UserID: "user2", Message: "not yours"})
	hub.Publish(models.Notification{UserID: "user1", Message: "yours"})

	assert.Equal(t, []string{"yours"}, got)
}
