package voice

import (
	"context"
	"testing"
	"time"

	"kirana/internal/models"
	"kirana/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInventory struct {
	items      map[string]*models.InventoryItem
	count      int
	lastExpiry *time.Time
	deletedIDs []uint
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{items: make(map[string]*models.InventoryItem)}
}

func (f *fakeInventory) AddOrUpdate(ctx context.Context, userID, name string, qty int, price float64, expiry *time.Time) (*models.InventoryItem, error) {
	key := models.NormalizeName(name)
	item, ok := f.items[key]
	if !ok {
		item = &models.InventoryItem{UserID: userID, Name: name, NormalizedName: key}
		f.items[key] = item
		f.count++
	}
	item.Quantity += qty
	item.Price = price
	if expiry != nil {
		item.ExpiryDate = expiry
	}
	f.lastExpiry = expiry
	return item, nil
}

func (f *fakeInventory) Remove(ctx context.Context, userID, name string, qty int) (*store.RemoveResult, error) {
	key := models.NormalizeName(name)
	item, ok := f.items[key]
	if !ok {
		return &store.RemoveResult{OK: false, Message: "You don't have any " + name + " in your inventory."}, nil
	}
	if qty > item.Quantity {
		return &store.RemoveResult{OK: false, Message: "not enough stock", Remaining: item.Quantity}, nil
	}
	item.Quantity -= qty
	if item.Quantity == 0 {
		delete(f.items, key)
		f.count--
		return &store.RemoveResult{OK: true, Message: "removed all", Deleted: true}, nil
	}
	return &store.RemoveResult{OK: true, Message: "removed some", Remaining: item.Quantity}, nil
}

func (f *fakeInventory) DeleteBatch(ctx context.Context, userID string, ids []uint) (int, error) {
	f.deletedIDs = append(f.deletedIDs, ids...)
	return len(ids), nil
}

func (f *fakeInventory) Count(ctx context.Context, userID string) (int, error) {
	return f.count, nil
}

type fakeGate struct {
	allow      bool
	promoUsage int
	increments []models.Feature
}

func (f *fakeGate) CheckLimit(ctx context.Context, userID string, feature models.Feature, currentCount int) bool {
	return f.allow
}

func (f *fakeGate) Usage(ctx context.Context, userID string, feature models.Feature) (int, error) {
	return f.promoUsage, nil
}

func (f *fakeGate) IncrementUsage(ctx context.Context, userID string, feature models.Feature) {
	f.increments = append(f.increments, feature)
}

type fakeSelection struct {
	ids     []uint
	cleared bool
}

func (f *fakeSelection) Snapshot(ctx context.Context, userID string) ([]uint, error) {
	return f.ids, nil
}

func (f *fakeSelection) Clear(ctx context.Context, userID string) error {
	f.cleared = true
	f.ids = nil
	return nil
}

type fakePromoter struct {
	text   string
	called bool
}

func (f *fakePromoter) Generate(ctx context.Context, userID string, itemIDs []uint) (string, error) {
	f.called = true
	return f.text, nil
}

func newTestInterpreter(inv *fakeInventory, gate *fakeGate, sel *fakeSelection, p *fakePromoter) (*Interpreter, *Session) {
	var promoter Promoter
	if p != nil {
		promoter = p
	}
	return NewInterpreter(inv, gate, sel, promoter), NewSession("user1", 24000)
}

func TestAddFlowWithoutExpiry(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	reply := in.Handle(ctx, sess, InitiateAddItem{ItemName: "Pepsi"})
	assert.Contains(t, reply, "How many Pepsi")

	reply = in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 10})
	assert.Contains(t, reply, "price")

	// Pepsi is not expiry tracked, so the price commits the item.
	reply = in.Handle(ctx, sess, ProvideItemPrice{Price: 20})
	assert.Contains(t, reply, "Added 10 Pepsi")

	item := inv.items["pepsi"]
	require.NotNil(t, item)
	assert.Equal(t, 10, item.Quantity)
	assert.Equal(t, 20.0, item.Price)
	assert.Nil(t, inv.lastExpiry)
	assert.Nil(t, sess.slot, "flow must be idle after commit")
}

func TestAddFlowWithInlineQuantity(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	qty := 5
	reply := in.Handle(ctx, sess, InitiateAddItem{ItemName: "Chips", Quantity: &qty})
	assert.Contains(t, reply, "price", "inline quantity skips the quantity question")

	in.Handle(ctx, sess, ProvideItemPrice{Price: 10})
	assert.Equal(t, 5, inv.items["chips"].Quantity)
}

func TestAddFlowExpiryTrackedCategory(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Milk"})
	in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 2})

	reply := in.Handle(ctx, sess, ProvideItemPrice{Price: 30})
	assert.Contains(t, reply, "expire", "perishables must be asked for an expiry date")
	assert.Nil(t, inv.items["milk"], "nothing committed before the expiry answer")

	// An impossible date re-prompts and keeps the flow alive.
	reply = in.Handle(ctx, sess, ProvideItemExpiryDate{ExpiryDate: "31-13-2025"})
	assert.Contains(t, reply, "again")
	assert.NotNil(t, sess.slot)

	reply = in.Handle(ctx, sess, ProvideItemExpiryDate{ExpiryDate: "31-12-2025"})
	assert.Contains(t, reply, "Added 2 Milk")

	require.NotNil(t, inv.lastExpiry)
	want := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.True(t, inv.lastExpiry.Equal(want))
	assert.Nil(t, sess.slot)
}

func TestOrphanedSlotAnswers(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	for _, call := range []ToolCall{
		ProvideItemQuantity{Quantity: 5},
		ProvideItemPrice{Price: 10},
		ProvideItemExpiryDate{ExpiryDate: "31-12-2025"},
	} {
		reply := in.Handle(ctx, sess, call)
		assert.Contains(t, reply, "first", "call %s must fail conversationally", call.Tool())
	}
	assert.Empty(t, inv.items, "orphaned answers must not mutate inventory")
}

func TestInitiateAddOverwritesPendingFlow(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Pepsi"})
	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Chips"})
	in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 3})
	in.Handle(ctx, sess, ProvideItemPrice{Price: 10})

	assert.Nil(t, inv.items["pepsi"], "abandoned flow must not commit")
	assert.Equal(t, 3, inv.items["chips"].Quantity)
}

func TestQuotaRejectionClearsFlow(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: false}, &fakeSelection{}, nil)
	ctx := context.Background()

	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Pepsi"})
	in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 10})
	reply := in.Handle(ctx, sess, ProvideItemPrice{Price: 20})

	assert.Contains(t, reply, "Upgrade")
	assert.Empty(t, inv.items)
	assert.Nil(t, sess.slot, "a dead flow must not linger after rejection")
}

func TestRemoveLeavesPendingFlowUntouched(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	inv.AddOrUpdate(ctx, "user1", "Soap", 4, 15, nil)

	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Pepsi"})
	reply := in.Handle(ctx, sess, RemoveItem{ItemName: "Soap", Quantity: 2})
	assert.Contains(t, reply, "removed")

	// The add flow continues where it left off.
	reply = in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 10})
	assert.Contains(t, reply, "Pepsi")
}

func TestBulkDeleteUsesSnapshotAndClears(t *testing.T) {
	inv := newFakeInventory()
	sel := &fakeSelection{ids: []uint{1, 2, 3}}
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, sel, nil)

	reply := in.Handle(context.Background(), sess, PerformBulkAction{ActionType: BulkDelete})
	assert.Contains(t, reply, "Deleted 3 items")
	assert.Equal(t, []uint{1, 2, 3}, inv.deletedIDs)
	assert.True(t, sel.cleared)
}

func TestBulkActionEmptySelection(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)

	reply := in.Handle(context.Background(), sess, PerformBulkAction{ActionType: BulkDelete})
	assert.Contains(t, reply, "Nothing is selected")
	assert.Empty(t, inv.deletedIDs)
}

func TestBulkPromote(t *testing.T) {
	inv := newFakeInventory()
	sel := &fakeSelection{ids: []uint{1, 2}}
	promoter := &fakePromoter{text: "Special offer on Pepsi and Chips!"}
	gate := &fakeGate{allow: true}
	in, sess := newTestInterpreter(inv, gate, sel, promoter)

	reply := in.Handle(context.Background(), sess, PerformBulkAction{ActionType: BulkPromote})
	assert.Equal(t, "Special offer on Pepsi and Chips!", reply)
	assert.True(t, promoter.called)
	assert.Equal(t, []models.Feature{models.FeaturePromos}, gate.increments)
	assert.False(t, sel.cleared, "promotion must not consume the selection")
}

func TestBulkPromoteQuotaRejected(t *testing.T) {
	inv := newFakeInventory()
	sel := &fakeSelection{ids: []uint{1}}
	promoter := &fakePromoter{text: "offer"}
	in, sess := newTestInterpreter(inv, &fakeGate{allow: false}, sel, promoter)

	reply := in.Handle(context.Background(), sess, PerformBulkAction{ActionType: BulkPromote})
	assert.Contains(t, reply, "Upgrade")
	assert.False(t, promoter.called)
}

func TestBulkDeselect(t *testing.T) {
	inv := newFakeInventory()
	sel := &fakeSelection{ids: []uint{1, 2}}
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, sel, nil)

	reply := in.Handle(context.Background(), sess, PerformBulkAction{ActionType: BulkDeselect})
	assert.Contains(t, reply, "cleared")
	assert.True(t, sel.cleared)
}

func TestSessionResetDropsFlow(t *testing.T) {
	inv := newFakeInventory()
	in, sess := newTestInterpreter(inv, &fakeGate{allow: true}, &fakeSelection{}, nil)
	ctx := context.Background()

	in.Handle(ctx, sess, InitiateAddItem{ItemName: "Pepsi"})
	sess.Reset()

	reply := in.Handle(ctx, sess, ProvideItemQuantity{Quantity: 10})
	assert.Contains(t, reply, "first", "slot must not survive a reset")
}
