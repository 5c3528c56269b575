package voice

import (
	"context"
	"fmt"
	"time"

	"kirana/internal/models"
	"kirana/internal/store"
	"kirana/internal/util"

	"go.uber.org/zap"
)

// expiryDateFormat is the only accepted spoken-date layout, DD-MM-YYYY.
const expiryDateFormat = "02-01-2006"

// Inventory is the slice of the store the interpreter mutates.
type Inventory interface {
	AddOrUpdate(ctx context.Context, userID, name string, qty int, price float64, expiry *time.Time) (*models.InventoryItem, error)
	Remove(ctx context.Context, userID, name string, qty int) (*store.RemoveResult, error)
	DeleteBatch(ctx context.Context, userID string, ids []uint) (int, error)
	Count(ctx context.Context, userID string) (int, error)
}

// UsageGate is the entitlement check the interpreter consults before commits.
type UsageGate interface {
	CheckLimit(ctx context.Context, userID string, feature models.Feature, currentCount int) bool
	Usage(ctx context.Context, userID string, feature models.Feature) (int, error)
	IncrementUsage(ctx context.Context, userID string, feature models.Feature)
}

// SelectionSet is the per-user selection consumed by bulk actions.
type SelectionSet interface {
	Snapshot(ctx context.Context, userID string) ([]uint, error)
	Clear(ctx context.Context, userID string) error
}

// Promoter generates promotional content for a set of items.
type Promoter interface {
	Generate(ctx context.Context, userID string, itemIDs []uint) (string, error)
}

// Interpreter resolves tool calls from the conversational agent against the
// session's pending slot and the inventory store. Every call produces exactly
// one natural-language result string that becomes the agent's next spoken
// turn; calls arriving out of order fail conversationally and mutate nothing.
type Interpreter struct {
	inventory Inventory
	gate      UsageGate
	selection SelectionSet
	promoter  Promoter
	log       *zap.Logger
}

// NewInterpreter wires the interpreter's collaborators. promoter may be nil;
// the promote bulk action then reports itself unavailable.
func NewInterpreter(inv Inventory, gate UsageGate, sel SelectionSet, promoter Promoter) *Interpreter {
	return &Interpreter{
		inventory: inv,
		gate:      gate,
		selection: sel,
		promoter:  promoter,
		log:       util.GetLogger(),
	}
}

// Handle resolves one tool call for the session and returns the spoken
// result. The session mutex serializes calls so the pending slot is only
// touched by one turn at a time.
func (in *Interpreter) Handle(ctx context.Context, sess *Session, call ToolCall) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	result, outcome := in.dispatch(ctx, sess, call)
	util.ToolCallsTotal.WithLabelValues(call.Tool(), outcome).Inc()
	return result
}

func (in *Interpreter) dispatch(ctx context.Context, sess *Session, call ToolCall) (string, string) {
	switch c := call.(type) {
	case InitiateAddItem:
		return in.initiateAdd(sess, c)
	case ProvideItemQuantity:
		return in.provideQuantity(sess, c)
	case ProvideItemPrice:
		return in.providePrice(ctx, sess, c)
	case ProvideItemExpiryDate:
		return in.provideExpiry(ctx, sess, c)
	case RemoveItem:
		return in.removeItem(ctx, sess, c)
	case QueryInventory:
		return "Sure, let me check your stock.", "ok"
	case PerformBulkAction:
		return in.bulkAction(ctx, sess, c)
	default:
		// DecodeToolCall keeps the set closed; this is unreachable for
		// decoded calls.
		return "Sorry, I didn't understand that request.", "unknown"
	}
}

// initiateAdd starts a fresh add flow. A flow already in progress is
// overwritten; interrupted flows are not stacked or resumed.
func (in *Interpreter) initiateAdd(sess *Session, c InitiateAddItem) (string, string) {
	if c.Quantity != nil {
		sess.setSlot(awaitingPrice{item: c.ItemName, qty: *c.Quantity})
		return fmt.Sprintf("Got it, %d %s. What's the price per unit?", *c.Quantity, c.ItemName), "ok"
	}
	sess.setSlot(awaitingQuantity{item: c.ItemName})
	return fmt.Sprintf("How many %s should I add?", c.ItemName), "ok"
}

func (in *Interpreter) provideQuantity(sess *Session, c ProvideItemQuantity) (string, string) {
	slot, ok := sess.slot.(awaitingQuantity)
	if !ok {
		return "I'm not sure what item you mean. Tell me what you'd like to add first.", "orphaned"
	}

	sess.setSlot(awaitingPrice{item: slot.item, qty: c.Quantity})
	return fmt.Sprintf("%d %s, noted. What's the price per unit?", c.Quantity, slot.item), "ok"
}

func (in *Interpreter) providePrice(ctx context.Context, sess *Session, c ProvideItemPrice) (string, string) {
	slot, ok := sess.slot.(awaitingPrice)
	if !ok {
		return "I don't have an item waiting for a price. Tell me what you'd like to add first.", "orphaned"
	}

	count, err := in.inventory.Count(ctx, sess.UserID)
	if err != nil {
		in.log.Error("inventory count failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't reach your inventory just now. Please try again.", "error"
	}
	if !in.gate.CheckLimit(ctx, sess.UserID, models.FeatureInventoryItems, count) {
		sess.clearSlot()
		return "You've reached the item limit of your free plan. Upgrade to Pro to add more items.", "quota"
	}

	if models.RequiresExpiry(models.CategoryFor(slot.item)) {
		sess.setSlot(awaitingExpiry{item: slot.item, qty: slot.qty, price: c.Price})
		return fmt.Sprintf("And when does the %s expire? Say the date as day, month, year.", slot.item), "ok"
	}

	item, err := in.inventory.AddOrUpdate(ctx, sess.UserID, slot.item, slot.qty, c.Price, nil)
	if err != nil {
		in.log.Error("voice add failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't save that item right now. Please try again.", "error"
	}

	sess.clearSlot()
	return fmt.Sprintf("Done! Added %d %s at %.2f each. You now have %d in stock.",
		slot.qty, item.Name, c.Price, item.Quantity), "committed"
}

func (in *Interpreter) provideExpiry(ctx context.Context, sess *Session, c ProvideItemExpiryDate) (string, string) {
	slot, ok := sess.slot.(awaitingExpiry)
	if !ok {
		return "I don't have an item waiting for an expiry date. Tell me what you'd like to add first.", "orphaned"
	}

	expiry, err := time.Parse(expiryDateFormat, c.ExpiryDate)
	if err != nil {
		// Re-prompt; the slot stays live so the user can just repeat the date.
		return "That date didn't sound right, I need day, month and year, like 31-12-2025. Could you say it again?", "reprompt"
	}

	count, err := in.inventory.Count(ctx, sess.UserID)
	if err != nil {
		in.log.Error("inventory count failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't reach your inventory just now. Please try again.", "error"
	}
	if !in.gate.CheckLimit(ctx, sess.UserID, models.FeatureInventoryItems, count) {
		sess.clearSlot()
		return "You've reached the item limit of your free plan. Upgrade to Pro to add more items.", "quota"
	}

	item, err := in.inventory.AddOrUpdate(ctx, sess.UserID, slot.item, slot.qty, slot.price, &expiry)
	if err != nil {
		in.log.Error("voice add failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't save that item right now. Please try again.", "error"
	}

	sess.clearSlot()
	return fmt.Sprintf("Done! Added %d %s at %.2f each, expiring on %s.",
		slot.qty, item.Name, slot.price, expiry.Format("2 January 2006")), "committed"
}

// removeItem delegates to the store and leaves any pending slot untouched.
func (in *Interpreter) removeItem(ctx context.Context, sess *Session, c RemoveItem) (string, string) {
	result, err := in.inventory.Remove(ctx, sess.UserID, c.ItemName, c.Quantity)
	if err != nil {
		in.log.Error("voice remove failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't update your inventory right now. Please try again.", "error"
	}
	if !result.OK {
		return result.Message, "rejected"
	}
	return result.Message, "committed"
}

func (in *Interpreter) bulkAction(ctx context.Context, sess *Session, c PerformBulkAction) (string, string) {
	if c.ActionType == BulkDeselect {
		if err := in.selection.Clear(ctx, sess.UserID); err != nil {
			in.log.Error("deselect failed", zap.String("user", sess.UserID), zap.Error(err))
			return "Sorry, I couldn't clear the selection right now.", "error"
		}
		return "Okay, I've cleared your selection.", "committed"
	}

	ids, err := in.selection.Snapshot(ctx, sess.UserID)
	if err != nil {
		in.log.Error("selection snapshot failed", zap.String("user", sess.UserID), zap.Error(err))
		return "Sorry, I couldn't read your selection right now.", "error"
	}
	if len(ids) == 0 {
		return "Nothing is selected. Select some items first.", "rejected"
	}

	switch c.ActionType {
	case BulkDelete:
		deleted, err := in.inventory.DeleteBatch(ctx, sess.UserID, ids)
		if err != nil {
			in.log.Error("bulk delete failed", zap.String("user", sess.UserID), zap.Error(err))
			return "Sorry, I couldn't delete those items right now.", "error"
		}
		if err := in.selection.Clear(ctx, sess.UserID); err != nil {
			in.log.Warn("selection clear failed after delete", zap.String("user", sess.UserID), zap.Error(err))
		}
		return fmt.Sprintf("Deleted %d items from your inventory.", deleted), "committed"

	case BulkPromote:
		if in.promoter == nil {
			return "Promotions aren't available right now.", "rejected"
		}
		promos, err := in.gate.Usage(ctx, sess.UserID, models.FeaturePromos)
		if err != nil {
			in.log.Error("promo usage lookup failed", zap.String("user", sess.UserID), zap.Error(err))
			return "Sorry, I couldn't check your plan right now.", "error"
		}
		if !in.gate.CheckLimit(ctx, sess.UserID, models.FeaturePromos, promos) {
			return "You've used all the promotions on your free plan. Upgrade to Pro for unlimited promos.", "quota"
		}
		text, err := in.promoter.Generate(ctx, sess.UserID, ids)
		if err != nil {
			in.log.Error("promo generation failed", zap.String("user", sess.UserID), zap.Error(err))
			return "Sorry, I couldn't create the promotion right now. Please try again.", "error"
		}
		in.gate.IncrementUsage(ctx, sess.UserID, models.FeaturePromos)
		return text, "committed"

	default:
		return "I don't know that bulk action.", "unknown"
	}
}
