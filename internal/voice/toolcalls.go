package voice

import (
	"encoding/json"
	"fmt"
)

// ToolCall is the closed set of structured calls the conversational agent can
// emit. Each variant carries a typed payload validated at decode time;
// dispatch over the set is exhaustive.
type ToolCall interface {
	Tool() string
}

// InitiateAddItem starts an add flow. Quantity is optional; when absent the
// interpreter asks for it.
type InitiateAddItem struct {
	ItemName string `json:"itemName"`
	Quantity *int   `json:"quantity,omitempty"`
}

// ProvideItemQuantity answers a pending quantity question.
type ProvideItemQuantity struct {
	Quantity int `json:"quantity"`
}

// ProvideItemPrice answers a pending price question.
type ProvideItemPrice struct {
	Price float64 `json:"price"`
}

// ProvideItemExpiryDate answers a pending expiry question. The date is kept
// raw here; format errors are handled conversationally, not at the boundary.
type ProvideItemExpiryDate struct {
	ExpiryDate string `json:"expiryDate"`
}

// RemoveItem removes stock directly, independent of any pending flow.
type RemoveItem struct {
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// QueryInventory asks for current stock. The agent composes the spoken answer
// from its own context; the interpreter only acknowledges.
type QueryInventory struct{}

// PerformBulkAction runs an action against the current selection set.
type PerformBulkAction struct {
	ActionType BulkAction `json:"actionType"`
}

// BulkAction enumerates the supported bulk actions
type BulkAction string

const (
	BulkDelete   BulkAction = "delete"
	BulkPromote  BulkAction = "promote"
	BulkDeselect BulkAction = "deselect"
)

func (InitiateAddItem) Tool() string       { return "initiateAddItem" }
func (ProvideItemQuantity) Tool() string   { return "provideItemQuantity" }
func (ProvideItemPrice) Tool() string      { return "provideItemPrice" }
func (ProvideItemExpiryDate) Tool() string { return "provideItemExpiryDate" }
func (RemoveItem) Tool() string            { return "removeItem" }
func (QueryInventory) Tool() string        { return "queryInventory" }
func (PerformBulkAction) Tool() string     { return "performBulkAction" }

// DecodeToolCall turns a named call with raw JSON arguments into its typed
// variant, rejecting unknown names and malformed payloads at the boundary.
func DecodeToolCall(name string, args json.RawMessage) (ToolCall, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "initiateAddItem":
		var call InitiateAddItem
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid initiateAddItem arguments: %w", err)
		}
		if call.ItemName == "" {
			return nil, fmt.Errorf("initiateAddItem requires itemName")
		}
		if call.Quantity != nil && *call.Quantity <= 0 {
			return nil, fmt.Errorf("initiateAddItem quantity must be positive")
		}
		return call, nil

	case "provideItemQuantity":
		var call ProvideItemQuantity
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid provideItemQuantity arguments: %w", err)
		}
		if call.Quantity <= 0 {
			return nil, fmt.Errorf("provideItemQuantity quantity must be positive")
		}
		return call, nil

	case "provideItemPrice":
		var call ProvideItemPrice
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid provideItemPrice arguments: %w", err)
		}
		if call.Price < 0 {
			return nil, fmt.Errorf("provideItemPrice price must not be negative")
		}
		return call, nil

	case "provideItemExpiryDate":
		var call ProvideItemExpiryDate
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid provideItemExpiryDate arguments: %w", err)
		}
		return call, nil

	case "removeItem":
		var call RemoveItem
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid removeItem arguments: %w", err)
		}
		if call.ItemName == "" {
			return nil, fmt.Errorf("removeItem requires itemName")
		}
		if call.Quantity <= 0 {
			return nil, fmt.Errorf("removeItem quantity must be positive")
		}
		return call, nil

	case "queryInventory":
		return QueryInventory{}, nil

	case "performBulkAction":
		var call PerformBulkAction
		if err := json.Unmarshal(args, &call); err != nil {
			return nil, fmt.Errorf("invalid performBulkAction arguments: %w", err)
		}
		switch call.ActionType {
		case BulkDelete, BulkPromote, BulkDeselect:
			return call, nil
		default:
			return nil, fmt.Errorf("unknown bulk action %q", call.ActionType)
		}

	default:
		return nil, fmt.Errorf("unknown tool call %q", name)
	}
}
