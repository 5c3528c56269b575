package models

import "github.com/jinzhu/gorm"

// UserProfile carries a shopkeeper's plan and usage counters. Counters are
// advisory: they are incremented optimistically and never decremented.
type UserProfile struct {
	gorm.Model
	UserID          string `gorm:"unique_index;not null"`
	Plan            Plan   `gorm:"default:'free'"`
	AIScans         int
	PromosGenerated int
}

// Plan represents a subscription tier
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Feature identifies a quota-gated capability
type Feature string

const (
	FeatureInventoryItems Feature = "inventory_items"
	FeatureAIScans        Feature = "ai_scans"
	FeaturePromos         Feature = "promos"
)

// PlanLimits defines the per-feature ceilings of a plan. A negative limit
// means unlimited.
type PlanLimits struct {
	MaxInventoryItems int
	MaxAIScans        int
	MaxPromos         int
}

// Limits is the static plan-limit table.
var Limits = map[Plan]PlanLimits{
	PlanFree: {MaxInventoryItems: 10, MaxAIScans: 3, MaxPromos: 3},
	PlanPro:  {MaxInventoryItems: -1, MaxAIScans: -1, MaxPromos: -1},
}

// LimitFor returns the ceiling for a feature under the given plan.
func LimitFor(plan Plan, feature Feature) int {
	limits, ok := Limits[plan]
	if !ok {
		limits = Limits[PlanFree]
	}
	switch feature {
	case FeatureInventoryItems:
		return limits.MaxInventoryItems
	case FeatureAIScans:
		return limits.MaxAIScans
	case FeaturePromos:
		return limits.MaxPromos
	default:
		return 0
	}
}
