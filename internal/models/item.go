package models

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// InventoryItem represents a single stocked product in a shopkeeper's inventory.
// Identity is the normalized (lower-cased) name, unique within a user's
// inventory; the generated ID exists for references but the name is the
// natural key voice and vision flows resolve against.
type InventoryItem struct {
	gorm.Model
	UserID         string `gorm:"index;not null"`
	Name           string
	NormalizedName string `gorm:"index;not null"`
	Category       string
	Quantity       int
	Price          float64

	// Expiry tracking, populated only for perishable categories.
	ExpiryDate      *time.Time
	ExpiryStatus    ExpiryStatus `gorm:"default:'none'"`
	AlertDaysBefore int
	NotifyExpired   bool
	LastAlertedAt   *time.Time
}

// ExpiryStatus represents the derived expiry state of an item
type ExpiryStatus string

const (
	ExpiryNone     ExpiryStatus = "none"
	ExpiryUpcoming ExpiryStatus = "upcoming"
	ExpiryExpired  ExpiryStatus = "expired"
)

// ItemCategory represents the category of an inventory item
type ItemCategory string

const (
	CategoryBeverages  ItemCategory = "beverages"
	CategoryDairy      ItemCategory = "dairy"
	CategoryProduce    ItemCategory = "produce"
	CategoryBakery     ItemCategory = "bakery"
	CategoryGrocery    ItemCategory = "grocery"
	CategorySnacks     ItemCategory = "snacks"
	CategoryPersonal   ItemCategory = "personal_care"
	CategoryHousehold  ItemCategory = "household"
	CategoryStationery ItemCategory = "stationery"
	CategoryGeneral    ItemCategory = "general"
)

// categoryKeywords maps common product words to a category. The voice flow
// only needs this to decide whether to ask for an expiry date, so the table
// favors recall on perishables over exact taxonomy.
var categoryKeywords = map[string]ItemCategory{
	"milk": CategoryDairy, "curd": CategoryDairy, "yogurt": CategoryDairy,
	"paneer": CategoryDairy, "butter": CategoryDairy, "cheese": CategoryDairy,
	"ghee": CategoryDairy, "cream": CategoryDairy,

	"bread": CategoryBakery, "bun": CategoryBakery, "cake": CategoryBakery,
	"biscuit": CategoryBakery, "rusk": CategoryBakery,

	"tomato": CategoryProduce, "onion": CategoryProduce, "potato": CategoryProduce,
	"banana": CategoryProduce, "apple": CategoryProduce, "lettuce": CategoryProduce,
	"spinach": CategoryProduce, "mango": CategoryProduce,

	"rice": CategoryGrocery, "flour": CategoryGrocery, "atta": CategoryGrocery,
	"dal": CategoryGrocery, "oil": CategoryGrocery, "sugar": CategoryGrocery,
	"salt": CategoryGrocery, "masala": CategoryGrocery, "pickle": CategoryGrocery,
	"jam": CategoryGrocery, "ketchup": CategoryGrocery,

	"pepsi": CategoryBeverages, "cola": CategoryBeverages, "coke": CategoryBeverages,
	"juice": CategoryBeverages, "soda": CategoryBeverages, "water": CategoryBeverages,
	"tea": CategoryBeverages, "coffee": CategoryBeverages,

	"chips": CategorySnacks, "namkeen": CategorySnacks, "chocolate": CategorySnacks,
	"candy": CategorySnacks,

	"soap": CategoryPersonal, "shampoo": CategoryPersonal, "toothpaste": CategoryPersonal,

	"detergent": CategoryHousehold, "broom": CategoryHousehold, "matches": CategoryHousehold,

	"pen": CategoryStationery, "pencil": CategoryStationery, "notebook": CategoryStationery,
}

// expiryTracked lists the categories whose items get an expiry prompt during
// the voice add flow.
var expiryTracked = map[ItemCategory]bool{
	CategoryDairy:   true,
	CategoryProduce: true,
	CategoryBakery:  true,
	CategoryGrocery: true,
}

// NormalizeName lower-cases and trims a spoken or scanned item name so that
// "Pepsi", "pepsi " and "PEPSI" resolve to the same record.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CategoryFor guesses the category of an item from its name.
func CategoryFor(name string) ItemCategory {
	for _, word := range strings.Fields(NormalizeName(name)) {
		if cat, ok := categoryKeywords[word]; ok {
			return cat
		}
	}
	return CategoryGeneral
}

// RequiresExpiry reports whether items of the given category are tracked for
// expiry and should be asked for an expiry date when added by voice.
func RequiresExpiry(cat ItemCategory) bool {
	return expiryTracked[cat]
}

// ExpiryStatusAt derives the expiry status of the item as of the given time.
// Items without an expiry date are always ExpiryNone.
func (i *InventoryItem) ExpiryStatusAt(now time.Time) ExpiryStatus {
	if i.ExpiryDate == nil {
		return ExpiryNone
	}
	if !now.Before(*i.ExpiryDate) {
		return ExpiryExpired
	}
	days := i.AlertDaysBefore
	if days <= 0 {
		days = DefaultAlertDaysBefore
	}
	if now.Add(time.Duration(days) * 24 * time.Hour).After(*i.ExpiryDate) {
		return ExpiryUpcoming
	}
	return ExpiryNone
}

// DefaultAlertDaysBefore is the expiry alert threshold applied when an item
// has no explicit alert configuration.
const DefaultAlertDaysBefore = 3
