package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "pepsi", NormalizeName("Pepsi"))
	assert.Equal(t, "pepsi", NormalizeName("  PEPSI  "))
	assert.Equal(t, "amul milk", NormalizeName("Amul Milk"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestCategoryFor(t *testing.T) {
	testCases := []struct {
		name string
		want ItemCategory
	}{
		{"Pepsi", CategoryBeverages},
		{"Amul Milk", CategoryDairy},
		{"brown bread", CategoryBakery},
		{"Basmati Rice", CategoryGrocery},
		{"Lays Chips", CategorySnacks},
		{"Lifebuoy Soap", CategoryPersonal},
		{"mystery box", CategoryGeneral},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, CategoryFor(tc.name), tc.name)
	}
}

func TestRequiresExpiry(t *testing.T) {
	assert.True(t, RequiresExpiry(CategoryDairy))
	assert.True(t, RequiresExpiry(CategoryProduce))
	assert.True(t, RequiresExpiry(CategoryBakery))
	assert.True(t, RequiresExpiry(CategoryGrocery))

	assert.False(t, RequiresExpiry(CategoryBeverages))
	assert.False(t, RequiresExpiry(CategorySnacks))
	assert.False(t, RequiresExpiry(CategoryGeneral))
}

func TestExpiryStatusAt(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	noDate := &InventoryItem{}
	assert.Equal(t, ExpiryNone, noDate.ExpiryStatusAt(now))

	far := now.Add(30 * 24 * time.Hour)
	fresh := &InventoryItem{ExpiryDate: &far, AlertDaysBefore: 3}
	assert.Equal(t, ExpiryNone, fresh.ExpiryStatusAt(now))

	soon := now.Add(48 * time.Hour)
	closing := &InventoryItem{ExpiryDate: &soon, AlertDaysBefore: 3}
	assert.Equal(t, ExpiryUpcoming, closing.ExpiryStatusAt(now))

	past := now.Add(-time.Hour)
	gone := &InventoryItem{ExpiryDate: &past, AlertDaysBefore: 3}
	assert.Equal(t, ExpiryExpired, gone.ExpiryStatusAt(now))

	// An item with no alert configuration falls back to the default window.
	soonish := now.Add(2 * 24 * time.Hour)
	unconfigured := &InventoryItem{ExpiryDate: &soonish}
	assert.Equal(t, ExpiryUpcoming, unconfigured.ExpiryStatusAt(now))
}

func TestLimitFor(t *testing.T) {
	assert.Equal(t, 10, LimitFor(PlanFree, FeatureInventoryItems))
	assert.Equal(t, 3, LimitFor(PlanFree, FeatureAIScans))
	assert.Equal(t, 3, LimitFor(PlanFree, FeaturePromos))

	assert.Equal(t, -1, LimitFor(PlanPro, FeatureInventoryItems))
	assert.Equal(t, -1, LimitFor(PlanPro, FeatureAIScans))

	// Unknown plans get free-tier ceilings, never unlimited.
	assert.Equal(t, 10, LimitFor(Plan("enterprise"), FeatureInventoryItems))
}
