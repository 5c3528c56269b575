package store

import (
	"context"
	"fmt"

	"kirana/internal/models"

	"github.com/jinzhu/gorm"
)

// GetProfile returns the user's profile, creating a free-plan profile on
// first access.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if gorm.IsRecordNotFoundError(err) {
		profile = models.UserProfile{UserID: userID, Plan: models.PlanFree}
		if err := s.db.Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// SetPlan updates the user's subscription plan.
func (s *Store) SetPlan(ctx context.Context, userID string, plan models.Plan) error {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	return s.db.Model(profile).Update("plan", plan).Error
}

// IncrementUsage bumps a persisted usage counter. Counters only ever grow.
func (s *Store) IncrementUsage(ctx context.Context, userID string, feature models.Feature) error {
	column := ""
	switch feature {
	case models.FeatureAIScans:
		column = "ai_scans"
	case models.FeaturePromos:
		column = "promos_generated"
	default:
		// Inventory count is derived from the items table, not stored.
		return nil
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	return s.db.Model(profile).
		Update(column, gorm.Expr(column+" + 1")).Error
}
