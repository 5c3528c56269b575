package quota

import (
	"context"
	"sync"

	"kirana/internal/models"
	"kirana/internal/tasks"
	"kirana/internal/util"

	"go.uber.org/zap"
)

// ProfileStore is the slice of the persistence layer the gate depends on.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	IncrementUsage(ctx context.Context, userID string, feature models.Feature) error
}

// Gate compares feature usage against the plan-limit table. A false result
// means "abort the operation", not "retry". Counter increments are applied to
// the in-memory profile synchronously and persisted in the background with no
// rollback; usage counting is advisory, not billing-grade.
type Gate struct {
	store ProfileStore
	tasks *tasks.Queue

	mu       sync.Mutex
	profiles map[string]*models.UserProfile

	// onLimit fires once per rejection, used to surface an upgrade prompt.
	onLimit func(userID string, feature models.Feature)
}

// NewGate creates a usage gate backed by the given profile store.
func NewGate(store ProfileStore, queue *tasks.Queue) *Gate {
	return &Gate{
		store:    store,
		tasks:    queue,
		profiles: make(map[string]*models.UserProfile),
	}
}

// OnLimit registers the upgrade-prompt side effect invoked when a check fails.
func (g *Gate) OnLimit(fn func(userID string, feature models.Feature)) {
	g.onLimit = fn
}

// CheckLimit reports whether the user may perform one more use of the
// feature given its current count. Pro-plan users always pass.
func (g *Gate) CheckLimit(ctx context.Context, userID string, feature models.Feature, currentCount int) bool {
	profile, err := g.profile(ctx, userID)
	if err != nil {
		// Fail closed: an unreadable profile must not grant unlimited use.
		util.GetLogger().Warn("quota profile load failed",
			zap.String("user", userID), zap.Error(err))
		return false
	}

	limit := models.LimitFor(profile.Plan, feature)
	if limit < 0 {
		return true
	}
	if currentCount < limit {
		return true
	}

	util.QuotaRejectionsTotal.WithLabelValues(string(feature)).Inc()
	if g.onLimit != nil {
		g.onLimit(userID, feature)
	}
	return false
}

// Usage returns the current in-memory count for a counted feature.
func (g *Gate) Usage(ctx context.Context, userID string, feature models.Feature) (int, error) {
	profile, err := g.profile(ctx, userID)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch feature {
	case models.FeatureAIScans:
		return profile.AIScans, nil
	case models.FeaturePromos:
		return profile.PromosGenerated, nil
	default:
		return 0, nil
	}
}

// IncrementUsage records one use of a feature. The in-memory profile is
// updated before the durable write is scheduled, so callers observe the new
// count immediately.
func (g *Gate) IncrementUsage(ctx context.Context, userID string, feature models.Feature) {
	profile, err := g.profile(ctx, userID)
	if err != nil {
		util.GetLogger().Warn("usage increment skipped",
			zap.String("user", userID), zap.Error(err))
		return
	}

	g.mu.Lock()
	switch feature {
	case models.FeatureAIScans:
		profile.AIScans++
	case models.FeaturePromos:
		profile.PromosGenerated++
	}
	g.mu.Unlock()

	if g.tasks != nil {
		g.tasks.Submit("usage-increment", func(ctx context.Context) error {
			return g.store.IncrementUsage(ctx, userID, feature)
		})
	} else {
		_ = g.store.IncrementUsage(ctx, userID, feature)
	}
}

// Invalidate drops a cached profile, forcing a reload on next access. Called
// after a plan change.
func (g *Gate) Invalidate(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.profiles, userID)
}

func (g *Gate) profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	g.mu.Lock()
	if p, ok := g.profiles[userID]; ok {
		g.mu.Unlock()
		return p, nil
	}
	g.mu.Unlock()

	p, err := g.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.profiles[userID]; ok {
		return existing, nil
	}
	g.profiles[userID] = p
	return p, nil
}
