package services

import (
	"context"
	"fmt"
	"time"

	"tickyai/internal/metrics"
	"tickyai/internal/types/usage"
)

// usageStore is the slice of user storage the quota ledger needs. The
// pgx-backed implementation lives on UserService.
type usageStore interface {
	GetUsageSnapshot(ctx context.Context, userID string) (*usage.Snapshot, error)
	ResetDailyCounters(ctx context.Context, userID string, now time.Time) error
	AdjustCounter(ctx context.Context, userID string, feature usage.Feature, delta int) error
}

// UsageService is the quota ledger: per-user per-feature daily counters
// with calendar-day reset, admin bypass and trial/premium override. One
// parameterized instance replaces the two limiter copies the bot grew.
type UsageService struct {
	store  usageStore
	limits usage.LimitTable
	admins map[string]bool
	now    func() time.Time
}

func NewUsageService(store usageStore, limits usage.LimitTable, adminIDs []string) *UsageService {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &UsageService{
		store:  store,
		limits: limits,
		admins: admins,
		now:    time.Now,
	}
}

var upgradeMessages = map[usage.Feature]string{
	usage.FeatureReminders: "Daily reminder limit reached. Upgrade to Premium for unlimited reminders.",
	usage.FeatureTasks:     "Daily task limit reached. Upgrade to Premium for unlimited tasks.",
	usage.FeatureHabits:    "Daily habit limit reached. Upgrade to Premium for unlimited habits.",
	usage.FeatureAiQueries: "Daily AI query limit reached. Upgrade to Premium for unlimited queries.",
}

// effectivePlan resolves the plan the limit table is consulted with. An
// active trial promotes FREE to premium-equivalent limits.
func (s *UsageService) effectivePlan(snap *usage.Snapshot) usage.Plan {
	if snap.SubscriptionType == usage.PlanPremium {
		return usage.PlanPremium
	}
	if snap.IsTrialActive && snap.TrialEnds != nil && s.now().Before(*snap.TrialEnds) {
		return usage.PlanPremium
	}
	return usage.PlanFree
}

// resetIfStale zeroes the counters when the stored reset date is not
// today's server-local calendar date. Reset-on-access, not a background
// job. Returns the snapshot to use afterwards.
func (s *UsageService) resetIfStale(ctx context.Context, snap *usage.Snapshot) (*usage.Snapshot, error) {
	now := s.now()
	y1, m1, d1 := snap.LastUsageReset.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return snap, nil
	}

	if err := s.store.ResetDailyCounters(ctx, snap.UserID, now); err != nil {
		return nil, err
	}

	fresh := *snap
	fresh.DailyRemindersUsed = 0
	fresh.DailyTasksUsed = 0
	fresh.DailyHabitsUsed = 0
	fresh.DailyAiQueriesUsed = 0
	fresh.LastUsageReset = now
	return &fresh, nil
}

// CheckLimit reports whether the user may perform one more action of the
// given feature today. Denials carry a user-facing upgrade message.
func (s *UsageService) CheckLimit(ctx context.Context, userID string, feature usage.Feature) (*usage.LimitResult, error) {
	if s.admins[userID] {
		return &usage.LimitResult{Allowed: true, Limit: usage.Unlimited, Remaining: usage.Unlimited}, nil
	}

	snap, err := s.store.GetUsageSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check limit: %w", err)
	}

	snap, err = s.resetIfStale(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to check limit: %w", err)
	}

	limit := s.limits.Limit(s.effectivePlan(snap), feature)
	current := snap.Counter(feature)

	if limit == usage.Unlimited {
		return &usage.LimitResult{Allowed: true, Current: current, Limit: usage.Unlimited, Remaining: usage.Unlimited}, nil
	}

	result := &usage.LimitResult{
		Allowed:   current < limit,
		Current:   current,
		Limit:     limit,
		Remaining: limit - current,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.Message = upgradeMessages[feature]
		metrics.RecordQuotaDenial(string(feature))
	}
	return result, nil
}

// IncrementUsage records one consumed action. Admins and unlimited plans
// keep no counter at all.
func (s *UsageService) IncrementUsage(ctx context.Context, userID string, feature usage.Feature) error {
	return s.adjust(ctx, userID, feature, 1)
}

// DecrementUsage hands back one action, e.g. when a gated creation is
// rolled back. The counter is deliberately not clamped at zero.
func (s *UsageService) DecrementUsage(ctx context.Context, userID string, feature usage.Feature) error {
	return s.adjust(ctx, userID, feature, -1)
}

func (s *UsageService) adjust(ctx context.Context, userID string, feature usage.Feature, delta int) error {
	if s.admins[userID] {
		return nil
	}

	snap, err := s.store.GetUsageSnapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust usage: %w", err)
	}

	snap, err = s.resetIfStale(ctx, snap)
	if err != nil {
		return fmt.Errorf("failed to adjust usage: %w", err)
	}

	if s.limits.Limit(s.effectivePlan(snap), feature) == usage.Unlimited {
		return nil
	}

	return s.store.AdjustCounter(ctx, userID, feature, delta)
}
