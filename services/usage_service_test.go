package services

import (
	"context"
	"testing"
	"time"

	"tickyai/internal/types/usage"
)

type counterAdjustment struct {
	feature usage.Feature
	delta   int
}

type fakeUsageStore struct {
	snap        usage.Snapshot
	snapshots   int
	resets      int
	adjustments []counterAdjustment
}

func (f *fakeUsageStore) GetUsageSnapshot(_ context.Context, _ string) (*usage.Snapshot, error) {
	f.snapshots++
	snap := f.snap
	return &snap, nil
}

func (f *fakeUsageStore) ResetDailyCounters(_ context.Context, _ string, now time.Time) error {
	f.resets++
	f.snap.DailyRemindersUsed = 0
	f.snap.DailyTasksUsed = 0
	f.snap.DailyHabitsUsed = 0
	f.snap.DailyAiQueriesUsed = 0
	f.snap.LastUsageReset = now
	return nil
}

func (f *fakeUsageStore) AdjustCounter(_ context.Context, _ string, feature usage.Feature, delta int) error {
	f.adjustments = append(f.adjustments, counterAdjustment{feature, delta})
	return nil
}

func newTestUsageService(store *fakeUsageStore, adminIDs []string, now time.Time) *UsageService {
	svc := NewUsageService(store, usage.DefaultLimits(), adminIDs)
	svc.now = func() time.Time { return now }
	return svc
}

func freeSnapshot(now time.Time) usage.Snapshot {
	return usage.Snapshot{
		UserID:           "u1",
		LastUsageReset:   now,
		SubscriptionType: usage.PlanFree,
	}
}

func TestCheckLimitBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		used        int
		wantAllowed bool
		wantRemain  int
	}{
		{"under the limit", 2, true, 1},
		{"at the limit", 3, false, 0},
		{"over the limit", 4, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUsageStore{snap: freeSnapshot(now)}
			store.snap.DailyHabitsUsed = tt.used
			svc := newTestUsageService(store, nil, now)

			result, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureHabits)
			if err != nil {
				t.Fatalf("CheckLimit: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Remaining != tt.wantRemain {
				t.Errorf("Remaining = %d, want %d", result.Remaining, tt.wantRemain)
			}
			if !tt.wantAllowed && result.Message == "" {
				t.Error("denied result is missing the upgrade message")
			}
		})
	}
}

func TestCheckLimitPremiumIsUnlimited(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeUsageStore{snap: freeSnapshot(now)}
	store.snap.SubscriptionType = usage.PlanPremium
	store.snap.DailyAiQueriesUsed = 500
	svc := newTestUsageService(store, nil, now)

	result, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureAiQueries)
	if err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	if !result.Allowed {
		t.Error("premium user should always be allowed")
	}
	if result.Limit != usage.Unlimited || result.Remaining != usage.Unlimited {
		t.Errorf("Limit = %d, Remaining = %d, want both %d", result.Limit, result.Remaining, usage.Unlimited)
	}
}

func TestCheckLimitTrialPromotesFreePlan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("active trial", func(t *testing.T) {
		store := &fakeUsageStore{snap: freeSnapshot(now)}
		ends := now.Add(24 * time.Hour)
		store.snap.IsTrialActive = true
		store.snap.TrialEnds = &ends
		store.snap.DailyHabitsUsed = 99
		svc := newTestUsageService(store, nil, now)

		result, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureHabits)
		if err != nil {
			t.Fatalf("CheckLimit: %v", err)
		}
		if !result.Allowed {
			t.Error("user on an active trial should get premium limits")
		}
	})

	t.Run("expired trial", func(t *testing.T) {
		store := &fakeUsageStore{snap: freeSnapshot(now)}
		ends := now.Add(-time.Hour)
		store.snap.IsTrialActive = true
		store.snap.TrialEnds = &ends
		store.snap.DailyHabitsUsed = 3
		svc := newTestUsageService(store, nil, now)

		result, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureHabits)
		if err != nil {
			t.Fatalf("CheckLimit: %v", err)
		}
		if result.Allowed {
			t.Error("expired trial must fall back to free limits")
		}
	})
}

func TestCheckLimitResetsStaleCounters(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	store := &fakeUsageStore{snap: freeSnapshot(now.Add(-6 * time.Hour))} // yesterday
	store.snap.DailyTasksUsed = 10
	svc := newTestUsageService(store, nil, now)

	result, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureTasks)
	if err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	if !result.Allowed {
		t.Error("counters from a previous day must be reset before the check")
	}
	if result.Current != 0 {
		t.Errorf("Current = %d after reset, want 0", result.Current)
	}
	if store.resets != 1 {
		t.Fatalf("resets = %d, want 1", store.resets)
	}

	// A second check on the same day must not reset again.
	if _, err := svc.CheckLimit(context.Background(), "u1", usage.FeatureTasks); err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	if store.resets != 1 {
		t.Errorf("resets = %d after second check, want still 1", store.resets)
	}
}

func TestAdminBypass(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeUsageStore{snap: freeSnapshot(now)}
	svc := newTestUsageService(store, []string{"admin1"}, now)

	result, err := svc.CheckLimit(context.Background(), "admin1", usage.FeatureHabits)
	if err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	if !result.Allowed || result.Limit != usage.Unlimited {
		t.Errorf("admin check = %+v, want allowed and unlimited", result)
	}
	if store.snapshots != 0 {
		t.Error("admin check must not touch storage")
	}

	if err := svc.IncrementUsage(context.Background(), "admin1", usage.FeatureHabits); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if len(store.adjustments) != 0 {
		t.Error("admin usage must not be counted")
	}
}

func TestIncrementSkipsUnlimitedPlan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeUsageStore{snap: freeSnapshot(now)}
	store.snap.SubscriptionType = usage.PlanPremium
	svc := newTestUsageService(store, nil, now)

	if err := svc.IncrementUsage(context.Background(), "u1", usage.FeatureTasks); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if len(store.adjustments) != 0 {
		t.Error("unlimited plans keep no counter")
	}
}

func TestIncrementAndDecrementOnFreePlan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeUsageStore{snap: freeSnapshot(now)}
	svc := newTestUsageService(store, nil, now)

	if err := svc.IncrementUsage(context.Background(), "u1", usage.FeatureReminders); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	// Counter already at zero: the decrement still goes through unclamped.
	if err := svc.DecrementUsage(context.Background(), "u1", usage.FeatureReminders); err != nil {
		t.Fatalf("DecrementUsage: %v", err)
	}
	if err := svc.DecrementUsage(context.Background(), "u1", usage.FeatureReminders); err != nil {
		t.Fatalf("DecrementUsage: %v", err)
	}

	want := []counterAdjustment{
		{usage.FeatureReminders, 1},
		{usage.FeatureReminders, -1},
		{usage.FeatureReminders, -1},
	}
	if len(store.adjustments) != len(want) {
		t.Fatalf("adjustments = %v, want %v", store.adjustments, want)
	}
	for i := range want {
		if store.adjustments[i] != want[i] {
			t.Errorf("adjustment[%d] = %v, want %v", i, store.adjustments[i], want[i])
		}
	}
}
