package usage

import "time"

type Feature string

const (
	FeatureReminders Feature = "reminders"
	FeatureTasks     Feature = "tasks"
	FeatureHabits    Feature = "habits"
	FeatureAiQueries Feature = "ai_queries"
)

// Unlimited is the sentinel limit meaning no cap applies.
const Unlimited = -1

type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
)

// LimitTable maps plan -> feature -> daily allowance.
type LimitTable map[Plan]map[Feature]int

// DefaultLimits is the union of the free and premium tiers the bot ships
// with. Premium is unlimited across the board.
func DefaultLimits() LimitTable {
	return LimitTable{
		PlanFree: {
			FeatureReminders: 3,
			FeatureTasks:     10,
			FeatureHabits:    3,
			FeatureAiQueries: 5,
		},
		PlanPremium: {
			FeatureReminders: Unlimited,
			FeatureTasks:     Unlimited,
			FeatureHabits:    Unlimited,
			FeatureAiQueries: Unlimited,
		},
	}
}

// Limit returns the allowance for a plan/feature pair. Unknown pairs are
// treated as unlimited rather than denied.
func (t LimitTable) Limit(plan Plan, feature Feature) int {
	features, ok := t[plan]
	if !ok {
		return Unlimited
	}
	limit, ok := features[feature]
	if !ok {
		return Unlimited
	}
	return limit
}

type LimitResult struct {
	Allowed   bool   `json:"allowed"`
	Current   int    `json:"current"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

// Snapshot is the slice of a user row the quota ledger reads and resets.
type Snapshot struct {
	UserID             string
	DailyRemindersUsed int
	DailyTasksUsed     int
	DailyHabitsUsed    int
	DailyAiQueriesUsed int
	LastUsageReset     time.Time
	SubscriptionType   Plan
	IsTrialActive      bool
	TrialEnds          *time.Time
}

// Counter returns the stored counter for a feature.
func (s *Snapshot) Counter(feature Feature) int {
	switch feature {
	case FeatureReminders:
		return s.DailyRemindersUsed
	case FeatureTasks:
		return s.DailyTasksUsed
	case FeatureHabits:
		return s.DailyHabitsUsed
	case FeatureAiQueries:
		return s.DailyAiQueriesUsed
	}
	return 0
}

// Column maps a feature to its users-table counter column.
func Column(feature Feature) string {
	switch feature {
	case FeatureReminders:
		return "daily_reminders_used"
	case FeatureTasks:
		return "daily_tasks_used"
	case FeatureHabits:
		return "daily_habits_used"
	case FeatureAiQueries:
		return "daily_ai_queries_used"
	}
	return ""
}
