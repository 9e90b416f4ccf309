package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tickyai/internal/types/habit"
)

// patternRule maps trigger phrases (Russian/English pairs) to a cron
// expression. Rules are evaluated in order and the first match wins, so
// specific phrases ("every 2 hours") must come before generic ones
// ("hour") that they contain.
type patternRule struct {
	phrases []string
	expr    string
}

var patternRules = []patternRule{
	{[]string{"каждую минуту", "every minute"}, "* * * * *"},
	{[]string{"каждые 2 минуты", "every 2 minutes"}, "*/2 * * * *"},
	{[]string{"каждые 3 минуты", "every 3 minutes"}, "*/3 * * * *"},
	{[]string{"каждые 5 минут", "every 5 minutes"}, "*/5 * * * *"},
	{[]string{"каждые 10 минут", "every 10 minutes"}, "*/10 * * * *"},
	{[]string{"каждые 15 минут", "every 15 minutes"}, "*/15 * * * *"},
	{[]string{"каждые 30 минут", "every 30 minutes"}, "*/30 * * * *"},
	{[]string{"каждые 2 часа", "every 2 hours"}, "0 */2 * * *"},
	{[]string{"каждые 3 часа", "every 3 hours"}, "0 */3 * * *"},
	{[]string{"каждые 4 часа", "every 4 hours"}, "0 */4 * * *"},
	{[]string{"каждые 6 часов", "every 6 hours"}, "0 */6 * * *"},
	{[]string{"каждый час", "hourly", "every hour"}, "0 * * * *"},
}

var clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

// CompileReminderPattern turns a free-text reminder time plus a frequency
// into a cron expression. The second return value is false when the phrase
// is unparsable; only DAILY has a fallback (09:00).
func CompileReminderPattern(reminderTime string, frequency habit.Frequency) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(reminderTime))

	for _, rule := range patternRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				return rule.expr, true
			}
		}
	}

	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			switch frequency {
			case habit.FrequencyWeekly:
				// Weekly reminders always fire on Monday.
				return fmt.Sprintf("%d %d * * 1", minute, hour), true
			default:
				return fmt.Sprintf("%d %d * * *", minute, hour), true
			}
		}
	}

	if frequency == habit.FrequencyDaily {
		return "0 9 * * *", true
	}

	return "", false
}
