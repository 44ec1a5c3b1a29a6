package analytics

import (
	"sort"
	"time"
)

// Streaks returns the current and longest runs of consecutive local calendar
// days with at least one check-in. The current streak is zero unless the most
// recent day is today or yesterday in loc.
func Streaks(times []time.Time, now time.Time, loc *time.Location) (current, longest int) {
	days := distinctDays(times, loc)
	if len(days) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i-1], days[i]) == 1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	today := civilDay(now, loc)
	last := days[len(days)-1]
	if gap := daysBetween(last, today); gap != 0 && gap != 1 {
		return 0, longest
	}

	current = 1
	for i := len(days) - 2; i >= 0; i-- {
		if daysBetween(days[i], days[i+1]) != 1 {
			break
		}
		current++
	}
	return current, longest
}

// civilDay maps t to midnight UTC of its calendar date in loc, so day
// arithmetic is not affected by DST transitions.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func distinctDays(times []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(times))
	days := make([]time.Time, 0, len(times))
	for _, t := range times {
		d := civilDay(t, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
