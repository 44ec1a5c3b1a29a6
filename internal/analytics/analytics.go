// Package analytics turns a window of check-ins and their advice into the
// derived statistics shown on the dashboard. Aggregate is a pure function of
// its input.
package analytics

import (
	"sort"
	"time"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type Summary struct {
	AverageMood        float64 `json:"average_mood"`
	TotalCheckins      int     `json:"total_checkins"`
	CurrentStreak      int     `json:"current_streak"`
	LongestStreak      int     `json:"longest_streak"`
	AverageRating      float64 `json:"average_rating"`
	TotalInterventions int     `json:"total_interventions"`
}

type TrendPoint struct {
	Date        time.Time            `json:"date"`
	MoodScore   int                  `json:"mood_score"`
	EnergyLevel database.EnergyLevel `json:"energy_level"`
	Notes       *string              `json:"notes"`
}

type EnergyDistribution struct {
	Low  int `json:"low"`
	Mid  int `json:"mid"`
	High int `json:"high"`
}

// DayPattern averages one weekday. Count gates interpretation: a day with
// Count 0 has no data, its zero averages are not low scores.
type DayPattern struct {
	DayOfWeek     int     `json:"day_of_week"`
	DayName       string  `json:"day_name"`
	AverageMood   float64 `json:"average_mood"`
	AverageEnergy float64 `json:"average_energy"`
	Count         int     `json:"count"`
}

// EnhancementStats compares ratings of standard advice (before) with ratings
// of enhanced advice (after).
type EnhancementStats struct {
	TotalEnhanced       int     `json:"total_enhanced"`
	AverageRatingBefore float64 `json:"average_rating_before"`
	AverageRatingAfter  float64 `json:"average_rating_after"`
	ImprovementRate     float64 `json:"improvement_rate"`
}

type AdviceQuality struct {
	// RatingDistribution always has the keys 1 through 5.
	RatingDistribution map[int]int      `json:"rating_distribution"`
	AverageRating      float64          `json:"average_rating"`
	Enhancement        EnhancementStats `json:"enhancement_stats"`
}

type Correlation struct {
	EnergyLevel database.EnergyLevel `json:"energy_level"`
	AverageMood float64              `json:"average_mood"`
	Count       int                  `json:"count"`
}

// Snapshot is the full analytics view of a window. Every field is populated
// even for an empty window.
type Snapshot struct {
	Summary               Summary            `json:"summary"`
	MoodTrend             []TrendPoint       `json:"mood_trend"`
	EnergyDistribution    EnergyDistribution `json:"energy_distribution"`
	WeeklyPattern         []DayPattern       `json:"weekly_pattern"`
	AdviceQuality         AdviceQuality      `json:"advice_quality"`
	MoodEnergyCorrelation []Correlation      `json:"mood_energy_correlation"`
}

// Aggregate computes the snapshot of pairs. now and loc define "today" and
// the local calendar used for streaks and weekdays.
func Aggregate(pairs []database.CheckinWithAdvice, now time.Time, loc *time.Location) Snapshot {
	if loc == nil {
		loc = time.Local
	}
	return Snapshot{
		Summary:               summarize(pairs, now, loc),
		MoodTrend:             moodTrend(pairs),
		EnergyDistribution:    energyDistribution(pairs),
		WeeklyPattern:         weeklyPattern(pairs, loc),
		AdviceQuality:         adviceQuality(pairs),
		MoodEnergyCorrelation: correlation(pairs),
	}
}

// BestEnergy returns the energy level with the highest average mood among
// levels that have data.
func (s Snapshot) BestEnergy() (database.EnergyLevel, bool) {
	var (
		best  Correlation
		found bool
	)
	for _, c := range s.MoodEnergyCorrelation {
		if c.Count > 0 && (!found || c.AverageMood > best.AverageMood) {
			best, found = c, true
		}
	}
	return best.EnergyLevel, found
}

func summarize(pairs []database.CheckinWithAdvice, now time.Time, loc *time.Location) Summary {
	var s Summary
	if len(pairs) == 0 {
		return s
	}

	var mood mean
	var rating mean
	times := make([]time.Time, len(pairs))
	for i, p := range pairs {
		mood.add(p.MoodScore)
		times[i] = p.CreatedAt
		if p.Advice != nil && p.Advice.Rated() {
			rating.add(*p.Advice.FeedbackScore)
		}
	}

	s.TotalCheckins = len(pairs)
	s.AverageMood = round1(mood.value())
	s.TotalInterventions = rating.n
	s.AverageRating = round1(rating.value())
	s.CurrentStreak, s.LongestStreak = Streaks(times, now, loc)
	return s
}

func moodTrend(pairs []database.CheckinWithAdvice) []TrendPoint {
	out := make([]TrendPoint, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, TrendPoint{
			Date:        p.CreatedAt,
			MoodScore:   p.MoodScore,
			EnergyLevel: p.EnergyLevel,
			Notes:       p.Notes,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func energyDistribution(pairs []database.CheckinWithAdvice) EnergyDistribution {
	var d EnergyDistribution
	for _, p := range pairs {
		lvl, ok := database.ParseEnergyLevel(string(p.EnergyLevel))
		if !ok {
			continue
		}
		switch lvl {
		case database.EnergyLow:
			d.Low++
		case database.EnergyMid:
			d.Mid++
		case database.EnergyHigh:
			d.High++
		}
	}
	return d
}

// weeklyPattern always returns seven days, Sunday first. Check-ins with an
// unknown energy level count toward mood but not toward average energy.
func weeklyPattern(pairs []database.CheckinWithAdvice, loc *time.Location) []DayPattern {
	var mood, energy [7]mean
	for _, p := range pairs {
		day := int(p.CreatedAt.In(loc).Weekday())
		mood[day].add(p.MoodScore)
		if score := p.EnergyLevel.Score(); score > 0 {
			energy[day].add(score)
		}
	}

	out := make([]DayPattern, 7)
	for day := range out {
		out[day] = DayPattern{
			DayOfWeek:     day,
			DayName:       dayNames[day],
			AverageMood:   round1(mood[day].value()),
			AverageEnergy: round1(energy[day].value()),
			Count:         mood[day].n,
		}
	}
	return out
}

func adviceQuality(pairs []database.CheckinWithAdvice) AdviceQuality {
	q := AdviceQuality{RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}

	var all, standard, enhanced mean
	for _, p := range pairs {
		a := p.Advice
		if a == nil {
			continue
		}
		if a.EnhancedPromptUsed {
			q.Enhancement.TotalEnhanced++
		}
		if !a.Rated() {
			continue
		}
		score := *a.FeedbackScore
		if score < 1 || score > 5 {
			continue
		}
		q.RatingDistribution[score]++
		all.add(score)
		if a.EnhancedPromptUsed {
			enhanced.add(score)
		} else {
			standard.add(score)
		}
	}

	before, after := standard.value(), enhanced.value()
	q.AverageRating = round1(all.value())
	q.Enhancement.AverageRatingBefore = round1(before)
	q.Enhancement.AverageRatingAfter = round1(after)
	q.Enhancement.ImprovementRate = round1(ImprovementRate(before, after))
	return q
}

// ImprovementRate is the relative change from before to after in percent.
// It is 0 when before is 0.
func ImprovementRate(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}

func correlation(pairs []database.CheckinWithAdvice) []Correlation {
	var mood [3]mean
	for _, p := range pairs {
		if score := p.EnergyLevel.Score(); score > 0 {
			mood[score-1].add(p.MoodScore)
		}
	}

	out := make([]Correlation, len(database.EnergyLevels))
	for i, lvl := range database.EnergyLevels {
		out[i] = Correlation{
			EnergyLevel: lvl,
			AverageMood: round1(mood[i].value()),
			Count:       mood[i].n,
		}
	}
	return out
}

type mean struct {
	sum, n int
}

func (m *mean) add(v int) {
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.n)
}

func round1(x float64) float64 {
	return ratings.Round1(x)
}
