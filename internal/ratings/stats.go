// Package ratings derives per-user advice rating statistics, decides when
// advice generation should switch into enhanced mode, and detects whether an
// enhancement episode led to recovered ratings.
package ratings

import (
	"math"
	"time"

	"github.com/TobiSchelling/moodtrack/internal/database"
)

// Config holds the thresholds of the adaptation rule.
type Config struct {
	// Threshold is the average below which advice is considered poorly rated.
	Threshold float64
	// MinSamples is the number of ratings required before enhancement can trigger.
	MinSamples int
	// RecoveryThreshold is the post-episode average that counts as improvement.
	RecoveryThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 2.5, MinSamples: 3, RecoveryThreshold: 3.0}
}

// Stats is the aggregate of a set of rated advice records.
type Stats struct {
	TotalRatings          int
	AverageRating         float64 // two decimals
	RatingsBelowThreshold int
	LastRatingAt          *time.Time
	NeedsEnhancement      bool
}

// DisplayAverage is the average rounded to one decimal.
func (s Stats) DisplayAverage() float64 {
	return Round1(s.AverageRating)
}

// Round1 rounds half away from zero to one decimal. Every displayed average
// goes through it; fmt's %.1f alone rounds an exact half to even.
func Round1(x float64) float64 {
	return roundTo(x, 1)
}

// ComputeStats aggregates the rated records among advice. Unrated records are
// ignored; an empty input yields zero stats.
func ComputeStats(advice []database.Advice, cfg Config) Stats {
	var (
		s   Stats
		sum int
	)
	for i := range advice {
		a := &advice[i]
		if !a.Rated() {
			continue
		}
		score := *a.FeedbackScore
		s.TotalRatings++
		sum += score
		if float64(score) < cfg.Threshold {
			s.RatingsBelowThreshold++
		}
		if a.FeedbackAt != nil && (s.LastRatingAt == nil || a.FeedbackAt.After(*s.LastRatingAt)) {
			t := *a.FeedbackAt
			s.LastRatingAt = &t
		}
	}
	if s.TotalRatings == 0 {
		return Stats{}
	}
	s.AverageRating = roundTo(float64(sum)/float64(s.TotalRatings), 2)
	s.NeedsEnhancement = cfg.needsEnhancement(s.TotalRatings, s.AverageRating)
	return s
}

func (c Config) needsEnhancement(total int, average float64) bool {
	return total >= c.MinSamples && average < c.Threshold
}

func mean(advice []database.Advice) (float64, int) {
	var sum, n int
	for i := range advice {
		if advice[i].Rated() {
			sum += *advice[i].FeedbackScore
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
