package database

import (
	"strings"
	"time"
)

// EnergyLevel is the self-reported energy of a check-in.
type EnergyLevel string

const (
	EnergyLow  EnergyLevel = "Low"
	EnergyMid  EnergyLevel = "Mid"
	EnergyHigh EnergyLevel = "High"
)

// EnergyLevels lists the known levels in ascending order.
var EnergyLevels = []EnergyLevel{EnergyLow, EnergyMid, EnergyHigh}

// ParseEnergyLevel matches s case-insensitively against the known levels.
// "medium" is accepted as an alias for Mid.
func ParseEnergyLevel(s string) (EnergyLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return EnergyLow, true
	case "mid", "medium":
		return EnergyMid, true
	case "high":
		return EnergyHigh, true
	}
	return "", false
}

// Score encodes the level numerically (Low=1, Mid=2, High=3). Unknown levels return 0.
func (e EnergyLevel) Score() int {
	switch lvl, _ := ParseEnergyLevel(string(e)); lvl {
	case EnergyLow:
		return 1
	case EnergyMid:
		return 2
	case EnergyHigh:
		return 3
	}
	return 0
}

// Checkin is one immutable self-report.
type Checkin struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	CreatedAt   time.Time   `json:"created_at"`
	MoodScore   int         `json:"mood_score"`
	EnergyLevel EnergyLevel `json:"energy_level"`
	Notes       *string     `json:"notes,omitempty"`
}

// Advice is the coaching message generated for exactly one check-in.
type Advice struct {
	ID                 string     `json:"id"`
	CheckinID          string     `json:"checkin_id"`
	UserID             string     `json:"user_id"`
	CreatedAt          time.Time  `json:"created_at"`
	Text               string     `json:"text"`
	SuggestedHabit     *string    `json:"suggested_habit,omitempty"`
	TemplateType       string     `json:"template_type"`
	EnhancedPromptUsed bool       `json:"enhanced_prompt_used"`
	VariationNumber    int        `json:"variation_number"`
	Fallback           bool       `json:"fallback"`
	FeedbackScore      *int       `json:"feedback_score"`
	FeedbackAt         *time.Time `json:"feedback_at,omitempty"`
}

// Rated reports whether the user has scored this advice.
func (a *Advice) Rated() bool {
	return a.FeedbackScore != nil
}

// CheckinWithAdvice pairs a check-in with its advice, if any was generated.
type CheckinWithAdvice struct {
	Checkin
	Advice *Advice
}

// RatingProfile is the cached per-user rating aggregate. It is always
// reproducible by rescanning the user's rated advice.
type RatingProfile struct {
	UserID                 string     `json:"user_id"`
	TotalRatings           int        `json:"total_ratings"`
	AverageRating          float64    `json:"average_rating"`
	RatingsBelowThreshold  int        `json:"ratings_below_threshold"`
	LastRatingAt           *time.Time `json:"last_rating_at,omitempty"`
	EnhancementTriggeredAt *time.Time `json:"enhancement_triggered_at,omitempty"`
	RecoveredAt            *time.Time `json:"recovered_at,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Traits maps a personality trait name to a 0-100 score.
type Traits map[string]int

// Stats contains aggregate database statistics for one user.
type Stats struct {
	TotalCheckins  int `json:"total_checkins"`
	TotalAdvice    int `json:"total_advice"`
	RatedAdvice    int `json:"rated_advice"`
	EnhancedAdvice int `json:"enhanced_advice"`
	FallbackAdvice int `json:"fallback_advice"`
	DaysWithData   int `json:"days_with_data"`
}
