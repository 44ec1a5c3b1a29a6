package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

func lowRated() ratings.Decision {
	return ratings.Decision{
		Profile:          database.RatingProfile{UserID: "u1", TotalRatings: 3, AverageRating: 1.33},
		NeedsEnhancement: true,
	}
}

func request() Request {
	return Request{MoodScore: 2, Energy: database.EnergyLow, Notes: "tired after work", Locale: "en"}
}

func TestSelectStandard(t *testing.T) {
	s := NewSelector(3, false)
	d := s.Select(ratings.Decision{}, request(), 5)

	assert.False(t, d.IsEnhanced)
	assert.Zero(t, d.VariationNumber)
	assert.Contains(t, d.Prompt, "Please analyze the user's emotional state")
	assert.Contains(t, d.Prompt, "- Mood: 2/5")
	assert.Contains(t, d.Prompt, "- Notes: tired after work")
	assert.NotContains(t, d.Prompt, "IMPORTANT")
	assert.NotContains(t, d.Prompt, "personality traits:")
	assert.NotEmpty(t, d.System)
}

func TestSelectEnhancedRoundsAverageHalfUp(t *testing.T) {
	s := NewSelector(3, false)
	st := ratings.ComputeStats(ratedScores(2, 2, 2, 3), ratings.DefaultConfig())
	require.Equal(t, 2.25, st.AverageRating)
	require.True(t, st.NeedsEnhancement)

	d := s.Select(ratings.Decision{
		Profile:          database.RatingProfile{UserID: "u1", TotalRatings: st.TotalRatings, AverageRating: st.AverageRating},
		NeedsEnhancement: true,
	}, request(), 0)

	assert.Contains(t, d.Prompt, "average of 2.3/5 stars (from 4 ratings)")
}

func ratedScores(scores ...int) []database.Advice {
	out := make([]database.Advice, len(scores))
	for i := range scores {
		out[i] = database.Advice{FeedbackScore: &scores[i]}
	}
	return out
}

func TestSelectEnhancedRotatesVariants(t *testing.T) {
	s := NewSelector(3, false)
	var got []int
	for attempt := 0; attempt < 7; attempt++ {
		d := s.Select(lowRated(), request(), attempt)
		require.True(t, d.IsEnhanced)
		got = append(got, d.VariationNumber)
	}
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3, 1}, got)
}

func TestSelectEnhancedSections(t *testing.T) {
	s := NewSelector(3, false)
	req := request()
	req.Traits = database.Traits{"openness": 80, "extraversion": 30}
	req.PriorLowRated = []string{
		strings.Repeat("a", 150),
		"Go for a run.",
		"Meditate.",
	}

	d := s.Select(lowRated(), req, 1)
	assert.Contains(t, d.Prompt, "average of 1.3/5 stars (from 3 ratings)")
	assert.Contains(t, d.Prompt, "Focus on practical and achievable solutions")
	assert.Contains(t, d.Prompt, "User's personality traits: extraversion: 30, openness: 80")
	assert.Contains(t, d.Prompt, "avoid repeating")
	assert.Contains(t, d.Prompt, `1. "`+strings.Repeat("a", 100)+`..."`)
	assert.Contains(t, d.Prompt, `2. "Go for a run."`)
	assert.NotContains(t, d.Prompt, "Meditate.")
}

func TestSelectVariantTexts(t *testing.T) {
	s := NewSelector(3, false)
	want := []string{"Analyze emotional state more deeply", "measurable and specific outcomes", "root causes"}
	for i, w := range want {
		d := s.Select(lowRated(), request(), i)
		assert.Contains(t, d.Prompt, w, "variation %d", i+1)
	}
}

func TestSelectNotesFiller(t *testing.T) {
	s := NewSelector(3, false)
	req := request()
	req.Notes = "   "
	assert.Contains(t, s.Select(ratings.Decision{}, req, 0).Prompt, "- Notes: None provided")

	req.Locale = "ja"
	assert.Contains(t, s.Select(ratings.Decision{}, req, 0).Prompt, "- メモ: なし")
}

func TestSelectNoPriorAdviceOmitsSection(t *testing.T) {
	s := NewSelector(3, false)
	d := s.Select(lowRated(), request(), 0)
	assert.NotContains(t, d.Prompt, "avoid repeating")
	assert.NotContains(t, d.Prompt, "\n\n\n")
}

func TestSelectLocales(t *testing.T) {
	s := NewSelector(3, false)
	tests := []struct {
		locale string
		want   string
		marker string
	}{
		{"vi", "vi", "QUAN TRỌNG"},
		{"ja-JP", "ja", "重要"},
		{"EN_us", "en", "IMPORTANT"},
		{"fr", "en", "IMPORTANT"},
		{"", "en", "IMPORTANT"},
	}
	for _, tt := range tests {
		req := request()
		req.Locale = tt.locale
		d := s.Select(lowRated(), req, 0)
		assert.Equal(t, tt.want, d.Locale, tt.locale)
		assert.Contains(t, d.Prompt, tt.marker, tt.locale)
	}
}

func TestSelectStructured(t *testing.T) {
	d := NewSelector(3, true).Select(ratings.Decision{}, request(), 0)
	assert.True(t, d.Structured)
	assert.Contains(t, d.Prompt, `"suggested_habit"`)
}

func TestNewSelectorClampsVariations(t *testing.T) {
	assert.Equal(t, 3, NewSelector(0, false).Variations())
	assert.Equal(t, 3, NewSelector(9, false).Variations())
	assert.Equal(t, 2, NewSelector(2, false).Variations())

	s := NewSelector(2, false)
	assert.Equal(t, 1, s.Select(lowRated(), request(), 2).VariationNumber)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "hé...", truncate("héllo", 2))
}
