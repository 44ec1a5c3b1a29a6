package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/logging"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

func TestWriteStatsRoundsAverageHalfUp(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf, &coach.StatsResult{
		Decision: ratings.Decision{
			Profile:          database.RatingProfile{TotalRatings: 4, AverageRating: 2.25, RatingsBelowThreshold: 3},
			NeedsEnhancement: true,
		},
	}, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "Average: 2.3\n")
	assert.Contains(t, out, "Not active")
}

func TestWriteStatsScopesEventsToRun(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf, &coach.StatsResult{}, time.UTC)
	assert.Contains(t, buf.String(), "this run only")
	assert.Contains(t, buf.String(), "  none\n")

	buf.Reset()
	at := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	writeStats(&buf, &coach.StatsResult{
		Events: []logging.Entry{{Timestamp: at, Level: logging.LevelWarning, Message: "low rating received"}},
	}, time.UTC)
	assert.Contains(t, buf.String(), "12:30:00  warning  low rating received")
	assert.NotContains(t, buf.String(), "none")
}
