package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestJournalKeepsNewestFirst(t *testing.T) {
	j := NewJournal(3, nil)
	for _, msg := range []string{"a", "b", "c", "d"} {
		j.Add(Entry{Level: LevelInfo, Category: CategorySystem, Message: msg})
	}

	got := j.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].Message)
	assert.Equal(t, "c", got[1].Message)
	assert.Equal(t, "b", got[2].Message)

	assert.Len(t, j.Recent(2), 2)
}

func TestJournalPartialFill(t *testing.T) {
	j := NewJournal(10, nil)
	j.Add(Entry{Message: "only"})

	got := j.Recent(5)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Message)
	assert.False(t, got[0].Timestamp.IsZero(), "timestamp should be filled in")
}

func TestJournalForUser(t *testing.T) {
	j := NewJournal(10, nil)
	j.LowRating("u1", 1, 1.5, 3, true)
	j.LowRating("u2", 2, 2.0, 1, false)
	j.RatingImproved("u1", 3.2, 5, 6)

	got := j.ForUser("u1", 0)
	require.Len(t, got, 2)
	assert.Equal(t, LevelSuccess, got[0].Level)
	assert.Equal(t, CategoryRating, got[1].Category)
}

func TestJournalMirrorsToLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	j := NewJournal(10, zap.New(core))

	j.DependencyFailure(CategoryAPI, "u1", "generate advice", errors.New("boom"))
	j.EnhancementTriggered("u1", 1.7, 4, 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "generate advice failed", entries[0].Message)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "u1", entries[1].ContextMap()["user_id"])
	assert.EqualValues(t, 2, entries[1].ContextMap()["variation_number"])
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	j.Add(Entry{Message: "ignored"})
	assert.Nil(t, j.Recent(0))
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"", "info", "DEBUG", "warning", "error"} {
		_, err := parseLevel(lvl)
		assert.NoError(t, err, lvl)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}
