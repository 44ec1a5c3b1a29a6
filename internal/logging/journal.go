package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category groups journal entries by the part of the system that produced them.
type Category string

const (
	CategoryEnhancement Category = "enhancement"
	CategoryRating      Category = "rating"
	CategoryAPI         Category = "api"
	CategorySystem      Category = "system"
)

// Level is the severity of a journal entry. Success marks a positive outcome
// worth surfacing, such as a recovered rating episode.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Entry is one adaptation event.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Journal keeps the most recent adaptation events in memory and mirrors each
// one to the structured logger.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewJournal creates a journal holding at most capacity entries.
func NewJournal(capacity int, logger *zap.Logger) *Journal {
	if capacity < 1 {
		capacity = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		entries: make([]Entry, capacity),
		logger:  logger,
		now:     time.Now,
	}
}

// Add records an entry, evicting the oldest when the journal is full.
func (j *Journal) Add(e Entry) {
	if j == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now()
	}

	j.mu.Lock()
	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	j.mu.Unlock()

	fields := []zap.Field{
		zap.String("category", string(e.Category)),
		zap.String("user_id", e.UserID),
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	switch e.Level {
	case LevelError:
		j.logger.Error(e.Message, fields...)
	case LevelWarning:
		j.logger.Warn(e.Message, fields...)
	default:
		j.logger.Info(e.Message, fields...)
	}
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (j *Journal) Recent(limit int) []Entry {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	n := j.next
	if j.full {
		n = len(j.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	idx := j.next
	for i := 0; i < limit; i++ {
		idx = (idx - 1 + len(j.entries)) % len(j.entries)
		out = append(out, j.entries[idx])
	}
	return out
}

// ForUser returns the user's entries, newest first.
func (j *Journal) ForUser(userID string, limit int) []Entry {
	var out []Entry
	for _, e := range j.Recent(0) {
		if e.UserID != userID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// EnhancementTriggered records that enhanced advice was produced for a user.
func (j *Journal) EnhancementTriggered(userID string, averageRating float64, totalRatings, variation int) {
	j.Add(Entry{
		Level:    LevelInfo,
		Category: CategoryEnhancement,
		Message:  "enhanced prompt used due to low ratings",
		UserID:   userID,
		Metadata: map[string]any{
			"average_rating":   averageRating,
			"total_ratings":    totalRatings,
			"variation_number": variation,
		},
	})
}

// RatingImproved records a recovered enhancement episode.
func (j *Journal) RatingImproved(userID string, newAverage float64, feedbackScore, totalRatings int) {
	j.Add(Entry{
		Level:    LevelSuccess,
		Category: CategoryRating,
		Message:  "rating improvement detected",
		UserID:   userID,
		Metadata: map[string]any{
			"new_average":    newAverage,
			"feedback_score": feedbackScore,
			"total_ratings":  totalRatings,
		},
	})
}

// LowRating records a rating under the enhancement threshold.
func (j *Journal) LowRating(userID string, feedbackScore int, currentAverage float64, totalRatings int, willEnhance bool) {
	j.Add(Entry{
		Level:    LevelWarning,
		Category: CategoryRating,
		Message:  "low rating received",
		UserID:   userID,
		Metadata: map[string]any{
			"feedback_score":  feedbackScore,
			"current_average": currentAverage,
			"total_ratings":   totalRatings,
			"will_enhance":    willEnhance,
		},
	})
}

// DependencyFailure records a failed collaborator call.
func (j *Journal) DependencyFailure(category Category, userID, op string, err error) {
	j.Add(Entry{
		Level:    LevelError,
		Category: category,
		Message:  op + " failed",
		UserID:   userID,
		Metadata: map[string]any{"error": err.Error()},
	})
}
