package ratings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/logging"
)

// Store is the slice of the record store the engine reads and writes.
type Store interface {
	RatedAdvice(ctx context.Context, userID string, createdSince *time.Time) ([]database.Advice, error)
	RatedAdviceBefore(ctx context.Context, userID string, t time.Time) ([]database.Advice, error)
	GetRatingProfile(ctx context.Context, userID string) (*database.RatingProfile, error)
	UpsertRatingProfile(ctx context.Context, p database.RatingProfile) error
	MarkRecovered(ctx context.Context, userID string, at time.Time) error
	ClearEnhancementTrigger(ctx context.Context, userID string) error
	CountEnhancedAdvice(ctx context.Context, userID string) (int, error)
}

// DependencyError reports a failed record store call. Callers may retry.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Decision is the outcome of evaluating a user's rating history.
type Decision struct {
	Profile          database.RatingProfile `json:"profile"`
	NeedsEnhancement bool                   `json:"needs_enhancement"`
	// Stale is set when the canonical history could not be read and the
	// decision was taken from the last cached profile.
	Stale bool `json:"stale"`
}

// DisplayAverage is the profile average rounded to one decimal.
func (d Decision) DisplayAverage() float64 {
	return Round1(d.Profile.AverageRating)
}

// Engine computes rating profiles from canonical advice history and keeps
// the per-user cache in sync with it.
type Engine struct {
	store   Store
	cfg     Config
	logger  *zap.Logger
	journal *logging.Journal
	now     func() time.Time
	group   singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithJournal records adaptation events in j.
func WithJournal(j *logging.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over store.
func NewEngine(store Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Refresh rescans the user's rated advice and overwrites the cached profile.
// If the history cannot be read, the last cached profile is returned with
// Stale set together with a *DependencyError, and the cache is left as is.
// Concurrent refreshes of the same user share one rescan.
func (e *Engine) Refresh(ctx context.Context, userID string) (Decision, error) {
	v, err, _ := e.group.Do(userID, func() (any, error) {
		return e.evaluate(ctx, userID, true)
	})
	d, _ := v.(Decision)
	return d, err
}

// Decide returns the current enhancement decision as an explicit two-tier
// read: the cached profile is loaded, the canonical history is rescanned,
// and the two are reconciled. Drift is logged and healed by rewriting the
// cache.
func (e *Engine) Decide(ctx context.Context, userID string) (Decision, error) {
	return e.evaluate(ctx, userID, false)
}

func (e *Engine) evaluate(ctx context.Context, userID string, force bool) (Decision, error) {
	cached, err := e.store.GetRatingProfile(ctx, userID)
	cacheKnown := err == nil
	if !cacheKnown {
		// The upsert below never clears an existing latch, so the stored
		// profile is re-read after it instead of trusting next.
		e.logger.Warn("reading cached rating profile", zap.String("user_id", userID), zap.Error(err))
		cached = nil
	}

	advice, err := e.store.RatedAdvice(ctx, userID, nil)
	if err != nil {
		derr := &DependencyError{Op: "fetching rated advice", Err: err}
		e.journal.DependencyFailure(logging.CategoryRating, userID, derr.Op, err)
		return e.fromCache(userID, cached), derr
	}

	stats := ComputeStats(advice, e.cfg)
	next := e.reconcile(userID, stats, cached)

	if !force && cached != nil && !drifted(*cached, next) {
		return Decision{Profile: *cached, NeedsEnhancement: stats.NeedsEnhancement}, nil
	}
	if !force && cached != nil {
		e.logger.Info("rating profile drift healed",
			zap.String("user_id", userID),
			zap.Int("cached_total", cached.TotalRatings),
			zap.Int("actual_total", next.TotalRatings),
			zap.Float64("cached_average", cached.AverageRating),
			zap.Float64("actual_average", next.AverageRating),
		)
	}

	decision := Decision{Profile: next, NeedsEnhancement: stats.NeedsEnhancement}
	if err := e.store.UpsertRatingProfile(ctx, next); err != nil {
		derr := &DependencyError{Op: "writing rating profile", Err: err}
		e.journal.DependencyFailure(logging.CategoryRating, userID, derr.Op, err)
		return decision, derr
	}

	if !cacheKnown {
		stored, err := e.store.GetRatingProfile(ctx, userID)
		if err != nil || stored == nil {
			e.logger.Warn("re-reading rating profile", zap.String("user_id", userID), zap.Error(err))
			return decision, nil
		}
		decision.Profile = *stored
		return decision, nil
	}
	if next.EnhancementTriggeredAt != nil && (cached == nil || cached.EnhancementTriggeredAt == nil) {
		e.logger.Info("enhancement episode started",
			zap.String("user_id", userID),
			zap.Float64("average_rating", next.AverageRating),
			zap.Int("total_ratings", next.TotalRatings),
		)
	}
	return decision, nil
}

// reconcile builds the profile to store from fresh stats and the cached
// episode markers. The trigger is latched at most once per episode.
func (e *Engine) reconcile(userID string, stats Stats, cached *database.RatingProfile) database.RatingProfile {
	now := e.now()
	p := database.RatingProfile{
		UserID:                userID,
		TotalRatings:          stats.TotalRatings,
		AverageRating:         stats.AverageRating,
		RatingsBelowThreshold: stats.RatingsBelowThreshold,
		LastRatingAt:          stats.LastRatingAt,
		UpdatedAt:             now,
	}
	if cached != nil {
		p.EnhancementTriggeredAt = cached.EnhancementTriggeredAt
		p.RecoveredAt = cached.RecoveredAt
	}
	if stats.NeedsEnhancement && p.EnhancementTriggeredAt == nil {
		p.EnhancementTriggeredAt = &now
	}
	return p
}

func drifted(cached, actual database.RatingProfile) bool {
	if cached.TotalRatings != actual.TotalRatings ||
		cached.AverageRating != actual.AverageRating ||
		cached.RatingsBelowThreshold != actual.RatingsBelowThreshold {
		return true
	}
	return cached.EnhancementTriggeredAt == nil && actual.EnhancementTriggeredAt != nil
}

func (e *Engine) fromCache(userID string, cached *database.RatingProfile) Decision {
	if cached == nil {
		return Decision{Profile: database.RatingProfile{UserID: userID}, Stale: true}
	}
	return Decision{
		Profile:          *cached,
		NeedsEnhancement: e.cfg.needsEnhancement(cached.TotalRatings, cached.AverageRating),
		Stale:            true,
	}
}

// HasImproved reports whether ratings recovered after the user's enhancement
// episode started: true iff the mean score of rated advice created at or
// after the trigger is at least the recovery threshold. It is false with no
// episode or no post-episode ratings.
func (e *Engine) HasImproved(ctx context.Context, userID string) (bool, error) {
	p, err := e.store.GetRatingProfile(ctx, userID)
	if err != nil {
		return false, &DependencyError{Op: "reading rating profile", Err: err}
	}
	if p == nil || p.EnhancementTriggeredAt == nil {
		return false, nil
	}

	after, err := e.store.RatedAdvice(ctx, userID, p.EnhancementTriggeredAt)
	if err != nil {
		return false, &DependencyError{Op: "fetching post-episode ratings", Err: err}
	}
	avg, n := mean(after)
	if n == 0 {
		return false, nil
	}
	return avg >= e.cfg.RecoveryThreshold, nil
}

// CheckRecovery runs HasImproved and, when the episode has recovered,
// annotates it once with the recovery time. The episode itself stays open.
func (e *Engine) CheckRecovery(ctx context.Context, userID string) (bool, error) {
	improved, err := e.HasImproved(ctx, userID)
	if err != nil || !improved {
		return improved, err
	}
	if err := e.store.MarkRecovered(ctx, userID, e.now()); err != nil {
		return true, &DependencyError{Op: "marking recovery", Err: err}
	}
	return true, nil
}

// Report summarizes a user's enhancement episode for monitoring.
type Report struct {
	Triggered           bool       `json:"triggered"`
	TriggeredAt         *time.Time `json:"triggered_at,omitempty"`
	RecoveredAt         *time.Time `json:"recovered_at,omitempty"`
	Improved            bool       `json:"improved"`
	EnhancedAdviceCount int        `json:"enhanced_advice_count"`
	RatingsBefore       int        `json:"ratings_before"`
	AverageBefore       float64    `json:"average_before"`
	RatingsAfter        int        `json:"ratings_after"`
	AverageAfter        float64    `json:"average_after"`
}

// EnhancementReport compares ratings before and after the episode trigger.
func (e *Engine) EnhancementReport(ctx context.Context, userID string) (Report, error) {
	var r Report

	count, err := e.store.CountEnhancedAdvice(ctx, userID)
	if err != nil {
		return r, &DependencyError{Op: "counting enhanced advice", Err: err}
	}
	r.EnhancedAdviceCount = count

	p, err := e.store.GetRatingProfile(ctx, userID)
	if err != nil {
		return r, &DependencyError{Op: "reading rating profile", Err: err}
	}
	if p == nil || p.EnhancementTriggeredAt == nil {
		return r, nil
	}
	r.Triggered = true
	r.TriggeredAt = p.EnhancementTriggeredAt
	r.RecoveredAt = p.RecoveredAt

	before, err := e.store.RatedAdviceBefore(ctx, userID, *p.EnhancementTriggeredAt)
	if err != nil {
		return r, &DependencyError{Op: "fetching pre-episode ratings", Err: err}
	}
	after, err := e.store.RatedAdvice(ctx, userID, p.EnhancementTriggeredAt)
	if err != nil {
		return r, &DependencyError{Op: "fetching post-episode ratings", Err: err}
	}

	avg, n := mean(before)
	r.AverageBefore, r.RatingsBefore = Round1(avg), n
	avg, n = mean(after)
	r.AverageAfter, r.RatingsAfter = Round1(avg), n
	r.Improved = n > 0 && avg >= e.cfg.RecoveryThreshold
	return r, nil
}

// ResetEnhancement clears the user's episode markers. It returns
// database.ErrNotFound when the user has no cached profile.
func (e *Engine) ResetEnhancement(ctx context.Context, userID string) error {
	if err := e.store.ClearEnhancementTrigger(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return err
		}
		return &DependencyError{Op: "clearing enhancement trigger", Err: err}
	}
	e.journal.Add(logging.Entry{
		Level:    logging.LevelInfo,
		Category: logging.CategoryEnhancement,
		Message:  "enhancement episode reset",
		UserID:   userID,
	})
	return nil
}

// BatchResult reports a RefreshAll run.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// RefreshAll refreshes every user in userIDs with at most workers concurrent
// rescans. A failure for one user does not stop the others; cancelling ctx
// stops scheduling new users.
func (e *Engine) RefreshAll(ctx context.Context, userIDs []string, workers int) BatchResult {
	if workers < 1 {
		workers = 1
	}
	result := BatchResult{Errors: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)
	for _, id := range userIDs {
		if ctx.Err() != nil {
			mu.Lock()
			result.Failed++
			result.Errors[id] = ctx.Err()
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			_, err := e.Refresh(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors[id] = err
				return nil
			}
			result.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("batch rating refresh complete",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result
}
