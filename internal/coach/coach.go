// Package coach wires the record store, the LLM provider and the adaptation
// engine into the operations exposed to the CLI and the HTTP server.
package coach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/moodtrack/internal/advice"
	"github.com/TobiSchelling/moodtrack/internal/analytics"
	"github.com/TobiSchelling/moodtrack/internal/config"
	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/llm"
	"github.com/TobiSchelling/moodtrack/internal/logging"
	"github.com/TobiSchelling/moodtrack/internal/prompt"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

// Coach is the entry point for every user-facing operation.
type Coach struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	logger   *zap.Logger
	journal  *logging.Journal
	loc      *time.Location
	now      func() time.Time

	ratings *ratings.Engine
	advice  *advice.Service
}

type options struct {
	provider    llm.Provider
	providerSet bool
	logger      *zap.Logger
	journal     *logging.Journal
	now         func() time.Time
}

// Option configures a Coach.
type Option func(*options)

// WithProvider uses p instead of creating a provider from config. A nil p
// serves fallback advice only.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider, o.providerSet = p, true }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithJournal shares an existing event journal.
func WithJournal(j *logging.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a coach over db.
func New(cfg *config.Config, db *database.DB, opts ...Option) (*Coach, error) {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if !o.providerSet {
		a := cfg.Advice
		o.provider = llm.CreateProvider(llm.Options{
			Provider:    a.Provider,
			Model:       a.Model,
			OllamaURL:   a.OllamaURL,
			OpenAIModel: a.OpenAIModel,
			APIKeyEnv:   a.APIKeyEnv,
		}, o.logger)
	}
	if o.journal == nil {
		o.journal = logging.NewJournal(cfg.Logging.JournalEntries, o.logger)
	}

	r := cfg.Ratings
	engine := ratings.NewEngine(db, ratings.Config{
		Threshold:         r.Threshold,
		MinSamples:        r.MinSamples,
		RecoveryThreshold: r.RecoveryThreshold,
	},
		ratings.WithLogger(o.logger),
		ratings.WithJournal(o.journal),
		ratings.WithClock(o.now),
	)

	svc := advice.NewService(db, engine,
		prompt.NewSelector(r.Variations, cfg.Advice.Structured),
		o.provider,
		advice.Config{
			MaxTokens:   cfg.Advice.MaxTokens,
			Temperature: cfg.Advice.Temperature,
			Timeout:     cfg.Advice.Timeout,
			Threshold:   r.Threshold,
			Now:         o.now,
		},
		o.logger, o.journal,
	)

	return &Coach{
		cfg:      cfg,
		db:       db,
		provider: o.provider,
		logger:   o.logger,
		journal:  o.journal,
		loc:      loc,
		now:      o.now,
		ratings:  engine,
		advice:   svc,
	}, nil
}

// Journal returns the adaptation event journal.
func (c *Coach) Journal() *logging.Journal { return c.journal }

// ProviderName describes the active LLM provider.
func (c *Coach) ProviderName() string {
	if c.provider == nil {
		return "none (fallback advice)"
	}
	return c.provider.Name()
}

// Location is the time zone used for local calendar days.
func (c *Coach) Location() *time.Location { return c.loc }

func (c *Coach) locale(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return c.cfg.User.Locale
	}
	return locale
}

// CheckinInput is a new self-report.
type CheckinInput struct {
	Mood   int
	Energy string
	Notes  string
	Locale string
}

// CheckinResult is a stored check-in with its advice.
type CheckinResult struct {
	Checkin *database.Checkin `json:"checkin"`
	Advice  *advice.Result    `json:"advice"`
}

// CheckIn stores a check-in and generates its advice. Advice generation
// degrades to fallback text on provider failure; only store failures error.
func (c *Coach) CheckIn(ctx context.Context, userID string, in CheckinInput) (*CheckinResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user", "user id is required")
	}
	if in.Mood < 1 || in.Mood > 5 {
		return nil, invalid("mood", "must be between 1 and 5, got %d", in.Mood)
	}
	energy, ok := database.ParseEnergyLevel(in.Energy)
	if !ok {
		return nil, invalid("energy", "must be Low, Mid or High, got %q", in.Energy)
	}

	checkin := &database.Checkin{
		UserID:      userID,
		CreatedAt:   c.now(),
		MoodScore:   in.Mood,
		EnergyLevel: energy,
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		checkin.Notes = &notes
	}
	if err := c.db.InsertCheckin(ctx, checkin); err != nil {
		return nil, err
	}

	res, err := c.advice.Generate(ctx, checkin, c.locale(in.Locale))
	if err != nil {
		return &CheckinResult{Checkin: checkin}, err
	}
	return &CheckinResult{Checkin: checkin, Advice: res}, nil
}

// GenerateAdviceDirective composes the directive for an existing check-in
// without calling the provider.
func (c *Coach) GenerateAdviceDirective(ctx context.Context, userID, checkinID, locale string) (prompt.Directive, error) {
	checkin, err := c.db.GetCheckin(ctx, checkinID)
	if err != nil {
		return prompt.Directive{}, err
	}
	if checkin == nil {
		return prompt.Directive{}, ErrCheckinNotFound
	}
	if checkin.UserID != userID {
		return prompt.Directive{}, ErrForbidden
	}
	dir, _ := c.advice.Directive(ctx, checkin, c.locale(locale))
	return dir, nil
}

// FeedbackResult is the outcome of rating one piece of advice.
type FeedbackResult struct {
	AdviceID         string                 `json:"advice_id"`
	Score            int                    `json:"score"`
	Profile          database.RatingProfile `json:"profile"`
	NeedsEnhancement bool                   `json:"needs_enhancement"`
	Improved         bool                   `json:"improved"`
	// Stale is set when the rating was stored but the profile could not be
	// refreshed; the returned profile is the last cached one.
	Stale bool `json:"stale"`
}

// SubmitFeedback records a 1-5 rating, refreshes the user's rating profile
// and evaluates recovery of an open enhancement episode. When the rating is
// stored but the refresh fails, the result is returned with Stale set along
// with the *ratings.DependencyError.
func (c *Coach) SubmitFeedback(ctx context.Context, userID, adviceID string, score int) (*FeedbackResult, error) {
	if score < 1 || score > 5 {
		return nil, invalid("score", "must be between 1 and 5, got %d", score)
	}
	if strings.TrimSpace(adviceID) == "" {
		return nil, invalid("advice", "advice id is required")
	}

	a, err := c.db.GetAdvice(ctx, adviceID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAdviceNotFound
	}
	if a.UserID != userID {
		return nil, ErrForbidden
	}
	if err := c.db.RecordFeedback(ctx, adviceID, score, c.now()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAdviceNotFound
		}
		return nil, err
	}

	result := &FeedbackResult{AdviceID: adviceID, Score: score}

	before := c.recoveredAt(ctx, userID)
	decision, err := c.ratings.Refresh(ctx, userID)
	result.Profile = decision.Profile
	result.NeedsEnhancement = decision.NeedsEnhancement
	result.Stale = decision.Stale
	if err != nil {
		c.logger.Warn("rating profile refresh failed", zap.String("user_id", userID), zap.Error(err))
		result.Stale = true
		return result, err
	}

	if float64(score) < c.ratings.Config().Threshold {
		c.journal.LowRating(userID, score, decision.Profile.AverageRating, decision.Profile.TotalRatings, decision.NeedsEnhancement)
	}

	improved, err := c.ratings.CheckRecovery(ctx, userID)
	if err != nil {
		c.logger.Warn("recovery check failed", zap.String("user_id", userID), zap.Error(err))
		return result, nil
	}
	result.Improved = improved
	if improved && before == nil {
		c.journal.RatingImproved(userID, decision.Profile.AverageRating, score, decision.Profile.TotalRatings)
	}
	return result, nil
}

func (c *Coach) recoveredAt(ctx context.Context, userID string) *time.Time {
	p, err := c.db.GetRatingProfile(ctx, userID)
	if err != nil || p == nil {
		return nil
	}
	return p.RecoveredAt
}

// AnalyticsResult is a snapshot of one time window.
type AnalyticsResult struct {
	Window   database.Window    `json:"range"`
	Label    string             `json:"label"`
	Snapshot analytics.Snapshot `json:"data"`
}

// GetAnalytics aggregates the user's history over window ("7d", "30d",
// "90d" or "all"; empty means the configured default).
func (c *Coach) GetAnalytics(ctx context.Context, userID, window string) (*AnalyticsResult, error) {
	w, pairs, err := c.window(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	return &AnalyticsResult{
		Window:   w,
		Label:    w.Label(),
		Snapshot: analytics.Aggregate(pairs, c.now(), c.loc),
	}, nil
}

// ExportCSV writes the user's history over window as CSV and returns a
// suggested file name.
func (c *Coach) ExportCSV(ctx context.Context, userID, window string, out io.Writer) (string, error) {
	w, pairs, err := c.window(ctx, userID, window)
	if err != nil {
		return "", err
	}
	if err := analytics.WriteCSV(out, pairs, c.loc); err != nil {
		return "", err
	}
	return analytics.ExportFilename(w, c.now().In(c.loc)), nil
}

func (c *Coach) window(ctx context.Context, userID, window string) (database.Window, []database.CheckinWithAdvice, error) {
	fallback := database.Window(c.cfg.Analytics.DefaultRange)
	w, err := database.ParseWindow(window, fallback)
	if err != nil {
		return "", nil, &ValidationError{Field: "range", Message: err.Error()}
	}
	pairs, err := c.db.GetCheckinsWithAdvice(ctx, userID, w.Since(c.now()))
	if err != nil {
		return "", nil, fmt.Errorf("loading history: %w", err)
	}
	return w, pairs, nil
}

// StatsResult is the monitoring view of a user's adaptation state.
type StatsResult struct {
	Decision    ratings.Decision `json:"decision"`
	Enhancement ratings.Report   `json:"enhancement"`
	Records     *database.Stats  `json:"records"`
	Events      []logging.Entry  `json:"events"`
	Provider    string           `json:"provider"`
}

// Stats reports the user's rating profile, enhancement episode and record
// counts. The profile is read through the two-tier decision so drift is
// healed on the way.
func (c *Coach) Stats(ctx context.Context, userID string) (*StatsResult, error) {
	decision, err := c.ratings.Decide(ctx, userID)
	if err != nil && !decision.Stale {
		return nil, err
	}
	report, err := c.ratings.EnhancementReport(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := c.db.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatsResult{
		Decision:    decision,
		Enhancement: report,
		Records:     records,
		Events:      c.journal.ForUser(userID, 20),
		Provider:    c.ProviderName(),
	}, nil
}

// SetTraits replaces the user's personality traits. Scores must be 0-100.
func (c *Coach) SetTraits(ctx context.Context, userID string, traits database.Traits) error {
	clean := make(database.Traits, len(traits))
	for name, v := range traits {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("traits", "trait names must not be empty")
		}
		if v < 0 || v > 100 {
			return invalid("traits", "%s must be between 0 and 100, got %d", name, v)
		}
		clean[name] = v
	}
	return c.db.SetTraits(ctx, userID, clean)
}

// Traits returns the user's personality traits.
func (c *Coach) Traits(ctx context.Context, userID string) (database.Traits, error) {
	return c.db.GetTraits(ctx, userID)
}

// ResetEnhancement ends the user's enhancement episode.
func (c *Coach) ResetEnhancement(ctx context.Context, userID string) error {
	return c.ratings.ResetEnhancement(ctx, userID)
}

// RefreshAll rescans every known user's rating profile.
func (c *Coach) RefreshAll(ctx context.Context) (ratings.BatchResult, error) {
	ids, err := c.db.ListUserIDs(ctx)
	if err != nil {
		return ratings.BatchResult{}, fmt.Errorf("listing users: %w", err)
	}
	return c.ratings.RefreshAll(ctx, ids, c.cfg.Ratings.RefreshWorkers), nil
}

// RecentAdvice returns the user's latest advice records, newest first.
func (c *Coach) RecentAdvice(ctx context.Context, userID string, limit int) ([]database.Advice, error) {
	return c.db.RecentAdvice(ctx, userID, limit)
}
