// Package advice drafts coaching advice for a check-in. Each generation
// resolves the user's rating decision, composes a directive, asks the LLM
// provider for text and stores the result. Provider failures degrade to a
// fixed set of fallback messages.
package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/llm"
	"github.com/TobiSchelling/moodtrack/internal/logging"
	"github.com/TobiSchelling/moodtrack/internal/prompt"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

const priorAdviceLimit = 2

// Store is the record store used during generation.
type Store interface {
	CountEnhancedAdvice(ctx context.Context, userID string) (int, error)
	LowRatedAdvice(ctx context.Context, userID string, threshold float64, limit int) ([]string, error)
	GetTraits(ctx context.Context, userID string) (database.Traits, error)
	InsertAdvice(ctx context.Context, a *database.Advice) error
	GetAdviceForCheckin(ctx context.Context, checkinID string) (*database.Advice, error)
}

// Decider yields the user's current enhancement decision.
type Decider interface {
	Decide(ctx context.Context, userID string) (ratings.Decision, error)
}

// Config tunes provider calls.
type Config struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// Threshold selects which past advice counts as low-rated.
	Threshold float64
	// Now stamps stored advice. It must be the clock that latches
	// enhancement triggers. Defaults to time.Now.
	Now func() time.Time
}

// Result is a generated (or previously stored) advice record.
type Result struct {
	Advice    *database.Advice `json:"advice"`
	Directive prompt.Directive `json:"directive"`
	Decision  ratings.Decision `json:"-"`
	Fallback  bool             `json:"fallback"`
	Existing  bool             `json:"existing"`
}

// Service generates advice.
type Service struct {
	store    Store
	decider  Decider
	selector *prompt.Selector
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
	journal  *logging.Journal
}

// NewService creates an advice service. A nil provider serves fallback advice only.
func NewService(store Store, decider Decider, selector *prompt.Selector, provider llm.Provider, cfg Config, logger *zap.Logger, journal *logging.Journal) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    store,
		decider:  decider,
		selector: selector,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		journal:  journal,
	}
}

// Directive composes the generation directive for a check-in without calling
// the provider. Store failures degrade the context (no traits, no prior
// advice, a stale decision) instead of failing.
func (s *Service) Directive(ctx context.Context, c *database.Checkin, locale string) (prompt.Directive, ratings.Decision) {
	log := s.logger.With(zap.String("user_id", c.UserID), zap.String("checkin_id", c.ID))

	decision, err := s.decider.Decide(ctx, c.UserID)
	if err != nil {
		log.Warn("rating decision degraded", zap.Bool("stale", decision.Stale), zap.Error(err))
	}

	req := prompt.Request{
		MoodScore: c.MoodScore,
		Energy:    c.EnergyLevel,
		Locale:    locale,
	}
	if c.Notes != nil {
		req.Notes = *c.Notes
	}
	if req.Traits, err = s.store.GetTraits(ctx, c.UserID); err != nil {
		log.Warn("loading traits", zap.Error(err))
	}

	attempt := 0
	if decision.NeedsEnhancement {
		if attempt, err = s.store.CountEnhancedAdvice(ctx, c.UserID); err != nil {
			log.Warn("counting enhanced advice", zap.Error(err))
		}
		if req.PriorLowRated, err = s.store.LowRatedAdvice(ctx, c.UserID, s.cfg.Threshold, priorAdviceLimit); err != nil {
			log.Warn("loading low-rated advice", zap.Error(err))
		}
	}

	return s.selector.Select(decision, req, attempt), decision
}

// Generate drafts and stores advice for a check-in. A check-in that already
// has advice returns it unchanged. The returned error is non-nil only when
// the record could not be stored.
func (s *Service) Generate(ctx context.Context, c *database.Checkin, locale string) (*Result, error) {
	existing, err := s.store.GetAdviceForCheckin(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up advice: %w", err)
	}
	if existing != nil {
		return &Result{Advice: existing, Fallback: existing.Fallback, Existing: true}, nil
	}

	dir, decision := s.Directive(ctx, c, locale)
	d := s.compose(ctx, c, dir)

	a := &database.Advice{
		CheckinID:          c.ID,
		UserID:             c.UserID,
		CreatedAt:          s.cfg.Now(),
		Text:               d.text,
		SuggestedHabit:     d.habit,
		TemplateType:       d.templateType,
		EnhancedPromptUsed: dir.IsEnhanced,
		VariationNumber:    dir.VariationNumber,
		Fallback:           d.fallback,
	}
	if err := s.store.InsertAdvice(ctx, a); err != nil {
		return nil, fmt.Errorf("storing advice: %w", err)
	}

	if dir.IsEnhanced {
		s.journal.EnhancementTriggered(c.UserID, decision.Profile.AverageRating, decision.Profile.TotalRatings, dir.VariationNumber)
	}
	s.logger.Info("advice generated",
		zap.String("user_id", c.UserID),
		zap.String("advice_id", a.ID),
		zap.Bool("enhanced", dir.IsEnhanced),
		zap.Int("variation", dir.VariationNumber),
		zap.Bool("fallback", d.fallback),
	)
	return &Result{Advice: a, Directive: dir, Decision: decision, Fallback: d.fallback}, nil
}

type draft struct {
	text         string
	habit        *string
	templateType string
	fallback     bool
}

func (s *Service) compose(ctx context.Context, c *database.Checkin, dir prompt.Directive) draft {
	if s.provider == nil {
		return fallbackDraft(c.MoodScore, dir.Locale)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.provider.Generate(ctx, llm.Request{
		System:      dir.System,
		Prompt:      dir.Prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSON:        dir.Structured,
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("provider timed out after %s: %w", s.cfg.Timeout, err)
		}
		s.journal.DependencyFailure(logging.CategoryAPI, c.UserID, "advice generation", err)
		return fallbackDraft(c.MoodScore, dir.Locale)
	}

	d := draft{text: text, templateType: TemplateType(c.MoodScore)}
	if dir.Structured {
		s.applyStructured(&d, text, c.UserID)
	}
	return d
}

// applyStructured reads {advice, suggested_habit, template_type}. Unparseable
// responses keep the raw text.
func (s *Service) applyStructured(d *draft, text, userID string) {
	parsed, err := llm.ParseJSONResponse(text)
	if err != nil {
		s.logger.Warn("structured advice not parseable, using raw text",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	if v, ok := llm.String(parsed, "advice"); ok {
		d.text = v
	}
	if v, ok := llm.String(parsed, "suggested_habit"); ok {
		d.habit = &v
	}
	if v, ok := llm.String(parsed, "template_type"); ok && validTemplate(v) {
		d.templateType = v
	}
}

func fallbackDraft(mood int, locale string) draft {
	text, tmpl := Fallback(mood, locale)
	return draft{text: text, templateType: tmpl, fallback: true}
}
