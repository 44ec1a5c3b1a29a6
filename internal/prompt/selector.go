// Package prompt composes the instructions handed to the advice generator.
// It chooses between a standard directive and one of several enhanced
// variants but never calls a model itself.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

const (
	maxPriorAdvice   = 2
	priorAdviceRunes = 100
)

// Request is the context of one advice generation.
type Request struct {
	MoodScore     int
	Energy        database.EnergyLevel
	Notes         string
	Traits        database.Traits
	Locale        string
	PriorLowRated []string
}

// Directive is a composed generation instruction.
type Directive struct {
	System          string `json:"system"`
	Prompt          string `json:"prompt"`
	Locale          string `json:"locale"`
	IsEnhanced      bool   `json:"is_enhanced"`
	VariationNumber int    `json:"variation_number"`
	Structured      bool   `json:"structured"`
}

// Selector builds directives.
type Selector struct {
	variations int
	structured bool
}

// NewSelector creates a selector rotating through the given number of
// enhanced variants. When structured is set, directives ask for a JSON
// object instead of plain text.
func NewSelector(variations int, structured bool) *Selector {
	if variations < 1 || variations > len(catalogs[DefaultLocale].variants) {
		variations = len(catalogs[DefaultLocale].variants)
	}
	return &Selector{variations: variations, structured: structured}
}

// Variations returns the number of enhanced variants in rotation.
func (s *Selector) Variations() int { return s.variations }

// Select builds the directive for req. Enhanced mode is used iff the decision
// says enhancement is needed; attempt is the number of enhanced directives
// already produced for the user and picks the variant round-robin.
func (s *Selector) Select(d ratings.Decision, req Request, attempt int) Directive {
	locale := NormalizeLocale(req.Locale)
	c := catalogs[locale]

	dir := Directive{
		System:     c.system,
		Locale:     locale,
		Structured: s.structured,
	}

	var sections []string
	if d.NeedsEnhancement {
		if attempt < 0 {
			attempt = 0
		}
		dir.IsEnhanced = true
		dir.VariationNumber = attempt%s.variations + 1

		sections = append(sections,
			fmt.Sprintf(c.enhancedContext, d.DisplayAverage(), d.Profile.TotalRatings),
			c.variants[dir.VariationNumber-1],
		)
	} else {
		sections = append(sections, c.standard)
	}

	sections = append(sections,
		traitsSection(c, req.Traits),
		stateSection(c, req, locale),
	)
	if dir.IsEnhanced {
		sections = append(sections, priorAdviceSection(c, req.PriorLowRated))
	}
	sections = append(sections, c.output)
	if s.structured {
		sections = append(sections, c.structured)
	}

	dir.Prompt = joinSections(sections)
	return dir
}

func joinSections(sections []string) string {
	var b strings.Builder
	for _, s := range sections {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}
	return b.String()
}

// traitsSection is empty when no traits are known, so the section is
// omitted rather than rendered as a placeholder.
func traitsSection(c catalog, traits database.Traits) string {
	if len(traits) == 0 {
		return ""
	}
	names := make([]string, 0, len(traits))
	for name := range traits {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, traits[name])
	}
	return fmt.Sprintf(c.traits, strings.Join(parts, ", "))
}

func stateSection(c catalog, req Request, locale string) string {
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = c.noNotes
	}
	return fmt.Sprintf(c.state, req.MoodScore, req.Energy, notes, locale)
}

func priorAdviceSection(c catalog, prior []string) string {
	var lines []string
	for _, text := range prior {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %q", len(lines)+1, truncate(text, priorAdviceRunes)))
		if len(lines) == maxPriorAdvice {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return c.priorAdvice + "\n" + strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
