package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

// --- checkin command ---

var (
	checkinMood   int
	checkinEnergy string
	checkinNotes  string
	checkinLocale string
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record a mood check-in and get advice",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		res, err := co.CheckIn(cmd.Context(), cfg.User.ID, coach.CheckinInput{
			Mood:   checkinMood,
			Energy: checkinEnergy,
			Notes:  checkinNotes,
			Locale: checkinLocale,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Check-in saved (mood %d, energy %s).\n\n", res.Checkin.MoodScore, res.Checkin.EnergyLevel)
		a := res.Advice.Advice
		fmt.Println(a.Text)
		if a.SuggestedHabit != nil {
			fmt.Printf("\nTry: %s\n", *a.SuggestedHabit)
		}
		fmt.Println()
		if res.Advice.Fallback {
			fmt.Println("(offline advice: the LLM provider was unavailable)")
		}
		if a.EnhancedPromptUsed {
			fmt.Printf("(adapted to your ratings, variation %d)\n", a.VariationNumber)
		}
		fmt.Printf("Rate it: moodtrack rate %s <1-5>\n", a.ID)
		return nil
	},
}

func init() {
	checkinCmd.Flags().IntVarP(&checkinMood, "mood", "m", 0, "Mood score 1-5")
	checkinCmd.Flags().StringVarP(&checkinEnergy, "energy", "e", "", "Energy level: Low, Mid or High")
	checkinCmd.Flags().StringVarP(&checkinNotes, "notes", "n", "", "Optional free-text notes")
	checkinCmd.Flags().StringVar(&checkinLocale, "locale", "", "Advice language: en, vi or ja (default from config)")
	_ = checkinCmd.MarkFlagRequired("mood")
	_ = checkinCmd.MarkFlagRequired("energy")
}

// --- rate command ---

var rateCmd = &cobra.Command{
	Use:   "rate [advice-id] [score]",
	Short: "Rate a piece of advice from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid score: %s", args[1])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		res, err := co.SubmitFeedback(cmd.Context(), cfg.User.ID, args[0], score)
		if err != nil && (res == nil || !res.Stale) {
			if errors.Is(err, database.ErrAlreadyRated) {
				return fmt.Errorf("advice %s has already been rated", args[0])
			}
			return err
		}

		fmt.Printf("Rated %d/5.\n", res.Score)
		fmt.Printf("  Average rating: %.1f over %d ratings\n", ratings.Round1(res.Profile.AverageRating), res.Profile.TotalRatings)
		if res.NeedsEnhancement {
			fmt.Println("  Future advice will be adapted to your feedback.")
		}
		if res.Improved {
			fmt.Println("  Ratings have improved since adaptation started.")
		}
		if res.Stale {
			fmt.Printf("  Warning: rating saved but profile not refreshed: %v\n", err)
		}
		return nil
	},
}

// --- advice command ---

var adviceCmd = &cobra.Command{
	Use:   "advice",
	Short: "Inspect advice generation",
}

var directiveLocale string

var adviceDirectiveCmd = &cobra.Command{
	Use:   "directive [checkin-id]",
	Short: "Show the prompt that would be sent for a check-in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		dir, err := co.GenerateAdviceDirective(cmd.Context(), cfg.User.ID, args[0], directiveLocale)
		if err != nil {
			return err
		}

		mode := "standard"
		if dir.IsEnhanced {
			mode = fmt.Sprintf("enhanced, variation %d", dir.VariationNumber)
		}
		fmt.Printf("Locale: %s (%s)\n\n", dir.Locale, mode)
		fmt.Println("System:")
		fmt.Println(dir.System)
		fmt.Println("\nPrompt:")
		fmt.Println(dir.Prompt)
		return nil
	},
}

func init() {
	adviceDirectiveCmd.Flags().StringVar(&directiveLocale, "locale", "", "Prompt language: en, vi or ja")
	adviceCmd.AddCommand(adviceDirectiveCmd)
}

// --- analytics command ---

var analyticsRange string

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show mood analytics for a time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		res, err := co.GetAnalytics(cmd.Context(), cfg.User.ID, analyticsRange)
		if err != nil {
			return err
		}
		s := res.Snapshot

		fmt.Printf("%s\n\n", res.Label)
		fmt.Println("Summary:")
		fmt.Printf("  Check-ins: %d\n", s.Summary.TotalCheckins)
		fmt.Printf("  Average mood: %.1f\n", s.Summary.AverageMood)
		fmt.Printf("  Current streak: %d days\n", s.Summary.CurrentStreak)
		fmt.Printf("  Longest streak: %d days\n", s.Summary.LongestStreak)

		fmt.Println("\nEnergy:")
		fmt.Printf("  Low %d, Mid %d, High %d\n", s.EnergyDistribution.Low, s.EnergyDistribution.Mid, s.EnergyDistribution.High)
		if best, ok := s.BestEnergy(); ok {
			fmt.Printf("  Best mood on %s energy days\n", best)
		}

		fmt.Println("\nWeekly pattern:")
		for _, d := range s.WeeklyPattern {
			if d.Count == 0 {
				fmt.Printf("  %-9s  -\n", d.DayName)
				continue
			}
			fmt.Printf("  %-9s  mood %.1f  energy %.1f  (%d)\n", d.DayName, d.AverageMood, d.AverageEnergy, d.Count)
		}

		q := s.AdviceQuality
		fmt.Println("\nAdvice quality:")
		fmt.Printf("  Rated: %d, average %.1f\n", s.Summary.TotalInterventions, q.AverageRating)
		for score := 5; score >= 1; score-- {
			fmt.Printf("  %d: %s\n", score, strings.Repeat("#", q.RatingDistribution[score]))
		}
		if q.Enhancement.TotalEnhanced > 0 {
			fmt.Printf("  Enhanced: %d, before %.1f, after %.1f, improvement %.1f%%\n",
				q.Enhancement.TotalEnhanced, q.Enhancement.AverageRatingBefore,
				q.Enhancement.AverageRatingAfter, q.Enhancement.ImprovementRate)
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().StringVarP(&analyticsRange, "range", "r", "", "Time range: 7d, 30d, 90d or all (default from config)")
}

// --- export command ---

var (
	exportRange  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export check-ins and advice as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		name, err := co.ExportCSV(cmd.Context(), cfg.User.ID, exportRange, &buf)
		if err != nil {
			return err
		}

		if exportOutput == "-" {
			_, err := os.Stdout.Write(buf.Bytes())
			return err
		}
		target := exportOutput
		if target == "" {
			target = name
		}
		if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Printf("Exported to %s\n", target)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportRange, "range", "r", "", "Time range: 7d, 30d, 90d or all")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, or - for stdout")
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show rating profile and adaptation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		res, err := co.Stats(cmd.Context(), cfg.User.ID)
		if err != nil {
			return err
		}

		writeStats(os.Stdout, res, co.Location())
		return nil
	},
}

func writeStats(w io.Writer, res *coach.StatsResult, loc *time.Location) {
	p := res.Decision.Profile
	fmt.Fprintln(w, "Rating profile:")
	fmt.Fprintf(w, "  Ratings: %d\n", p.TotalRatings)
	fmt.Fprintf(w, "  Average: %.1f\n", res.Decision.DisplayAverage())
	fmt.Fprintf(w, "  Below threshold: %d\n", p.RatingsBelowThreshold)
	fmt.Fprintf(w, "  Needs enhancement: %t\n", res.Decision.NeedsEnhancement)
	if res.Decision.Stale {
		fmt.Fprintln(w, "  (cached profile; rating history unavailable)")
	}

	e := res.Enhancement
	fmt.Fprintln(w, "\nAdaptation:")
	fmt.Fprintf(w, "  Enhanced advice: %d\n", e.EnhancedAdviceCount)
	if !e.Triggered {
		fmt.Fprintln(w, "  Not active")
	} else {
		fmt.Fprintf(w, "  Active since: %s\n", e.TriggeredAt.In(loc).Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "  Before: %.1f over %d ratings\n", e.AverageBefore, e.RatingsBefore)
		fmt.Fprintf(w, "  After: %.1f over %d ratings\n", e.AverageAfter, e.RatingsAfter)
		fmt.Fprintf(w, "  Improved: %t\n", e.Improved)
	}

	// The journal lives in process memory, so a one-shot command only sees
	// what it recorded itself.
	fmt.Fprintln(w, "\nEvents (this run only; the event journal is kept by 'moodtrack serve' at /events):")
	if len(res.Events) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, ev := range res.Events {
		fmt.Fprintf(w, "  %s  %-7s  %s\n", ev.Timestamp.In(loc).Format("15:04:05"), ev.Level, ev.Message)
	}
}

// --- traits command ---

var traitsCmd = &cobra.Command{
	Use:   "traits",
	Short: "Manage personality traits used to tailor advice",
}

var traitsSetCmd = &cobra.Command{
	Use:   "set [name=score]...",
	Short: "Replace personality traits (scores 0-100)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		traits := make(database.Traits, len(args))
		for _, arg := range args {
			name, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("invalid trait %q (want name=score)", arg)
			}
			score, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid score for %s: %s", name, raw)
			}
			traits[name] = score
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}
		if err := co.SetTraits(cmd.Context(), cfg.User.ID, traits); err != nil {
			return err
		}
		fmt.Printf("Saved %d traits.\n", len(traits))
		return nil
	},
}

var traitsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show personality traits",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}
		traits, err := co.Traits(cmd.Context(), cfg.User.ID)
		if err != nil {
			return err
		}
		if len(traits) == 0 {
			fmt.Println("No traits set. Add some with: moodtrack traits set openness=70")
			return nil
		}

		names := make([]string, 0, len(traits))
		for name := range traits {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-20s %3d\n", name, traits[name])
		}
		return nil
	},
}

func init() {
	traitsCmd.AddCommand(traitsSetCmd)
	traitsCmd.AddCommand(traitsShowCmd)
}

// --- enhancement command ---

var enhancementCmd = &cobra.Command{
	Use:   "enhancement",
	Short: "Manage the adaptation episode",
}

var enhancementResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "End the current adaptation episode",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}
		if err := co.ResetEnhancement(cmd.Context(), cfg.User.ID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				fmt.Println("No rating profile yet; nothing to reset.")
				return nil
			}
			return err
		}
		fmt.Println("Adaptation episode reset.")
		return nil
	},
}

func init() {
	enhancementCmd.AddCommand(enhancementResetCmd)
}

// --- refresh command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild every user's rating profile from their rating history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		res, err := co.RefreshAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %d profiles, %d failed.\n", res.Succeeded, res.Failed)

		ids := make([]string, 0, len(res.Errors))
		for id := range res.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s: %v\n", id, res.Errors[id])
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d profiles could not be refreshed", res.Failed)
		}
		return nil
	},
}
