package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

var base = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func insertCheckin(t *testing.T, db *DB, user string, at time.Time, mood int, energy EnergyLevel) *Checkin {
	t.Helper()
	c := &Checkin{UserID: user, CreatedAt: at, MoodScore: mood, EnergyLevel: energy}
	if err := db.InsertCheckin(context.Background(), c); err != nil {
		t.Fatalf("insert checkin: %v", err)
	}
	return c
}

func insertAdvice(t *testing.T, db *DB, c *Checkin, enhanced bool) *Advice {
	t.Helper()
	a := &Advice{CheckinID: c.ID, UserID: c.UserID, CreatedAt: c.CreatedAt, Text: "Take a walk", EnhancedPromptUsed: enhanced}
	if err := db.InsertAdvice(context.Background(), a); err != nil {
		t.Fatalf("insert advice: %v", err)
	}
	return a
}

func TestInsertCheckin(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := &Checkin{UserID: "u1", MoodScore: 4, EnergyLevel: EnergyHigh, Notes: ptr("slept well")}
	if err := db.InsertCheckin(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == "" {
		t.Error("expected generated checkin ID")
	}

	got, err := db.GetCheckin(ctx, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.MoodScore != 4 || got.EnergyLevel != EnergyHigh {
		t.Fatalf("unexpected checkin: %+v", got)
	}
	if got.Notes == nil || *got.Notes != "slept well" {
		t.Error("expected notes to round-trip")
	}
}

func TestInsertCheckinRejectsOutOfRangeMood(t *testing.T) {
	db := openTestDB(t)
	c := &Checkin{UserID: "u1", MoodScore: 9, EnergyLevel: EnergyLow}
	if err := db.InsertCheckin(context.Background(), c); err == nil {
		t.Error("expected CHECK constraint violation for mood 9")
	}
}

func TestGetMissingCheckin(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetCheckin(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestAdviceIsOnePerCheckin(t *testing.T) {
	db := openTestDB(t)
	c := insertCheckin(t, db, "u1", base, 3, EnergyMid)
	insertAdvice(t, db, c, false)

	dup := &Advice{CheckinID: c.ID, UserID: "u1", Text: "again"}
	if err := db.InsertAdvice(context.Background(), dup); err == nil {
		t.Error("expected unique violation for second advice on the same checkin")
	}
}

func TestRecordFeedbackOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := insertCheckin(t, db, "u1", base, 2, EnergyLow)
	a := insertAdvice(t, db, c, false)

	if err := db.RecordFeedback(ctx, a.ID, 4, base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetAdvice(ctx, a.ID)
	if got.FeedbackScore == nil || *got.FeedbackScore != 4 {
		t.Fatalf("expected score 4, got %v", got.FeedbackScore)
	}
	if got.FeedbackAt == nil || !got.FeedbackAt.Equal(base.Add(time.Hour)) {
		t.Errorf("expected feedback_at to be stored, got %v", got.FeedbackAt)
	}

	err := db.RecordFeedback(ctx, a.ID, 1, base.Add(2*time.Hour))
	if !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("expected ErrAlreadyRated, got %v", err)
	}
	got, _ = db.GetAdvice(ctx, a.ID)
	if *got.FeedbackScore != 4 {
		t.Error("re-rating must not change the stored score")
	}

	if err := db.RecordFeedback(ctx, "missing", 3, base); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRatedAdviceFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	var ids []string
	for i, score := range []int{1, 2, 5} {
		c := insertCheckin(t, db, "u1", base.Add(time.Duration(i)*24*time.Hour), 3, EnergyMid)
		a := insertAdvice(t, db, c, i == 2)
		if err := db.RecordFeedback(ctx, a.ID, score, c.CreatedAt); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, a.ID)
	}
	unrated := insertCheckin(t, db, "u1", base.Add(96*time.Hour), 3, EnergyMid)
	insertAdvice(t, db, unrated, false)
	other := insertCheckin(t, db, "u2", base, 1, EnergyLow)
	insertAdvice(t, db, other, false)

	all, err := db.RatedAdvice(ctx, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rated, got %d", len(all))
	}
	if all[0].ID != ids[2] {
		t.Error("expected newest first")
	}

	since := base.Add(24 * time.Hour)
	recent, _ := db.RatedAdvice(ctx, "u1", &since)
	if len(recent) != 2 {
		t.Errorf("expected 2 rated since day 2, got %d", len(recent))
	}

	before, _ := db.RatedAdviceBefore(ctx, "u1", since)
	if len(before) != 1 {
		t.Errorf("expected 1 rated before day 2, got %d", len(before))
	}

	low, _ := db.LowRatedAdvice(ctx, "u1", 2.5, 3)
	if len(low) != 2 {
		t.Errorf("expected 2 low-rated texts, got %d", len(low))
	}

	n, _ := db.CountEnhancedAdvice(ctx, "u1")
	if n != 1 {
		t.Errorf("expected 1 enhanced advice, got %d", n)
	}
}

func TestGetCheckinsWithAdvice(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c1 := insertCheckin(t, db, "u1", base, 2, EnergyLow)
	insertAdvice(t, db, c1, true)
	insertCheckin(t, db, "u1", base.Add(48*time.Hour), 4, EnergyHigh)
	insertCheckin(t, db, "u2", base, 5, EnergyHigh)

	pairs, err := db.GetCheckinsWithAdvice(ctx, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Advice == nil || !pairs[0].Advice.EnhancedPromptUsed {
		t.Error("expected first checkin to carry enhanced advice")
	}
	if pairs[1].Advice != nil {
		t.Error("expected second checkin without advice")
	}

	since := base.Add(24 * time.Hour)
	windowed, _ := db.GetCheckinsWithAdvice(ctx, "u1", &since)
	if len(windowed) != 1 || windowed[0].MoodScore != 4 {
		t.Errorf("expected only the later checkin, got %+v", windowed)
	}
}

func TestRatingProfileLatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := base
	if err := db.UpsertRatingProfile(ctx, RatingProfile{
		UserID: "u1", TotalRatings: 3, AverageRating: 1.33, RatingsBelowThreshold: 3,
		EnhancementTriggeredAt: &first,
	}); err != nil {
		t.Fatal(err)
	}

	later := base.Add(time.Hour)
	if err := db.UpsertRatingProfile(ctx, RatingProfile{
		UserID: "u1", TotalRatings: 4, AverageRating: 1.5, RatingsBelowThreshold: 4,
		EnhancementTriggeredAt: &later,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRatingProfile(ctx, RatingProfile{UserID: "u1", TotalRatings: 5, AverageRating: 2.2}); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetRatingProfile(ctx, "u1")
	if err != nil || p == nil {
		t.Fatalf("expected profile, got %v (%v)", p, err)
	}
	if p.TotalRatings != 5 || p.AverageRating != 2.2 {
		t.Errorf("expected counters from last write, got %+v", p)
	}
	if p.EnhancementTriggeredAt == nil || !p.EnhancementTriggeredAt.Equal(first) {
		t.Errorf("expected latch to keep first trigger, got %v", p.EnhancementTriggeredAt)
	}

	if err := db.MarkRecovered(ctx, "u1", later); err != nil {
		t.Fatal(err)
	}
	p, _ = db.GetRatingProfile(ctx, "u1")
	if p.RecoveredAt == nil {
		t.Error("expected recovery annotation")
	}

	if err := db.ClearEnhancementTrigger(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	p, _ = db.GetRatingProfile(ctx, "u1")
	if p.EnhancementTriggeredAt != nil || p.RecoveredAt != nil {
		t.Error("expected reset to clear the episode")
	}

	if err := db.ClearEnhancementTrigger(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMissingRatingProfile(t *testing.T) {
	db := openTestDB(t)
	p, err := db.GetRatingProfile(context.Background(), "u1")
	if err != nil || p != nil {
		t.Errorf("expected nil, nil; got %v, %v", p, err)
	}
}

func TestTraitsReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SetTraits(ctx, "u1", Traits{"openness": 80, "neuroticism": 40}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetTraits(ctx, "u1", Traits{"openness": 60}); err != nil {
		t.Fatal(err)
	}
	traits, err := db.GetTraits(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(traits) != 1 || traits["openness"] != 60 {
		t.Errorf("expected only openness=60, got %v", traits)
	}

	if err := db.SetTraits(ctx, "u1", Traits{"openness": 101}); err == nil {
		t.Error("expected CHECK violation for score 101")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c1 := insertCheckin(t, db, "u1", base, 2, EnergyLow)
	a1 := insertAdvice(t, db, c1, true)
	db.RecordFeedback(ctx, a1.ID, 2, base)
	insertCheckin(t, db, "u1", base.Add(time.Hour), 3, EnergyMid)
	insertCheckin(t, db, "u1", base.Add(30*time.Hour), 3, EnergyMid)

	stats, err := db.GetStats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCheckins != 3 || stats.TotalAdvice != 1 || stats.RatedAdvice != 1 || stats.EnhancedAdvice != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.DaysWithData != 2 {
		t.Errorf("expected 2 days with data, got %d", stats.DaysWithData)
	}

	users, _ := db.ListUserIDs(ctx)
	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("expected [u1], got %v", users)
	}
}

func TestParseEnergyLevel(t *testing.T) {
	cases := map[string]EnergyLevel{"low": EnergyLow, "MID": EnergyMid, "Medium": EnergyMid, " high ": EnergyHigh}
	for in, want := range cases {
		got, ok := ParseEnergyLevel(in)
		if !ok || got != want {
			t.Errorf("ParseEnergyLevel(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseEnergyLevel("sleepy"); ok {
		t.Error("expected unknown level to be rejected")
	}
	if EnergyLevel("sleepy").Score() != 0 || EnergyLevel("high").Score() != 3 {
		t.Error("unexpected energy scores")
	}
}

func TestWindow(t *testing.T) {
	w, err := ParseWindow("", Window30Days)
	if err != nil || w != Window30Days {
		t.Fatalf("expected fallback 30d, got %q (%v)", w, err)
	}
	if _, err := ParseWindow("1y", Window30Days); err == nil {
		t.Error("expected error for unknown window")
	}

	now := base
	since := Window7Days.Since(now)
	if since == nil || !since.Equal(now.Add(-7*24*time.Hour)) {
		t.Errorf("unexpected 7d bound: %v", since)
	}
	if WindowAll.Since(now) != nil {
		t.Error("expected nil bound for all")
	}
}
