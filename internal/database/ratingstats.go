package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetRatingProfile returns the cached rating profile, or nil if none exists.
func (db *DB) GetRatingProfile(ctx context.Context, userID string) (*RatingProfile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT user_id, total_ratings, average_rating, ratings_below_threshold,
			last_rating_at, enhancement_triggered_at, recovered_at, updated_at
		 FROM user_rating_stats WHERE user_id = ?`, userID,
	)

	var (
		p           RatingProfile
		lastRating  sql.NullString
		triggeredAt sql.NullString
		recoveredAt sql.NullString
		updatedAt   string
		err         error
	)
	if err := row.Scan(&p.UserID, &p.TotalRatings, &p.AverageRating, &p.RatingsBelowThreshold,
		&lastRating, &triggeredAt, &recoveredAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if p.LastRatingAt, err = scanNullTime(lastRating); err != nil {
		return nil, err
	}
	if p.EnhancementTriggeredAt, err = scanNullTime(triggeredAt); err != nil {
		return nil, err
	}
	if p.RecoveredAt, err = scanNullTime(recoveredAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertRatingProfile writes the profile keyed by user ID. Counters are
// last-writer-wins. The episode markers are merged so an existing
// enhancement_triggered_at or recovered_at is never overwritten or cleared
// here; only ClearEnhancementTrigger removes them.
func (db *DB) UpsertRatingProfile(ctx context.Context, p RatingProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_rating_stats (user_id, total_ratings, average_rating, ratings_below_threshold,
			last_rating_at, enhancement_triggered_at, recovered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_ratings = excluded.total_ratings,
			average_rating = excluded.average_rating,
			ratings_below_threshold = excluded.ratings_below_threshold,
			last_rating_at = excluded.last_rating_at,
			enhancement_triggered_at = COALESCE(user_rating_stats.enhancement_triggered_at, excluded.enhancement_triggered_at),
			recovered_at = COALESCE(user_rating_stats.recovered_at, excluded.recovered_at),
			updated_at = excluded.updated_at`,
		p.UserID, p.TotalRatings, p.AverageRating, p.RatingsBelowThreshold,
		nullTime(p.LastRatingAt), nullTime(p.EnhancementTriggeredAt), nullTime(p.RecoveredAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting rating stats: %w", err)
	}
	return nil
}

// MarkRecovered annotates the current enhancement episode as recovered.
// It is a no-op when there is no episode or it is already annotated.
func (db *DB) MarkRecovered(ctx context.Context, userID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE user_rating_stats SET recovered_at = ?
		 WHERE user_id = ? AND enhancement_triggered_at IS NOT NULL AND recovered_at IS NULL`,
		formatTime(at), userID,
	)
	return err
}

// ClearEnhancementTrigger ends the user's enhancement episode.
func (db *DB) ClearEnhancementTrigger(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE user_rating_stats SET enhancement_triggered_at = NULL, recovered_at = NULL, updated_at = ?
		 WHERE user_id = ?`,
		formatTime(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("clearing enhancement trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
