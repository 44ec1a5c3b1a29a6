package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const adviceSelect = `SELECT id, checkin_id, user_id, created_at, advice_text, suggested_habit,
	template_type, enhanced_prompt_used, variation_number, fallback, feedback_score, feedback_at
	FROM interventions`

// adviceColumns holds nullable scan targets so the same row shape can come
// from a LEFT JOIN.
type adviceColumns struct {
	id            sql.NullString
	checkinID     sql.NullString
	userID        sql.NullString
	createdAt     sql.NullString
	text          sql.NullString
	habit         sql.NullString
	templateType  sql.NullString
	enhanced      sql.NullInt64
	variation     sql.NullInt64
	fallback      sql.NullInt64
	feedbackScore sql.NullInt64
	feedbackAt    sql.NullString
}

func (a *adviceColumns) targets() []any {
	return []any{&a.id, &a.checkinID, &a.userID, &a.createdAt, &a.text, &a.habit,
		&a.templateType, &a.enhanced, &a.variation, &a.fallback, &a.feedbackScore, &a.feedbackAt}
}

func (a *adviceColumns) toAdvice() (*Advice, error) {
	created, err := parseTime(a.createdAt.String)
	if err != nil {
		return nil, err
	}
	adv := &Advice{
		ID:                 a.id.String,
		CheckinID:          a.checkinID.String,
		UserID:             a.userID.String,
		CreatedAt:          created,
		Text:               a.text.String,
		TemplateType:       a.templateType.String,
		EnhancedPromptUsed: a.enhanced.Int64 != 0,
		VariationNumber:    int(a.variation.Int64),
		Fallback:           a.fallback.Int64 != 0,
	}
	if a.habit.Valid {
		adv.SuggestedHabit = &a.habit.String
	}
	if a.feedbackScore.Valid {
		score := int(a.feedbackScore.Int64)
		adv.FeedbackScore = &score
	}
	if adv.FeedbackAt, err = scanNullTime(a.feedbackAt); err != nil {
		return nil, err
	}
	return adv, nil
}

// InsertAdvice stores the advice generated for a check-in. ID and CreatedAt
// are assigned when empty. Feedback fields are ignored; use RecordFeedback.
func (db *DB) InsertAdvice(ctx context.Context, a *Advice) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.TemplateType == "" {
		a.TemplateType = "general_advice"
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO interventions (id, checkin_id, user_id, created_at, advice_text, suggested_habit,
			template_type, enhanced_prompt_used, variation_number, fallback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CheckinID, a.UserID, formatTime(a.CreatedAt), a.Text, nullString(a.SuggestedHabit),
		a.TemplateType, boolInt(a.EnhancedPromptUsed), a.VariationNumber, boolInt(a.Fallback),
	)
	if err != nil {
		return fmt.Errorf("inserting advice: %w", err)
	}
	return nil
}

// GetAdvice returns advice by ID, or nil if it does not exist.
func (db *DB) GetAdvice(ctx context.Context, id string) (*Advice, error) {
	return db.queryOneAdvice(ctx, adviceSelect+` WHERE id = ?`, id)
}

// GetAdviceForCheckin returns the advice generated for a check-in, or nil.
func (db *DB) GetAdviceForCheckin(ctx context.Context, checkinID string) (*Advice, error) {
	return db.queryOneAdvice(ctx, adviceSelect+` WHERE checkin_id = ?`, checkinID)
}

func (db *DB) queryOneAdvice(ctx context.Context, query string, args ...any) (*Advice, error) {
	var cols adviceColumns
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(cols.targets()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cols.toAdvice()
}

// RecordFeedback sets the feedback score of an advice record. The update only
// applies while the score is still NULL, so a second rating fails with
// ErrAlreadyRated.
func (db *DB) RecordFeedback(ctx context.Context, adviceID string, score int, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE interventions SET feedback_score = ?, feedback_at = ?
		 WHERE id = ? AND feedback_score IS NULL`,
		score, formatTime(at), adviceID,
	)
	if err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	existing, err := db.GetAdvice(ctx, adviceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return ErrAlreadyRated
}

// RatedAdvice returns the user's rated advice, newest first. When createdSince
// is set, only advice created at or after it is returned.
func (db *DB) RatedAdvice(ctx context.Context, userID string, createdSince *time.Time) ([]Advice, error) {
	query := adviceSelect + ` WHERE user_id = ? AND feedback_score IS NOT NULL`
	args := []any{userID}
	if createdSince != nil {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(*createdSince))
	}
	query += ` ORDER BY created_at DESC`
	return db.queryAdvice(ctx, query, args...)
}

// RatedAdviceBefore returns the user's rated advice created strictly before t.
func (db *DB) RatedAdviceBefore(ctx context.Context, userID string, t time.Time) ([]Advice, error) {
	return db.queryAdvice(ctx,
		adviceSelect+` WHERE user_id = ? AND feedback_score IS NOT NULL AND created_at < ? ORDER BY created_at DESC`,
		userID, formatTime(t),
	)
}

// LowRatedAdvice returns the text of the user's most recent advice scored
// below threshold, newest first.
func (db *DB) LowRatedAdvice(ctx context.Context, userID string, threshold float64, limit int) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT advice_text FROM interventions
		 WHERE user_id = ? AND feedback_score IS NOT NULL AND feedback_score < ? AND advice_text != ''
		 ORDER BY created_at DESC LIMIT ?`,
		userID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// CountEnhancedAdvice returns how many enhanced advice records the user has.
func (db *DB) CountEnhancedAdvice(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interventions WHERE user_id = ? AND enhanced_prompt_used = 1`, userID,
	).Scan(&n)
	return n, err
}

// RecentAdvice returns the user's latest advice records, newest first.
func (db *DB) RecentAdvice(ctx context.Context, userID string, limit int) ([]Advice, error) {
	return db.queryAdvice(ctx, adviceSelect+` WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
}

func (db *DB) queryAdvice(ctx context.Context, query string, args ...any) ([]Advice, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advice
	for rows.Next() {
		var cols adviceColumns
		if err := rows.Scan(cols.targets()...); err != nil {
			return nil, err
		}
		adv, err := cols.toAdvice()
		if err != nil {
			return nil, err
		}
		out = append(out, *adv)
	}
	return out, rows.Err()
}
