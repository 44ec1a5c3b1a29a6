package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertCheckin stores a new check-in. ID and CreatedAt are assigned when empty.
func (db *DB) InsertCheckin(ctx context.Context, c *Checkin) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO checkins (id, user_id, created_at, mood_score, energy_level, free_text)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, formatTime(c.CreatedAt), c.MoodScore, string(c.EnergyLevel), nullString(c.Notes),
	)
	if err != nil {
		return fmt.Errorf("inserting checkin: %w", err)
	}
	return nil
}

// GetCheckin returns a check-in by ID, or nil if it does not exist.
func (db *DB) GetCheckin(ctx context.Context, id string) (*Checkin, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, mood_score, energy_level, free_text FROM checkins WHERE id = ?`, id,
	)
	c, err := scanCheckin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCheckinsWithAdvice returns the user's check-ins created at or after
// since (all history when nil), oldest first, each joined with its advice.
func (db *DB) GetCheckinsWithAdvice(ctx context.Context, userID string, since *time.Time) ([]CheckinWithAdvice, error) {
	query := `
		SELECT c.id, c.user_id, c.created_at, c.mood_score, c.energy_level, c.free_text,
			i.id, i.checkin_id, i.user_id, i.created_at, i.advice_text, i.suggested_habit,
			i.template_type, i.enhanced_prompt_used, i.variation_number, i.fallback,
			i.feedback_score, i.feedback_at
		FROM checkins c
		LEFT JOIN interventions i ON i.checkin_id = c.id
		WHERE c.user_id = ?`
	args := []any{userID}
	if since != nil {
		query += ` AND c.created_at >= ?`
		args = append(args, formatTime(*since))
	}
	query += ` ORDER BY c.created_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying checkins: %w", err)
	}
	defer rows.Close()

	var out []CheckinWithAdvice
	for rows.Next() {
		var (
			c         Checkin
			createdAt string
			energy    string
			notes     sql.NullString
			a         adviceColumns
		)
		if err := rows.Scan(&c.ID, &c.UserID, &createdAt, &c.MoodScore, &energy, &notes,
			&a.id, &a.checkinID, &a.userID, &a.createdAt, &a.text, &a.habit,
			&a.templateType, &a.enhanced, &a.variation, &a.fallback,
			&a.feedbackScore, &a.feedbackAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		c.EnergyLevel = EnergyLevel(energy)
		if notes.Valid {
			c.Notes = &notes.String
		}

		item := CheckinWithAdvice{Checkin: c}
		if a.id.Valid {
			adv, err := a.toAdvice()
			if err != nil {
				return nil, err
			}
			item.Advice = adv
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListUserIDs returns every user with at least one check-in.
func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM checkins ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCheckin(row *sql.Row) (*Checkin, error) {
	var (
		c         Checkin
		createdAt string
		energy    string
		notes     sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &createdAt, &c.MoodScore, &energy, &notes); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	c.EnergyLevel = EnergyLevel(energy)
	if notes.Valid {
		c.Notes = &notes.String
	}
	return &c, nil
}
