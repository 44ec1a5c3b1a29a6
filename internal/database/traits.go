package database

import (
	"context"
	"fmt"
)

// GetTraits returns the user's personality traits. An empty map means none were set.
func (db *DB) GetTraits(ctx context.Context, userID string) (Traits, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT trait, score FROM user_traits WHERE user_id = ? ORDER BY trait`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traits := make(Traits)
	for rows.Next() {
		var name string
		var score int
		if err := rows.Scan(&name, &score); err != nil {
			return nil, err
		}
		traits[name] = score
	}
	return traits, rows.Err()
}

// SetTraits replaces the user's personality traits.
func (db *DB) SetTraits(ctx context.Context, userID string, traits Traits) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_traits WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing traits: %w", err)
	}
	for name, score := range traits {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_traits (user_id, trait, score) VALUES (?, ?, ?)`, userID, name, score,
		); err != nil {
			return fmt.Errorf("inserting trait %q: %w", name, err)
		}
	}
	return tx.Commit()
}
