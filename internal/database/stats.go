package database

import "context"

// GetStats returns record counts for one user.
func (db *DB) GetStats(ctx context.Context, userID string) (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		dest  *int
		query string
	}{
		{&s.TotalCheckins, `SELECT COUNT(*) FROM checkins WHERE user_id = ?`},
		{&s.TotalAdvice, `SELECT COUNT(*) FROM interventions WHERE user_id = ?`},
		{&s.RatedAdvice, `SELECT COUNT(*) FROM interventions WHERE user_id = ? AND feedback_score IS NOT NULL`},
		{&s.EnhancedAdvice, `SELECT COUNT(*) FROM interventions WHERE user_id = ? AND enhanced_prompt_used = 1`},
		{&s.FallbackAdvice, `SELECT COUNT(*) FROM interventions WHERE user_id = ? AND fallback = 1`},
		{&s.DaysWithData, `SELECT COUNT(DISTINCT substr(created_at, 1, 10)) FROM checkins WHERE user_id = ?`},
	}
	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.query, userID).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
