package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS checkins (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    mood_score INTEGER NOT NULL CHECK(mood_score BETWEEN 1 AND 5),
    energy_level TEXT NOT NULL,
    free_text TEXT
);

CREATE TABLE IF NOT EXISTS interventions (
    id TEXT PRIMARY KEY,
    checkin_id TEXT UNIQUE NOT NULL REFERENCES checkins(id),
    user_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    advice_text TEXT NOT NULL,
    suggested_habit TEXT,
    template_type TEXT NOT NULL DEFAULT 'general_advice',
    enhanced_prompt_used INTEGER NOT NULL DEFAULT 0,
    variation_number INTEGER NOT NULL DEFAULT 0,
    fallback INTEGER NOT NULL DEFAULT 0,
    feedback_score INTEGER CHECK(feedback_score BETWEEN 1 AND 5),
    feedback_at TEXT
);

CREATE TABLE IF NOT EXISTS user_rating_stats (
    user_id TEXT PRIMARY KEY,
    total_ratings INTEGER NOT NULL DEFAULT 0,
    average_rating REAL NOT NULL DEFAULT 0,
    ratings_below_threshold INTEGER NOT NULL DEFAULT 0,
    last_rating_at TEXT,
    enhancement_triggered_at TEXT,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkins_user_created ON checkins(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_interventions_user_created ON interventions(user_id, created_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "personality traits",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS user_traits (
    user_id TEXT NOT NULL,
    trait TEXT NOT NULL,
    score INTEGER NOT NULL CHECK(score BETWEEN 0 AND 100),
    PRIMARY KEY (user_id, trait)
);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "recovery annotation on rating stats",
		Up: func(tx *sql.Tx) error {
			return addColumnIfMissing(tx, "user_rating_stats", "recovered_at", "TEXT")
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
