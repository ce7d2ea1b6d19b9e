package catalog

import "database/sql"

// MigrateUp creates the minimum persisted schema from spec §6: rss_feed,
// rss_entry, entry_category, entry_scores, entry_summary, with the unique
// constraints §3 requires and the supplementary indexes §6 names.
func MigrateUp(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rss_feed (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			link        TEXT NOT NULL UNIQUE,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			updated     TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rss_entry (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			feed_id      INTEGER NOT NULL REFERENCES rss_feed(id),
			link         TEXT NOT NULL UNIQUE,
			title        TEXT NOT NULL DEFAULT '',
			author       TEXT NOT NULL DEFAULT '',
			summary      TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL DEFAULT '',
			published_at TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rss_entry_published_at ON rss_entry(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rss_entry_feed_id ON rss_entry(feed_id)`,
		`CREATE TABLE IF NOT EXISTS entry_category (
			entry_id   INTEGER PRIMARY KEY REFERENCES rss_entry(id),
			category   TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_category_entry_id ON entry_category(entry_id)`,
		`CREATE TABLE IF NOT EXISTS entry_scores (
			entry_id   INTEGER PRIMARY KEY REFERENCES rss_entry(id),
			score      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_scores_entry_id ON entry_scores(entry_id)`,
		`CREATE TABLE IF NOT EXISTS entry_summary (
			entry_id   INTEGER PRIMARY KEY REFERENCES rss_entry(id),
			ai_summary TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown drops every table MigrateUp creates, in dependency order.
// Intended for test fixtures, not production rollback.
func MigrateDown(db *sql.DB) error {
	statements := []string{
		`DROP TABLE IF EXISTS entry_summary`,
		`DROP TABLE IF EXISTS entry_scores`,
		`DROP TABLE IF EXISTS entry_category`,
		`DROP TABLE IF EXISTS rss_entry`,
		`DROP TABLE IF EXISTS rss_feed`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
