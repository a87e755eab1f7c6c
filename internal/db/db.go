package db

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) the sqlite database at path and runs
// migrations. Callers own the returned handle.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dbInstance, err := sql.Open("sqlite", FormatDSN(path))
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		return nil, err
	}

	if err := dbInstance.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ping database")
		return nil, err
	}

	log.Debug().Msg("database connection successful")

	if err := migrate(ctx, dbInstance); err != nil {
		log.Error().Err(err).Msg("failed to run migrations")
		return nil, err
	}
	log.Info().Msg("migrations completed successfully")

	return dbInstance, nil
}

// FormatDSN turns a plain file path into a sqlite DSN with the pragmas the
// service relies on. Paths already carrying a query string pass through.
func FormatDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}

	// Pragmas for better performance and safety
	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("cache", "shared")
	params.Set("mode", "rwc")
	params.Set("_time_format", "sqlite")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Set("_busy_timeout", "5000")

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		short_url TEXT UNIQUE NOT NULL,
		long_url TEXT NOT NULL,
		creator TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL,
		tag TEXT NOT NULL,
		FOREIGN KEY(link_id) REFERENCES links(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL,
		ip TEXT NOT NULL,
		country TEXT,
		referer TEXT,
		referer_host TEXT,
		user_agent TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(link_id) REFERENCES links(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_links_short_url ON links(short_url);
	CREATE INDEX IF NOT EXISTS idx_tags_link_id ON tags(link_id);
	CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
	CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id);
	CREATE INDEX IF NOT EXISTS idx_clicks_created_at ON clicks(created_at);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}
