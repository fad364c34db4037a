package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const versionsTable = "timetable_versions"

var versionColumns = []string{"feed", "version", "payload", "published_at"}

var ErrNoTimetable = errors.New("no published timetable")

// Schema creates the table the postgres timetable source reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS timetable_versions (
  feed         text        NOT NULL,
  version      text        NOT NULL,
  payload      jsonb       NOT NULL,
  published_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (feed, version)
)`

// ResolveLatestVersion returns the most recently published version for feed.
func ResolveLatestVersion(ctx context.Context, db *sql.DB, feed string) (string, error) {
	feed = strings.TrimSpace(feed)
	if feed == "" {
		return "", fmt.Errorf("feed is required")
	}
	q := `
SELECT version
FROM public.timetable_versions
WHERE feed = $1
ORDER BY published_at DESC
LIMIT 1`
	var version sql.NullString
	if err := db.QueryRowContext(ctx, q, feed).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w for feed %q", ErrNoTimetable, feed)
		}
		return "", err
	}
	if !version.Valid || version.String == "" {
		return "", fmt.Errorf("empty version for feed %q", feed)
	}
	return version.String, nil
}

// FetchCatalog returns the raw catalog document of the latest version of feed.
func FetchCatalog(ctx context.Context, db *sql.DB, feed string) (version string, payload []byte, err error) {
	version, err = ResolveLatestVersion(ctx, db, feed)
	if err != nil {
		return "", nil, err
	}
	q := `SELECT payload::text FROM public.timetable_versions WHERE feed = $1 AND version = $2`
	var body string
	if err := db.QueryRowContext(ctx, q, feed, version).Scan(&body); err != nil {
		return "", nil, fmt.Errorf("fetch timetable %s/%s: %w", feed, version, err)
	}
	return version, []byte(body), nil
}

// PublishCatalog stores a catalog document as a new version of feed.
func PublishCatalog(ctx context.Context, db *sql.DB, feed, version string, payload []byte) error {
	q := `
INSERT INTO public.timetable_versions (feed, version, payload)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (feed, version) DO UPDATE SET payload = EXCLUDED.payload, published_at = now()`
	if _, err := db.ExecContext(ctx, q, feed, version, string(payload)); err != nil {
		return fmt.Errorf("publish timetable %s/%s: %w", feed, version, err)
	}
	return nil
}
