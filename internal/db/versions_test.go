package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}
	sqlDB, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Ping(context.Background(), sqlDB))
	_, err = sqlDB.Exec(Schema)
	require.NoError(t, err)
	return sqlDB
}

func TestPublishAndFetchLatest(t *testing.T) {
	sqlDB := setupTestDB(t)
	ctx := context.Background()
	feed := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		sqlDB.Exec(`DELETE FROM public.timetable_versions WHERE feed = $1`, feed)
	})

	require.NoError(t, CheckSchema(ctx, sqlDB))

	_, err := ResolveLatestVersion(ctx, sqlDB, feed)
	require.ErrorIs(t, err, ErrNoTimetable)

	require.NoError(t, PublishCatalog(ctx, sqlDB, feed, "v1", []byte(`{"version": "v1"}`)))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, PublishCatalog(ctx, sqlDB, feed, "v2", []byte(`{"version": "v2"}`)))

	version, payload, err := FetchCatalog(ctx, sqlDB, feed)
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
	assert.JSONEq(t, `{"version": "v2"}`, string(payload))
}

func TestResolveLatestVersion_RequiresFeed(t *testing.T) {
	_, err := ResolveLatestVersion(context.Background(), nil, "  ")
	assert.Error(t, err)
}
