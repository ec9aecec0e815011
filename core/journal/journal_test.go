package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tunebot/core/database"
)

var (
	_ Recorder = (*Repo)(nil)
	_ Recorder = Nop{}
)

func TestNop(t *testing.T) {
	var n Nop
	require.NoError(t, n.Record(context.Background(), Entry{ResourceID: "x"}))
	s, err := n.Summary(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, s.Total)
}

// TestRepoPostgres runs against a real database when TUNEBOT_TEST_DSN is set,
// e.g. "user=postgres password=postgres host=localhost port=5432 dbname=tunebot_test sslmode=disable".
func TestRepoPostgres(t *testing.T) {
	dsn := os.Getenv("TUNEBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("TUNEBOT_TEST_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, database.WaitForPostgres(ctx, dsn, 10*time.Second))

	db, err := sqlxOpen(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE download_journal (
		id BIGSERIAL PRIMARY KEY, chat_id BIGINT NOT NULL, user_id BIGINT NOT NULL,
		resource_id TEXT NOT NULL, title TEXT NOT NULL DEFAULT '', outcome TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0, duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now())`)
	require.NoError(t, err)

	repo := NewRepo(db)
	since := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Record(ctx, Entry{ChatID: 1, UserID: 9, ResourceID: "a", Outcome: OutcomeOK, SizeBytes: 100, DurationMS: 2000}))
	require.NoError(t, repo.Record(ctx, Entry{ChatID: 1, UserID: 9, ResourceID: "b", Outcome: OutcomeTooLarge}))
	require.NoError(t, repo.Record(ctx, Entry{ChatID: 2, UserID: 10, ResourceID: "c", Outcome: OutcomeOK, SizeBytes: 50, DurationMS: 1000}))

	s, err := repo.Summary(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.OK)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Users)
	assert.Equal(t, int64(150), s.Bytes)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
