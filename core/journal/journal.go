// Package journal records finished downloads for the /stats command. It is
// an audit log only; session state never goes through it.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tunebot/core/logger"
)

// Outcomes written to the journal.
const (
	OutcomeOK       = "ok"
	OutcomeFail     = "fail"
	OutcomeTooLarge = "too_large"
)

// Entry is one finished download.
type Entry struct {
	ID         int64     `db:"id"`
	ChatID     int64     `db:"chat_id"`
	UserID     int64     `db:"user_id"`
	ResourceID string    `db:"resource_id"`
	Title      string    `db:"title"`
	Outcome    string    `db:"outcome"`
	SizeBytes  int64     `db:"size_bytes"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Summary aggregates entries since a point in time.
type Summary struct {
	Total       int   `db:"total"`
	OK          int   `db:"ok"`
	Failed      int   `db:"failed"`
	Users       int   `db:"users"`
	Bytes       int64 `db:"bytes"`
	AvgDuration int64 `db:"avg_duration_ms"`
}

// Recorder is what the download flow depends on.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Summary(ctx context.Context, since time.Time) (Summary, error)
}

// Repo stores entries in Postgres.
type Repo struct {
	db *sqlx.DB
}

// NewRepo wraps an open connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

const insertEntry = `
INSERT INTO download_journal (chat_id, user_id, resource_id, title, outcome, size_bytes, duration_ms)
VALUES (:chat_id, :user_id, :resource_id, :title, :outcome, :size_bytes, :duration_ms)`

// Record appends e.
func (r *Repo) Record(ctx context.Context, e Entry) error {
	if _, err := r.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		logger.Warn(ctx, "journal", "record",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

const summaryQuery = `
SELECT
    COUNT(*)                                        AS total,
    COUNT(*) FILTER (WHERE outcome = 'ok')          AS ok,
    COUNT(*) FILTER (WHERE outcome <> 'ok')         AS failed,
    COUNT(DISTINCT user_id)                         AS users,
    COALESCE(SUM(size_bytes), 0)                    AS bytes,
    COALESCE(AVG(duration_ms)::BIGINT, 0)           AS avg_duration_ms
FROM download_journal
WHERE created_at >= $1`

// Summary aggregates entries created at or after since.
func (r *Repo) Summary(ctx context.Context, since time.Time) (Summary, error) {
	var s Summary
	if err := r.db.GetContext(ctx, &s, summaryQuery, since); err != nil {
		return Summary{}, fmt.Errorf("journal: summary: %w", err)
	}
	return s, nil
}

// Recent returns the newest entries, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM download_journal ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return out, nil
}

// Nop discards entries. It is used when the database is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Summary(context.Context, time.Time) (Summary, error) { return Summary{}, nil }
