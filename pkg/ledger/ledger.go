// Package ledger persists one row per answered guest question so the
// back-office can report savings and enforce API budgets across restarts.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/bistro/pkg/models"
)

// Ledger records and queries answer usage.
type Ledger interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Recent returns the newest records, newest first.
	Recent(ctx context.Context, limit int) ([]models.UsageRecord, error)
	// Summary aggregates records since a given time by source and model.
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	// Daily returns per-day counts by source since a given time.
	Daily(ctx context.Context, since time.Time) ([]models.DailyUsage, error)
	// APICallsSince counts live API answers since a given time.
	APICallsSince(ctx context.Context, since time.Time) (int64, error)
	// TokensSince sums tokens spent on API answers since a given time.
	TokensSince(ctx context.Context, since time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteLedger implements Ledger with a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_source_time ON usage_records(source, created_at);
`

// New creates a SQLiteLedger and runs auto-migration.
func New(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}

	// Add failed column to usage_records if missing.
	if !columnExists(db, "usage_records", "failed") {
		if _, err := db.Exec(`ALTER TABLE usage_records ADD COLUMN failed INTEGER NOT NULL DEFAULT 0`); err != nil {
			db.Close()
			return nil, fmt.Errorf("add failed column: %w", err)
		}
	}

	return &SQLiteLedger{db: db}, nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// Record stores a usage record. A zero CreatedAt is set to now.
func (l *SQLiteLedger) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_records (conversation_id, source, topic, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ConversationID, string(rec.Source), string(rec.Topic), rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMs, rec.Failed, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, conversation_id, source, topic, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, failed, created_at
		 FROM usage_records ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var source, topic string
		if err := rows.Scan(&r.ID, &r.ConversationID, &source, &topic, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.LatencyMs, &r.Failed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Source = models.Source(source)
		r.Topic = models.Topic(topic)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns aggregated usage grouped by source and model.
func (l *SQLiteLedger) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT source, model, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		 FROM usage_records WHERE created_at >= ?
		 GROUP BY source, model ORDER BY source, model`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		var source string
		if err := rows.Scan(&source, &s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Source = models.Source(source)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Daily returns per-day answer counts by source.
func (l *SQLiteLedger) Daily(ctx context.Context, since time.Time) ([]models.DailyUsage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT substr(created_at, 1, 10) AS day,
			SUM(CASE WHEN source = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN source = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN source = ? THEN 1 ELSE 0 END),
			SUM(total_tokens)
		 FROM usage_records WHERE created_at >= ?
		 GROUP BY day ORDER BY day`,
		string(models.SourceCache), string(models.SourceAPI), string(models.SourceFallback), since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("daily usage: %w", err)
	}
	defer rows.Close()

	var days []models.DailyUsage
	for rows.Next() {
		var d models.DailyUsage
		if err := rows.Scan(&d.Day, &d.Cached, &d.API, &d.Fallback, &d.Tokens); err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// APICallsSince counts API answers since a given time, failed calls included.
func (l *SQLiteLedger) APICallsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE source = ? AND created_at >= ?`,
		string(models.SourceAPI), since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count api calls: %w", err)
	}
	return n, nil
}

// TokensSince sums tokens used by API answers since a given time.
func (l *SQLiteLedger) TokensSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE source = ? AND created_at >= ?`,
		string(models.SourceAPI), since.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total tokens: %w", err)
	}
	return total, nil
}

// Close releases the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
