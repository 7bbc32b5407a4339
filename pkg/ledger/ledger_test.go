package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/bistro/pkg/models"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	l, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		ConversationID:   "conv-1",
		Source:           models.SourceAPI,
		Model:            "gpt-4o-mini",
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		LatencyMs:        420,
		CreatedAt:        now,
	}
	if err := l.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, models.UsageRecord{Source: models.SourceFallback, Topic: models.TopicMenu, CreatedAt: now.Add(time.Second)}); err != nil {
		t.Fatal(err)
	}

	records, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Source != models.SourceFallback || records[0].Topic != models.TopicMenu {
		t.Errorf("expected newest fallback/menu record first, got %s/%s", records[0].Source, records[0].Topic)
	}
	if records[1].TotalTokens != 150 || records[1].ConversationID != "conv-1" {
		t.Errorf("unexpected api record: %+v", records[1])
	}
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, models.UsageRecord{Source: models.SourceCache}); err != nil {
		t.Fatal(err)
	}
	records, err := l.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].CreatedAt.IsZero() {
		t.Fatalf("expected a timestamped record, got %+v", records)
	}
}

func TestAPICallsAndTokensSince(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		_ = l.Record(ctx, models.UsageRecord{
			Source: models.SourceAPI, Model: "gpt-4o-mini",
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	// A failed call still counts against the call budget.
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceAPI, Failed: true, CreatedAt: now})
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceCache, TotalTokens: 999, CreatedAt: now})
	// Outside the window.
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceAPI, TotalTokens: 1000, CreatedAt: now.Add(-48 * time.Hour)})

	calls, err := l.APICallsSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("expected 4 api calls, got %d", calls)
	}

	tokens, err := l.TokensSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if tokens != 450 {
		t.Errorf("expected 450 tokens, got %d", tokens)
	}
}

func TestTokensSinceEmpty(t *testing.T) {
	l := newTestLedger(t)

	tokens, err := l.TokensSince(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if tokens != 0 {
		t.Errorf("expected 0, got %d", tokens)
	}
}

func TestSummary(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = l.Record(ctx, models.UsageRecord{
		Source: models.SourceAPI, Model: "gpt-4o-mini",
		PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
		CreatedAt: now,
	})
	_ = l.Record(ctx, models.UsageRecord{
		Source: models.SourceAPI, Model: "gpt-4o-mini",
		PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300,
		CreatedAt: now,
	})
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceCache, CreatedAt: now})

	summaries, err := l.Summary(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	// Ordered by source: api before cache.
	api := summaries[0]
	if api.Source != models.SourceAPI || api.RequestCount != 2 || api.TotalTokens != 450 {
		t.Errorf("unexpected api summary: %+v", api)
	}
	if summaries[1].Source != models.SourceCache || summaries[1].RequestCount != 1 {
		t.Errorf("unexpected cache summary: %+v", summaries[1])
	}
}

func TestDaily(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceAPI, TotalTokens: 40, CreatedAt: day1})
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceCache, CreatedAt: day1.Add(time.Hour)})
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceFallback, CreatedAt: day2})
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceFallback, CreatedAt: day2.Add(time.Minute)})

	days, err := l.Daily(ctx, day1.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Day != "2026-03-01" || days[0].API != 1 || days[0].Cached != 1 || days[0].Tokens != 40 {
		t.Errorf("unexpected first day: %+v", days[0])
	}
	if days[1].Day != "2026-03-02" || days[1].Fallback != 2 {
		t.Errorf("unexpected second day: %+v", days[1])
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	l, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = l.Record(ctx, models.UsageRecord{Source: models.SourceAPI, TotalTokens: 10})
	_ = l.Close()

	l, err = New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	calls, err := l.APICallsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 api call after reopen, got %d", calls)
	}
}
