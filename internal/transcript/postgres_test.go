package transcript_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wrenhold/soniclink/internal/transcript"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if SONICLINK_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SONICLINK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SONICLINK_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestLog creates a fresh [transcript.Log] against a clean exchanges table.
func newTestLog(t *testing.T) *transcript.Log {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS exchanges CASCADE"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	log, err := transcript.NewLog(ctx, dsn)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	t.Cleanup(log.Close)
	return log
}

func TestLog_AppendAndRecent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	now := time.Now()

	entries := []transcript.Exchange{
		{Recognized: "turn on the lights", Language: "en-US", Timestamp: now.Add(-time.Minute), Duration: 2 * time.Second},
		{Recognized: "guten morgen", Translated: "good morning", Spoken: "good morning", Language: "de-DE", TargetLanguage: "en-US", Timestamp: now},
	}
	for _, e := range entries {
		if err := log.Append(ctx, "session-1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// A different session must not leak into the results.
	if err := log.Append(ctx, "session-2", transcript.Exchange{Recognized: "other", Timestamp: now}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := log.Recent(ctx, "session-1", time.Hour)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Recognized != "turn on the lights" {
		t.Errorf("got[0] = %q, want oldest first", got[0].Recognized)
	}
	if got[1].Translated != "good morning" || got[1].TargetLanguage != "en-US" {
		t.Errorf("translation fields not round-tripped: %+v", got[1])
	}
	if got[0].Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s", got[0].Duration)
	}
}

func TestLog_RecentWindow(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	old := transcript.Exchange{Recognized: "stale", Timestamp: time.Now().Add(-2 * time.Hour)}
	fresh := transcript.Exchange{Recognized: "fresh", Timestamp: time.Now()}
	for _, e := range []transcript.Exchange{old, fresh} {
		if err := log.Append(ctx, "session-1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.Recent(ctx, "session-1", time.Hour)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Recognized != "fresh" {
		t.Errorf("Recent = %+v, want only the fresh entry", got)
	}
}

func TestLog_Search(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	now := time.Now()

	for _, text := range []string{"the coffee machine is broken", "play some jazz", "coffee sounds good"} {
		if err := log.Append(ctx, "session-1", transcript.Exchange{Recognized: text, Timestamp: now}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.Search(ctx, "session-1", "coffee")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 coffee exchanges", len(got))
	}

	got, err = log.Search(ctx, "session-1", "nonexistent")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search(nonexistent) = %+v, want empty non-nil slice", got)
	}
	if got == nil {
		t.Error("Search returned nil slice, want empty non-nil")
	}
}
