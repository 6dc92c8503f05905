package testhistory

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestRecordAndRecentRoundTrip(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	runs := []TestRun{
		{TestName: "adds numbers", FilePath: "tests/math.tea", Passed: true, CreatedAt: base},
		{TestName: "rejects negatives", FilePath: "tests/math.tea", Passed: false, Message: "assert_true failed", CreatedAt: base.Add(time.Minute)},
	}
	for _, r := range runs {
		if err := store.Record(r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d runs, want 2", len(recent))
	}
	if recent[0].TestName != "rejects negatives" {
		t.Fatalf("expected newest-first ordering, got %q first", recent[0].TestName)
	}
	if recent[0].ID == "" {
		t.Fatalf("expected BeforeCreate to fill an ID")
	}
}

func TestHistoryBucketsByCalendarDay(t *testing.T) {
	store := openTestStore(t)

	day1 := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	runs := []TestRun{
		{TestName: "a", Passed: true, CreatedAt: day1},
		{TestName: "b", Passed: false, CreatedAt: day1.Add(time.Hour)},
		{TestName: "c", Passed: true, CreatedAt: day2},
	}
	for _, r := range runs {
		if err := store.Record(r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	summaries, err := store.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d day buckets, want 2", len(summaries))
	}

	// Recent() orders newest-first, so History's day order is day2, day1.
	if summaries[0].Passed != 1 || summaries[0].Failed != 0 {
		t.Fatalf("day2 summary = %+v, want 1 passed 0 failed", summaries[0])
	}
	if summaries[1].Passed != 1 || summaries[1].Failed != 1 {
		t.Fatalf("day1 summary = %+v, want 1 passed 1 failed", summaries[1])
	}
}
