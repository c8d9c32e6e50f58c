package cache

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lucaascf/coleta-produtos/dbopen"
	"github.com/Lucaascf/coleta-produtos/produto"
)

// testStore opens an in-memory store with a controllable clock.
func testStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(db, Config{
		TTL: 2 * time.Hour,
		Now: func() time.Time { return now },
	})
	return s, &now
}

func sampleProducts() []produto.Product {
	orig := 1599.0
	p1 := produto.Product{
		ID: "MLB1", Name: "Fone Bluetooth", CurrentPrice: 1299,
		OriginalPrice: &orig, URL: "https://x/MLB1",
	}
	p1.Derive()
	p2 := produto.Product{ID: "MLB2", Name: "Smart TV 50", CurrentPrice: 2599, URL: "https://x/MLB2"}
	p2.Derive()
	return []produto.Product{p1, p2}
}

func TestPutGetRoundTrip(t *testing.T) {
	// WHAT: put then get returns an equal payload with created_at in the
	// call window.
	s, now := testStore(t)
	ctx := context.Background()
	products := sampleProducts()

	if err := s.Put(ctx, "mode=term&q=fone", products); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, err := s.Get(ctx, "mode=term&q=fone")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(entry.Products) != 2 {
		t.Fatalf("products: got %d, want 2", len(entry.Products))
	}
	if entry.Products[0].ID != "MLB1" || entry.Products[1].ID != "MLB2" {
		t.Error("product order not preserved")
	}
	if entry.Products[0].DiscountPercentage == nil {
		t.Error("derived discount lost in round trip")
	}
	if !entry.CreatedAt.Equal(*now) {
		t.Errorf("created_at: got %v, want %v", entry.CreatedAt, *now)
	}
}

func TestGetMissOnAbsentKey(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.Get(context.Background(), "nope"); err != ErrMiss {
		t.Errorf("want ErrMiss, got %v", err)
	}
}

func TestGetMissAfterTTL(t *testing.T) {
	// WHAT: an entry is logically dead once TTL elapses, before any sweep.
	s, now := testStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", sampleProducts())
	*now = now.Add(2*time.Hour + time.Minute)

	if _, err := s.Get(ctx, "k"); err != ErrMiss {
		t.Errorf("want ErrMiss after TTL, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	// WHAT: put on an existing key replaces payload and refreshes created_at.
	s, now := testStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", sampleProducts())
	*now = now.Add(time.Hour)
	s.Put(ctx, "k", sampleProducts()[:1])

	entry, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(entry.Products) != 1 {
		t.Errorf("payload not overwritten: %d products", len(entry.Products))
	}
	if !entry.CreatedAt.Equal(*now) {
		t.Error("created_at not refreshed")
	}
}

func TestSweepExpired(t *testing.T) {
	// WHAT: sweep physically removes only dead entries.
	s, now := testStore(t)
	ctx := context.Background()

	s.Put(ctx, "old", sampleProducts())
	*now = now.Add(3 * time.Hour)
	s.Put(ctx, "fresh", sampleProducts())

	n, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept: got %d, want 1", n)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh entry lost by sweep: %v", err)
	}
}

func TestRecordPriceIdempotent(t *testing.T) {
	// WHAT: recording the same price twice appends exactly one record.
	// WHY: re-scraping an unchanged product must not grow history.
	s, now := testStore(t)
	ctx := context.Background()

	appended, err := s.RecordPrice(ctx, "MLB1", 1299)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !appended {
		t.Error("first record should append")
	}

	appended, err = s.RecordPrice(ctx, "MLB1", 1299)
	if err != nil {
		t.Fatalf("record repeat: %v", err)
	}
	if appended {
		t.Error("unchanged price should be a no-op")
	}

	*now = now.Add(time.Hour)
	appended, _ = s.RecordPrice(ctx, "MLB1", 1199)
	if !appended {
		t.Error("changed price should append")
	}

	hist, err := s.PriceHistory(ctx, "MLB1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history length: got %d, want 2", len(hist))
	}
	if hist[0].Price != 1199 {
		t.Errorf("newest first: got %v", hist[0].Price)
	}
}

func TestCleanupHistory(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	s.RecordPrice(ctx, "MLB1", 100)
	*now = now.Add(10 * 24 * time.Hour)
	s.RecordPrice(ctx, "MLB1", 90)

	n, err := s.CleanupHistory(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned: got %d, want 1", n)
	}
}

func TestSelectorOutcomePersistence(t *testing.T) {
	// WHAT: outcomes accumulate per field/descriptor and load back.
	// WHY: learning must survive process restarts.
	s, _ := testStore(t)
	ctx := context.Background()

	s.SelectorOutcome(ctx, "name", "text:.title", true)
	s.SelectorOutcome(ctx, "name", "text:.title", true)
	s.SelectorOutcome(ctx, "name", "text:.title", false)
	s.SelectorOutcome(ctx, "current_price", "text:.price", true)

	stats, err := s.LoadSelectorStats(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats rows: got %d, want 2", len(stats))
	}
	for _, st := range stats {
		if st.Field == "name" {
			if st.SuccessCount != 2 || st.FailureCount != 1 {
				t.Errorf("name counts: got %d/%d, want 2/1", st.SuccessCount, st.FailureCount)
			}
			if st.LastSuccessAt.IsZero() {
				t.Error("last_success_at not set")
			}
		}
	}
}

func TestResetSelectorStats(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	s.SelectorOutcome(ctx, "name", "text:.title", true)
	if err := s.ResetSelectorStats(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	stats, _ := s.LoadSelectorStats(ctx)
	if len(stats) != 0 {
		t.Errorf("stats after reset: got %d rows", len(stats))
	}
}

func TestStats(t *testing.T) {
	// WHAT: stats reports hit rate, live entries, and per-field accuracy.
	s, _ := testStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", sampleProducts())
	s.Get(ctx, "k")      // hit
	s.Get(ctx, "other")  // miss
	s.RecordPrice(ctx, "MLB1", 1299)
	s.SelectorOutcome(ctx, "name", "text:.title", true)
	s.SelectorOutcome(ctx, "name", "text:.title", false)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.HitRate != 0.5 {
		t.Errorf("hit rate: got %v, want 0.5", st.HitRate)
	}
	if st.TotalEntries != 1 {
		t.Errorf("entries: got %d, want 1", st.TotalEntries)
	}
	if st.HistoryRecords != 1 || st.TrackedProducts != 1 {
		t.Errorf("history counters: got %d/%d", st.HistoryRecords, st.TrackedProducts)
	}
	if acc := st.SelectorAccuracyByField["name"]; acc != 0.5 {
		t.Errorf("name accuracy: got %v, want 0.5", acc)
	}
}
