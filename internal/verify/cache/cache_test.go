package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

func TestInMemoryGetMiss(t *testing.T) {
	c := New()
	if _, ok := c.Get("Attention Is All You Need", "CrossRef"); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestInsertThenGetHits(t *testing.T) {
	c := New()
	outcome := types.Found("Attention Is All You Need", []string{"A. Vaswani"}, "https://arxiv.org/abs/1706.03762")
	c.Insert("Attention Is All You Need", "arXiv", outcome)

	got, ok := c.Get("attention is all you need!!", "arXiv")
	if !ok {
		t.Fatal("expected cache hit after insert (normalized key)")
	}
	if got.FoundTitle != outcome.FoundTitle {
		t.Errorf("got %q, want %q", got.FoundTitle, outcome.FoundTitle)
	}
}

func TestInsertRejectsErrorOutcomes(t *testing.T) {
	c := New()
	c.Insert("Some Title", "CrossRef", types.Error(types.ErrorTimeout, "deadline exceeded"))
	if _, ok := c.Get("Some Title", "CrossRef"); ok {
		t.Error("error outcomes must never be cached")
	}
}

func TestNegativeAndPositiveTTLsAreIndependent(t *testing.T) {
	c := New(WithTTLs(1*time.Hour, 10*time.Millisecond))
	c.Insert("Quantum Pineapple Theorems", "CrossRef", types.NotFound())

	if _, ok := c.Get("Quantum Pineapple Theorems", "CrossRef"); !ok {
		t.Fatal("expected immediate hit")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("Quantum Pineapple Theorems", "CrossRef"); ok {
		t.Error("expected negative entry to expire after its short TTL")
	}
}

func TestClearEmptiesL1(t *testing.T) {
	c := New()
	c.Insert("Attention Is All You Need", "arXiv", types.NotFound())
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
	if _, ok := c.Get("Attention Is All You Need", "arXiv"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestSQLiteRoundTripAcrossFreshCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query_cache.db")

	c1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c1.Insert("Attention Is All You Need", "Semantic Scholar",
		types.Found("Attention Is All You Need", []string{"A. Vaswani", "N. Shazeer"}, "https://arxiv.org/abs/1706.03762"))
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	defer c2.Close()

	got, ok := c2.Get("Attention Is All You Need", "Semantic Scholar")
	if !ok {
		t.Fatal("expected L2 hit in a fresh process-equivalent cache")
	}
	if len(got.Authors) != 2 || got.Authors[0] != "A. Vaswani" {
		t.Errorf("authors round-tripped incorrectly: %v", got.Authors)
	}
}

func TestSQLiteExpiredRowRemovedOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query_cache.db")

	c1, err := Open(path, WithTTLs(10*time.Millisecond, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c1.Insert("Stale Paper", "CrossRef", types.NotFound())
	time.Sleep(20 * time.Millisecond)
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := Open(path, WithTTLs(10*time.Millisecond, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	defer c2.Close()

	if got := c2.DiskLen(); got != 0 {
		t.Errorf("expected expired row swept at open, disk len = %d", got)
	}
}

func TestL2WriteFailureDoesNotPanicOrFailInsert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query_cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	// Closing the underlying L2 handle simulates an I/O failure on the next
	// write; Insert must still succeed for L1.
	c.l2.db.Close()
	c.Insert("Some Paper", "CrossRef", types.NotFound())

	if _, ok := c.Get("Some Paper", "CrossRef"); !ok {
		t.Error("L1 should remain authoritative when L2 write fails")
	}
}
