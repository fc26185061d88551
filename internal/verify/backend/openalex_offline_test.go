package backend

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
)

func buildTestOpenAlexIndex(t *testing.T, docs []openAlexDoc) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openalex.gob")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(OpenAlexIndexFile{Docs: docs}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAlexOfflineFound(t *testing.T) {
	path := buildTestOpenAlexIndex(t, []openAlexDoc{
		{ID: 1, Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani", "Noam Shazeer"}},
		{ID: 2, Title: "Deep Residual Learning for Image Recognition", Authors: []string{"Kaiming He"}},
	})

	b, err := OpenOpenAlexOffline(path, NewBlockingPool(1))
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := b.Query(context.Background(), "Attention Is All You Need")
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.IsFound() {
		t.Fatalf("expected Found, got %v", outcome)
	}
	if outcome.URL != "https://openalex.org/W1" {
		t.Errorf("URL = %q", outcome.URL)
	}
}

func TestOpenAlexOfflineEmptyAuthorsSkipped(t *testing.T) {
	path := buildTestOpenAlexIndex(t, []openAlexDoc{
		{ID: 3, Title: "Ghost Paper", Authors: nil},
	})

	b, err := OpenOpenAlexOffline(path, NewBlockingPool(1))
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := b.Query(context.Background(), "Ghost Paper")
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.IsNotFound() {
		t.Fatalf("expected NotFound for empty-author match, got %v", outcome)
	}
}

func TestOpenAlexOfflineNotFound(t *testing.T) {
	path := buildTestOpenAlexIndex(t, []openAlexDoc{
		{ID: 1, Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}},
	})

	b, err := OpenOpenAlexOffline(path, NewBlockingPool(1))
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := b.Query(context.Background(), "Completely Unrelated Title About Gardening")
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.IsNotFound() {
		t.Fatalf("expected NotFound, got %v", outcome)
	}
}

func TestOpenOpenAlexOfflineMissingFile(t *testing.T) {
	_, err := OpenOpenAlexOffline(filepath.Join(t.TempDir(), "missing.gob"), NewBlockingPool(1))
	if err == nil {
		t.Fatal("expected error opening a nonexistent index file")
	}
}
