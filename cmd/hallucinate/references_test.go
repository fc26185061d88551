package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReferencesAssignsIndexByPosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.json")
	contents := `[
		{"title": "Attention Is All You Need", "authors": ["A. Vaswani"]},
		{"title": "", "skip_reason": "no title extracted"},
		{"title": "A Survey of Transformers"}
	]`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	refs, err := loadReferences(path)
	if err != nil {
		t.Fatalf("loadReferences: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d references, want 3", len(refs))
	}
	for i, r := range refs {
		if r.Index != i {
			t.Errorf("refs[%d].Index = %d, want %d", i, r.Index, i)
		}
	}
	if !refs[1].Skipped() {
		t.Error("reference with a skip_reason should report Skipped() == true")
	}
	if refs[0].Skipped() || refs[2].Skipped() {
		t.Error("references with a title and no skip_reason should not be skipped")
	}
}

func TestLoadReferencesMissingFile(t *testing.T) {
	_, err := loadReferences(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected an error for a missing references file")
	}
}

func TestLoadReferencesInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.json")
	if err := os.WriteFile(path, []byte(`{not valid json`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := loadReferences(path)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
