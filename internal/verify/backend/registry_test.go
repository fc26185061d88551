package backend

import (
	"net/http"
	"testing"
)

func TestBuildDefaultRegistry(t *testing.T) {
	backends, closeAll, err := Build(&http.Client{}, RegistryConfig{LocalPoolSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer closeAll()

	if len(backends) != 5 {
		t.Fatalf("got %d backends, want 5 (CrossRef, arXiv, OpenAlex, Semantic Scholar, DBLP)", len(backends))
	}

	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	want := []string{"CrossRef", "arXiv", "OpenAlex", "Semantic Scholar", "DBLP"}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("backend[%d] = %q, want %q (order: %v)", i, names[i], w, names)
		}
	}
}

func TestBuildRespectsDisabledDBs(t *testing.T) {
	backends, closeAll, err := Build(&http.Client{}, RegistryConfig{
		DisabledDBs:   map[string]bool{"arXiv": true, "DBLP": true},
		LocalPoolSize: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closeAll()

	if len(backends) != 3 {
		t.Fatalf("got %d backends, want 3", len(backends))
	}
	for _, b := range backends {
		if b.Name() == "arXiv" || b.Name() == "DBLP" {
			t.Errorf("disabled backend %q present in registry", b.Name())
		}
	}
}

func TestBuildOfflinePathSwapsOnlineVariant(t *testing.T) {
	indexPath := buildTestOpenAlexIndex(t, nil)

	backends, closeAll, err := Build(&http.Client{}, RegistryConfig{
		OpenAlexOfflinePath: indexPath,
		LocalPoolSize:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closeAll()

	for _, b := range backends {
		if b.Name() == "OpenAlex" {
			if !b.IsLocal() {
				t.Error("expected OpenAlex Offline (local) when OpenAlexOfflinePath is set")
			}
			return
		}
	}
	t.Fatal("OpenAlex backend not present")
}

func TestBuildUnreadableOfflinePathIsHardError(t *testing.T) {
	_, _, err := Build(&http.Client{}, RegistryConfig{
		DblpOfflinePath: "/nonexistent/path/dblp.sqlite",
		LocalPoolSize:   1,
	})
	if err == nil {
		t.Fatal("expected error for an unreadable offline DBLP path")
	}
}
