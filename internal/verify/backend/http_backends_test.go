package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

func TestCrossRefQueryFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"items": []map[string]any{
					{
						"title": []string{"Attention Is All You Need"},
						"author": []map[string]string{
							{"given": "Ashish", "family": "Vaswani"},
						},
						"URL": "https://doi.org/10.x",
					},
				},
			},
		})
	}))
	defer srv.Close()

	b := &CrossRef{Client: srv.Client(), BaseURL: srv.URL}

	outcome, err := b.Query(context.Background(), "Attention Is All You Need")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if !outcome.IsFound() {
		t.Fatalf("expected Found, got %v", outcome)
	}
	if len(outcome.Authors) != 1 || outcome.Authors[0] != "Ashish Vaswani" {
		t.Errorf("Authors = %v", outcome.Authors)
	}
}

func TestDoJSONHandlesRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var dst any
	outcome, ok := doJSON(context.Background(), srv.Client(), srv.URL, nil, &dst)
	if ok {
		t.Fatal("expected doJSON to report failure on 429")
	}
	if !outcome.IsError() || outcome.ErrKind != types.ErrorRateLimited {
		t.Errorf("outcome = %v, want RateLimited error", outcome)
	}
}

func TestDoJSONHandlesRetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	var dst any
	outcome, ok := doJSON(context.Background(), srv.Client(), srv.URL, nil, &dst)
	if ok {
		t.Fatal("expected doJSON to report failure on Retry-After")
	}
	if !outcome.IsError() {
		t.Errorf("outcome = %v, want an error outcome", outcome)
	}
}

func TestStripDblpSuffix(t *testing.T) {
	cases := map[string]string{
		"Nuno Santos 0001": "Nuno Santos",
		"Nuno Santos":      "Nuno Santos",
		"Jane Doe 12":      "Jane Doe 12",
		"A 0042":           "A",
		"Wei Zhang 9999":   "Wei Zhang",
	}
	for in, want := range cases {
		if got := stripDblpSuffix(in); got != want {
			t.Errorf("stripDblpSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDblpAuthorsSingleObject(t *testing.T) {
	raw := json.RawMessage(`{"author":{"text":"Jane Doe 0001"}}`)
	authors := parseDblpAuthors(raw)
	if len(authors) != 1 || authors[0] != "Jane Doe 0001" {
		t.Errorf("authors = %v", authors)
	}
}

func TestParseDblpAuthorsArrayOfBareStrings(t *testing.T) {
	raw := json.RawMessage(`{"author":["Jane Doe","John Roe"]}`)
	authors := parseDblpAuthors(raw)
	if len(authors) != 2 {
		t.Fatalf("authors = %v", authors)
	}
}

func TestParseDblpAuthorsEmpty(t *testing.T) {
	if authors := parseDblpAuthors(nil); authors != nil {
		t.Errorf("expected nil authors for empty input, got %v", authors)
	}
}

func TestAnyAuthorOverlaps(t *testing.T) {
	if !AnyAuthorOverlaps([]string{"Jane Doe"}, []string{"JANE DOE"}) {
		t.Error("expected overlap after normalization")
	}
	if AnyAuthorOverlaps([]string{"Jane Doe"}, []string{"John Roe"}) {
		t.Error("expected no overlap")
	}
}
