package backend

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gianlucasb/hallucinator/internal/verify/normalize"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// openAlexDoc is one indexed work. The on-disk format (OpenAlexIndexFile,
// gob-encoded) and this in-memory layout are both owned by this package;
// populating the file from the OpenAlex S3 snapshot is the out-of-scope
// index builder.
type openAlexDoc struct {
	ID      uint64
	Title   string
	Authors []string
}

// OpenAlexIndexFile is the gob-serialized shape an offline index file
// holds on disk: a flat document list the builder produces once.
type OpenAlexIndexFile struct {
	Docs []openAlexDoc
}

// OpenAlexOffline answers queries against a full-text inverted index built
// entirely in process from OpenAlexIndexFile — no third-party search
// engine library appears anywhere in the retrieved example pack, so this
// is a small hand-rolled token->postings map rather than an adapted
// dependency (see DESIGN.md).
type OpenAlexOffline struct {
	docs     []openAlexDoc
	postings map[string][]int // normalized token -> indices into docs
	pool     *BlockingPool
	mu       sync.RWMutex
}

// OpenOpenAlexOffline loads path (a gob-encoded OpenAlexIndexFile) and
// builds the in-memory inverted index used to answer queries.
func OpenOpenAlexOffline(path string, pool *BlockingPool) (*OpenAlexOffline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open offline OpenAlex index at %s: %w", path, err)
	}
	defer f.Close()

	var file OpenAlexIndexFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode offline OpenAlex index at %s: %w", path, err)
	}

	idx := &OpenAlexOffline{
		docs:     file.Docs,
		postings: make(map[string][]int),
		pool:     pool,
	}
	for i, doc := range file.Docs {
		for _, tok := range tokenize(doc.Title) {
			idx.postings[tok] = append(idx.postings[tok], i)
		}
	}
	return idx, nil
}

func (b *OpenAlexOffline) Name() string  { return "OpenAlex" }
func (b *OpenAlexOffline) IsLocal() bool { return true }
func (b *OpenAlexOffline) Close() error  { return nil }

func (b *OpenAlexOffline) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	val, err := b.pool.Run(ctx, func() (any, error) {
		return b.queryBlocking(title), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.Error(types.ErrorCancelled, err.Error()), nil
		}
		return types.Error(types.ErrorOther, err.Error()), nil
	}
	return val.(types.DbOutcome), nil
}

func (b *OpenAlexOffline) queryBlocking(title string) types.DbOutcome {
	b.mu.RLock()
	defer b.mu.RUnlock()

	candidates := b.candidateDocs(title)
	for _, i := range candidates {
		doc := b.docs[i]
		if !normalize.TitlesMatch(title, doc.Title) {
			continue
		}
		if len(doc.Authors) == 0 {
			continue // empty-authors: let other backends verify
		}
		return types.Found(doc.Title, doc.Authors, fmt.Sprintf("https://openalex.org/W%d", doc.ID))
	}
	return types.NotFound()
}

// candidateDocs collects every document that shares at least one token with
// the query, ranked by how many tokens a document matched, highest first,
// and keeps at most maxCandidates of them.
func (b *OpenAlexOffline) candidateDocs(title string) []int {
	tokens := tokenize(title)
	if len(tokens) == 0 {
		return nil
	}

	hits := make(map[int]int)
	for _, tok := range tokens {
		for _, i := range b.postings[tok] {
			hits[i]++
		}
	}

	type scored struct {
		idx, score int
	}
	scoredDocs := make([]scored, 0, len(hits))
	for i, score := range hits {
		scoredDocs = append(scoredDocs, scored{i, score})
	}
	for i := 1; i < len(scoredDocs); i++ {
		for j := i; j > 0 && scoredDocs[j-1].score < scoredDocs[j].score; j-- {
			scoredDocs[j-1], scoredDocs[j] = scoredDocs[j], scoredDocs[j-1]
		}
	}

	const maxCandidates = 10
	if len(scoredDocs) > maxCandidates {
		scoredDocs = scoredDocs[:maxCandidates]
	}
	out := make([]int, len(scoredDocs))
	for i, s := range scoredDocs {
		out[i] = s.idx
	}
	return out
}

// tokenize splits a normalized title into the words the inverted index is
// keyed on.
func tokenize(title string) []string {
	normalized := normalize.Title(title)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}
