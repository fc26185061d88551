// Package checker implements the reference checker: for one reference,
// fan out across every enabled backend, consulting the cache first and
// falling back to a rate-limited, backoff-retried query.
package checker

import (
	"context"
	"sync"
	"time"

	"github.com/gianlucasb/hallucinator/internal/verify/backend"
	"github.com/gianlucasb/hallucinator/internal/verify/cache"
	"github.com/gianlucasb/hallucinator/internal/verify/ratelimit"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// Options bundles the shared resources and per-run settings the checker
// needs, all of which are owned by the engine and passed in read-only.
type Options struct {
	Cache                *cache.Cache
	Limiter              *ratelimit.Limiter
	Timeout              time.Duration // network backends
	TimeoutShort         time.Duration // local backends
	CheckOpenAlexAuthors bool
	Progress             types.ProgressFunc
}

// Check runs reference ref against every backend in backends and returns
// the aggregated verdict. Every enabled backend is started concurrently
// up front (see DESIGN.md for why this beats a first-Found short circuit);
// none are skipped once launched, so there is nothing to gate mid-flight.
//
// Skipped/empty references bypass verification entirely and return an
// empty-outcomes verdict.
func Check(ctx context.Context, ref types.Reference, backends []backend.Backend, opts Options) types.ReferenceVerdict {
	verdict := types.ReferenceVerdict{
		ReferenceIndex: ref.Index,
		Title:          ref.Title,
		Outcomes:       make(map[string]types.DbOutcome),
	}

	if ref.Skipped() {
		opts.emit(types.ProgressEvent{
			Kind:           types.EventRefCompleted,
			ReferenceIndex: ref.Index,
			Title:          ref.Title,
			Verdict:        verdict,
			At:             time.Now(),
		})
		return verdict
	}

	opts.emit(types.ProgressEvent{
		Kind:           types.EventRefStarted,
		ReferenceIndex: ref.Index,
		Title:          ref.Title,
		At:             time.Now(),
	})

	if ctx.Err() != nil {
		for _, b := range backends {
			verdict.Outcomes[b.Name()] = types.Error(types.ErrorCancelled, ctx.Err().Error())
		}
		opts.emit(types.ProgressEvent{
			Kind:           types.EventRefCompleted,
			ReferenceIndex: ref.Index,
			Title:          ref.Title,
			Verdict:        verdict,
			At:             time.Now(),
		})
		return verdict
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, b := range backends {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, outcome := opts.checkOne(ctx, ref, b)

			mu.Lock()
			verdict.Outcomes[name] = outcome
			mu.Unlock()
		}()
	}
	wg.Wait()

	if opts.CheckOpenAlexAuthors {
		applyAuthorDowngrade(&verdict, ref.Authors)
	}

	opts.emit(types.ProgressEvent{
		Kind:           types.EventRefCompleted,
		ReferenceIndex: ref.Index,
		Title:          ref.Title,
		Verdict:        verdict,
		At:             time.Now(),
	})
	return verdict
}

// checkOne consults the cache for a single backend, falling back to a
// rate-limited, backoff-retried query on miss, and emits the matching
// CacheHit or RefDbOutcome event.
func (o Options) checkOne(ctx context.Context, ref types.Reference, b backend.Backend) (string, types.DbOutcome) {
	name := b.Name()

	if o.Cache != nil {
		if outcome, ok := o.Cache.Get(ref.Title, name); ok {
			recordCacheHit(ctx, name)
			o.emit(types.ProgressEvent{
				Kind:           types.EventCacheHit,
				ReferenceIndex: ref.Index,
				Title:          ref.Title,
				Backend:        name,
				Outcome:        outcome,
				At:             time.Now(),
			})
			return name, outcome
		}
		recordCacheMiss(ctx, name)
	}

	timeout := o.Timeout
	if b.IsLocal() {
		timeout = o.TimeoutShort
	}

	start := time.Now()
	outcome, _ := ratelimit.QueryWithBackoff(ctx, o.Limiter, name, func(callCtx context.Context) (types.DbOutcome, error) {
		queryCtx := callCtx
		var cancel context.CancelFunc
		if timeout > 0 {
			queryCtx, cancel = context.WithTimeout(callCtx, timeout)
			defer cancel()
		}
		return b.Query(queryCtx, ref.Title)
	})
	recordBackendCall(ctx, name, outcomeLabel(outcome), float64(time.Since(start).Milliseconds()))

	if o.Cache != nil && outcome.Cacheable() {
		o.Cache.Insert(ref.Title, name, outcome)
	}

	o.emit(types.ProgressEvent{
		Kind:           types.EventRefDbOutcome,
		ReferenceIndex: ref.Index,
		Title:          ref.Title,
		Backend:        name,
		Outcome:        outcome,
		At:             time.Now(),
	})
	return name, outcome
}

// outcomeLabel maps an outcome to a low-cardinality metric attribute
// value (titles and error messages themselves never go into attributes).
func outcomeLabel(o types.DbOutcome) string {
	switch {
	case o.IsFound():
		return "found"
	case o.IsNotFound():
		return "not_found"
	default:
		return "error:" + o.ErrKind.String()
	}
}

func (o Options) emit(ev types.ProgressEvent) {
	if o.Progress != nil {
		o.Progress(ev)
	}
}

// applyAuthorDowngrade implements the opt-in check_openalex_authors rule:
// when enabled, an OpenAlex Found whose author list shares no name with
// the reference's own author list is downgraded to NotFound, since
// OpenAlex's fuzzy title search occasionally surfaces an unrelated paper
// with a similar title.
func applyAuthorDowngrade(verdict *types.ReferenceVerdict, referenceAuthors []string) {
	if len(referenceAuthors) == 0 {
		return
	}
	outcome, ok := verdict.Outcomes["OpenAlex"]
	if !ok || !outcome.IsFound() {
		return
	}
	if !backend.AnyAuthorOverlaps(outcome.Authors, referenceAuthors) {
		verdict.Outcomes["OpenAlex"] = types.NotFound()
	}
}
