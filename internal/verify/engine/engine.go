// Package engine implements the verification driver: it owns the
// shared HTTP client, cache, rate limiter, and backend registry for one
// run, and fans references out across a bounded pool of goroutines using
// the same buffered-channel semaphore plus WaitGroup pattern used
// elsewhere in this codebase for concurrent health checks.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gianlucasb/hallucinator/internal/httpclient"
	"github.com/gianlucasb/hallucinator/internal/verify/backend"
	"github.com/gianlucasb/hallucinator/internal/verify/cache"
	"github.com/gianlucasb/hallucinator/internal/verify/checker"
	"github.com/gianlucasb/hallucinator/internal/verify/ratelimit"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// Config is everything a verification run needs.
type Config struct {
	OpenAlexKey         string
	S2APIKey            string
	DblpOfflinePath     string
	OpenAlexOfflinePath string
	DisabledDBs         []string
	MaxConcurrentRefs   int // default 4
	DBTimeoutSecs       int // default 10
	DBTimeoutShortSecs  int // default 5
	CacheDiskPath       string // empty means L1-only
	CheckOpenAlexAuthors bool
}

const (
	DefaultMaxConcurrentRefs  = 4
	DefaultDBTimeoutSecs      = 10
	DefaultDBTimeoutShortSecs = 5
)

func (c Config) maxConcurrentRefs() int {
	if c.MaxConcurrentRefs > 0 {
		return c.MaxConcurrentRefs
	}
	return DefaultMaxConcurrentRefs
}

func (c Config) timeout() time.Duration {
	if c.DBTimeoutSecs > 0 {
		return time.Duration(c.DBTimeoutSecs) * time.Second
	}
	return DefaultDBTimeoutSecs * time.Second
}

func (c Config) timeoutShort() time.Duration {
	if c.DBTimeoutShortSecs > 0 {
		return time.Duration(c.DBTimeoutShortSecs) * time.Second
	}
	return DefaultDBTimeoutShortSecs * time.Second
}

func (c Config) disabledSet() map[string]bool {
	set := make(map[string]bool, len(c.DisabledDBs))
	for _, name := range c.DisabledDBs {
		set[name] = true
	}
	return set
}

// Engine owns the shared resources for one verification run: the HTTP
// client, the two-tier cache, the rate limiter, and the enabled backend
// list. Construct one per run via New; Close releases the cache and any
// offline-index handles when the run is done.
type Engine struct {
	cfg      Config
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	backends []backend.Backend
	closeBackends func() error
}

// New builds the shared resources for a run. An unreadable L2 cache path
// or offline index path is a hard error.
func New(cfg Config) (*Engine, error) {
	client := httpclient.New(backend.UserAgent)

	var c *cache.Cache
	var err error
	if cfg.CacheDiskPath != "" {
		c, err = cache.Open(cfg.CacheDiskPath)
	} else {
		c = cache.New()
	}
	if err != nil {
		return nil, fmt.Errorf("open query cache: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultIntervals())

	backends, closeBackends, err := backend.Build(client, backend.RegistryConfig{
		OpenAlexKey:         cfg.OpenAlexKey,
		S2APIKey:            cfg.S2APIKey,
		DblpOfflinePath:     cfg.DblpOfflinePath,
		OpenAlexOfflinePath: cfg.OpenAlexOfflinePath,
		DisabledDBs:         cfg.disabledSet(),
		LocalPoolSize:       2,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build backend registry: %w", err)
	}

	return &Engine{
		cfg:           cfg,
		cache:         c,
		limiter:       limiter,
		backends:      backends,
		closeBackends: closeBackends,
	}, nil
}

// Close releases the cache's L2 handle and any offline-index handles.
func (e *Engine) Close() error {
	var first error
	if err := e.cache.Close(); err != nil {
		first = err
	}
	if e.closeBackends != nil {
		if err := e.closeBackends(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Run verifies every reference in refs, admitting at most
// cfg.MaxConcurrentRefs concurrently, and returns verdicts aligned by
// input index, not completion order. On cancellation, no
// new references are admitted, and unstarted references are filled in
// directly with an all-Error{Cancelled} verdict without ever running.
// An already-running reference passes the cancelled ctx to its in-flight
// backend calls, which return early with an Error outcome of the
// backend's own kind (the HTTP backends report Error{Timeout}); outcomes
// that had already arrived are kept.
func (e *Engine) Run(ctx context.Context, refs []types.Reference, progress types.ProgressFunc) []types.ReferenceVerdict {
	verdicts := make([]types.ReferenceVerdict, len(refs))
	sem := make(chan struct{}, e.cfg.maxConcurrentRefs())
	var wg sync.WaitGroup

	opts := checker.Options{
		Cache:                e.cache,
		Limiter:              e.limiter,
		Timeout:              e.cfg.timeout(),
		TimeoutShort:         e.cfg.timeoutShort(),
		CheckOpenAlexAuthors: e.cfg.CheckOpenAlexAuthors,
		Progress:             progress,
	}

	for i := range refs {
		if ctx.Err() != nil {
			verdicts[i] = cancelledVerdict(refs[i], e.backends)
			continue
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				verdicts[idx] = cancelledVerdict(refs[idx], e.backends)
				return
			}
			defer func() { <-sem }()

			verdicts[idx] = checker.Check(ctx, refs[idx], e.backends, opts)
		}(i)
	}

	wg.Wait()
	return verdicts
}

func cancelledVerdict(ref types.Reference, backends []backend.Backend) types.ReferenceVerdict {
	outcomes := make(map[string]types.DbOutcome, len(backends))
	for _, b := range backends {
		outcomes[b.Name()] = types.Error(types.ErrorCancelled, "cancelled")
	}
	return types.ReferenceVerdict{
		ReferenceIndex: ref.Index,
		Title:          ref.Title,
		Outcomes:       outcomes,
	}
}
